package client

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/core"
	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/domain"
)

// fakeTransport records negotiation calls and lets tests fire the
// lifecycle callbacks by hand.
type fakeTransport struct {
	mu             sync.Mutex
	peer           domain.ParticipantID
	offersCreated  int
	appliedOffer   *webrtc.SessionDescription
	appliedAnswer  *webrtc.SessionDescription
	answersApplied int
	cands          []webrtc.ICECandidateInit
	tracks         []webrtc.TrackLocal
	closed         bool

	// A real peer connection fires the failure callback when it is
	// closed; set failOnClose to reproduce that from Close.
	failOnClose bool

	offerErr       error
	answerErr      error
	applyAnswerErr error
	closeErr       error

	onICE     func(webrtc.ICECandidateInit)
	onTrack   func(*webrtc.TrackRemote)
	onFailure func()
}

func (f *fakeTransport) CreateAndSetOffer() (*webrtc.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offerErr != nil {
		return nil, f.offerErr
	}
	f.offersCreated++
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}, nil
}

func (f *fakeTransport) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.answerErr != nil {
		return nil, f.answerErr
	}
	f.appliedOffer = &offer
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}, nil
}

func (f *fakeTransport) ApplyAnswer(answer webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyAnswerErr != nil {
		return f.applyAnswerErr
	}
	f.appliedAnswer = &answer
	f.answersApplied++
	return nil
}

func (f *fakeTransport) AddICECandidate(c webrtc.ICECandidateInit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cands = append(f.cands, c)
	return nil
}

func (f *fakeTransport) AddLocalTrack(t webrtc.TrackLocal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks = append(f.tracks, t)
	return nil
}

func (f *fakeTransport) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onICE = fn
}

func (f *fakeTransport) OnTrack(fn func(*webrtc.TrackRemote)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onTrack = fn
}

func (f *fakeTransport) OnFailure(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onFailure = fn
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	already := f.closed
	f.closed = true
	fn := f.onFailure
	fire := f.failOnClose && !already
	err := f.closeErr
	f.mu.Unlock()
	if fire && fn != nil {
		fn()
	}
	return err
}

func (f *fakeTransport) answerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.answersApplied
}

func (f *fakeTransport) candidates() []webrtc.ICECandidateInit {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]webrtc.ICECandidateInit, len(f.cands))
	copy(out, f.cands)
	return out
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) fireFailure() {
	f.mu.Lock()
	fn := f.onFailure
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (f *fakeTransport) fireCandidate(c webrtc.ICECandidateInit) {
	f.mu.Lock()
	fn := f.onICE
	f.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

// fakeTransportFactory hands out one fakeTransport per peer. When a
// peer gets a second transport (a replaced link), get returns the
// latest and all remain reachable through all.
type fakeTransportFactory struct {
	mu          sync.Mutex
	made        map[domain.ParticipantID]*fakeTransport
	history     []*fakeTransport
	err         error
	failOnClose bool
}

func newFakeTransportFactory() *fakeTransportFactory {
	return &fakeTransportFactory{made: make(map[domain.ParticipantID]*fakeTransport)}
}

func (f *fakeTransportFactory) factory(_ webrtc.Configuration, peer domain.ParticipantID) (core.MediaTransport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	tr := &fakeTransport{peer: peer, failOnClose: f.failOnClose}
	f.made[peer] = tr
	f.history = append(f.history, tr)
	return tr, nil
}

func (f *fakeTransportFactory) get(peer domain.ParticipantID) *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.made[peer]
}

func (f *fakeTransportFactory) all() []*fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*fakeTransport, len(f.history))
	copy(out, f.history)
	return out
}

type fakeGateway struct {
	mu       sync.Mutex
	ice      []webrtc.ICEServer
	iceErr   error
	roomID   domain.RoomID
	joinErr  error
	endErr   error
	endCalls int
}

func (g *fakeGateway) ICEServers(context.Context) ([]webrtc.ICEServer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.iceErr != nil {
		return nil, g.iceErr
	}
	return g.ice, nil
}

func (g *fakeGateway) JoinRoom(context.Context, domain.SessionID) (domain.RoomID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.joinErr != nil {
		return "", g.joinErr
	}
	return g.roomID, nil
}

func (g *fakeGateway) EndRoom(context.Context, domain.SessionID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.endCalls++
	return g.endErr
}

func (g *fakeGateway) RoomStatus(context.Context, domain.SessionID) (core.RoomStatus, error) {
	return core.RoomStatus{}, nil
}

type sentSignal struct {
	target domain.ParticipantID
	sdp    webrtc.SessionDescription
}

// fakeChannel records outbound signaling and, when members is set,
// answers a room join with a room-joined snapshot like the relay would.
type fakeChannel struct {
	mu       sync.Mutex
	sink     core.SignalSink
	startErr error
	members  []domain.Participant

	registers   int
	joins       int
	offers      []sentSignal
	answers     []sentSignal
	cands       []sentSignal
	mediaStates [][2]bool
	chats       []string
	leaves      int
	closed      bool
}

func (f *fakeChannel) Start(sink core.SignalSink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.sink = sink
	return nil
}

func (f *fakeChannel) Register(domain.ParticipantID, string, domain.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers++
	return nil
}

func (f *fakeChannel) JoinRoom(roomID domain.RoomID, _ domain.ParticipantID, _ string, _ domain.Role) error {
	f.mu.Lock()
	f.joins++
	sink, members := f.sink, f.members
	f.mu.Unlock()
	if sink != nil {
		go sink.HandleRoomJoined(roomID, members)
	}
	return nil
}

func (f *fakeChannel) SendOffer(_ domain.RoomID, target domain.ParticipantID, offer webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers = append(f.offers, sentSignal{target: target, sdp: offer})
	return nil
}

func (f *fakeChannel) SendAnswer(_ domain.RoomID, target domain.ParticipantID, answer webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, sentSignal{target: target, sdp: answer})
	return nil
}

func (f *fakeChannel) SendCandidate(_ domain.RoomID, target domain.ParticipantID, _ webrtc.ICECandidateInit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cands = append(f.cands, sentSignal{target: target})
	return nil
}

func (f *fakeChannel) SendMediaState(_ domain.RoomID, audio, video bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mediaStates = append(f.mediaStates, [2]bool{audio, video})
	return nil
}

func (f *fakeChannel) SendChat(_ domain.RoomID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, text)
	return nil
}

func (f *fakeChannel) LeaveRoom(domain.RoomID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves++
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeChannel) sentOffers() []sentSignal {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentSignal, len(f.offers))
	copy(out, f.offers)
	return out
}

func (f *fakeChannel) sentAnswers() []sentSignal {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentSignal, len(f.answers))
	copy(out, f.answers)
	return out
}

func (f *fakeChannel) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeMedia struct {
	mu      sync.Mutex
	enabled map[core.TrackKind]bool
	stops   int
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{enabled: map[core.TrackKind]bool{
		core.TrackAudio: true,
		core.TrackVideo: true,
	}}
}

func (m *fakeMedia) Tracks() []webrtc.TrackLocal { return nil }

func (m *fakeMedia) SetEnabled(kind core.TrackKind, on bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled[kind] = on
	return on
}

func (m *fakeMedia) Enabled(kind core.TrackKind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled[kind]
}

func (m *fakeMedia) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
}

func (m *fakeMedia) stopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// recordSink captures coordinator callbacks for assertions.
type recordSink struct {
	mu     sync.Mutex
	joined []domain.Participant
	left   []domain.ParticipantID
	chats  []domain.ChatMessage
	ended  []string
}

func (s *recordSink) OnParticipantJoined(p domain.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joined = append(s.joined, p)
}

func (s *recordSink) OnParticipantLeft(id domain.ParticipantID, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.left = append(s.left, id)
}

func (s *recordSink) OnRemoteTrack(domain.ParticipantID, *webrtc.TrackRemote) {}

func (s *recordSink) OnMediaStateChanged(domain.ParticipantID, bool, bool) {}

func (s *recordSink) OnChat(msg domain.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = append(s.chats, msg)
}

func (s *recordSink) OnSessionEnded(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = append(s.ended, reason)
}

func (s *recordSink) endedReasons() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.ended))
	copy(out, s.ended)
	return out
}

// Package client implements the call-coordination core: one
// Coordinator per session owns the local participant's state, the
// per-peer link registry and the negotiation protocol that drives each
// link from nothing to media flowing and back down again.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/core"
	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/domain"
)

var (
	ErrNotInitialized = errors.New("coordinator not initialized")
	ErrAlreadyJoined  = errors.New("join already in progress or completed")
)

// SessionState is the session lifecycle: unjoined → joining → joined →
// ended. A failed Join reverts to unjoined after releasing whatever it
// had partially acquired.
type SessionState int32

const (
	StateUnjoined SessionState = iota
	StateJoining
	StateJoined
	StateEnded
)

func (s SessionState) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

// Factories are the boundaries the coordinator drives. Tests swap in
// fakes; production wiring uses the gateway, signal, rtc and media
// adapter packages.
type Factories struct {
	Gateway   func(token string) core.Gateway
	Signal    core.SignalFactory
	Transport core.TransportFactory
	Media     func() (core.MediaSource, error)
}

type Options struct {
	JoinTimeout time.Duration
}

// Coordinator is an explicit per-session value: construct it, join,
// leave, throw it away. No globals, so several sessions (or tests) can
// coexist.
//
// Everything the coordinator owns is mutated on one event-loop
// goroutine; inbound signaling, transport lifecycle callbacks and API
// commands all funnel through a single channel, so concurrent events
// for the same peer link can never interleave.
type Coordinator struct {
	local domain.Participant
	f     Factories
	sink  EventSink
	opts  Options

	initMu      sync.Mutex
	initialized bool
	credential  string
	gateway     core.Gateway
	iceServers  []webrtc.ICEServer

	events chan any
	done   chan struct{} // closed when teardown begins: intake stops
	ended  chan struct{} // closed when teardown finished: loop exited

	stateMirror atomic.Int32

	// Loop-owned state. Never touched outside run().
	state     SessionState
	roomID    domain.RoomID
	media     core.MediaSource
	channel   core.SignalChannel
	registry  *linkRegistry
	remotes   map[domain.ParticipantID]*domain.Participant
	earlyCand map[domain.ParticipantID][]webrtc.ICECandidateInit
	joinWait  chan struct{}
}

// DefaultICEServers is the public fallback used when the transport
// configuration cannot be fetched.
var DefaultICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302"}},
}

func New(local domain.Participant, f Factories, sink EventSink, opts Options) *Coordinator {
	if sink == nil {
		sink = NopSink{}
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = 15 * time.Second
	}
	c := &Coordinator{
		local:     local,
		f:         f,
		sink:      sink,
		opts:      opts,
		events:    make(chan any, 64),
		done:      make(chan struct{}),
		ended:     make(chan struct{}),
		state:     StateUnjoined,
		registry:  newLinkRegistry(),
		remotes:   make(map[domain.ParticipantID]*domain.Participant),
		earlyCand: make(map[domain.ParticipantID][]webrtc.ICECandidateInit),
	}
	go c.run()
	return c
}

// Initialize fetches the transport configuration once. Repeat calls
// before or after success collapse into the first result. A fetch
// failure is reported as ConfigUnavailable but leaves the coordinator
// usable on the public default servers.
func (c *Coordinator) Initialize(ctx context.Context, credential string) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.initialized {
		return nil
	}
	c.credential = credential
	c.gateway = c.f.Gateway(credential)

	servers, err := c.gateway.ICEServers(ctx)
	if err != nil {
		log.Warn().Err(err).Str("module", "client").Msg("ice config fetch failed, using public default")
		c.iceServers = DefaultICEServers
		c.initialized = true
		return fmt.Errorf("%w: %v", core.ErrConfigUnavailable, err)
	}
	c.iceServers = servers
	c.initialized = true
	log.Info().Str("module", "client").Int("ice_servers", len(servers)).Msg("initialized")
	return nil
}

// Join authorizes against the gateway, acquires local media, opens the
// signaling channel and announces presence. It either returns with the
// session fully joined or with everything it touched released.
func (c *Coordinator) Join(ctx context.Context, sessionID domain.SessionID) (domain.RoomID, error) {
	c.initMu.Lock()
	ready := c.initialized
	gw := c.gateway
	token := c.credential
	c.initMu.Unlock()
	if !ready {
		return "", ErrNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.JoinTimeout)
	defer cancel()

	begin := cmdBeginJoin{reply: make(chan error, 1)}
	if !c.post(begin) {
		return "", ErrAlreadyJoined
	}
	if err := c.await(begin.reply); err != nil {
		return "", err
	}

	roomID, err := gw.JoinRoom(ctx, sessionID)
	if err != nil {
		c.abortJoin(nil, nil)
		if errors.Is(err, core.ErrNotAuthorized) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", core.ErrNotAuthorized, err)
	}

	media, err := c.f.Media()
	if err != nil {
		c.abortJoin(nil, nil)
		if errors.Is(err, core.ErrMediaUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", core.ErrMediaUnavailable, err)
	}

	channel := c.f.Signal(token)
	if err := channel.Start(c); err != nil {
		c.abortJoin(media, nil)
		return "", fmt.Errorf("open signaling channel: %w", err)
	}

	joined := make(chan struct{})
	install := cmdInstall{
		roomID: roomID, media: media, channel: channel,
		joined: joined, reply: make(chan struct{}, 1),
	}
	if !c.post(install) {
		c.abortJoin(media, channel)
		return "", ErrAlreadyJoined
	}
	<-install.reply

	if err := channel.Register(c.local.ID, c.local.Name, c.local.Role); err != nil {
		c.abortJoin(nil, nil) // installed: the loop owns media+channel now
		return "", fmt.Errorf("announce presence: %w", err)
	}
	if err := channel.JoinRoom(roomID, c.local.ID, c.local.Name, c.local.Role); err != nil {
		c.abortJoin(nil, nil)
		return "", fmt.Errorf("announce presence: %w", err)
	}

	select {
	case <-joined:
		return roomID, nil
	case <-ctx.Done():
		c.abortJoin(nil, nil)
		return "", fmt.Errorf("join timed out: %w", ctx.Err())
	case <-c.ended:
		return "", core.ErrChannelLost
	}
}

// abortJoin reverts a failed join. Resources not yet handed to the loop
// are released here; installed ones are released by the loop.
func (c *Coordinator) abortJoin(media core.MediaSource, channel core.SignalChannel) {
	if media != nil {
		media.Stop()
	}
	if channel != nil {
		_ = channel.Close()
	}
	abort := cmdAbortJoin{reply: make(chan struct{}, 1)}
	if c.post(abort) {
		select {
		case <-abort.reply:
		case <-c.ended:
		}
	}
}

// Leave tears down every peer link, releases local media and closes the
// signaling channel. Safe to call any number of times from any state.
func (c *Coordinator) Leave() {
	leave := cmdLeave{reply: make(chan struct{}, 1)}
	if !c.post(leave) {
		return // already ended
	}
	select {
	case <-leave.reply:
	case <-c.ended:
	}
}

// EndForAll terminates the session server-side (privileged: the
// gateway enforces that only the owning professional may do this),
// causing the relay to broadcast room-ended to everyone else, then
// leaves locally.
func (c *Coordinator) EndForAll(ctx context.Context, sessionID domain.SessionID) error {
	c.initMu.Lock()
	ready := c.initialized
	gw := c.gateway
	c.initMu.Unlock()
	if !ready {
		return ErrNotInitialized
	}
	if err := gw.EndRoom(ctx, sessionID); err != nil {
		return err
	}
	c.Leave()
	return nil
}

// ToggleAudio flips the local audio flag and broadcasts the new media
// state. Reports false without broadcasting when no media was acquired.
func (c *Coordinator) ToggleAudio() bool { return c.toggle(core.TrackAudio) }

// ToggleVideo is ToggleAudio for the camera track.
func (c *Coordinator) ToggleVideo() bool { return c.toggle(core.TrackVideo) }

func (c *Coordinator) toggle(kind core.TrackKind) bool {
	cmd := cmdToggle{kind: kind, reply: make(chan bool, 1)}
	if !c.post(cmd) {
		return false
	}
	select {
	case v := <-cmd.reply:
		return v
	case <-c.ended:
		return false
	}
}

// SendChat broadcasts an ephemeral chat message to current
// participants. Empty text or a session that is not joined is a silent
// no-op; nothing is persisted anywhere.
func (c *Coordinator) SendChat(text string) {
	if text == "" {
		return
	}
	c.post(cmdChat{text: text})
}

// Participants snapshots the currently known remote participants.
func (c *Coordinator) Participants() []domain.Participant {
	cmd := cmdParticipants{reply: make(chan []domain.Participant, 1)}
	if !c.post(cmd) {
		return nil
	}
	select {
	case ps := <-cmd.reply:
		return ps
	case <-c.ended:
		return nil
	}
}

// PeerLinkCount reports how many links are registered.
func (c *Coordinator) PeerLinkCount() int {
	cmd := cmdLinkCount{reply: make(chan int, 1)}
	if !c.post(cmd) {
		return 0
	}
	select {
	case n := <-cmd.reply:
		return n
	case <-c.ended:
		return 0
	}
}

func (c *Coordinator) State() SessionState {
	return SessionState(c.stateMirror.Load())
}

// post hands an event to the loop. Returns false once teardown started.
func (c *Coordinator) post(ev any) bool {
	select {
	case <-c.done:
		return false
	case c.events <- ev:
		return true
	}
}

func (c *Coordinator) await(reply chan error) error {
	select {
	case err := <-reply:
		return err
	case <-c.ended:
		return core.ErrChannelLost
	}
}

// --- core.SignalSink: inbound relay messages become loop events. ---

func (c *Coordinator) HandleRoomJoined(roomID domain.RoomID, members []domain.Participant) {
	c.post(evRoomJoined{roomID: roomID, members: members})
}

func (c *Coordinator) HandleUserJoined(p domain.Participant) { c.post(evUserJoined{p: p}) }

func (c *Coordinator) HandleUserLeft(id domain.ParticipantID, name string) {
	c.post(evUserLeft{id: id, name: name})
}

func (c *Coordinator) HandleOffer(from domain.ParticipantID, name string, offer webrtc.SessionDescription) {
	c.post(evOffer{from: from, name: name, offer: offer})
}

func (c *Coordinator) HandleAnswer(from domain.ParticipantID, answer webrtc.SessionDescription) {
	c.post(evAnswer{from: from, answer: answer})
}

func (c *Coordinator) HandleCandidate(from domain.ParticipantID, cand webrtc.ICECandidateInit) {
	c.post(evCandidate{from: from, cand: cand})
}

func (c *Coordinator) HandleMediaState(id domain.ParticipantID, name string, audio, video bool) {
	c.post(evMediaState{id: id, name: name, audio: audio, video: video})
}

func (c *Coordinator) HandleChat(msg domain.ChatMessage) { c.post(evChat{msg: msg}) }

func (c *Coordinator) HandleRoomEnded(roomID domain.RoomID, reason string) {
	c.post(evRoomEnded{roomID: roomID, reason: reason})
}

func (c *Coordinator) HandleChannelLost(err error) { c.post(evChannelLost{err: err}) }

// --- Event loop. ---

func (c *Coordinator) run() {
	defer close(c.ended)
	for {
		ev := <-c.events
		if quit := c.handle(ev); quit {
			c.drain()
			return
		}
	}
}

// drain answers whatever was buffered behind the teardown with
// ended-state defaults so no caller is left hanging.
func (c *Coordinator) drain() {
	for {
		select {
		case ev := <-c.events:
			c.replyEnded(ev)
		default:
			return
		}
	}
}

func (c *Coordinator) replyEnded(ev any) {
	switch ev := ev.(type) {
	case cmdBeginJoin:
		ev.reply <- ErrAlreadyJoined
	case cmdAbortJoin:
		ev.reply <- struct{}{}
	case cmdInstall:
		ev.reply <- struct{}{}
	case cmdToggle:
		ev.reply <- false
	case cmdLeave:
		ev.reply <- struct{}{}
	case cmdParticipants:
		ev.reply <- nil
	case cmdLinkCount:
		ev.reply <- 0
	}
}

func (c *Coordinator) setState(s SessionState) {
	c.state = s
	c.stateMirror.Store(int32(s))
}

func (c *Coordinator) handle(ev any) (quit bool) {
	switch ev := ev.(type) {
	case cmdBeginJoin:
		if c.state != StateUnjoined {
			ev.reply <- ErrAlreadyJoined
			return false
		}
		c.setState(StateJoining)
		ev.reply <- nil

	case cmdInstall:
		c.roomID = ev.roomID
		c.media = ev.media
		c.channel = ev.channel
		c.joinWait = ev.joined
		ev.reply <- struct{}{}

	case cmdAbortJoin:
		c.registry.removeAll()
		if c.media != nil {
			c.media.Stop()
			c.media = nil
		}
		if c.channel != nil {
			_ = c.channel.Close()
			c.channel = nil
		}
		c.roomID = ""
		c.joinWait = nil
		c.remotes = make(map[domain.ParticipantID]*domain.Participant)
		c.setState(StateUnjoined)
		ev.reply <- struct{}{}

	case evRoomJoined:
		c.handleRoomJoined(ev)

	case evUserJoined:
		c.handleUserJoined(ev.p)

	case evUserLeft:
		c.registry.remove(ev.id)
		delete(c.remotes, ev.id)
		delete(c.earlyCand, ev.id)
		c.sink.OnParticipantLeft(ev.id, ev.name)

	case evOffer:
		c.handleOffer(ev)

	case evAnswer:
		c.handleAnswer(ev)

	case evCandidate:
		c.handleCandidate(ev)

	case evMediaState:
		if p, ok := c.remotes[ev.id]; ok {
			p.Audio, p.Video = ev.audio, ev.video
		}
		c.sink.OnMediaStateChanged(ev.id, ev.audio, ev.video)

	case evChat:
		c.sink.OnChat(ev.msg)

	case evLocalCandidate:
		if c.channel != nil {
			if err := c.channel.SendCandidate(c.roomID, ev.peer, ev.cand); err != nil {
				log.Warn().Err(err).Str("module", "client").Str("peer", string(ev.peer)).Msg("send candidate")
			}
		}

	case evRemoteTrack:
		c.sink.OnRemoteTrack(ev.peer, ev.track)

	case evTransportFailed:
		// Contained: only this link goes, the session stays up. A failure
		// from a transport that is no longer the registered one (the link
		// was already replaced or removed) is stale and ignored.
		if link, ok := c.registry.get(ev.peer); ok && link.transport == ev.transport {
			log.Warn().Str("module", "client").Str("peer", string(ev.peer)).Msg("transport failed, removing link")
			name := ""
			if p, known := c.remotes[ev.peer]; known {
				name = p.Name
			}
			c.registry.remove(ev.peer)
			delete(c.remotes, ev.peer)
			c.sink.OnParticipantLeft(ev.peer, name)
		}

	case evRoomEnded:
		c.teardown("session ended: " + ev.reason)
		return true

	case evChannelLost:
		// No further signaling is possible; stale media with no way to
		// renegotiate is strictly worse than a clean stop.
		log.Warn().Err(ev.err).Str("module", "client").Msg("signaling channel lost")
		c.teardown("signaling channel lost")
		return true

	case cmdToggle:
		ev.reply <- c.handleToggle(ev.kind)

	case cmdChat:
		if c.state == StateJoined && c.channel != nil {
			if err := c.channel.SendChat(c.roomID, ev.text); err != nil {
				log.Warn().Err(err).Str("module", "client").Msg("send chat")
			}
		}

	case cmdParticipants:
		out := make([]domain.Participant, 0, len(c.remotes))
		for _, p := range c.remotes {
			out = append(out, *p)
		}
		ev.reply <- out

	case cmdLinkCount:
		ev.reply <- c.registry.len()

	case cmdLeave:
		c.teardown("left session")
		ev.reply <- struct{}{}
		return true
	}
	return false
}

func (c *Coordinator) handleRoomJoined(ev evRoomJoined) {
	// Members already present will offer to us; we wait passively
	// (asymmetric initiator rule, so both sides never offer at once).
	// A replayed snapshot after a reconnect must not re-announce peers
	// we already track.
	for i := range ev.members {
		p := ev.members[i]
		if p.ID == c.local.ID {
			continue
		}
		if _, known := c.remotes[p.ID]; known {
			continue
		}
		c.remotes[p.ID] = &p
		c.sink.OnParticipantJoined(p)
	}
	c.setState(StateJoined)
	if c.joinWait != nil {
		close(c.joinWait)
		c.joinWait = nil
	}
	log.Info().Str("module", "client").Str("room", string(ev.roomID)).
		Int("present", len(ev.members)).Msg("room joined")
}

// handleUserJoined runs the initiator side: everyone already present
// offers toward the newcomer, the newcomer only ever answers.
func (c *Coordinator) handleUserJoined(p domain.Participant) {
	if p.ID == c.local.ID {
		return
	}
	if _, exists := c.remotes[p.ID]; !exists {
		cp := p
		c.remotes[p.ID] = &cp
		c.sink.OnParticipantJoined(p)
	}
	if _, exists := c.registry.get(p.ID); exists {
		log.Warn().Str("module", "client").Str("peer", string(p.ID)).Msg("duplicate link rejected")
		return
	}

	link, err := c.createLink(p.ID, p.Name, true)
	if err != nil {
		log.Error().Err(err).Str("module", "client").Str("peer", string(p.ID)).Msg("create link")
		return
	}

	if err := c.sendOffer(link); err != nil {
		log.Error().Err(err).Str("module", "client").Str("peer", string(p.ID)).Msg("offer failed")
		c.registry.remove(p.ID)
	}
}

func (c *Coordinator) sendOffer(link *peerLink) error {
	if err := link.transitionTo(linkOfferSent); err != nil {
		return err
	}
	offer, err := link.transport.CreateAndSetOffer()
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrNegotiationFailed, err)
	}
	if err := c.channel.SendOffer(c.roomID, link.peer, *offer); err != nil {
		return fmt.Errorf("%w: %v", core.ErrNegotiationFailed, err)
	}
	return link.transitionTo(linkAnswerPending)
}

func (c *Coordinator) handleOffer(ev evOffer) {
	if existing, ok := c.registry.get(ev.from); ok {
		switch existing.state {
		case linkOfferSent, linkAnswerPending:
			// Glare: both sides initiated inside the same broadcast
			// window. Deterministic tie-break on participant id — the
			// lower id's offer wins, the other side yields.
			if ev.from < c.local.ID {
				log.Info().Str("module", "client").Str("peer", string(ev.from)).Msg("glare: yielding to remote offer")
				c.registry.remove(ev.from)
			} else {
				log.Info().Str("module", "client").Str("peer", string(ev.from)).Msg("glare: discarding remote offer")
				return
			}
		default:
			// Already answered or stable: duplicate/stale offer.
			log.Debug().Str("module", "client").Str("peer", string(ev.from)).Msg("stale offer discarded")
			return
		}
	}

	if _, known := c.remotes[ev.from]; !known {
		// Offer from a participant we have not seen a presence event
		// for yet; trust the relay and track them.
		c.remotes[ev.from] = &domain.Participant{ID: ev.from, Name: ev.name, Audio: true, Video: true}
		c.sink.OnParticipantJoined(*c.remotes[ev.from])
	}

	link, err := c.createLink(ev.from, ev.name, false)
	if err != nil {
		log.Error().Err(err).Str("module", "client").Str("peer", string(ev.from)).Msg("create link")
		return
	}
	if err := link.transitionTo(linkOfferReceived); err != nil {
		log.Warn().Err(err).Str("module", "client").Msg("offer transition")
		return
	}

	answer, err := link.transport.ApplyOfferAndCreateAnswer(ev.offer)
	if err != nil {
		log.Error().Err(err).Str("module", "client").Str("peer", string(ev.from)).Msg("answer failed")
		c.registry.remove(ev.from)
		return
	}
	link.markRemoteApplied()

	if err := c.channel.SendAnswer(c.roomID, ev.from, *answer); err != nil {
		log.Error().Err(err).Str("module", "client").Str("peer", string(ev.from)).Msg("send answer")
		c.registry.remove(ev.from)
		return
	}
	if err := link.transitionTo(linkStable); err != nil {
		log.Warn().Err(err).Str("module", "client").Msg("stable transition")
	}
}

// handleAnswer applies an answer only when we are actually waiting for
// one; anything else is duplicate or stale signaling and is discarded
// without touching link state.
func (c *Coordinator) handleAnswer(ev evAnswer) {
	link, ok := c.registry.get(ev.from)
	if !ok || link.state != linkAnswerPending {
		log.Debug().Str("module", "client").Str("peer", string(ev.from)).Msg("stale answer discarded")
		return
	}
	if err := link.transport.ApplyAnswer(ev.answer); err != nil {
		log.Error().Err(err).Str("module", "client").Str("peer", string(ev.from)).Msg("apply answer")
		c.registry.remove(ev.from)
		return
	}
	link.markRemoteApplied()
	if err := link.transitionTo(linkStable); err != nil {
		log.Warn().Err(err).Str("module", "client").Msg("stable transition")
	}
}

func (c *Coordinator) handleCandidate(ev evCandidate) {
	link, ok := c.registry.get(ev.from)
	if !ok {
		// Candidate raced ahead of its offer; park it for the link
		// that is about to exist.
		c.earlyCand[ev.from] = append(c.earlyCand[ev.from], ev.cand)
		return
	}
	if err := link.addCandidate(ev.cand); err != nil {
		log.Warn().Err(err).Str("module", "client").Str("peer", string(ev.from)).Msg("add candidate")
	}
}

func (c *Coordinator) createLink(peer domain.ParticipantID, name string, initiator bool) (*peerLink, error) {
	transport, err := c.f.Transport(webrtc.Configuration{ICEServers: c.iceServers}, peer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNegotiationFailed, err)
	}

	link := newPeerLink(peer, name, initiator, transport)
	if err := c.registry.add(link); err != nil {
		_ = transport.Close()
		return nil, err
	}

	// Same shared tracks on every link; attaching never clones or
	// mutates track state.
	if c.media != nil {
		for _, track := range c.media.Tracks() {
			if err := transport.AddLocalTrack(track); err != nil {
				c.registry.remove(peer)
				return nil, fmt.Errorf("%w: %v", core.ErrNegotiationFailed, err)
			}
		}
	}

	transport.OnICECandidate(func(cand webrtc.ICECandidateInit) {
		c.post(evLocalCandidate{peer: peer, cand: cand})
	})
	transport.OnTrack(func(track *webrtc.TrackRemote) {
		c.post(evRemoteTrack{peer: peer, track: track})
	})
	transport.OnFailure(func() {
		c.post(evTransportFailed{peer: peer, transport: transport})
	})

	// Candidates that arrived before the link existed.
	if early := c.earlyCand[peer]; len(early) > 0 {
		link.pending = append(link.pending, early...)
		delete(c.earlyCand, peer)
	}

	return link, nil
}

func (c *Coordinator) handleToggle(kind core.TrackKind) bool {
	if c.media == nil {
		return false
	}
	newVal := c.media.SetEnabled(kind, !c.media.Enabled(kind))
	if c.channel != nil && c.state == StateJoined {
		audio := c.media.Enabled(core.TrackAudio)
		video := c.media.Enabled(core.TrackVideo)
		if err := c.channel.SendMediaState(c.roomID, audio, video); err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("send media state")
		}
	}
	return newVal
}

// teardown is the single exit path: every link destroyed, media
// released exactly once, channel closed, state ended. It must never
// abort halfway; leaving a camera open in a clinical context is a
// privacy leak.
func (c *Coordinator) teardown(reason string) {
	if c.state == StateEnded {
		return
	}
	close(c.done) // stop intake first so nothing interleaves

	c.registry.removeAll()
	c.remotes = make(map[domain.ParticipantID]*domain.Participant)
	c.earlyCand = make(map[domain.ParticipantID][]webrtc.ICECandidateInit)

	if c.media != nil {
		c.media.Stop()
		c.media = nil
	}
	if c.channel != nil {
		if c.roomID != "" {
			_ = c.channel.LeaveRoom(c.roomID)
		}
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.joinWait != nil {
		c.joinWait = nil
	}
	c.setState(StateEnded)
	c.sink.OnSessionEnded(reason)
	log.Info().Str("module", "client").Str("reason", reason).Msg("session ended")
}

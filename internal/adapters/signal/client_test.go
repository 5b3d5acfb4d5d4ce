package signal

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/core"
	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/domain"
	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/protocol"
)

// testSink funnels every sink callback into one channel so tests can
// assert arrival order with a deadline.
type sinkEvent struct {
	kind string
	from domain.ParticipantID
	err  error
}

type testSink struct {
	events chan sinkEvent
}

func newTestSink() *testSink {
	return &testSink{events: make(chan sinkEvent, 32)}
}

func (s *testSink) HandleRoomJoined(domain.RoomID, []domain.Participant) {
	s.events <- sinkEvent{kind: "room-joined"}
}
func (s *testSink) HandleUserJoined(p domain.Participant) {
	s.events <- sinkEvent{kind: "user-joined", from: p.ID}
}
func (s *testSink) HandleUserLeft(id domain.ParticipantID, _ string) {
	s.events <- sinkEvent{kind: "user-left", from: id}
}
func (s *testSink) HandleOffer(from domain.ParticipantID, _ string, _ webrtc.SessionDescription) {
	s.events <- sinkEvent{kind: "offer", from: from}
}
func (s *testSink) HandleAnswer(from domain.ParticipantID, _ webrtc.SessionDescription) {
	s.events <- sinkEvent{kind: "answer", from: from}
}
func (s *testSink) HandleCandidate(from domain.ParticipantID, _ webrtc.ICECandidateInit) {
	s.events <- sinkEvent{kind: "candidate", from: from}
}
func (s *testSink) HandleMediaState(id domain.ParticipantID, _ string, _, _ bool) {
	s.events <- sinkEvent{kind: "media-state", from: id}
}
func (s *testSink) HandleChat(msg domain.ChatMessage) {
	s.events <- sinkEvent{kind: "chat", from: msg.SenderID}
}
func (s *testSink) HandleRoomEnded(domain.RoomID, string) {
	s.events <- sinkEvent{kind: "room-ended"}
}
func (s *testSink) HandleChannelLost(err error) {
	s.events <- sinkEvent{kind: "channel-lost", err: err}
}

func (s *testSink) next(t *testing.T) sinkEvent {
	t.Helper()
	select {
	case ev := <-s.events:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for sink event")
		return sinkEvent{}
	}
}

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsServer runs handler once per accepted connection.
func wsServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// readFrameQuiet is for server-side goroutines, which must not call
// into testing.T.
func readFrameQuiet(conn *websocket.Conn) (protocol.Envelope, error) {
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return protocol.Envelope{}, err
	}
	return protocol.Parse(data)
}

func TestStartFailsFastWhenRelayUnreachable(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/rtc/ws", "tok", Options{})
	if err := c.Start(newTestSink()); err == nil {
		t.Fatal("expected dial failure")
	}
}

func TestInboundMessagesReachSink(t *testing.T) {
	ready := make(chan *websocket.Conn, 1)
	srv := wsServer(t, func(conn *websocket.Conn) {
		ready <- conn
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	sink := newTestSink()
	c := NewClient(wsURL(srv), "tok", Options{})
	if err := c.Start(sink); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer c.Close()

	server := <-ready
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}
	frames := []protocol.Envelope{
		{Type: protocol.TypeRoomJoined, RoomID: "room-1"},
		{Type: protocol.TypeUserJoined, UserID: "aaa", UserName: "A", Role: domain.RolePatient},
		{Type: protocol.TypeOffer, FromUserID: "aaa", Offer: &offer},
		{Type: protocol.TypeUserLeft, UserID: "aaa"},
	}
	for _, f := range frames {
		if err := server.WriteJSON(f); err != nil {
			t.Fatalf("server write: %v", err)
		}
	}

	want := []string{"room-joined", "user-joined", "offer", "user-left"}
	for _, kind := range want {
		ev := sink.next(t)
		if ev.kind != kind {
			t.Fatalf("got %q, want %q", ev.kind, kind)
		}
	}
}

func TestOutboundEnvelopes(t *testing.T) {
	got := make(chan protocol.Envelope, 8)
	srv := wsServer(t, func(conn *websocket.Conn) {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if env, err := protocol.Parse(data); err == nil {
				got <- env
			}
		}
	})

	c := NewClient(wsURL(srv), "tok", Options{})
	if err := c.Start(newTestSink()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer c.Close()

	if err := c.Register("aaa", "A", domain.RoleProfessional); err != nil {
		t.Fatal(err)
	}
	if err := c.JoinRoom("room-1", "aaa", "A", domain.RoleProfessional); err != nil {
		t.Fatal(err)
	}
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}
	if err := c.SendOffer("room-1", "bbb", offer); err != nil {
		t.Fatal(err)
	}

	wantTypes := []protocol.MessageType{protocol.TypeRegister, protocol.TypeJoinRoom, protocol.TypeOffer}
	for _, want := range wantTypes {
		select {
		case env := <-got:
			if env.Type != want {
				t.Fatalf("got %s, want %s", env.Type, want)
			}
			if want == protocol.TypeOffer && env.TargetUserID != "bbb" {
				t.Fatalf("offer target = %q", env.TargetUserID)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestReconnectReplaysPresence(t *testing.T) {
	var mu sync.Mutex
	conns := 0
	replayed := make(chan protocol.Envelope, 4)

	srv := wsServer(t, func(conn *websocket.Conn) {
		mu.Lock()
		conns++
		n := conns
		mu.Unlock()

		if n == 1 {
			// Consume the original announcements, then drop the line.
			readFrameQuiet(conn)
			readFrameQuiet(conn)
			conn.Close()
			return
		}
		for i := 0; i < 2; i++ {
			if env, err := readFrameQuiet(conn); err == nil {
				replayed <- env
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := NewClient(wsURL(srv), "tok", Options{
		ReconnectBase: 10 * time.Millisecond,
		ReconnectMax:  50 * time.Millisecond,
	})
	if err := c.Start(newTestSink()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer c.Close()

	if err := c.Register("aaa", "A", domain.RolePatient); err != nil {
		t.Fatal(err)
	}
	if err := c.JoinRoom("room-1", "aaa", "A", domain.RolePatient); err != nil {
		t.Fatal(err)
	}

	wantTypes := []protocol.MessageType{protocol.TypeRegister, protocol.TypeJoinRoom}
	for _, want := range wantTypes {
		select {
		case env := <-replayed:
			if env.Type != want || env.UserID != "aaa" {
				t.Fatalf("replayed %s for %q, want %s for aaa", env.Type, env.UserID, want)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("presence not replayed: missing %s", want)
		}
	}
}

func TestReconnectRunsSingleWritePump(t *testing.T) {
	var mu sync.Mutex
	conns := 0
	pings := make(chan struct{}, 64)

	srv := wsServer(t, func(conn *websocket.Conn) {
		mu.Lock()
		conns++
		n := conns
		mu.Unlock()

		if n == 1 {
			conn.Close()
			return
		}
		conn.SetPingHandler(func(string) error {
			pings <- struct{}{}
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := NewClient(wsURL(srv), "tok", Options{
		ReconnectBase: 10 * time.Millisecond,
		ReconnectMax:  20 * time.Millisecond,
		PingPeriod:    50 * time.Millisecond,
	})
	if err := c.Start(newTestSink()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer c.Close()

	// One write pump at a 50ms period produces roughly 12 pings in
	// 600ms; a pump leaked across the reconnect roughly doubles that.
	deadline := time.After(600 * time.Millisecond)
	count := 0
counting:
	for {
		select {
		case <-pings:
			count++
		case <-deadline:
			break counting
		}
	}
	if count == 0 {
		t.Fatal("no pings observed on the reconnected connection")
	}
	if count > 18 {
		t.Fatalf("observed %d pings in 600ms at a 50ms period, an extra write pump survived the reconnect", count)
	}
}

func TestCloseReturnsFastAfterFailedStart(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/rtc/ws", "tok", Options{})
	if err := c.Start(newTestSink()); err == nil {
		t.Fatal("expected dial failure")
	}

	start := time.Now()
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("close took %v after a failed start", elapsed)
	}
}

func TestBudgetExhaustionReportsChannelLostOnce(t *testing.T) {
	srv := wsServer(t, func(conn *websocket.Conn) {
		conn.Close()
	})

	sink := newTestSink()
	c := NewClient(wsURL(srv), "tok", Options{
		ReconnectBase:   5 * time.Millisecond,
		ReconnectMax:    10 * time.Millisecond,
		ReconnectBudget: 2,
	})
	if err := c.Start(sink); err != nil {
		t.Fatalf("start: %v", err)
	}
	srv.Close() // every reconnect attempt now fails

	ev := sink.next(t)
	if ev.kind != "channel-lost" {
		t.Fatalf("got %q, want channel-lost", ev.kind)
	}
	if !errors.Is(ev.err, core.ErrChannelLost) {
		t.Fatalf("err = %v, want ErrChannelLost", ev.err)
	}

	// The report is one-shot.
	select {
	case ev := <-sink.events:
		t.Fatalf("unexpected second event %q", ev.kind)
	case <-time.After(200 * time.Millisecond):
	}
	_ = c.Close()
}

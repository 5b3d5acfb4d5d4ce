// Package signal is the client side of the signaling channel: a
// persistent, ordered WebSocket connection to the relay used only for
// negotiation metadata and presence, never media.
package signal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/core"
	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/domain"
	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/protocol"
)

var ErrSendQueueFull = errors.New("signal send queue full")

// Options bounds the channel's reconnection behaviour.
type Options struct {
	ReconnectBase   time.Duration
	ReconnectMax    time.Duration
	ReconnectBudget int
	// PingPeriod keeps the connection alive between messages.
	PingPeriod time.Duration
}

func (o *Options) fillDefaults() {
	if o.ReconnectBase <= 0 {
		o.ReconnectBase = time.Second
	}
	if o.ReconnectMax <= 0 {
		o.ReconnectMax = 30 * time.Second
	}
	if o.ReconnectBudget <= 0 {
		o.ReconnectBudget = 5
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 30 * time.Second
	}
}

// Client implements core.SignalChannel over gorilla/websocket.
type Client struct {
	url   string
	token string
	opts  Options

	sink core.SignalSink

	connMu sync.Mutex
	conn   *websocket.Conn

	ctx       context.Context
	ctxCancel context.CancelFunc
	sendCh    chan *protocol.Envelope

	// closedCh is closed when runLoop exits; loopStarted (under connMu)
	// records whether runLoop was ever launched, so Close does not wait
	// on a loop that never ran.
	closedCh    chan struct{}
	loopStarted bool

	lostOnce sync.Once

	// stateMu guards the replayed registration/join envelopes so a
	// reconnected channel re-announces itself to the relay.
	stateMu      sync.Mutex
	lastRegister *protocol.Envelope
	lastJoin     *protocol.Envelope
}

func NewClient(url, token string, opts Options) *Client {
	opts.fillDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:       url,
		token:     token,
		opts:      opts,
		ctx:       ctx,
		ctxCancel: cancel,
		sendCh:    make(chan *protocol.Envelope, 32),
		closedCh:  make(chan struct{}),
	}
}

var _ core.SignalChannel = (*Client)(nil)

// Start connects and begins the read/write loops. The initial dial is
// synchronous so Join can fail fast; later drops reconnect in the
// background within the configured budget.
func (c *Client) Start(sink core.SignalSink) error {
	c.sink = sink
	if err := c.connect(); err != nil {
		return fmt.Errorf("initial signaling connection failed: %w", err)
	}
	c.connMu.Lock()
	c.loopStarted = true
	c.connMu.Unlock()
	go c.runLoop()
	return nil
}

func (c *Client) connect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := dialer.DialContext(c.ctx, c.url, header)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	c.conn = conn
	log.Info().Str("module", "signal.client").Str("url", c.url).Msg("connected")
	return nil
}

func (c *Client) Close() error {
	c.ctxCancel()

	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	started := c.loopStarted
	c.connMu.Unlock()

	if started {
		select {
		case <-c.closedCh:
		case <-time.After(2 * time.Second):
			log.Warn().Str("module", "signal.client").Msg("close timed out")
		}
	}

	c.connMu.Lock()
	c.conn = nil
	c.connMu.Unlock()
	return nil
}

func (c *Client) send(env *protocol.Envelope) error {
	select {
	case c.sendCh <- env:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		return ErrSendQueueFull
	}
}

// runLoop owns the connection lifecycle: pump until error, then
// reconnect with exponential backoff until the budget runs out.
func (c *Client) runLoop() {
	defer close(c.closedCh)

	delay := c.opts.ReconnectBase
	attempts := 0

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		if err := c.ensureConnected(); err != nil {
			attempts++
			if attempts >= c.opts.ReconnectBudget {
				c.reportLost(err)
				return
			}
			log.Warn().Err(err).Str("module", "signal.client").
				Int("attempt", attempts).Dur("retry_in", delay).Msg("reconnect failed")
			select {
			case <-time.After(delay):
				delay = min(delay*2, c.opts.ReconnectMax)
				continue
			case <-c.ctx.Done():
				return
			}
		}

		// Fresh connection: reset the budget and replay presence so
		// the relay knows us again.
		attempts = 0
		delay = c.opts.ReconnectBase
		c.replayPresence()

		conn := c.current()
		if conn == nil {
			// Close raced the dial.
			return
		}
		c.pump(conn)
	}
}

// pump runs one connection's read and write goroutines and returns
// only after both have exited, so a redial never inherits pumps from
// a previous connection.
func (c *Client) pump(conn *websocket.Conn) {
	errCh := make(chan error, 2)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.readLoop(conn, errCh)
	}()
	go func() {
		defer wg.Done()
		c.writeLoop(conn, stop, errCh)
	}()

	select {
	case err := <-errCh:
		log.Warn().Err(err).Str("module", "signal.client").Msg("connection error")
	case <-c.ctx.Done():
	}
	c.disconnect()
	close(stop)
	wg.Wait()
}

func (c *Client) reportLost(err error) {
	c.lostOnce.Do(func() {
		log.Error().Err(err).Str("module", "signal.client").Msg("reconnect budget exhausted")
		if c.sink != nil {
			c.sink.HandleChannelLost(fmt.Errorf("%w: %v", core.ErrChannelLost, err))
		}
	})
}

func (c *Client) ensureConnected() error {
	c.connMu.Lock()
	connected := c.conn != nil
	c.connMu.Unlock()
	if connected {
		return nil
	}
	return c.connect()
}

func (c *Client) disconnect() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
		log.Info().Str("module", "signal.client").Msg("disconnected")
	}
}

func (c *Client) current() *websocket.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

func (c *Client) replayPresence() {
	c.stateMu.Lock()
	reg, join := c.lastRegister, c.lastJoin
	c.stateMu.Unlock()
	if reg != nil {
		_ = c.send(reg)
	}
	if join != nil {
		_ = c.send(join)
	}
}

func (c *Client) readLoop(conn *websocket.Conn, errCh chan<- error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			errCh <- fmt.Errorf("read failed: %w", err)
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) writeLoop(conn *websocket.Conn, stop <-chan struct{}, errCh chan<- error) {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env := <-c.sendCh:
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(env); err != nil {
				errCh <- fmt.Errorf("write failed: %w", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				errCh <- fmt.Errorf("ping failed: %w", err)
				return
			}
		case <-stop:
			return
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) dispatch(data []byte) {
	if c.sink == nil {
		return
	}
	env, err := protocol.Parse(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal.client").Msg("bad envelope")
		return
	}

	switch env.Type {
	case protocol.TypeRegistered:
		log.Debug().Str("module", "signal.client").Msg("registered with relay")
	case protocol.TypeRoomJoined:
		c.sink.HandleRoomJoined(env.RoomID, env.Users)
	case protocol.TypeUserJoined:
		c.sink.HandleUserJoined(domain.Participant{
			ID: env.UserID, Name: env.UserName, Role: env.Role,
			Audio: true, Video: true,
		})
	case protocol.TypeUserLeft:
		c.sink.HandleUserLeft(env.UserID, env.UserName)
	case protocol.TypeOffer:
		c.sink.HandleOffer(env.FromUserID, env.FromUserName, *env.Offer)
	case protocol.TypeAnswer:
		c.sink.HandleAnswer(env.FromUserID, *env.Answer)
	case protocol.TypeICECandidate:
		c.sink.HandleCandidate(env.FromUserID, *env.Candidate)
	case protocol.TypeUserMediaChanged:
		audio, video := env.Audio != nil && *env.Audio, env.Video != nil && *env.Video
		c.sink.HandleMediaState(env.UserID, env.UserName, audio, video)
	case protocol.TypeChatMessage:
		ts := time.Now()
		if env.Timestamp != nil {
			ts = *env.Timestamp
		}
		c.sink.HandleChat(domain.ChatMessage{
			SenderID: env.UserID, SenderName: env.UserName,
			Text: env.Message, Timestamp: ts,
		})
	case protocol.TypeRoomEnded:
		c.sink.HandleRoomEnded(env.RoomID, env.Message)
	case protocol.TypeError:
		log.Warn().Str("module", "signal.client").
			Str("code", env.Code).Str("message", env.Message).Msg("relay error")
	default:
		log.Warn().Str("module", "signal.client").Str("type", string(env.Type)).Msg("unknown signal")
	}
}

func (c *Client) Register(id domain.ParticipantID, name string, role domain.Role) error {
	env := &protocol.Envelope{Type: protocol.TypeRegister, UserID: id, UserName: name, Role: role}
	c.stateMu.Lock()
	c.lastRegister = env
	c.stateMu.Unlock()
	return c.send(env)
}

func (c *Client) JoinRoom(roomID domain.RoomID, id domain.ParticipantID, name string, role domain.Role) error {
	env := &protocol.Envelope{Type: protocol.TypeJoinRoom, RoomID: roomID, UserID: id, UserName: name, Role: role}
	c.stateMu.Lock()
	c.lastJoin = env
	c.stateMu.Unlock()
	return c.send(env)
}

func (c *Client) SendOffer(roomID domain.RoomID, target domain.ParticipantID, offer webrtc.SessionDescription) error {
	return c.send(&protocol.Envelope{Type: protocol.TypeOffer, RoomID: roomID, TargetUserID: target, Offer: &offer})
}

func (c *Client) SendAnswer(roomID domain.RoomID, target domain.ParticipantID, answer webrtc.SessionDescription) error {
	return c.send(&protocol.Envelope{Type: protocol.TypeAnswer, RoomID: roomID, TargetUserID: target, Answer: &answer})
}

func (c *Client) SendCandidate(roomID domain.RoomID, target domain.ParticipantID, cand webrtc.ICECandidateInit) error {
	return c.send(&protocol.Envelope{Type: protocol.TypeICECandidate, RoomID: roomID, TargetUserID: target, Candidate: &cand})
}

func (c *Client) SendMediaState(roomID domain.RoomID, audio, video bool) error {
	return c.send(&protocol.Envelope{Type: protocol.TypeMediaStateChange, RoomID: roomID, Audio: &audio, Video: &video})
}

func (c *Client) SendChat(roomID domain.RoomID, text string) error {
	return c.send(&protocol.Envelope{Type: protocol.TypeChatMessage, RoomID: roomID, Message: text})
}

func (c *Client) LeaveRoom(roomID domain.RoomID) error {
	c.stateMu.Lock()
	c.lastJoin = nil
	c.stateMu.Unlock()
	return c.send(&protocol.Envelope{Type: protocol.TypeLeaveRoom, RoomID: roomID})
}

package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/config"
	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/domain"
	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller serves the websocket signaling endpoint and forwards
// envelopes between participants of the same room.
type Controller struct {
	Registry *Registry
	Rooms    *RoomManager

	readLimit  int64
	sendBuffer int
}

func NewController(reg *Registry, rooms *RoomManager, cfg *config.Relay) *Controller {
	return &Controller{
		Registry:   reg,
		Rooms:      rooms,
		readLimit:  cfg.ReadLimit,
		sendBuffer: cfg.SendBuffer,
	}
}

// connState is the per-connection identity, owned by its readPump.
type connState struct {
	conn   *wsConn
	id     domain.ParticipantID
	name   string
	role   domain.Role
	roomID domain.RoomID
}

func (s *connState) registered() bool { return s.id != "" }

func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "relay.ws").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.readLimit)
	ws.SetPongHandler(func(string) error { return nil })

	conn := newWSConn(ws, ctl.sendBuffer)
	ctx, cancel := context.WithCancel(ctx)
	state := &connState{conn: conn}

	go ctl.writePump(ctx, conn)
	ctl.readPump(ctx, cancel, state)
}

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "relay.ws").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "relay.ws").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, state *connState) {
	defer func() {
		ctl.dropConnection(state)
		cancel()
		state.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			mt, data, err := state.conn.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "relay.ws").Str("user", string(state.id)).Msg("connection closed")
				return
			}
			if mt != websocket.TextMessage {
				continue
			}
			ctl.handleFrame(state, data)
		}
	}
}

// dropConnection treats an unannounced disconnect exactly like an
// explicit leave: the room must never keep a ghost. A disconnect from
// a connection whose identity has since been rebound elsewhere is
// already superseded and must not emit a departure.
func (ctl *Controller) dropConnection(state *connState) {
	if !state.registered() {
		return
	}
	e, ok := ctl.Registry.Get(state.id)
	if !ok || e.Conn != state.conn {
		return
	}
	if state.roomID != "" {
		ctl.broadcastLeft(state)
	}
	ctl.Registry.Unbind(state.id)
}

func (ctl *Controller) handleFrame(state *connState, data []byte) {
	env, err := protocol.Parse(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "relay.ws").Msg("bad envelope")
		ctl.sendError(state.conn, "bad_payload", err.Error())
		return
	}

	switch env.Type {
	case protocol.TypeRegister:
		ctl.handleRegister(state, env)
	case protocol.TypeJoinRoom:
		ctl.handleJoinRoom(state, env)
	case protocol.TypeOffer, protocol.TypeAnswer, protocol.TypeICECandidate:
		ctl.forward(state, env)
	case protocol.TypeMediaStateChange:
		ctl.handleMediaState(state, env)
	case protocol.TypeChatMessage:
		ctl.handleChat(state, env)
	case protocol.TypeLeaveRoom:
		ctl.handleLeave(state)
	default:
		log.Warn().Str("module", "relay.ws").Str("type", string(env.Type)).Msg("unknown signal")
		ctl.sendError(state.conn, "unknown_type", string(env.Type))
	}
}

func (ctl *Controller) handleRegister(state *connState, env protocol.Envelope) {
	if env.UserID == "" || !env.Role.Valid() {
		ctl.sendError(state.conn, "bad_register", "missing id or role")
		return
	}
	state.id = env.UserID
	state.name = env.UserName
	state.role = env.Role
	ctl.Registry.Bind(state.id, state.name, state.role, state.conn, nil)
	ctl.sendJSON(state.conn, protocol.Envelope{Type: protocol.TypeRegistered, UserID: state.id})
}

func (ctl *Controller) handleJoinRoom(state *connState, env protocol.Envelope) {
	if !state.registered() {
		ctl.sendError(state.conn, "not_registered", "register before joining")
		return
	}
	if !ctl.Rooms.Active(env.RoomID) {
		ctl.sendError(state.conn, "no_such_room", string(env.RoomID))
		return
	}

	state.roomID = env.RoomID
	ctl.Registry.SetRoom(state.id, env.RoomID)
	log.Info().Str("module", "relay.ws").Str("user", string(state.id)).
		Str("room", string(env.RoomID)).Msg("joined room")

	members := ctl.Registry.MembersOfRoom(env.RoomID)
	users := make([]domain.Participant, 0, len(members))
	for _, m := range members {
		users = append(users, m.Participant)
	}
	ctl.sendJSON(state.conn, protocol.Envelope{
		Type: protocol.TypeRoomJoined, RoomID: env.RoomID, Users: users,
	})

	joined := protocol.Envelope{
		Type: protocol.TypeUserJoined, RoomID: env.RoomID,
		UserID: state.id, UserName: state.name, Role: state.role,
	}
	for _, m := range members {
		if m.Participant.ID == state.id {
			continue
		}
		ctl.sendJSON(m.Conn, joined)
	}
}

// forward relays a targeted negotiation envelope. Sender identity is
// stamped server-side from the registered binding, so a client cannot
// speak for anyone else.
func (ctl *Controller) forward(state *connState, env protocol.Envelope) {
	if !state.registered() || state.roomID == "" {
		ctl.sendError(state.conn, "not_in_room", "join a room first")
		return
	}
	target, ok := ctl.Registry.Get(env.TargetUserID)
	if !ok || target.RoomID != state.roomID {
		log.Debug().Str("module", "relay.ws").Str("target", string(env.TargetUserID)).
			Str("type", string(env.Type)).Msg("target not in room, dropping")
		return
	}

	env.RoomID = state.roomID
	env.FromUserID = state.id
	env.FromUserName = state.name
	env.UserID, env.UserName, env.Role = "", "", ""
	ctl.sendJSON(target.Conn, env)
}

func (ctl *Controller) handleMediaState(state *connState, env protocol.Envelope) {
	if !state.registered() || state.roomID == "" {
		return
	}
	audio := env.Audio != nil && *env.Audio
	video := env.Video != nil && *env.Video
	ctl.Registry.UpdateMedia(state.id, audio, video)

	out := protocol.Envelope{
		Type: protocol.TypeUserMediaChanged, RoomID: state.roomID,
		UserID: state.id, UserName: state.name,
		Audio: &audio, Video: &video,
	}
	for _, m := range ctl.Registry.MembersOfRoom(state.roomID) {
		if m.Participant.ID == state.id {
			continue
		}
		ctl.sendJSON(m.Conn, out)
	}
}

// handleChat fans the message out to the whole room, sender included,
// with a relay-side timestamp. Nothing is stored.
func (ctl *Controller) handleChat(state *connState, env protocol.Envelope) {
	if !state.registered() || state.roomID == "" {
		return
	}
	now := time.Now()
	out := protocol.Envelope{
		Type: protocol.TypeChatMessage, RoomID: state.roomID,
		UserID: state.id, UserName: state.name,
		Message: env.Message, Timestamp: &now,
	}
	for _, m := range ctl.Registry.MembersOfRoom(state.roomID) {
		ctl.sendJSON(m.Conn, out)
	}
}

func (ctl *Controller) handleLeave(state *connState) {
	if !state.registered() || state.roomID == "" {
		return
	}
	ctl.broadcastLeft(state)
	ctl.Registry.ClearRoom(state.id)
	state.roomID = ""
}

func (ctl *Controller) broadcastLeft(state *connState) {
	out := protocol.Envelope{
		Type: protocol.TypeUserLeft, RoomID: state.roomID,
		UserID: state.id, UserName: state.name,
	}
	for _, m := range ctl.Registry.MembersOfRoom(state.roomID) {
		if m.Participant.ID == state.id {
			continue
		}
		ctl.sendJSON(m.Conn, out)
	}
}

// EndRoom broadcasts room-ended to every member and clears their room
// bindings. Called from the REST surface after an authorized end.
func (ctl *Controller) EndRoom(roomID domain.RoomID, reason string) {
	out := protocol.Envelope{
		Type: protocol.TypeRoomEnded, RoomID: roomID, Message: reason,
	}
	for _, m := range ctl.Registry.MembersOfRoom(roomID) {
		ctl.sendJSON(m.Conn, out)
		ctl.Registry.ClearRoom(m.Participant.ID)
	}
	ctl.Rooms.End(roomID)
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "relay.ws").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "relay.ws").Msg("send dropped")
	}
}

func (ctl *Controller) sendError(c *wsConn, code, msg string) {
	ctl.sendJSON(c, protocol.Envelope{Type: protocol.TypeError, Code: code, Message: msg})
}

package core

import (
	"github.com/pion/webrtc/v4"

	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/domain"
)

// SignalSink receives inbound relay messages, dispatched by envelope
// type. Implementations must be safe to call from the channel's read
// goroutine; the coordinator re-serializes everything internally.
type SignalSink interface {
	HandleRoomJoined(roomID domain.RoomID, members []domain.Participant)
	HandleUserJoined(p domain.Participant)
	HandleUserLeft(id domain.ParticipantID, name string)
	HandleOffer(from domain.ParticipantID, name string, offer webrtc.SessionDescription)
	HandleAnswer(from domain.ParticipantID, answer webrtc.SessionDescription)
	HandleCandidate(from domain.ParticipantID, cand webrtc.ICECandidateInit)
	HandleMediaState(id domain.ParticipantID, name string, audio, video bool)
	HandleChat(msg domain.ChatMessage)
	HandleRoomEnded(roomID domain.RoomID, reason string)
	// HandleChannelLost fires once the reconnect budget is exhausted.
	HandleChannelLost(err error)
}

// SignalChannel is the persistent, ordered control channel between one
// client and the relay. It carries negotiation metadata and presence,
// never media.
type SignalChannel interface {
	// Start connects and begins dispatching inbound messages to sink.
	Start(sink SignalSink) error
	Register(id domain.ParticipantID, name string, role domain.Role) error
	JoinRoom(roomID domain.RoomID, id domain.ParticipantID, name string, role domain.Role) error

	// Targeted negotiation messages (unicast).
	SendOffer(roomID domain.RoomID, target domain.ParticipantID, offer webrtc.SessionDescription) error
	SendAnswer(roomID domain.RoomID, target domain.ParticipantID, answer webrtc.SessionDescription) error
	SendCandidate(roomID domain.RoomID, target domain.ParticipantID, cand webrtc.ICECandidateInit) error

	// Room-wide broadcasts.
	SendMediaState(roomID domain.RoomID, audio, video bool) error
	SendChat(roomID domain.RoomID, text string) error

	LeaveRoom(roomID domain.RoomID) error
	Close() error
}

// SignalFactory builds a channel authenticated with the participation
// token returned by the gateway.
type SignalFactory func(token string) SignalChannel

// Package protocol models the relay signaling surface: one flat JSON
// envelope dispatched by type. It is shared by the relay server and the
// client-side channel so the two can never drift apart.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/domain"
)

type MessageType string

// Client → relay.
const (
	TypeRegister         MessageType = "register"
	TypeJoinRoom         MessageType = "join-room"
	TypeOffer            MessageType = "offer"
	TypeAnswer           MessageType = "answer"
	TypeICECandidate     MessageType = "ice-candidate"
	TypeMediaStateChange MessageType = "media-state-change"
	TypeChatMessage      MessageType = "chat-message"
	TypeLeaveRoom        MessageType = "leave-room"
)

// Relay → client.
const (
	TypeRegistered       MessageType = "registered"
	TypeRoomJoined       MessageType = "room-joined"
	TypeUserJoined       MessageType = "user-joined"
	TypeUserLeft         MessageType = "user-left"
	TypeUserMediaChanged MessageType = "user-media-state-changed"
	TypeRoomEnded        MessageType = "room-ended"
	TypeError            MessageType = "error"
)

// Envelope carries every signaling message. TargetUserID absent means
// broadcast to the room; present means unicast to exactly one
// participant (offer, answer, ice-candidate).
type Envelope struct {
	Type MessageType `json:"type"`

	RoomID   domain.RoomID        `json:"roomId,omitempty"`
	UserID   domain.ParticipantID `json:"userId,omitempty"`
	UserName string               `json:"userName,omitempty"`
	Role     domain.Role          `json:"role,omitempty"`

	TargetUserID domain.ParticipantID `json:"targetUserId,omitempty"`
	FromUserID   domain.ParticipantID `json:"fromUserId,omitempty"`
	FromUserName string               `json:"fromUserName,omitempty"`

	Offer     *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer    *webrtc.SessionDescription `json:"answer,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`

	Audio *bool `json:"audio,omitempty"`
	Video *bool `json:"video,omitempty"`

	Users []domain.Participant `json:"users,omitempty"`

	Message   string     `json:"message,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`

	Code string `json:"code,omitempty"`
}

// Targeted reports whether this message type must carry a target.
func (t MessageType) Targeted() bool {
	switch t {
	case TypeOffer, TypeAnswer, TypeICECandidate:
		return true
	}
	return false
}

func Parse(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("bad envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("envelope missing type")
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func (e Envelope) Validate() error {
	switch e.Type {
	case TypeOffer:
		if e.Offer == nil {
			return fmt.Errorf("offer message missing offer")
		}
	case TypeAnswer:
		if e.Answer == nil {
			return fmt.Errorf("answer message missing answer")
		}
	case TypeICECandidate:
		if e.Candidate == nil {
			return fmt.Errorf("ice-candidate message missing candidate")
		}
	case TypeChatMessage:
		if e.Message == "" {
			return fmt.Errorf("chat message missing message")
		}
	}
	if e.Type.Targeted() && e.TargetUserID == "" && e.FromUserID == "" {
		return fmt.Errorf("%s message missing target", e.Type)
	}
	return nil
}

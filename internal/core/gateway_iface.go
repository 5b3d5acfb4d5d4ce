package core

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/domain"
)

// RoomStatus is the gateway's snapshot of one session's room.
type RoomStatus struct {
	RoomID           domain.RoomID `json:"roomId"`
	ParticipantCount int           `json:"participantCount"`
	Active           bool          `json:"active"`
}

// Gateway is the room-authorization boundary. Its internal
// authorization logic lives outside this core; only the contract
// matters here.
type Gateway interface {
	// ICEServers fetches the traversal endpoints. Errors map to
	// ErrConfigUnavailable; callers fall back to a public default.
	ICEServers(ctx context.Context) ([]webrtc.ICEServer, error)
	// JoinRoom validates the bearer credential against a scheduled
	// session. Rejections map to ErrNotAuthorized.
	JoinRoom(ctx context.Context, sessionID domain.SessionID) (domain.RoomID, error)
	// EndRoom terminates the session server-side (privileged).
	EndRoom(ctx context.Context, sessionID domain.SessionID) error
	RoomStatus(ctx context.Context, sessionID domain.SessionID) (RoomStatus, error)
}

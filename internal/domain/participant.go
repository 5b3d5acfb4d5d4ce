// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxDisplayNameLen = 64

var (
	ErrNameEmpty   = errors.New("display name empty")
	ErrNameTooLong = errors.New("display name too long")
	ErrRoleInvalid = errors.New("unknown role")
)

type (
	ParticipantID string
	SessionID     string
	RoomID        string
)

// Role describes what a participant is allowed to do in a session.
// The initiator/responder split during negotiation is NOT derived from
// the role; negotiation roles are symmetric and decided by join order.
type Role string

const (
	RoleProfessional Role = "professional"
	RolePatient      Role = "patient"
	RoleObserver     Role = "observer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleProfessional, RolePatient, RoleObserver:
		return true
	}
	return false
}

// Participant is a remote party currently known to be in a session.
// The local participant is tracked separately by the coordinator and is
// never represented as one of these.
type Participant struct {
	ID    ParticipantID `json:"userId"`
	Name  string        `json:"userName"`
	Role  Role          `json:"role"`
	Audio bool          `json:"audio"`
	Video bool          `json:"video"`
}

// NewParticipant is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewParticipant(name string, role Role) (*Participant, error) {
	if len(name) == 0 {
		return nil, ErrNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return nil, ErrNameTooLong
	}
	if !role.Valid() {
		return nil, ErrRoleInvalid
	}
	return &Participant{
		ID:    ParticipantID(uuid.NewString()),
		Name:  name,
		Role:  role,
		Audio: true,
		Video: true,
	}, nil
}

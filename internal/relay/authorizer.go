package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/domain"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrUnknownSession = errors.New("unknown session")
)

// Authorizer decides whether a bearer credential may enter or end a
// scheduled session's room. The real decision (appointment lookup,
// participant roster) lives in the booking backend; the relay only
// consumes the verdict.
type Authorizer interface {
	// AuthorizeJoin validates the credential against the session and
	// returns the room to join, minting one if this is the first
	// authorized join.
	AuthorizeJoin(ctx context.Context, token string, sessionID domain.SessionID) (domain.RoomID, error)
	// AuthorizeEnd validates that the credential may terminate the
	// session for everyone.
	AuthorizeEnd(ctx context.Context, token string, sessionID domain.SessionID) (domain.RoomID, error)
	// ResolveSession is the read-only lookup for status checks; it
	// never mints a room.
	ResolveSession(ctx context.Context, token string, sessionID domain.SessionID) (domain.RoomID, error)
}

// StaticAuthorizer admits any non-empty credential and mints one room
// per session. It is the development stand-in for the booking backend.
type StaticAuthorizer struct {
	mu    sync.Mutex
	rooms map[domain.SessionID]domain.RoomID
}

func NewStaticAuthorizer() *StaticAuthorizer {
	return &StaticAuthorizer{rooms: make(map[domain.SessionID]domain.RoomID)}
}

func (a *StaticAuthorizer) AuthorizeJoin(_ context.Context, token string, sessionID domain.SessionID) (domain.RoomID, error) {
	if token == "" || sessionID == "" {
		return "", ErrUnauthorized
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	roomID, ok := a.rooms[sessionID]
	if !ok {
		roomID = domain.RoomID(uuid.NewString())
		a.rooms[sessionID] = roomID
		log.Info().Str("module", "relay.auth").Str("session", string(sessionID)).
			Str("room", string(roomID)).Msg("minted room for session")
	}
	return roomID, nil
}

func (a *StaticAuthorizer) AuthorizeEnd(_ context.Context, token string, sessionID domain.SessionID) (domain.RoomID, error) {
	if token == "" {
		return "", ErrUnauthorized
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	roomID, ok := a.rooms[sessionID]
	if !ok {
		return "", ErrUnknownSession
	}
	return roomID, nil
}

func (a *StaticAuthorizer) ResolveSession(_ context.Context, token string, sessionID domain.SessionID) (domain.RoomID, error) {
	if token == "" {
		return "", ErrUnauthorized
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	roomID, ok := a.rooms[sessionID]
	if !ok {
		return "", ErrUnknownSession
	}
	return roomID, nil
}

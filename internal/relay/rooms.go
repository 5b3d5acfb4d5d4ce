package relay

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/domain"
)

type roomState struct {
	ID        domain.RoomID
	SessionID domain.SessionID
	CreatedAt time.Time
	Active    bool
}

// RoomManager tracks which rooms the gateway has opened. Rooms are
// created by an authorized join and stay until explicitly ended.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*roomState
}

func NewRoomManager() *RoomManager {
	return &RoomManager{rooms: make(map[domain.RoomID]*roomState)}
}

func (m *RoomManager) Ensure(roomID domain.RoomID, sessionID domain.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[roomID]; ok {
		return
	}
	m.rooms[roomID] = &roomState{
		ID: roomID, SessionID: sessionID,
		CreatedAt: time.Now(), Active: true,
	}
	log.Info().Str("module", "relay.rooms").Str("room", string(roomID)).
		Str("session", string(sessionID)).Msg("room opened")
}

func (m *RoomManager) Active(roomID domain.RoomID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[roomID]
	return ok && r.Active
}

// End marks the room inactive. Reports false for unknown rooms.
func (m *RoomManager) End(roomID domain.RoomID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return false
	}
	r.Active = false
	log.Info().Str("module", "relay.rooms").Str("room", string(roomID)).Msg("room ended")
	return true
}

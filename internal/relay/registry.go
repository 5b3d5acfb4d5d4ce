package relay

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/domain"
)

type clientEntry struct {
	Conn   *wsConn
	Name   string
	Role   domain.Role
	RoomID domain.RoomID
	Audio  bool
	Video  bool
	Cancel context.CancelFunc
}

// Registry tracks every registered participant and its connection.
// One entry per participant id; registering again replaces the old
// binding (a reconnecting client takes over its own identity).
type Registry struct {
	mu      sync.RWMutex
	clients map[domain.ParticipantID]*clientEntry
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[domain.ParticipantID]*clientEntry)}
}

func (r *Registry) Bind(id domain.ParticipantID, name string, role domain.Role, conn *wsConn, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.clients[id]; ok && old.Conn != conn {
		old.Conn.Close()
		if old.Cancel != nil {
			old.Cancel()
		}
		log.Info().Str("module", "relay.registry").Str("user", string(id)).Msg("rebinding existing identity")
	}
	r.clients[id] = &clientEntry{
		Conn: conn, Name: name, Role: role,
		Audio: true, Video: true, Cancel: cancel,
	}
	log.Info().Str("module", "relay.registry").Str("user", string(id)).Str("role", string(role)).Msg("registered")
}

func (r *Registry) Unbind(id domain.ParticipantID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, id)
	log.Info().Str("module", "relay.registry").Str("user", string(id)).Msg("unbound")
}

func (r *Registry) Get(id domain.ParticipantID) (*clientEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.clients[id]
	return e, ok
}

func (r *Registry) SetRoom(id domain.ParticipantID, roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.clients[id]
	if !ok {
		return false
	}
	e.RoomID = roomID
	return true
}

func (r *Registry) ClearRoom(id domain.ParticipantID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.clients[id]; ok {
		e.RoomID = ""
	}
}

func (r *Registry) UpdateMedia(id domain.ParticipantID, audio, video bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.clients[id]
	if !ok {
		return false
	}
	e.Audio, e.Video = audio, video
	return true
}

type memberSnap struct {
	Participant domain.Participant
	Conn        *wsConn
}

// MembersOfRoom snapshots everyone currently in the room.
func (r *Registry) MembersOfRoom(roomID domain.RoomID) []memberSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]memberSnap, 0, len(r.clients))
	for id, e := range r.clients {
		if e.RoomID != roomID {
			continue
		}
		out = append(out, memberSnap{
			Participant: domain.Participant{
				ID: id, Name: e.Name, Role: e.Role,
				Audio: e.Audio, Video: e.Video,
			},
			Conn: e.Conn,
		})
	}
	return out
}

func (r *Registry) CountInRoom(roomID domain.RoomID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.clients {
		if e.RoomID == roomID {
			n++
		}
	}
	return n
}

package client

import (
	"github.com/rs/zerolog/log"

	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/core"
	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/domain"
)

// linkRegistry enforces the one-link-per-participant invariant and
// guarantees deterministic teardown. It is owned by the coordinator's
// event loop and must never be touched from another goroutine.
type linkRegistry struct {
	links map[domain.ParticipantID]*peerLink
}

func newLinkRegistry() *linkRegistry {
	return &linkRegistry{links: make(map[domain.ParticipantID]*peerLink)}
}

func (r *linkRegistry) get(id domain.ParticipantID) (*peerLink, bool) {
	l, ok := r.links[id]
	return l, ok
}

// add registers a freshly built link. A second link toward the same
// participant is rejected, not layered.
func (r *linkRegistry) add(l *peerLink) error {
	if _, exists := r.links[l.peer]; exists {
		return core.ErrDuplicatePeer
	}
	r.links[l.peer] = l
	return nil
}

// remove closes the link's transport and forgets it. No-op for unknown
// ids; a failed link must never stay registered, since that would block
// recreating a connection toward the same participant for good.
func (r *linkRegistry) remove(id domain.ParticipantID) {
	l, ok := r.links[id]
	if !ok {
		return
	}
	delete(r.links, id)
	if err := l.close(); err != nil {
		log.Warn().Err(err).Str("module", "client.registry").Str("peer", string(id)).Msg("link close")
	}
}

// removeAll tears down every link, tolerating individual close
// failures: log and continue, never abort the teardown loop.
func (r *linkRegistry) removeAll() {
	for id, l := range r.links {
		delete(r.links, id)
		if err := l.close(); err != nil {
			log.Warn().Err(err).Str("module", "client.registry").Str("peer", string(id)).Msg("link close")
		}
	}
}

func (r *linkRegistry) len() int { return len(r.links) }

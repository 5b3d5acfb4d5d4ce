package client

import (
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/core"
	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/domain"
)

// linkState is the negotiation state of one peer link. It only moves
// forward through the transition table or jumps to linkClosed; it never
// regresses.
type linkState int

const (
	linkIdle linkState = iota
	linkOfferSent
	linkOfferReceived
	linkAnswerPending
	linkStable
	linkClosed
)

func (s linkState) String() string {
	switch s {
	case linkIdle:
		return "idle"
	case linkOfferSent:
		return "offer-sent"
	case linkOfferReceived:
		return "offer-received"
	case linkAnswerPending:
		return "answer-pending"
	case linkStable:
		return "stable"
	case linkClosed:
		return "closed"
	}
	return "unknown"
}

var linkTransitions = map[linkState][]linkState{
	linkIdle:          {linkOfferSent, linkOfferReceived, linkClosed},
	linkOfferSent:     {linkAnswerPending, linkClosed},
	linkOfferReceived: {linkStable, linkClosed},
	linkAnswerPending: {linkStable, linkClosed},
	linkStable:        {linkClosed},
	linkClosed:        {},
}

// peerLink holds the negotiation and transport state for exactly one
// remote participant. All mutation happens on the coordinator's event
// loop; there is no locking here on purpose.
type peerLink struct {
	peer      domain.ParticipantID
	name      string
	state     linkState
	initiator bool
	transport core.MediaTransport

	// remoteApplied gates candidate application: candidates arriving
	// before the remote description are queued, never dropped.
	remoteApplied bool
	pending       []webrtc.ICECandidateInit
}

func newPeerLink(peer domain.ParticipantID, name string, initiator bool, transport core.MediaTransport) *peerLink {
	return &peerLink{
		peer:      peer,
		name:      name,
		state:     linkIdle,
		initiator: initiator,
		transport: transport,
	}
}

// transitionTo advances the state machine. Any move not in the table is
// rejected as a stale signal and leaves the link untouched.
func (l *peerLink) transitionTo(to linkState) error {
	for _, allowed := range linkTransitions[l.state] {
		if allowed == to {
			log.Debug().Str("module", "client.link").Str("peer", string(l.peer)).
				Str("from", l.state.String()).Str("to", to.String()).Msg("link transition")
			l.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: link %s cannot move %s -> %s", core.ErrStaleSignal, l.peer, l.state, to)
}

// addCandidate applies the candidate immediately once the remote
// description is in place, otherwise queues it.
func (l *peerLink) addCandidate(cand webrtc.ICECandidateInit) error {
	if !l.remoteApplied {
		l.pending = append(l.pending, cand)
		return nil
	}
	return l.transport.AddICECandidate(cand)
}

// markRemoteApplied flips the candidate gate and flushes the queue in
// arrival order.
func (l *peerLink) markRemoteApplied() {
	l.remoteApplied = true
	for _, cand := range l.pending {
		if err := l.transport.AddICECandidate(cand); err != nil {
			log.Warn().Err(err).Str("module", "client.link").Str("peer", string(l.peer)).Msg("flush candidate")
		}
	}
	l.pending = nil
}

func (l *peerLink) close() error {
	l.state = linkClosed
	l.pending = nil
	return l.transport.Close()
}

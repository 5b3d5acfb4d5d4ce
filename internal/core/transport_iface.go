package core

import (
	"github.com/pion/webrtc/v4"

	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/domain"
)

// MediaTransport is one bidirectional media transport toward a single
// remote participant. Created and destroyed by the coordinator.
type MediaTransport interface {
	// CreateAndSetOffer generates a local negotiation offer and applies
	// it as the local description.
	CreateAndSetOffer() (*webrtc.SessionDescription, error)
	// ApplyOfferAndCreateAnswer applies a remote offer, generates an
	// answer and applies it locally.
	ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error)
	// ApplyAnswer applies a remote answer to a previously sent offer.
	ApplyAnswer(answer webrtc.SessionDescription) error
	// AddICECandidate applies a remote transport-discovery candidate.
	// Only valid once a remote description has been applied.
	AddICECandidate(webrtc.ICECandidateInit) error
	// AddLocalTrack attaches a shared local track to this transport.
	AddLocalTrack(track webrtc.TrackLocal) error

	// OnICECandidate sets the callback for locally gathered candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack sets the callback for arriving remote tracks.
	OnTrack(func(*webrtc.TrackRemote))
	// OnFailure sets the callback for terminal connection failure.
	// Fired at most once.
	OnFailure(func())

	Close() error
}

// TransportFactory builds one MediaTransport per remote participant
// from the session's resolved ICE configuration.
type TransportFactory func(cfg webrtc.Configuration, peer domain.ParticipantID) (MediaTransport, error)

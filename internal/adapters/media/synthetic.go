package media

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/core"
)

// Synthetic is a capture-less media source: static sample tracks that
// negotiate real audio/video transceivers without touching hardware.
// Used by the headless client and by tests.
type Synthetic struct {
	trackFlags
	tracks   []webrtc.TrackLocal
	stopped  bool
	stopOnce sync.Once
	mu       sync.Mutex
}

var _ core.MediaSource = (*Synthetic)(nil)

func NewSynthetic() (*Synthetic, error) {
	streamID := "synthetic-" + uuid.NewString()

	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMediaUnavailable, err)
	}
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video", streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMediaUnavailable, err)
	}

	return &Synthetic{
		trackFlags: newTrackFlags(core.TrackAudio, core.TrackVideo),
		tracks:     []webrtc.TrackLocal{audio, video},
	}, nil
}

func (s *Synthetic) Tracks() []webrtc.TrackLocal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]webrtc.TrackLocal(nil), s.tracks...)
}

func (s *Synthetic) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
	})
}

// Stopped reports whether Stop has run; tests use it to assert the
// release-exactly-once rule.
func (s *Synthetic) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

package media

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"     // registers the camera driver
	_ "github.com/pion/mediadevices/pkg/driver/microphone" // registers the microphone driver
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/core"
)

// Devices captures the local camera and microphone through
// pion/mediadevices. One instance per session; Stop releases the
// hardware exactly once no matter how many peer links shared it.
type Devices struct {
	trackFlags
	stream   mediadevices.MediaStream
	stopOnce sync.Once
}

var _ core.MediaSource = (*Devices)(nil)

// Acquire opens the capture devices. Failures map onto the
// permission/no-device split where the platform lets us tell.
func Acquire() (*Devices, error) {
	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMediaUnavailable, err)
	}
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMediaUnavailable, err)
	}
	vpxParams.BitRate = 500_000

	selector := mediadevices.NewCodecSelector(
		mediadevices.WithAudioEncoders(&opusParams),
		mediadevices.WithVideoEncoders(&vpxParams),
	)

	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(c *mediadevices.MediaTrackConstraints) {},
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.Width = prop.Int(640)
			c.Height = prop.Int(480)
		},
		Codec: selector,
	})
	if err != nil {
		return nil, classifyAcquireError(err)
	}

	log.Info().Str("module", "media").Int("tracks", len(stream.GetTracks())).Msg("local media acquired")
	return &Devices{
		trackFlags: newTrackFlags(core.TrackAudio, core.TrackVideo),
		stream:     stream,
	}, nil
}

func classifyAcquireError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission") || strings.Contains(msg, "denied"):
		return fmt.Errorf("%w: %w", core.ErrMediaUnavailable, core.ErrMediaPermission)
	case strings.Contains(msg, "not found") || strings.Contains(msg, "no driver"):
		return fmt.Errorf("%w: %w", core.ErrMediaUnavailable, core.ErrMediaNoDevice)
	}
	return fmt.Errorf("%w: %v", core.ErrMediaUnavailable, err)
}

func (d *Devices) Tracks() []webrtc.TrackLocal {
	tracks := d.stream.GetTracks()
	out := make([]webrtc.TrackLocal, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, t)
	}
	return out
}

func (d *Devices) Stop() {
	d.stopOnce.Do(func() {
		for _, t := range d.stream.GetTracks() {
			if err := t.Close(); err != nil {
				log.Error().Err(err).Str("module", "media").Str("track", t.ID()).Msg("track close")
			}
		}
		log.Info().Str("module", "media").Msg("local media released")
	})
}

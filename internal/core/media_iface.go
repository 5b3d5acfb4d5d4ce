package core

import "github.com/pion/webrtc/v4"

// TrackKind keys local and remote tracks by purpose.
type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// MediaSource is the local camera/microphone capture. One instance per
// session, acquired once at join time, stopped exactly once at session
// end. Tracks are shared read-only across all peer links; only the
// coordinator flips enabled flags.
type MediaSource interface {
	// Tracks returns the local tracks to attach to every peer link.
	// Attaching must not clone or mutate track state.
	Tracks() []webrtc.TrackLocal
	// SetEnabled flips the enabled flag for one kind and returns the
	// new value. Unknown kinds report false.
	SetEnabled(kind TrackKind, enabled bool) bool
	Enabled(kind TrackKind) bool
	// Stop releases the capture hardware. Safe to call more than once.
	Stop()
}

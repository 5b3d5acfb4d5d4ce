// Package media provides the local capture implementations behind
// core.MediaSource: real camera/microphone devices and a synthetic
// source for headless clients and tests.
package media

import (
	"sync"

	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/core"
)

// trackFlags tracks the per-kind enabled state. Only the session
// coordinator flips these; peer links never touch them.
type trackFlags struct {
	mu      sync.RWMutex
	enabled map[core.TrackKind]bool
}

func newTrackFlags(kinds ...core.TrackKind) trackFlags {
	m := make(map[core.TrackKind]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return trackFlags{enabled: m}
}

func (f *trackFlags) SetEnabled(kind core.TrackKind, enabled bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.enabled[kind]; !ok {
		return false
	}
	f.enabled[kind] = enabled
	return enabled
}

func (f *trackFlags) Enabled(kind core.TrackKind) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.enabled[kind]
}

package client

import (
	"github.com/pion/webrtc/v4"

	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/core"
	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/domain"
)

// EventSink is the typed observer the UI layer implements. Callbacks
// are invoked from the coordinator's event loop in arrival order; they
// must return quickly and never call back into the coordinator.
type EventSink interface {
	OnParticipantJoined(p domain.Participant)
	OnParticipantLeft(id domain.ParticipantID, name string)
	OnRemoteTrack(id domain.ParticipantID, track *webrtc.TrackRemote)
	OnMediaStateChanged(id domain.ParticipantID, audio, video bool)
	OnChat(msg domain.ChatMessage)
	OnSessionEnded(reason string)
}

// NopSink discards every event. Embed it to implement only the
// callbacks you care about.
type NopSink struct{}

func (NopSink) OnParticipantJoined(domain.Participant)                  {}
func (NopSink) OnParticipantLeft(domain.ParticipantID, string)          {}
func (NopSink) OnRemoteTrack(domain.ParticipantID, *webrtc.TrackRemote) {}
func (NopSink) OnMediaStateChanged(domain.ParticipantID, bool, bool)    {}
func (NopSink) OnChat(domain.ChatMessage)                               {}
func (NopSink) OnSessionEnded(string)                                   {}

// Inbound signaling and transport lifecycle events, plus API commands.
// Everything the coordinator mutates flows through these types on one
// channel, so concurrent events for the same link can never interleave.
type (
	evRoomJoined struct {
		roomID  domain.RoomID
		members []domain.Participant
	}
	evUserJoined struct{ p domain.Participant }
	evUserLeft   struct {
		id   domain.ParticipantID
		name string
	}
	evOffer struct {
		from  domain.ParticipantID
		name  string
		offer webrtc.SessionDescription
	}
	evAnswer struct {
		from   domain.ParticipantID
		answer webrtc.SessionDescription
	}
	evCandidate struct {
		from domain.ParticipantID
		cand webrtc.ICECandidateInit
	}
	evMediaState struct {
		id           domain.ParticipantID
		name         string
		audio, video bool
	}
	evChat      struct{ msg domain.ChatMessage }
	evRoomEnded struct {
		roomID domain.RoomID
		reason string
	}
	evChannelLost struct{ err error }

	evLocalCandidate struct {
		peer domain.ParticipantID
		cand webrtc.ICECandidateInit
	}
	evRemoteTrack struct {
		peer  domain.ParticipantID
		track *webrtc.TrackRemote
	}
	// evTransportFailed identifies the failing transport, not just the
	// peer: a link can be replaced (glare yield) while the old
	// transport's failure event is still queued, and that stale event
	// must not touch the replacement.
	evTransportFailed struct {
		peer      domain.ParticipantID
		transport core.MediaTransport
	}

	cmdBeginJoin struct{ reply chan error }
	cmdAbortJoin struct{ reply chan struct{} }
	cmdInstall   struct {
		roomID  domain.RoomID
		media   core.MediaSource
		channel core.SignalChannel
		joined  chan struct{}
		reply   chan struct{}
	}
	cmdToggle struct {
		kind  core.TrackKind
		reply chan bool
	}
	cmdChat  struct{ text string }
	cmdLeave struct{ reply chan struct{} }

	cmdParticipants struct{ reply chan []domain.Participant }
	cmdLinkCount    struct{ reply chan int }
)

package core

import "errors"

var (
	// ErrConfigUnavailable means the transport configuration could not
	// be fetched. Non-fatal: callers fall back to the public default.
	ErrConfigUnavailable = errors.New("transport configuration unavailable")

	// ErrNotAuthorized means the caller is not a participant in the
	// scheduled session. Fatal to Join, never retried here.
	ErrNotAuthorized = errors.New("not authorized for session")

	// ErrMediaUnavailable means local camera/microphone acquisition
	// failed. Fatal to Join. Wraps ErrMediaPermission or
	// ErrMediaNoDevice where the platform can tell them apart.
	ErrMediaUnavailable = errors.New("local media unavailable")
	ErrMediaPermission  = errors.New("media permission denied")
	ErrMediaNoDevice    = errors.New("no capture device")

	// ErrChannelLost means the signaling channel exhausted its
	// reconnection budget. Equivalent to every remote participant
	// leaving: no further renegotiation is possible.
	ErrChannelLost = errors.New("signaling channel lost")

	// ErrNegotiationFailed is scoped to a single peer link and never
	// escalates to the whole session.
	ErrNegotiationFailed = errors.New("negotiation failed")

	// ErrStaleSignal marks a duplicate or out-of-order signaling
	// message. Discarded silently, never surfaced to the caller.
	ErrStaleSignal = errors.New("stale signaling message")

	// ErrDuplicatePeer rejects creation of a second link toward the
	// same participant.
	ErrDuplicatePeer = errors.New("peer link already exists")

	// ErrNotJoined rejects operations that need a joined session.
	ErrNotJoined = errors.New("session not joined")
)

package domain

import "time"

// ChatMessage is an ephemeral value relayed verbatim to current
// participants. Nothing here is ever persisted.
type ChatMessage struct {
	SenderID   ParticipantID `json:"userId"`
	SenderName string        `json:"userName"`
	Text       string        `json:"message"`
	Timestamp  time.Time     `json:"timestamp"`
}

package model

import (
	"time"
)

// EventType identifies the kind of state change.
type EventType string

const (
	EventConversationCreated  EventType = "conversation_created"
	EventConversationSelected EventType = "conversation_selected"
	EventConversationRenamed  EventType = "conversation_renamed"
	EventMessageAppended      EventType = "message_appended"
	EventAnswerFailed         EventType = "answer_failed"
	EventLoadingChanged       EventType = "loading_changed"
)

// ConversationEvent is the externally published record of a state change.
type ConversationEvent struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Type           EventType      `json:"type"`
	Reason         string         `json:"reason,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// HeartbeatEvent keeps stream connections alive.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// Package model defines data structures for the chat core.
package model

import (
	"errors"
	"fmt"
)

const (
	// DefaultTitle is the placeholder title of a fresh conversation.
	DefaultTitle = "New Chat"

	// Greeting is the seed assistant message of every new conversation.
	Greeting = "Hello! How can I help you search our knowledge base today?"
)

// Conversation is one chat thread. Messages are in chronological order.
type Conversation struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

// Clone returns a deep copy of c.
func (c Conversation) Clone() Conversation {
	out := Conversation{ID: c.ID, Title: c.Title}
	if c.Messages != nil {
		out.Messages = make([]Message, len(c.Messages))
		for i, msg := range c.Messages {
			out.Messages[i] = msg.Clone()
		}
	}
	return out
}

// CountRole returns the number of messages authored by role.
func (c Conversation) CountRole(role Role) int {
	n := 0
	for _, msg := range c.Messages {
		if msg.Role == role {
			n++
		}
	}
	return n
}

// Validate checks the structural shape expected of a persisted conversation.
func (c Conversation) Validate() error {
	if c.ID == "" {
		return errors.New("conversation id is empty")
	}
	if c.Messages == nil {
		return errors.New("conversation has no message list")
	}
	for i, msg := range c.Messages {
		if !msg.Role.Valid() {
			return fmt.Errorf("message %d: unknown role %q", i, msg.Role)
		}
	}
	return nil
}

// CloneAll deep copies a conversation list. A nil input yields an empty list.
func CloneAll(convs []Conversation) []Conversation {
	out := make([]Conversation, len(convs))
	for i, c := range convs {
		out[i] = c.Clone()
	}
	return out
}

// State is the reactive state exposed to the presentation layer.
type State struct {
	Conversations        []Conversation `json:"conversations"`
	ActiveConversationID *string        `json:"activeConversationId"`
	IsLoading            bool           `json:"isLoading"`
}

// CreateConversationResponse is returned after starting a conversation.
type CreateConversationResponse struct {
	ID string `json:"id"`
}

// SelectConversationRequest selects the active conversation.
type SelectConversationRequest struct {
	ID string `json:"id"`
}

// SubmitMessageRequest submits user text to the active conversation.
type SubmitMessageRequest struct {
	Text string `json:"text"`
}

// Package answer defines the capability that turns a user message into an
// assistant reply with cited sources.
package answer

import (
	"context"

	"github.com/capitalize-ai/knowledge-chat/internal/model"
)

// Request is the input of a single answer generation.
type Request struct {
	// ConversationID identifies the conversation the reply is filed under.
	ConversationID string

	// History holds the conversation's messages, ending with the user
	// message being answered.
	History []model.Message

	// Message is the submitted user text.
	Message string
}

// Answer is a generated reply.
type Answer struct {
	Text    string
	Sources []model.Source
}

// Provider produces answers. Implementations must eventually return,
// either with an answer or an error.
type Provider interface {
	GenerateAnswer(ctx context.Context, req *Request) (*Answer, error)
	Name() string
}

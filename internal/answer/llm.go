package answer

import (
	"context"
	"fmt"

	"github.com/capitalize-ai/knowledge-chat/internal/llm"
	"github.com/capitalize-ai/knowledge-chat/internal/model"
)

// DefaultSystemPrompt frames the assistant for knowledge-base questions.
const DefaultSystemPrompt = "You are a helpful assistant answering questions about a knowledge base. Answer concisely."

// LLMProvider answers through a chat-completion backend. Completion APIs do
// not return citations, so answers carry no sources.
type LLMProvider struct {
	client    llm.Client
	model     string
	system    string
	maxTokens int
}

// NewLLMProvider wraps client. An empty model uses the client's default.
func NewLLMProvider(client llm.Client, model string) *LLMProvider {
	return &LLMProvider{
		client:    client,
		model:     model,
		system:    DefaultSystemPrompt,
		maxTokens: 1024,
	}
}

// Name returns the backend name.
func (p *LLMProvider) Name() string {
	return p.client.Name()
}

// GenerateAnswer sends the conversation history to the backend.
func (p *LLMProvider) GenerateAnswer(ctx context.Context, req *Request) (*Answer, error) {
	resp, err := p.client.Complete(ctx, &llm.CompletionRequest{
		Model:     p.model,
		System:    p.system,
		Messages:  chatHistory(req),
		MaxTokens: p.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%s completion failed: %w", p.client.Name(), err)
	}

	return &Answer{Text: resp.Content}, nil
}

// chatHistory converts the history to chat messages. Completion APIs expect
// the user to speak first, so the leading greeting is dropped.
func chatHistory(req *Request) []llm.ChatMessage {
	history := req.History
	for len(history) > 0 && history[0].Role != model.RoleUser {
		history = history[1:]
	}
	if len(history) == 0 {
		return []llm.ChatMessage{{Role: string(model.RoleUser), Content: req.Message}}
	}

	out := make([]llm.ChatMessage, len(history))
	for i, msg := range history {
		out[i] = llm.ChatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}
	return out
}

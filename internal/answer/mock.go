package answer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/knowledge-chat/internal/model"
)

// DefaultMockLatency is the simulated backend latency.
const DefaultMockLatency = 1200 * time.Millisecond

// Mock source returned with every mock answer.
const (
	MockSourceURL     = "https://example.com"
	MockSourceTitle   = "Example Knowledge Source"
	MockSourceSnippet = "This is a snippet from the example knowledge base."
)

// MockProvider answers after a fixed delay by echoing the message and
// citing a single example source.
type MockProvider struct {
	latency time.Duration
}

// NewMockProvider creates a mock with the given latency. A negative latency
// selects DefaultMockLatency.
func NewMockProvider(latency time.Duration) *MockProvider {
	if latency < 0 {
		latency = DefaultMockLatency
	}
	return &MockProvider{latency: latency}
}

// Name returns "mock".
func (p *MockProvider) Name() string {
	return "mock"
}

// GenerateAnswer waits for the configured latency and returns the canned
// answer. It returns early only if ctx ends.
func (p *MockProvider) GenerateAnswer(ctx context.Context, req *Request) (*Answer, error) {
	if p.latency > 0 {
		timer := time.NewTimer(p.latency)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return &Answer{
		Text: fmt.Sprintf("Here's a response to your message: \"%s\"", req.Message),
		Sources: []model.Source{{
			ID:      uuid.NewString(),
			URL:     MockSourceURL,
			Title:   MockSourceTitle,
			Snippet: MockSourceSnippet,
		}},
	}, nil
}

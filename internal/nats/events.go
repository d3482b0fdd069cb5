package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/capitalize-ai/knowledge-chat/internal/model"
	"github.com/capitalize-ai/knowledge-chat/pkg/logger"
)

const (
	// StreamName is the name of the change-event stream.
	StreamName = "CHAT_EVENTS"

	// SubjectPrefix is the prefix for all event subjects.
	SubjectPrefix = "chat"
)

// Selected ids are not validated, so they may contain subject metacharacters.
var subjectEscaper = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

// EventSubject returns the subject for an event.
func EventSubject(conversationID string, eventType model.EventType) string {
	token := subjectEscaper.Replace(conversationID)
	if token == "" {
		token = "_"
	}
	return fmt.Sprintf("%s.%s.event.%s", SubjectPrefix, token, eventType)
}

// EventPublisher publishes state changes to JetStream without waiting for
// acknowledgements.
type EventPublisher struct {
	client *Client
	logger *logger.Logger
}

// NewEventPublisher creates a publisher over client.
func NewEventPublisher(client *Client, log *logger.Logger) *EventPublisher {
	return &EventPublisher{client: client, logger: log.Named("events")}
}

// EnsureStream ensures the events stream exists.
func (p *EventPublisher) EnsureStream(ctx context.Context) error {
	js := p.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Knowledge chat state changes",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// Publish sends ev asynchronously. Failures are logged.
func (p *EventPublisher) Publish(ev *model.ConversationEvent) {
	if ev.ID == "" {
		ev.ID = uuid.Must(uuid.NewV7()).String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("failed to marshal event", zap.Error(err))
		return
	}

	subject := EventSubject(ev.ConversationID, ev.Type)
	if _, err := p.client.JetStream().PublishAsync(subject, data, jetstream.WithMsgID(ev.ID)); err != nil {
		p.logger.Warn("failed to publish event",
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}

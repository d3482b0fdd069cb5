package answer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/capitalize-ai/knowledge-chat/pkg/metrics"
)

const tracerName = "github.com/capitalize-ai/knowledge-chat/internal/answer"

// Instrumented records a span and latency metrics around another provider.
type Instrumented struct {
	next   Provider
	tracer trace.Tracer
}

// Instrument wraps next.
func Instrument(next Provider) *Instrumented {
	return &Instrumented{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

// Name returns the wrapped provider's name.
func (p *Instrumented) Name() string {
	return p.next.Name()
}

// GenerateAnswer delegates to the wrapped provider.
func (p *Instrumented) GenerateAnswer(ctx context.Context, req *Request) (*Answer, error) {
	ctx, span := p.tracer.Start(ctx, "answer.generate", trace.WithAttributes(
		attribute.String("answer.provider", p.next.Name()),
		attribute.String("conversation.id", req.ConversationID),
		attribute.Int("conversation.history", len(req.History)),
	))
	defer span.End()

	metrics.AnswersInFlight.Inc()
	defer metrics.AnswersInFlight.Dec()

	start := time.Now()
	ans, err := p.next.GenerateAnswer(ctx, req)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordAnswer(p.next.Name(), "error", elapsed)
		return nil, err
	}

	span.SetAttributes(attribute.Int("answer.sources", len(ans.Sources)))
	metrics.RecordAnswer(p.next.Name(), "success", elapsed)
	return ans, nil
}

package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/knowledge-chat/internal/controller"
	"github.com/capitalize-ai/knowledge-chat/internal/middleware"
	"github.com/capitalize-ai/knowledge-chat/internal/model"
	"github.com/capitalize-ai/knowledge-chat/pkg/logger"
	"github.com/capitalize-ai/knowledge-chat/pkg/metrics"
)

const defaultHeartbeat = 30 * time.Second

// StateEvent is the payload of every stream event after the first.
type StateEvent struct {
	ConversationID string      `json:"conversationId,omitempty"`
	State          model.State `json:"state"`
}

// StreamHandler pushes state changes to clients over SSE.
type StreamHandler struct {
	controller *controller.Controller
	hub        *Hub
	logger     *logger.Logger
	heartbeat  time.Duration
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(ctrl *controller.Controller, hub *Hub, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		controller: ctrl,
		hub:        hub,
		logger:     log,
		heartbeat:  defaultHeartbeat,
	}
}

// Stream handles GET /api/v1/stream
// The first event is "state" with the current state. Each later event is
// named after the change type and carries the state that resulted from it.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	changes, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	log := h.logger.With(zap.String("correlation_id", middleware.GetCorrelationID(ctx)))
	log.Debug("stream client connected")

	if err := sendSSEEvent(w, flusher, "state", h.controller.State()); err != nil {
		log.Warn("failed to send initial state", zap.Error(err))
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("stream client disconnected")
			return

		case ch := <-changes:
			ev := &StateEvent{ConversationID: ch.ConversationID, State: ch.State()}
			if err := sendSSEEvent(w, flusher, string(ch.Type), ev); err != nil {
				log.Warn("failed to send stream event", zap.Error(err))
				return
			}

		case <-heartbeat.C:
			if err := sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{Timestamp: time.Now()}); err != nil {
				return
			}
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}

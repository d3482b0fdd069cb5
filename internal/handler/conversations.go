package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/knowledge-chat/internal/controller"
	"github.com/capitalize-ai/knowledge-chat/internal/middleware"
	"github.com/capitalize-ai/knowledge-chat/internal/model"
	"github.com/capitalize-ai/knowledge-chat/pkg/logger"
)

// ConversationHandler exposes the controller's intents over HTTP.
type ConversationHandler struct {
	controller *controller.Controller
	logger     *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(ctrl *controller.Controller, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		controller: ctrl,
		logger:     log,
	}
}

// State handles GET /api/v1/state
func (h *ConversationHandler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.State())
}

// Create handles POST /api/v1/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	id := h.controller.StartNewConversation()

	h.logger.Debug("conversation started over http",
		zap.String("conversation_id", id),
		zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
	)

	writeJSON(w, http.StatusCreated, &model.CreateConversationResponse{ID: id})
}

// Select handles PUT /api/v1/active
// The id is not required to exist.
func (h *ConversationHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req model.SelectConversationRequest
	if err := decodeJSON(w, r, &req, maxSelectBodyBytes); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	h.controller.SelectConversation(req.ID)
	w.WriteHeader(http.StatusNoContent)
}

// Active handles GET /api/v1/active
func (h *ConversationHandler) Active(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.controller.ActiveConversation()
	if !ok {
		writeError(w, http.StatusNotFound, "no active conversation")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

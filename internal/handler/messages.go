package handler

import (
	"net/http"

	"github.com/capitalize-ai/knowledge-chat/internal/controller"
	"github.com/capitalize-ai/knowledge-chat/internal/model"
	"github.com/capitalize-ai/knowledge-chat/pkg/logger"
)

// MessageHandler handles message submission.
type MessageHandler struct {
	controller *controller.Controller
	logger     *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(ctrl *controller.Controller, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		controller: ctrl,
		logger:     log,
	}
}

// Submit handles POST /api/v1/messages
// The text is passed through verbatim. The reply arrives later through
// the state stream, so the request is only acknowledged.
func (h *MessageHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitMessageRequest
	if err := decodeJSON(w, r, &req, 0); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.controller.SubmitMessage(req.Text)
	w.WriteHeader(http.StatusAccepted)
}

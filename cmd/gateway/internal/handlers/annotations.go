package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/epion-news/epion/internal/annotate"
)

// AnnotationHandler serves stored article summaries and chat messages with
// their citations resolved.
type AnnotationHandler struct {
	svc    *annotate.Service
	logger *zap.Logger
}

// NewAnnotationHandler creates a new annotation handler
func NewAnnotationHandler(svc *annotate.Service, logger *zap.Logger) *AnnotationHandler {
	return &AnnotationHandler{svc: svc, logger: logger}
}

// ArticleSummary handles GET /api/v1/articles/{id}/summary/annotated
func (h *AnnotationHandler) ArticleSummary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		sendError(w, "Article ID required", http.StatusBadRequest)
		return
	}

	result, err := h.svc.ArticleSummary(r.Context(), id)
	if err != nil {
		h.fail(w, "article", id, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ChatMessage handles GET /api/v1/chat/messages/{id}/annotated
func (h *AnnotationHandler) ChatMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		sendError(w, "Message ID required", http.StatusBadRequest)
		return
	}

	result, err := h.svc.ChatMessage(r.Context(), id)
	if err != nil {
		h.fail(w, "chat_message", id, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *AnnotationHandler) fail(w http.ResponseWriter, kind, id string, err error) {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("Failed to annotate",
			zap.String("kind", kind),
			zap.String("id", id),
			zap.Error(err),
		)
	}
	sendError(w, msg, code)
}

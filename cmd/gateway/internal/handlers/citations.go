package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/epion-news/epion/internal/annotate"
	"github.com/epion-news/epion/internal/citations"
	"github.com/epion-news/epion/internal/sources"
)

// CitationHandler parses caller-supplied texts.
type CitationHandler struct {
	svc    *annotate.Service
	logger *zap.Logger
}

// NewCitationHandler creates a new citation handler
func NewCitationHandler(svc *annotate.Service, logger *zap.Logger) *CitationHandler {
	return &CitationHandler{svc: svc, logger: logger}
}

type textRequest struct {
	Text      *string `json:"text"`
	Highlight bool    `json:"highlight"`
}

type segmentsResponse struct {
	Segments []citations.TextSegment `json:"segments"`
}

type tokensResponse struct {
	Tokens []citations.Token `json:"tokens"`
}

// Segments handles POST /api/v1/citations/segments
func (h *CitationHandler) Segments(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeJSON(w, r, &req); err != nil {
		sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, segmentsResponse{
		Segments: citations.Segment(textOrEmpty(req.Text)),
	})
}

// Inline handles POST /api/v1/citations/inline
func (h *CitationHandler) Inline(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeJSON(w, r, &req); err != nil {
		sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Activation happens client side; there is nothing to call back here.
	tokens := h.svc.Inline(r.Context(), textOrEmpty(req.Text), req.Highlight, nil)
	writeJSON(w, http.StatusOK, tokensResponse{Tokens: tokens})
}

type annotateRequest struct {
	Text    *string          `json:"text"`
	Sources []sources.Source `json:"sources"`
}

// Annotate handles POST /api/v1/citations/annotate
func (h *CitationHandler) Annotate(w http.ResponseWriter, r *http.Request) {
	var req annotateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	for _, s := range req.Sources {
		if s.URL == "" {
			sendError(w, "Every source needs a url", http.StatusBadRequest)
			return
		}
	}

	writeJSON(w, http.StatusOK, h.svc.Annotate(r.Context(), textOrEmpty(req.Text), req.Sources))
}

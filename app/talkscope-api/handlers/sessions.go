package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/talkscope/talkscope/business/session"
)

type sessionResponse struct {
	SessionID     string          `json:"session_id"`
	AnalysisCount int             `json:"analysis_count"`
	Context       session.Context `json:"context"`
}

// session handles GET /sessions/{id}.
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/sessions/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	ctx, err := h.store.GetContext(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown session")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:     ctx.SessionID,
		AnalysisCount: ctx.AnalysisCount,
		Context:       ctx,
	})
}

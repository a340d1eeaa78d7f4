package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/talkscope/talkscope/business/pipeline"
)

// minTextRunes is the shortest transcript worth analyzing, counted after
// trimming surrounding whitespace.
const minTextRunes = 10

type analyzeTextRequest struct {
	Text        string `json:"text"`
	SpeakerName string `json:"speaker_name,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
}

// analyzeText handles POST /analyze_text: a transcript submitted as JSON,
// analyzed without the audio stages. Too-short text is rejected before the
// pipeline is ever invoked.
func (h *Handlers) analyzeText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req analyzeTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	text := strings.TrimSpace(req.Text)
	if utf8.RuneCountInString(text) < minTextRunes {
		writeError(w, http.StatusBadRequest, "text must be at least 10 characters")
		return
	}

	resp, err := h.pipeline.RunText(r.Context(), pipeline.TextRequest{
		SessionID: req.SessionID,
		Speaker:   speakerOrDefault(req.SpeakerName),
		Text:      text,
	}, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

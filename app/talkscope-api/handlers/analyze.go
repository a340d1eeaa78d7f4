package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/talkscope/talkscope/business/pipeline"
	"github.com/talkscope/talkscope/foundation/upload"
)

// analyze handles POST /analyze: one multipart recording in, the full
// aggregate out.
func (h *Handlers) analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	path, cleanup, err := h.saveUpload(r, h.maxUploadBytes)
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrInvalidMediaType):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, upload.ErrPayloadTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		default:
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		}
		return
	}
	defer cleanup()

	resp, err := h.pipeline.RunAudio(r.Context(), pipeline.AudioRequest{
		SessionID: r.FormValue("session_id"),
		Speaker:   speakerOrDefault(r.FormValue("speaker")),
		AudioPath: path,
	}, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// analyzeStream handles POST /analyze/stream: the same form as /analyze,
// answered as a server-sent event stream. Errors after the stream opens
// arrive as a terminal error event rather than a status code.
func (h *Handlers) analyzeStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	path, cleanup, err := h.saveUpload(r, 0)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	defer cleanup()

	sw, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// The pipeline emits the terminal error event itself on failure, so the
	// run's error needs no extra frame here.
	_, _ = h.pipeline.RunAudio(r.Context(), pipeline.AudioRequest{
		SessionID: r.FormValue("session_id"),
		Speaker:   speakerOrDefault(r.FormValue("speaker")),
		AudioPath: path,
	}, func(ev pipeline.Event) {
		if err := sw.send(ev); err != nil {
			h.log.Infow("handlers: stream client gone", "ERROR", err)
		}
	})
}

// saveUpload pulls the file part out of the form and persists it to the
// scratch directory. The caller owns cleanup on success.
func (h *Handlers) saveUpload(r *http.Request, maxBytes int64) (string, func(), error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, fmt.Errorf("reading file part: %w", err)
	}
	defer file.Close()

	return h.uploads.Save(file, header, maxBytes)
}

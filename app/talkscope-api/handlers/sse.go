package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// sseWriter frames values as server-sent events, one `data:` line per
// event. Writes happen on the pipeline goroutine only.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return &sseWriter{w: w, flusher: f}, nil
}

func (sw *sseWriter) send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", b); err != nil {
		return err
	}
	sw.flusher.Flush()

	return nil
}

// Package handlers exposes the analysis pipeline over HTTP: batch and
// streaming upload analysis, direct text analysis, per-session WebSocket
// progress, and session inspection.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/talkscope/talkscope/business/pipeline"
	"github.com/talkscope/talkscope/business/session"
	"github.com/talkscope/talkscope/foundation/pubsub"
	"github.com/talkscope/talkscope/foundation/upload"
	"go.uber.org/zap"
)

// defaultSpeaker labels utterances when the request names no speaker.
const defaultSpeaker = "speaker"

type Config struct {
	Log            *zap.SugaredLogger
	Pipeline       *pipeline.Pipeline
	Store          session.Store
	Broker         *pubsub.Broker
	Uploads        *upload.Store
	MaxUploadBytes int64
}

type Handlers struct {
	log            *zap.SugaredLogger
	pipeline       *pipeline.Pipeline
	store          session.Store
	broker         *pubsub.Broker
	uploads        *upload.Store
	maxUploadBytes int64
	upgrader       websocket.Upgrader
}

// New wires every route into a mux.
func New(cfg Config) http.Handler {
	h := &Handlers{
		log:            cfg.Log,
		pipeline:       cfg.Pipeline,
		store:          cfg.Store,
		broker:         cfg.Broker,
		uploads:        cfg.Uploads,
		maxUploadBytes: cfg.MaxUploadBytes,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	if h.maxUploadBytes <= 0 {
		h.maxUploadBytes = upload.MaxBatchBytes
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/analyze", h.analyze)
	mux.HandleFunc("/analyze/stream", h.analyzeStream)
	mux.HandleFunc("/analyze_text", h.analyzeText)

	// /ws/{session_id} and /sessions/{id}
	mux.HandleFunc("/ws/", h.ws)
	mux.HandleFunc("/sessions/", h.session)

	mux.HandleFunc("/healthz", h.healthz)

	return mux
}

func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func speakerOrDefault(name string) string {
	if name == "" {
		return defaultSpeaker
	}
	return name
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

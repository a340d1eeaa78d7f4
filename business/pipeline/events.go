package pipeline

import (
	"encoding/json"
	"time"
)

// Event types.
const (
	EventProgress = "progress"
	EventResult   = "result"
	EventError    = "error"
)

// Pipeline stages, in execution order.
const (
	StageAccepted      = "accepted"
	StageTranscription = "transcription"
	StageTranslation   = "translation"
	StageAnalysis      = "analysis"
	StageAggregation   = "aggregation"
)

// Event is one frame of the progress stream. The same value is handed to
// the streaming response and published to the session's topic, so the wire
// shape is shared by SSE and WebSocket clients.
type Event struct {
	Type    string          `json:"type"`
	Stage   string          `json:"stage,omitempty"`
	Percent int             `json:"percent,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	At      time.Time       `json:"at"`
}

// EmitFunc receives every event of one run, in order, on the calling
// goroutine.
type EmitFunc func(Event)

func progressEvent(stage string, percent int, message string) Event {
	return Event{
		Type:    EventProgress,
		Stage:   stage,
		Percent: percent,
		Message: message,
		At:      time.Now().UTC(),
	}
}

func progressDataEvent(stage string, percent int, message string, data any) Event {
	ev := progressEvent(stage, percent, message)
	ev.Data = marshalData(data)
	return ev
}

func resultEvent(data any) Event {
	return Event{
		Type:    EventResult,
		Percent: 100,
		Data:    marshalData(data),
		At:      time.Now().UTC(),
	}
}

func errorEvent(message string) Event {
	return Event{
		Type:    EventError,
		Message: message,
		At:      time.Now().UTC(),
	}
}

func marshalData(data any) json.RawMessage {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return raw
}

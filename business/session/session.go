// Package session owns the lifecycle of analysis sessions: creation,
// context accumulation, bounded history, and idle expiry.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found")

const (
	DefaultIdleTTL       = 2 * time.Hour
	DefaultMaxHistory    = 100
	DefaultSweepInterval = 5 * time.Minute

	maxRecentActs = 50
)

// DialogueAct is one tagged utterance from a recorded exchange.
type DialogueAct struct {
	Speaker   string `json:"speaker"`
	Utterance string `json:"utterance"`
	Act       string `json:"act"`
}

// SpeakerSegment is a diarized stretch of speech kept as session context.
type SpeakerSegment struct {
	SpeakerID    string  `json:"speaker_id"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
}

// Record is one completed analysis appended to a session's history.
type Record struct {
	AnalyzedAt   time.Time        `json:"analyzed_at"`
	Speaker      string           `json:"speaker"`
	Transcript   string           `json:"transcript"`
	DialogueActs []DialogueAct    `json:"dialogue_acts,omitempty"`
	Segments     []SpeakerSegment `json:"segments,omitempty"`
	Response     json.RawMessage  `json:"response"`
}

// Context is the derived state later analyses feed back into their prompts.
type Context struct {
	SessionID      string           `json:"session_id"`
	CreatedAt      time.Time        `json:"created_at"`
	LastActivity   time.Time        `json:"last_activity"`
	AnalysisCount  int              `json:"analysis_count"`
	LastTranscript string           `json:"last_transcript,omitempty"`
	RecentActs     []DialogueAct    `json:"recent_acts,omitempty"`
	Segments       []SpeakerSegment `json:"segments,omitempty"`
}

// absorb folds one record into the derived context. Dialogue acts accumulate
// up to a cap; diarization segments are replaced by the newest recording's.
func (c *Context) absorb(rec Record) {
	c.AnalysisCount++
	if !rec.AnalyzedAt.IsZero() {
		c.LastActivity = rec.AnalyzedAt
	}
	if rec.Transcript != "" {
		c.LastTranscript = rec.Transcript
	}

	if len(rec.DialogueActs) > 0 {
		c.RecentActs = append(c.RecentActs, rec.DialogueActs...)
		if over := len(c.RecentActs) - maxRecentActs; over > 0 {
			c.RecentActs = c.RecentActs[over:]
		}
	}

	if len(rec.Segments) > 0 {
		c.Segments = rec.Segments
	}
}

// Config tunes retention. Zero values take the package defaults.
type Config struct {
	IdleTTL       time.Duration
	MaxHistory    int
	SweepInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.IdleTTL <= 0 {
		c.IdleTTL = DefaultIdleTTL
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = DefaultMaxHistory
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	return c
}

// Store is the session registry. Implementations are safe for concurrent
// use; appends to one session serialize, but ordering between concurrent
// requests is unspecified.
type Store interface {
	// GetOrCreate resolves id to a live session, allocating a fresh one
	// when id is empty or unknown. It returns the effective session id.
	GetOrCreate(ctx context.Context, id string) (string, error)

	// GetContext returns the derived context. Unknown ids yield ErrNotFound.
	GetContext(ctx context.Context, id string) (Context, error)

	// AddAnalysis appends rec to the session history and folds it into the
	// derived context.
	AddAnalysis(ctx context.Context, id string, rec Record) error

	// History returns the retained records, oldest first.
	History(ctx context.Context, id string) ([]Record, error)

	// Expire drops sessions idle since before and reports how many went.
	Expire(ctx context.Context, before time.Time) (int, error)

	Close() error
}

package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/talkscope/talkscope/business/session"
	"go.uber.org/zap"
)

func newMemory(t *testing.T, cfg session.Config) *session.Memory {
	t.Helper()

	m := session.NewMemory(zap.NewNop().Sugar(), cfg)
	t.Cleanup(func() { m.Close() })
	return m
}

func record(transcript string) session.Record {
	return session.Record{
		AnalyzedAt: time.Now().UTC(),
		Speaker:    "speaker",
		Transcript: transcript,
		Response:   json.RawMessage(`{}`),
	}
}

func TestGetOrCreateAllocatesDistinctSessions(t *testing.T) {
	t.Parallel()

	m := newMemory(t, session.Config{})
	ctx := context.Background()

	first, err := m.GetOrCreate(ctx, "")
	if err != nil {
		t.Fatalf("GetOrCreate = %v, want nil", err)
	}
	second, err := m.GetOrCreate(ctx, "")
	if err != nil {
		t.Fatalf("GetOrCreate = %v, want nil", err)
	}

	if first == "" || second == "" {
		t.Fatalf("allocated empty session id: %q, %q", first, second)
	}
	if first == second {
		t.Fatalf("two anonymous sessions share id %q", first)
	}
}

func TestSameIDAccumulates(t *testing.T) {
	t.Parallel()

	m := newMemory(t, session.Config{})
	ctx := context.Background()

	id, err := m.GetOrCreate(ctx, "caller-7")
	if err != nil {
		t.Fatalf("GetOrCreate = %v, want nil", err)
	}
	if id != "caller-7" {
		t.Fatalf("GetOrCreate kept id %q, want %q", id, "caller-7")
	}

	if _, err := m.GetOrCreate(ctx, "caller-7"); err != nil {
		t.Fatalf("second GetOrCreate = %v, want nil", err)
	}

	if err := m.AddAnalysis(ctx, id, record("first pass")); err != nil {
		t.Fatalf("AddAnalysis = %v, want nil", err)
	}
	if err := m.AddAnalysis(ctx, id, record("second pass")); err != nil {
		t.Fatalf("AddAnalysis = %v, want nil", err)
	}

	c, err := m.GetContext(ctx, id)
	if err != nil {
		t.Fatalf("GetContext = %v, want nil", err)
	}
	if c.AnalysisCount != 2 {
		t.Fatalf("AnalysisCount = %d, want 2", c.AnalysisCount)
	}
	if c.LastTranscript != "second pass" {
		t.Fatalf("LastTranscript = %q, want %q", c.LastTranscript, "second pass")
	}

	hist, err := m.History(ctx, id)
	if err != nil {
		t.Fatalf("History = %v, want nil", err)
	}
	if len(hist) != 2 {
		t.Fatalf("history length = %d, want 2", len(hist))
	}
	if hist[0].Transcript != "first pass" {
		t.Fatalf("history[0].Transcript = %q, want %q", hist[0].Transcript, "first pass")
	}
}

func TestGetContextUnknownSession(t *testing.T) {
	t.Parallel()

	m := newMemory(t, session.Config{})

	if _, err := m.GetContext(context.Background(), "never-created"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("GetContext = %v, want ErrNotFound", err)
	}
}

func TestHistoryCap(t *testing.T) {
	t.Parallel()

	m := newMemory(t, session.Config{MaxHistory: 3})
	ctx := context.Background()

	id, _ := m.GetOrCreate(ctx, "capped")
	for i := 0; i < 5; i++ {
		if err := m.AddAnalysis(ctx, id, record(fmt.Sprintf("pass %d", i))); err != nil {
			t.Fatalf("AddAnalysis %d = %v, want nil", i, err)
		}
	}

	hist, err := m.History(ctx, id)
	if err != nil {
		t.Fatalf("History = %v, want nil", err)
	}
	if len(hist) != 3 {
		t.Fatalf("history length = %d, want 3", len(hist))
	}
	if hist[0].Transcript != "pass 2" {
		t.Fatalf("oldest retained = %q, want %q", hist[0].Transcript, "pass 2")
	}
}

func TestExpireDropsIdleSessions(t *testing.T) {
	t.Parallel()

	m := newMemory(t, session.Config{})
	ctx := context.Background()

	idle, _ := m.GetOrCreate(ctx, "idle")
	busy, _ := m.GetOrCreate(ctx, "busy")

	rec := record("still here")
	rec.AnalyzedAt = time.Now().UTC().Add(time.Minute)
	if err := m.AddAnalysis(ctx, busy, rec); err != nil {
		t.Fatalf("AddAnalysis = %v, want nil", err)
	}

	n, err := m.Expire(ctx, time.Now().UTC().Add(30*time.Second))
	if err != nil {
		t.Fatalf("Expire = %v, want nil", err)
	}
	if n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}

	if _, err := m.GetContext(ctx, idle); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("idle session survived expiry: %v", err)
	}
	if _, err := m.GetContext(ctx, busy); err != nil {
		t.Fatalf("active session expired: %v", err)
	}
}

func TestRecentActsBounded(t *testing.T) {
	t.Parallel()

	m := newMemory(t, session.Config{})
	ctx := context.Background()

	id, _ := m.GetOrCreate(ctx, "acts")

	for i := 0; i < 6; i++ {
		rec := record("turn")
		for j := 0; j < 10; j++ {
			rec.DialogueActs = append(rec.DialogueActs, session.DialogueAct{
				Speaker:   "speaker",
				Utterance: fmt.Sprintf("utterance %d-%d", i, j),
				Act:       "statement",
			})
		}
		if err := m.AddAnalysis(ctx, id, rec); err != nil {
			t.Fatalf("AddAnalysis = %v, want nil", err)
		}
	}

	c, err := m.GetContext(ctx, id)
	if err != nil {
		t.Fatalf("GetContext = %v, want nil", err)
	}
	if len(c.RecentActs) != 50 {
		t.Fatalf("RecentActs length = %d, want 50", len(c.RecentActs))
	}
	if c.RecentActs[len(c.RecentActs)-1].Utterance != "utterance 5-9" {
		t.Fatalf("newest act = %q, want %q", c.RecentActs[len(c.RecentActs)-1].Utterance, "utterance 5-9")
	}
}

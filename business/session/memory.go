package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Memory is the default in-process store. A janitor goroutine owned by the
// store sweeps idle sessions on a fixed interval.
type Memory struct {
	log *zap.SugaredLogger
	cfg Config

	mu       sync.RWMutex
	sessions map[string]*memorySession

	wg   sync.WaitGroup
	shut chan struct{}
}

type memorySession struct {
	context Context
	history []Record
}

func NewMemory(log *zap.SugaredLogger, cfg Config) *Memory {
	m := &Memory{
		log:      log,
		cfg:      cfg.withDefaults(),
		sessions: make(map[string]*memorySession),
		shut:     make(chan struct{}),
	}

	m.wg.Add(1)
	go m.janitor()

	return m
}

func (m *Memory) janitor() {
	defer m.wg.Done()

	m.log.Infow("session: janitor: G started")
	defer m.log.Infow("session: janitor: G completed")

	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, _ := m.Expire(context.Background(), time.Now().Add(-m.cfg.IdleTTL))
			if n > 0 {
				m.log.Infow("session: janitor: expired sessions", "count", n)
			}

		case <-m.shut:
			return
		}
	}
}

func (m *Memory) GetOrCreate(_ context.Context, id string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; !exists {
		now := time.Now().UTC()
		m.sessions[id] = &memorySession{
			context: Context{
				SessionID:    id,
				CreatedAt:    now,
				LastActivity: now,
			},
		}
	}

	return id, nil
}

func (m *Memory) GetContext(_ context.Context, id string) (Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, exists := m.sessions[id]
	if !exists {
		return Context{}, ErrNotFound
	}

	return s.context, nil
}

func (m *Memory) AddAnalysis(_ context.Context, id string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[id]
	if !exists {
		return ErrNotFound
	}

	s.context.absorb(rec)

	s.history = append(s.history, rec)
	if over := len(s.history) - m.cfg.MaxHistory; over > 0 {
		s.history = s.history[over:]
	}

	return nil
}

func (m *Memory) History(_ context.Context, id string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, exists := m.sessions[id]
	if !exists {
		return nil, ErrNotFound
	}

	out := make([]Record, len(s.history))
	copy(out, s.history)

	return out, nil
}

func (m *Memory) Expire(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expired := 0
	for id, s := range m.sessions {
		if s.context.LastActivity.Before(before) {
			delete(m.sessions, id)
			expired++
		}
	}

	return expired, nil
}

func (m *Memory) Close() error {
	close(m.shut)
	m.wg.Wait()
	return nil
}

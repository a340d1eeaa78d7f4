package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Settings selects and tunes a store backend.
type Settings struct {
	Backend       string // memory | redis | postgres
	RedisHost     string
	RedisPassword string
	PostgresDSN   string
	Config
}

// Open constructs the store named by Settings.Backend. An empty backend
// falls back to the in-process memory store.
func Open(ctx context.Context, log *zap.SugaredLogger, s Settings) (Store, error) {
	switch s.Backend {
	case "", "memory":
		return NewMemory(log, s.Config), nil

	case "redis":
		return NewRedis(log, s.RedisHost, s.RedisPassword, s.Config)

	case "postgres":
		return NewPostgres(ctx, log, s.PostgresDSN, s.Config)

	default:
		return nil, fmt.Errorf("unknown session backend %q", s.Backend)
	}
}

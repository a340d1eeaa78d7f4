package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis keeps sessions in a shared cache so multiple service instances see
// the same state. Idle expiry rides on native key TTLs refreshed on write.
type Redis struct {
	log    *zap.SugaredLogger
	cfg    Config
	client *redis.Client
}

func NewRedis(log *zap.SugaredLogger, host, password string, cfg Config) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     host,
		Password: password,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Redis{
		log:    log,
		cfg:    cfg.withDefaults(),
		client: client,
	}, nil
}

func contextKey(id string) string { return "session:" + id + ":ctx" }
func historyKey(id string) string { return "session:" + id + ":history" }

func (r *Redis) GetOrCreate(ctx context.Context, id string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now().UTC()
	fresh, err := json.Marshal(Context{
		SessionID:    id,
		CreatedAt:    now,
		LastActivity: now,
	})
	if err != nil {
		return "", err
	}

	if err := r.client.SetNX(ctx, contextKey(id), fresh, r.cfg.IdleTTL).Err(); err != nil {
		return "", fmt.Errorf("creating session %s: %w", id, err)
	}

	return id, nil
}

func (r *Redis) GetContext(ctx context.Context, id string) (Context, error) {
	raw, err := r.client.Get(ctx, contextKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Context{}, ErrNotFound
	}
	if err != nil {
		return Context{}, fmt.Errorf("loading session %s: %w", id, err)
	}

	var c Context
	if err := json.Unmarshal(raw, &c); err != nil {
		return Context{}, fmt.Errorf("decoding session %s: %w", id, err)
	}

	return c, nil
}

func (r *Redis) AddAnalysis(ctx context.Context, id string, rec Record) error {
	c, err := r.GetContext(ctx, id)
	if err != nil {
		return err
	}

	c.absorb(rec)

	rawCtx, err := json.Marshal(c)
	if err != nil {
		return err
	}
	rawRec, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, contextKey(id), rawCtx, r.cfg.IdleTTL)
	pipe.LPush(ctx, historyKey(id), rawRec)
	pipe.LTrim(ctx, historyKey(id), 0, int64(r.cfg.MaxHistory-1))
	pipe.Expire(ctx, historyKey(id), r.cfg.IdleTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording analysis for session %s: %w", id, err)
	}

	return nil
}

func (r *Redis) History(ctx context.Context, id string) ([]Record, error) {
	if _, err := r.GetContext(ctx, id); err != nil {
		return nil, err
	}

	raw, err := r.client.LRange(ctx, historyKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("loading history for session %s: %w", id, err)
	}

	// LPUSH stores newest first; history reads oldest first.
	out := make([]Record, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var rec Record
		if err := json.Unmarshal([]byte(raw[i]), &rec); err != nil {
			return nil, fmt.Errorf("decoding history for session %s: %w", id, err)
		}
		out = append(out, rec)
	}

	return out, nil
}

// Expire is a no-op for the Redis store: key TTLs retire idle sessions
// without a sweep.
func (r *Redis) Expire(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

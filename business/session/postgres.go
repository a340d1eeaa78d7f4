package session

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Postgres is the durable store. The schema ships embedded and migrates on
// startup; a janitor goroutine sweeps idle sessions like the memory store.
type Postgres struct {
	log  *zap.SugaredLogger
	cfg  Config
	pool *pgxpool.Pool

	wg   sync.WaitGroup
	shut chan struct{}
}

func NewPostgres(ctx context.Context, log *zap.SugaredLogger, dsn string, cfg Config) (*Postgres, error) {
	if err := migrate(dsn); err != nil {
		return nil, fmt.Errorf("migrating session schema: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres connection failed: %w", err)
	}

	p := &Postgres{
		log:  log,
		cfg:  cfg.withDefaults(),
		pool: pool,
		shut: make(chan struct{}),
	}

	p.wg.Add(1)
	go p.janitor()

	return p, nil
}

func migrate(dsn string) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	return goose.Up(db, "migrations")
}

func (p *Postgres) janitor() {
	defer p.wg.Done()

	p.log.Infow("session: janitor: G started")
	defer p.log.Infow("session: janitor: G completed")

	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := p.Expire(context.Background(), time.Now().Add(-p.cfg.IdleTTL))
			if err != nil {
				p.log.Errorw("session: janitor: sweep failed", "ERROR", err)
				continue
			}
			if n > 0 {
				p.log.Infow("session: janitor: expired sessions", "count", n)
			}

		case <-p.shut:
			return
		}
	}
}

func (p *Postgres) GetOrCreate(ctx context.Context, id string) (string, error) {
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

	const q = `
	INSERT INTO sessions (id, context, created_at, last_activity)
	VALUES ($1, $2, $3, $3)
	ON CONFLICT (id) DO NOTHING`

	if _, err := p.pool.Exec(ctx, q, id, fresh, now); err != nil {
		return "", fmt.Errorf("creating session %s: %w", id, err)
	}

	return id, nil
}

func (p *Postgres) GetContext(ctx context.Context, id string) (Context, error) {
	var raw []byte

	const q = `SELECT context FROM sessions WHERE id = $1`

	err := p.pool.QueryRow(ctx, q, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
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

func (p *Postgres) AddAnalysis(ctx context.Context, id string, rec Record) error {
	if rec.AnalyzedAt.IsZero() {
		rec.AnalyzedAt = time.Now().UTC()
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var raw []byte
	err = tx.QueryRow(ctx, `SELECT context FROM sessions WHERE id = $1 FOR UPDATE`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("locking session %s: %w", id, err)
	}

	var c Context
	if err := json.Unmarshal(raw, &c); err != nil {
		return fmt.Errorf("decoding session %s: %w", id, err)
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

	if _, err := tx.Exec(ctx,
		`UPDATE sessions SET context = $2, last_activity = $3 WHERE id = $1`,
		id, rawCtx, rec.AnalyzedAt,
	); err != nil {
		return fmt.Errorf("updating session %s: %w", id, err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO session_analyses (session_id, record, analyzed_at) VALUES ($1, $2, $3)`,
		id, rawRec, rec.AnalyzedAt,
	); err != nil {
		return fmt.Errorf("recording analysis for session %s: %w", id, err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM session_analyses WHERE id IN (
			SELECT id FROM session_analyses
			WHERE session_id = $1
			ORDER BY analyzed_at DESC, id DESC
			OFFSET $2
		)`,
		id, p.cfg.MaxHistory,
	); err != nil {
		return fmt.Errorf("trimming history for session %s: %w", id, err)
	}

	return tx.Commit(ctx)
}

func (p *Postgres) History(ctx context.Context, id string) ([]Record, error) {
	if _, err := p.GetContext(ctx, id); err != nil {
		return nil, err
	}

	const q = `
	SELECT record FROM session_analyses
	WHERE session_id = $1
	ORDER BY analyzed_at ASC, id ASC`

	rows, err := p.pool.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("loading history for session %s: %w", id, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}

		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decoding history for session %s: %w", id, err)
		}
		out = append(out, rec)
	}

	return out, rows.Err()
}

func (p *Postgres) Expire(ctx context.Context, before time.Time) (int, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE last_activity < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("expiring sessions: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

func (p *Postgres) Close() error {
	close(p.shut)
	p.wg.Wait()
	p.pool.Close()
	return nil
}

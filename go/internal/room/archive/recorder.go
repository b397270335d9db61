package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/triviaroom/go/internal/dbconfig"
	"github.com/mcdev12/triviaroom/go/internal/room"
)

const schema = `
CREATE TABLE IF NOT EXISTS match_results (
    id              UUID PRIMARY KEY,
    room_code       TEXT        NOT NULL,
    theme           TEXT        NOT NULL,
    difficulty      TEXT        NOT NULL,
    total_questions INT         NOT NULL,
    results         JSONB       NOT NULL,
    started_at      TIMESTAMPTZ NOT NULL,
    finished_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS match_results_room_code_idx ON match_results (room_code);
`

const insertMatch = `
INSERT INTO match_results (
    id, room_code, theme, difficulty, total_questions, results, started_at, finished_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`

// Executor is the subset of *pgxpool.Pool the recorder needs
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Recorder archives finished matches in Postgres
type Recorder struct {
	db Executor
}

// NewRecorder creates a Recorder on db
func NewRecorder(db Executor) *Recorder {
	return &Recorder{db: db}
}

// Connect opens a pool using the shared dbconfig and verifies it
func Connect(ctx context.Context, cfg dbconfig.Config) (*pgxpool.Pool, error) {
	poolCfg, err := cfg.PoolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Int32("max_conns", poolCfg.MaxConns).
		Msg("connected to match archive")
	return pool, nil
}

// EnsureSchema creates the match_results table if missing
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create match_results schema: %w", err)
	}
	return nil
}

// RecordMatch implements room.MatchRecorder
func (r *Recorder) RecordMatch(ctx context.Context, result room.MatchResult) error {
	results, err := json.Marshal(result.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	tag, err := r.db.Exec(ctx, insertMatch,
		result.ID,
		result.Code,
		result.Theme,
		result.Difficulty,
		result.TotalQuestions,
		results,
		result.StartedAt,
		result.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert match %s: %w", result.ID, err)
	}

	log.Debug().
		Str("room_code", result.Code).
		Str("match_id", result.ID.String()).
		Int64("rows", tag.RowsAffected()).
		Msg("match archived")
	return nil
}

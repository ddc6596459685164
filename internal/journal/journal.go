// File: internal/journal/journal.go
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xkilldash9x/wayfinder/api/schemas"
	"go.uber.org/zap"
)

// DBPool abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Journal provides a PostgreSQL implementation of the schemas.Journal
// interface: an append-only record of exposure transitions and navigation
// outcomes.
type Journal struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a journal instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Journal, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Journal{
		pool: pool,
		log:  logger.Named("journal"),
	}, nil
}

// EnsureSchema creates the journal tables when they do not exist yet.
func (j *Journal) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tool_state_events (
	id          TEXT PRIMARY KEY,
	tool_id     TEXT NOT NULL,
	state       TEXT NOT NULL,
	metadata    JSONB NOT NULL DEFAULT '{}',
	observed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS tool_state_events_tool_idx ON tool_state_events (tool_id, observed_at);

CREATE TABLE IF NOT EXISTS navigation_outcomes (
	attempt_id   TEXT PRIMARY KEY,
	tool_id      TEXT NOT NULL,
	from_context TEXT NOT NULL,
	to_context   TEXT NOT NULL,
	steps_taken  INT NOT NULL,
	succeeded    BOOLEAN NOT NULL,
	failure_code TEXT,
	duration_ms  BIGINT NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL
);`
	if _, err := j.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create journal schema: %w", err)
	}
	return nil
}

// AppendStateEvents batch-inserts exposure transitions in one transaction.
func (j *Journal) AppendStateEvents(ctx context.Context, events []schemas.ToolStateEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := j.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			j.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	rows := make([][]interface{}, len(events))
	for i, event := range events {
		metadata, err := json.Marshal(event.Metadata)
		if err != nil || len(metadata) == 0 {
			metadata = json.RawMessage("{}")
		}
		rows[i] = []interface{}{
			event.ID,
			event.ToolID,
			event.State.String(),
			metadata,
			event.Timestamp.UTC(),
		}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"tool_state_events"},
		[]string{"id", "tool_id", "state", "metadata", "observed_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy state events: %w", err)
	}
	if int(copyCount) != len(events) {
		return fmt.Errorf("mismatch in copied event count: expected %d, got %d", len(events), copyCount)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AppendOutcome records the result of one navigation attempt.
func (j *Journal) AppendOutcome(ctx context.Context, outcome schemas.NavigationOutcome) error {
	const insert = `
INSERT INTO navigation_outcomes
	(attempt_id, tool_id, from_context, to_context, steps_taken, succeeded, failure_code, duration_ms, started_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := j.pool.Exec(ctx, insert,
		outcome.AttemptID,
		outcome.ToolID,
		outcome.FromContext,
		outcome.ToContext,
		outcome.StepsTaken,
		outcome.Succeeded,
		outcome.FailureCode,
		outcome.Duration.Milliseconds(),
		outcome.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert navigation outcome: %w", err)
	}
	return nil
}

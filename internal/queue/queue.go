// Package queue implements the durable analysis job queue on PostgreSQL.
//
// Delivery is at-least-once: jobs are claimed with FOR UPDATE SKIP LOCKED so
// concurrent workers never double-claim, but a crashed worker's job is reset
// to queued after a staleness window and redelivered. Failed jobs are
// redelivered a bounded number of times with exponential backoff; exhausting
// retries is a terminal, observable state.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/linkguard/internal/domain"
)

const jobSelectList = `id, link_id, status, retry_count, max_retries,
	error_message, next_retry_at, created_at, updated_at`

// Config holds queue retry behaviour.
type Config struct {
	// MaxRetries is the number of automatic redeliveries after the first
	// failed attempt.
	MaxRetries int
	// RetryBase is the first redelivery delay; it doubles per attempt.
	RetryBase time.Duration
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		RetryBase:  5 * time.Second,
	}
}

// Queue is a PostgreSQL-backed job queue for analysis work.
type Queue struct {
	db  *sqlx.DB
	cfg Config
}

// New creates a queue over the given database.
func New(db *sqlx.DB, cfg Config) *Queue {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultConfig().RetryBase
	}
	return &Queue{db: db, cfg: cfg}
}

// Enqueue inserts a queued job for the link. Duplicate enqueues for the
// same link are acceptable; workers are idempotent.
func (q *Queue) Enqueue(ctx context.Context, linkID string) (string, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO analysis_jobs (id, link_id, status, retry_count, max_retries)
		VALUES ($1, $2, $3, 0, $4)`

	if _, err := q.db.ExecContext(ctx, query, id, linkID, domain.JobQueued, q.cfg.MaxRetries); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	return id, nil
}

// Claim atomically marks up to limit deliverable jobs as running and
// returns them. Deliverable means queued, or failed with retries left and
// the backoff delay elapsed. FOR UPDATE SKIP LOCKED keeps concurrent
// workers from claiming the same rows.
func (q *Queue) Claim(ctx context.Context, limit int) ([]domain.AnalysisJob, error) {
	query := `
		UPDATE analysis_jobs
		SET status = $1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM analysis_jobs
			WHERE status = $2
			   OR (status = $3
			       AND retry_count < max_retries
			       AND (next_retry_at IS NULL OR next_retry_at <= NOW()))
			ORDER BY created_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobSelectList

	var jobs []domain.AnalysisJob
	err := q.db.SelectContext(ctx, &jobs, query,
		domain.JobRunning, domain.JobQueued, domain.JobFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	return jobs, nil
}

// MarkCompleted marks a job as done.
func (q *Queue) MarkCompleted(ctx context.Context, jobID string) error {
	query := `
		UPDATE analysis_jobs
		SET status = $2, error_message = NULL, updated_at = NOW()
		WHERE id = $1`

	if err := q.execExpectOneRow(ctx, query, jobID, domain.JobCompleted); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return err
		}
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt and schedules the next redelivery
// with exponential backoff. It returns true when the job has exhausted its
// retries and will not be redelivered.
func (q *Queue) MarkFailed(ctx context.Context, jobID, errorMsg string) (bool, error) {
	query := `
		UPDATE analysis_jobs
		SET status = $2,
		    error_message = $3,
		    retry_count = retry_count + 1,
		    next_retry_at = NOW() + (INTERVAL '1 second' * $4 * POWER(2, retry_count)),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING retry_count, max_retries`

	var retryCount, maxRetries int
	err := q.db.QueryRowContext(ctx, query,
		jobID, domain.JobFailed, errorMsg, q.cfg.RetryBase.Seconds(),
	).Scan(&retryCount, &maxRetries)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, domain.ErrJobNotFound
		}
		return false, fmt.Errorf("mark failed: %w", err)
	}

	return retryCount >= maxRetries, nil
}

// MarkTerminal fails a job permanently, regardless of remaining retries.
// Used for failures redelivery cannot fix, such as a deleted link.
func (q *Queue) MarkTerminal(ctx context.Context, jobID, errorMsg string) error {
	query := `
		UPDATE analysis_jobs
		SET status = $2,
		    error_message = $3,
		    retry_count = max_retries,
		    next_retry_at = NULL,
		    updated_at = NOW()
		WHERE id = $1`

	if err := q.execExpectOneRow(ctx, query, jobID, domain.JobFailed, errorMsg); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return err
		}
		return fmt.Errorf("mark terminal: %w", err)
	}
	return nil
}

// ResetStale returns running jobs older than the window to queued. This
// recovers jobs whose worker crashed after claiming.
func (q *Queue) ResetStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE analysis_jobs
		SET status = $1, updated_at = NOW()
		WHERE status = $2
		  AND updated_at < NOW() - $3::interval`

	result, err := q.db.ExecContext(ctx, query,
		domain.JobQueued, domain.JobRunning, olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("reset stale jobs: %w", err)
	}
	return result.RowsAffected()
}

// Stats holds queue counters for operator visibility.
type Stats struct {
	Queued          int64 `db:"queued"           json:"queued"`
	Running         int64 `db:"running"          json:"running"`
	Completed       int64 `db:"completed"        json:"completed"`
	FailedRetryable int64 `db:"failed_retryable" json:"failed_retryable"`
	FailedTerminal  int64 `db:"failed_terminal"  json:"failed_terminal"`
}

// GetStats returns queue counters.
func (q *Queue) GetStats(ctx context.Context) (*Stats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'queued') AS queued,
			COUNT(*) FILTER (WHERE status = 'running') AS running,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed,
			COUNT(*) FILTER (WHERE status = 'failed' AND retry_count < max_retries) AS failed_retryable,
			COUNT(*) FILTER (WHERE status = 'failed' AND retry_count >= max_retries) AS failed_terminal
		FROM analysis_jobs`

	var stats Stats
	if err := q.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("get queue stats: %w", err)
	}
	return &stats, nil
}

func (q *Queue) execExpectOneRow(ctx context.Context, query string, args ...any) error {
	result, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return fmt.Errorf("get affected rows: %w", rowsErr)
	}
	if rows == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

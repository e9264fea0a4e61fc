package domain

import "time"

// JobStatus represents the state of an analysis job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// AnalysisJob is a durable work item asking for a link's destination to be
// analyzed. Delivery is at-least-once; duplicate jobs for the same link are
// acceptable and workers must be idempotent.
type AnalysisJob struct {
	ID           string     `db:"id"            json:"id"`
	LinkID       string     `db:"link_id"       json:"link_id"`
	Status       JobStatus  `db:"status"        json:"status"`
	RetryCount   int        `db:"retry_count"   json:"retry_count"`
	MaxRetries   int        `db:"max_retries"   json:"max_retries"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	NextRetryAt  *time.Time `db:"next_retry_at" json:"next_retry_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}

// Exhausted reports whether the job has used up its redeliveries.
func (j *AnalysisJob) Exhausted() bool {
	return j.RetryCount >= j.MaxRetries
}

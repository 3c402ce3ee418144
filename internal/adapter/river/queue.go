package river

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/taxireg/internal/domain"
)

// Compile-time check: Queue implements domain.CleanupQueue.
var _ domain.CleanupQueue = (*Queue)(nil)

// CleanupArgs asks the cleanup worker to abort a register job that is still
// running. River serializes it as JSON into its job queue table.
type CleanupArgs struct {
	JobID         int    `json:"job_id"`
	CorrelationID string `json:"correlation_id"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (CleanupArgs) Kind() string { return "register_job.cleanup" }

// InsertOpts routes cleanup messages to their own queue.
func (CleanupArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueCleanup}
}

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Queue implements domain.CleanupQueue by scheduling River jobs.
type Queue struct {
	client *Client
}

// NewQueue creates a cleanup queue backed by the given River client.
func NewQueue(client *Client) *Queue {
	return &Queue{client: client}
}

// SendCleanupMessage schedules a cleanup of the job after delay.
func (q *Queue) SendCleanupMessage(ctx context.Context, jobID int, correlationID string, delay time.Duration) error {
	var opts *river.InsertOpts
	if delay > 0 {
		opts = &river.InsertOpts{ScheduledAt: time.Now().Add(delay)}
	}

	_, err := q.client.Insert(ctx, CleanupArgs{JobID: jobID, CorrelationID: correlationID}, opts)
	if err != nil {
		return fmt.Errorf("enqueuing cleanup of job %d: %w", jobID, err)
	}
	return nil
}

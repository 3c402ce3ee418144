package river

import (
	"context"
	"errors"
	"fmt"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"github.com/neomorfeo/taxireg/internal/app"
	"github.com/neomorfeo/taxireg/internal/domain"
	"github.com/neomorfeo/taxireg/internal/platform/logger"
)

// JobAborter aborts register jobs that outlived their deadline.
type JobAborter interface {
	AbortIfRunning(ctx context.Context, jobID int, reason string) (bool, error)
}

// CleanupWorker aborts register jobs that are still RUNNING when their
// cleanup message comes due. Jobs that already finished are left alone.
type CleanupWorker struct {
	river.WorkerDefaults[CleanupArgs]

	aborter JobAborter
}

// NewCleanupWorker creates a cleanup worker.
func NewCleanupWorker(aborter JobAborter) *CleanupWorker {
	return &CleanupWorker{aborter: aborter}
}

// Work processes a single cleanup message.
func (w *CleanupWorker) Work(ctx context.Context, job *river.Job[CleanupArgs]) error {
	fields := []zap.Field{
		zap.Int("job_id", job.Args.JobID),
		zap.String("correlation_id", job.Args.CorrelationID),
		zap.Int64("river_job_id", job.ID),
		zap.Int("attempt", job.Attempt),
	}

	aborted, err := w.aborter.AbortIfRunning(ctx, job.Args.JobID, app.JobTimedOutMessage)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			logger.Warn("cleanup of unknown register job", fields...)
			return nil
		}
		return fmt.Errorf("aborting register job %d: %w", job.Args.JobID, err)
	}

	if aborted {
		logger.Warn("register job aborted after timeout", fields...)
	} else {
		logger.Debug("register job already finished", fields...)
	}
	return nil
}

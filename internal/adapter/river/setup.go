package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riversqlite"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/neomorfeo/taxireg/internal/platform/config"
)

// QueueCleanup is the queue cleanup messages are inserted into.
const QueueCleanup = "register_cleanup"

const defaultCleanupWorkers = 2

// Setup migrates River's tables, registers the cleanup worker on its own
// queue and returns an unstarted client. Start and Stop are left to the
// caller.
//
// A cleanup may wait for a cancelled register job to stop writing, so
// cfg.CleanupTimeout bounds a single attempt; River retries it afterwards.
func Setup(ctx context.Context, db *sql.DB, aborter JobAborter, cfg config.WorkerConfig) (*Client, error) {
	driver := riversqlite.New(db)

	migrator, err := rivermigrate.New(driver, nil)
	if err != nil {
		return nil, fmt.Errorf("creating river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return nil, fmt.Errorf("migrating river schema: %w", err)
	}

	workers := river.NewWorkers()
	if err := river.AddWorkerSafely(workers, NewCleanupWorker(aborter)); err != nil {
		return nil, fmt.Errorf("registering cleanup worker: %w", err)
	}

	maxWorkers := cfg.CleanupWorkers
	if maxWorkers < 1 {
		maxWorkers = defaultCleanupWorkers
	}

	client, err := river.NewClient(driver, &river.Config{
		JobTimeout: max(cfg.CleanupTimeout, 0),
		Queues: map[string]river.QueueConfig{
			QueueCleanup: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("creating river client: %w", err)
	}
	return client, nil
}

// Package worker runs registration jobs on a bounded goroutine pool.
//
// Jobs are never started on naked goroutines: every job goes through a Pool so
// that shutdown can wait for running work and panics are logged instead of
// crashing the process.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/neomorfeo/taxireg/internal/platform/logger"
)

// ErrPoolClosed is returned when submitting to a released pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Task is a context-aware unit of work.
type Task = func(ctx context.Context)

// Pool wraps ants.Pool with context-aware submission.
type Pool struct {
	pool *ants.Pool
	name string
}

// Pools owns the registration pool and the service lifecycle context handed to
// detached tasks.
type Pools struct {
	Registration *Pool

	serviceCtx    context.Context
	serviceCancel context.CancelFunc
	releaseAfter  time.Duration
}

// PoolConfig contains pool sizing.
type PoolConfig struct {
	RegistrationPoolSize int
	ReleaseTimeout       time.Duration
}

// DefaultPoolConfig returns the default configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		RegistrationPoolSize: 8,
		ReleaseTimeout:       30 * time.Second,
	}
}

// NewPools creates the pool collection. Detached tasks receive a context
// derived from ctx that is cancelled on Shutdown.
func NewPools(ctx context.Context, cfg PoolConfig) (*Pools, error) {
	serviceCtx, serviceCancel := context.WithCancel(ctx)

	panicHandler := func(p any) {
		logger.Error("worker panic recovered",
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
	}

	registration, err := ants.NewPool(cfg.RegistrationPoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(30*time.Second),
	)
	if err != nil {
		serviceCancel()
		return nil, err
	}

	releaseAfter := cfg.ReleaseTimeout
	if releaseAfter <= 0 {
		releaseAfter = DefaultPoolConfig().ReleaseTimeout
	}

	return &Pools{
		Registration:  &Pool{pool: registration, name: "registration"},
		serviceCtx:    serviceCtx,
		serviceCancel: serviceCancel,
		releaseAfter:  releaseAfter,
	}, nil
}

// Submit runs task with the caller's context. A context cancelled before the
// task is picked up skips the task.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return p.wrap(p.pool.Submit(func() {
		select {
		case <-ctx.Done():
			logger.Debug("task skipped: context cancelled",
				zap.String("pool", p.name),
				zap.Error(ctx.Err()),
			)
			return
		default:
		}
		task(ctx)
	}))
}

func (p *Pool) wrap(err error) error {
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// SubmitDetached runs task on the registration pool with the service context,
// so the task outlives the HTTP request that started it but still observes
// shutdown.
func (p *Pools) SubmitDetached(task Task) error {
	pool := p.Registration
	return pool.wrap(pool.pool.Submit(func() {
		select {
		case <-p.serviceCtx.Done():
			logger.Debug("detached task skipped: service shutting down",
				zap.String("pool", pool.name),
			)
			return
		default:
		}
		task(p.serviceCtx)
	}))
}

// Shutdown cancels the service context and waits for running tasks.
func (p *Pools) Shutdown() {
	p.serviceCancel()

	if err := p.Registration.pool.ReleaseTimeout(p.releaseAfter); err != nil {
		logger.Warn("registration pool shutdown timeout", zap.Error(err))
	}
}

// Metrics returns pool occupancy.
func (p *Pools) Metrics() map[string]int {
	return map[string]int{
		"running": p.Registration.pool.Running(),
		"free":    p.Registration.pool.Free(),
		"cap":     p.Registration.pool.Cap(),
	}
}

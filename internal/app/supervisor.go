package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neomorfeo/taxireg/internal/domain"
	"github.com/neomorfeo/taxireg/internal/platform/logger"
)

// JobTimedOutMessage is recorded on jobs aborted by the deferred cleanup.
const JobTimedOutMessage = "Job timed out. Please contact administrator to get assistance."

// JobInvoker starts the actual work of a freshly created job.
type JobInvoker func(ctx context.Context, jobID int) error

// StartParams describes a job to start.
type StartParams struct {
	Trigger       domain.JobTrigger
	NameSuffix    string
	UploaderID    uuid.UUID
	CorrelationID string
	Invoker       JobInvoker
}

// JobSupervisor owns the lifecycle of registration jobs: creation, status
// transitions, authority locks and terminal results.
type JobSupervisor struct {
	jobs        domain.JobRepository
	authorities domain.AuthorityRepository
	validator   domain.TransitionValidator
	metrics     domain.RegistrationMetrics
	now         func() time.Time

	mu       sync.Mutex
	inflight map[int]*inflightJob
}

// inflightJob is a job executing in this process.
type inflightJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewJobSupervisor creates a supervisor. metrics may be nil.
func NewJobSupervisor(jobs domain.JobRepository, authorities domain.AuthorityRepository, validator domain.TransitionValidator, metrics domain.RegistrationMetrics) *JobSupervisor {
	return &JobSupervisor{
		jobs:        jobs,
		authorities: authorities,
		validator:   validator,
		metrics:     metrics,
		now:         time.Now,
		inflight:    make(map[int]*inflightJob),
	}
}

// Track derives the context the job executes with. The returned release
// must be called once the job stopped writing. Until then AbortIfRunning
// cancels the context and waits instead of marking the job ABORTED.
func (s *JobSupervisor) Track(ctx context.Context, jobID int) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	entry := &inflightJob{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.inflight[jobID] = entry
	s.mu.Unlock()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			s.mu.Lock()
			if s.inflight[jobID] == entry {
				delete(s.inflight, jobID)
			}
			s.mu.Unlock()
			cancel()
			close(entry.done)
		})
	}
}

// Start persists a new STARTING job, hands its id to the invoker and returns
// the job name. When the invoker fails the job is marked as an unknown
// failure so it does not hold its authorities forever.
func (s *JobSupervisor) Start(ctx context.Context, params StartParams) (string, error) {
	name := generateJobName(s.now(), params.Trigger, params.NameSuffix)
	job := domain.NewRegisterJob(name, params.Trigger, params.UploaderID, params.CorrelationID)

	id, err := s.jobs.Insert(ctx, job)
	if err != nil {
		return "", fmt.Errorf("inserting register job: %w", err)
	}
	if s.metrics != nil {
		s.metrics.JobStarted(ctx, params.Trigger)
	}

	logger.Info("invoking register job",
		zap.Int("job_id", id),
		zap.String("job_name", name),
		zap.String("correlation_id", params.CorrelationID),
	)

	if err := params.Invoker(ctx, id); err != nil {
		if markErr := s.MarkFailureWithValidationErrors(ctx, id, domain.JobStatusFailureUnknown,
			[]domain.ValidationError{domain.UnknownError()}); markErr != nil {
			logger.Error("marking job that could not be invoked",
				zap.Int("job_id", id), zap.Error(markErr))
		}
		return "", fmt.Errorf("invoking register job %d: %w", id, err)
	}

	return name, nil
}

// FindJobByName returns the job with the given name or domain.ErrJobNotFound.
func (s *JobSupervisor) FindJobByName(ctx context.Context, name string) (domain.RegisterJob, error) {
	return s.jobs.FindByName(ctx, name)
}

// FindJobByID returns the job with the given id or domain.ErrJobNotFound.
func (s *JobSupervisor) FindJobByID(ctx context.Context, id int) (domain.RegisterJob, error) {
	return s.jobs.FindByID(ctx, id)
}

// HasActiveJobs reports whether any STARTING or RUNNING job holds a lock on
// one of the named authorities.
func (s *JobSupervisor) HasActiveJobs(ctx context.Context, names []string) (bool, error) {
	ids, err := s.authorityIDs(ctx, names)
	if err != nil {
		return false, err
	}
	if len(ids) == 0 {
		return false, nil
	}

	count, err := s.jobs.CountActiveJobs(ctx, ids)
	if err != nil {
		return false, fmt.Errorf("counting active jobs: %w", err)
	}
	return count > 0, nil
}

// LockImpactedAuthorities records the authorities the job is about to
// modify. It returns *domain.AuthorityUnavailableError when another active
// job got there first.
func (s *JobSupervisor) LockImpactedAuthorities(ctx context.Context, jobID int, names []string) error {
	ids, err := s.authorityIDs(ctx, names)
	if err != nil {
		return err
	}
	if err := s.jobs.LockAuthorities(ctx, jobID, ids); err != nil {
		return err
	}
	logger.Info("locked impacted authorities",
		zap.Int("job_id", jobID),
		zap.Ints("authority_ids", ids),
	)
	return nil
}

// MarkRunning moves the job from STARTING to RUNNING.
func (s *JobSupervisor) MarkRunning(ctx context.Context, jobID int) error {
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	next, err := s.validator.Apply(ctx, job.Status, domain.JobEventRun)
	if err != nil {
		return err
	}
	return s.jobs.UpdateStatus(ctx, jobID, next)
}

// MarkSuccessfullyFinished writes FINISHED_SUCCESS together with the
// authorities the job changed.
func (s *JobSupervisor) MarkSuccessfullyFinished(ctx context.Context, jobID int, affected []domain.LicensingAuthority) error {
	ids := make([]int, 0, len(affected))
	for _, a := range affected {
		ids = append(ids, a.ID)
	}
	return s.finish(ctx, jobID, domain.JobStatusFinishedSuccess, nil, ids)
}

// MarkFailureWithValidationErrors writes a terminal failure status together
// with the errors sorted by line.
func (s *JobSupervisor) MarkFailureWithValidationErrors(ctx context.Context, jobID int, status domain.JobStatus, errs []domain.ValidationError) error {
	sorted := append([]domain.ValidationError(nil), errs...)
	domain.SortByLine(sorted)
	return s.finish(ctx, jobID, status, sorted, nil)
}

// AbortIfRunning marks a job that is still RUNNING as ABORTED. A job still
// executing in this process is cancelled first and the abort waits for it
// to release its context, so its authorities stay locked until it stopped
// writing. It reports whether the job was aborted.
func (s *JobSupervisor) AbortIfRunning(ctx context.Context, jobID int, reason string) (bool, error) {
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job.Status != domain.JobStatusRunning {
		return false, nil
	}

	if err := s.stop(ctx, jobID); err != nil {
		return false, err
	}

	// The job may have finished on its own before it saw the cancellation.
	job, err = s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job.Status != domain.JobStatusRunning {
		logger.Info("register job finished before abort",
			zap.Int("job_id", jobID),
			zap.String("status", string(job.Status)),
		)
		return false, nil
	}

	if err := s.finish(ctx, jobID, domain.JobStatusAborted,
		[]domain.ValidationError{domain.RequestProcessingError(reason)}, nil); err != nil {
		return false, err
	}
	return true, nil
}

// stop cancels a job executing in this process and waits for its release.
func (s *JobSupervisor) stop(ctx context.Context, jobID int) error {
	s.mu.Lock()
	entry, ok := s.inflight[jobID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	entry.cancel()
	select {
	case <-entry.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for register job %d to stop: %w", jobID, ctx.Err())
	}
}

func (s *JobSupervisor) finish(ctx context.Context, jobID int, status domain.JobStatus, errs []domain.ValidationError, affectedIDs []int) error {
	event, ok := domain.EventFor(status)
	if !ok {
		return fmt.Errorf("no event leads to status %q", status)
	}

	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if _, err := s.validator.Apply(ctx, job.Status, event); err != nil {
		return err
	}

	if err := s.jobs.Finish(ctx, jobID, status, errs, affectedIDs); err != nil {
		return fmt.Errorf("finishing register job %d: %w", jobID, err)
	}
	if s.metrics != nil {
		s.metrics.JobFinished(ctx, job.Trigger, status)
	}
	return nil
}

func (s *JobSupervisor) authorityIDs(ctx context.Context, names []string) ([]int, error) {
	if len(names) == 0 {
		return nil, nil
	}
	found, err := s.authorities.FindByNames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("resolving authority names: %w", err)
	}
	ids := make([]int, 0, len(found))
	for _, a := range found {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

// isAuthorityUnavailable reports whether err is a lost lock race.
func isAuthorityUnavailable(err error) bool {
	var unavailable *domain.AuthorityUnavailableError
	return errors.As(err, &unavailable)
}

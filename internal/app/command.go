package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neomorfeo/taxireg/internal/domain"
	"github.com/neomorfeo/taxireg/internal/platform/logger"
)

// Source is the input side of a registration run. CSVSource and APISource
// are its two variants.
type Source interface {
	Trigger() domain.JobTrigger
	// BeforeExecute runs once the job is RUNNING and loads the input.
	BeforeExecute(ctx context.Context, jobID int) error
	UploaderID() uuid.UUID
	LicencesToRegister() []domain.VehicleRow
	ParseErrors() []domain.ValidationError
	// OnBeforeMarkJobFailed runs before a failure is written. Returning
	// false leaves the job status untouched.
	OnBeforeMarkJobFailed(ctx context.Context, status domain.JobStatus, errs []domain.ValidationError) bool
	// AfterSuccess runs once the job has been marked as finished.
	AfterSuccess(ctx context.Context, job domain.RegisterJob) error
}

// RegisterCommand runs one registration job end to end.
type RegisterCommand struct {
	jobID          int
	correlationID  string
	maxErrorsCount int
	source         Source

	converter  *Converter
	sentinel   *SecuritySentinel
	supervisor *JobSupervisor
	register   *RegisterService
	resolver   ExceptionResolver
}

// Services bundles the collaborators shared by every registration command.
type Services struct {
	Converter      *Converter
	Sentinel       *SecuritySentinel
	Supervisor     *JobSupervisor
	Register       *RegisterService
	Resolver       ExceptionResolver
	MaxErrorsCount int
}

// NewRegisterCommand creates a command for the given job and source.
func NewRegisterCommand(svc Services, jobID int, correlationID string, source Source) *RegisterCommand {
	resolver := svc.Resolver
	if resolver == nil {
		resolver = DefaultExceptionResolver{}
	}
	return &RegisterCommand{
		jobID:          jobID,
		correlationID:  correlationID,
		maxErrorsCount: svc.MaxErrorsCount,
		source:         source,
		converter:      svc.Converter,
		sentinel:       svc.Sentinel,
		supervisor:     svc.Supervisor,
		register:       svc.Register,
		resolver:       resolver,
	}
}

// Execute runs the job. Business failures and unexpected errors alike end
// with a failed result and, unless the source vetoes it, a terminal job
// status.
func (c *RegisterCommand) Execute(ctx context.Context) domain.RegisterResult {
	log := logger.With(
		zap.Int("job_id", c.jobID),
		zap.String("correlation_id", c.correlationID),
		zap.String("trigger", string(c.source.Trigger())),
	)
	log.Info("processing registration: start")
	defer log.Info("processing registration: finish")

	result, err := c.run(ctx)
	if err != nil {
		log.Error("registration failed", zap.Error(err))
		resolved, status := c.resolver.Resolve(err)
		c.markFailed(ctx, status, resolved.ValidationErrors)
		return resolved
	}
	return result
}

func (c *RegisterCommand) run(ctx context.Context) (domain.RegisterResult, error) {
	if err := c.supervisor.MarkRunning(ctx, c.jobID); err != nil {
		return domain.RegisterResult{}, fmt.Errorf("marking job running: %w", err)
	}

	if err := c.source.BeforeExecute(ctx, c.jobID); err != nil {
		return domain.RegisterResult{}, err
	}

	parseErrs := c.source.ParseErrors()
	budget := max(c.maxErrorsCount-len(parseErrs), 0)
	licences, convErrs := c.converter.Convert(c.source.LicencesToRegister(), budget)
	names := authorityNames(licences)

	denied, err := c.sentinel.CheckUploaderPermissions(ctx, c.source.UploaderID(), names)
	if err != nil {
		return domain.RegisterResult{}, err
	}
	if denied != nil {
		return c.fail(ctx, domain.OutcomeUnauthorised, *denied), nil
	}

	if len(convErrs) > 0 || len(parseErrs) > 0 {
		errs := append(append([]domain.ValidationError(nil), convErrs...), parseErrs...)
		return c.fail(ctx, domain.OutcomeValidationErrors, errs...), nil
	}

	active, err := c.supervisor.HasActiveJobs(ctx, names)
	if err != nil {
		return domain.RegisterResult{}, err
	}
	if active {
		return c.fail(ctx, domain.OutcomeAuthorityLocked, domain.AuthorityUnavailabilityError()), nil
	}

	if err := c.supervisor.LockImpactedAuthorities(ctx, c.jobID, names); err != nil {
		if isAuthorityUnavailable(err) {
			return c.fail(ctx, domain.OutcomeAuthorityLocked, domain.AuthorityUnavailabilityError()), nil
		}
		return domain.RegisterResult{}, fmt.Errorf("locking impacted authorities: %w", err)
	}

	result, err := c.register.Register(ctx, licences, c.source.UploaderID())
	if err != nil {
		return domain.RegisterResult{}, err
	}
	if !result.Success() {
		return c.fail(ctx, result.Outcome, result.ValidationErrors...), nil
	}

	// The licences are committed; the outcome is recorded even if the job
	// was cancelled meanwhile.
	ctx = context.WithoutCancel(ctx)
	if err := c.supervisor.MarkSuccessfullyFinished(ctx, c.jobID, result.AffectedAuthorities); err != nil {
		return domain.RegisterResult{}, fmt.Errorf("marking job finished: %w", err)
	}
	logger.Info("marked job as finished",
		zap.Int("job_id", c.jobID),
		zap.Int("affected_authorities", len(result.AffectedAuthorities)),
		zap.Int("affected_vrms", len(result.AffectedVRMs)),
	)

	c.afterSuccess(ctx)
	return result, nil
}

// afterSuccess runs the source hook. The job already succeeded, so a
// failing hook is only logged.
func (c *RegisterCommand) afterSuccess(ctx context.Context) {
	job, err := c.supervisor.FindJobByID(ctx, c.jobID)
	if err == nil {
		err = c.source.AfterSuccess(ctx, job)
	}
	if err != nil {
		logger.Error("post-success hook failed",
			zap.Int("job_id", c.jobID),
			zap.Error(err),
		)
	}
}

func (c *RegisterCommand) fail(ctx context.Context, outcome domain.Outcome, errs ...domain.ValidationError) domain.RegisterResult {
	result := domain.FailureResult(outcome, errs...)
	c.markFailed(ctx, outcome.JobStatus(), result.ValidationErrors)
	return result
}

func (c *RegisterCommand) markFailed(ctx context.Context, status domain.JobStatus, errs []domain.ValidationError) {
	if ctx.Err() != nil {
		logger.Warn("registration cancelled, leaving job to the abort",
			zap.Int("job_id", c.jobID),
			zap.String("status", string(status)),
		)
		return
	}
	if !c.source.OnBeforeMarkJobFailed(ctx, status, errs) {
		logger.Error("cannot delete submitted file, leaving job status untouched",
			zap.Int("job_id", c.jobID),
			zap.String("status", string(status)),
		)
		return
	}

	if err := c.supervisor.MarkFailureWithValidationErrors(ctx, c.jobID, status, errs); err != nil {
		logger.Error("marking job as failed",
			zap.Int("job_id", c.jobID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return
	}
	logger.Warn("marked job as failed",
		zap.Int("job_id", c.jobID),
		zap.String("status", string(status)),
		zap.Int("validation_errors", len(errs)),
	)
}

package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/neomorfeo/taxireg/internal/domain"
)

// Submitter runs jobs in the background, detached from the caller's context.
type Submitter interface {
	SubmitDetached(task func(ctx context.Context)) error
}

// RegistrarConfig holds the registration limits.
type RegistrarConfig struct {
	MaxErrorsCount   int
	MaxLicencesCount int
	API              APISettings
}

// Registrar starts registration jobs and hands them to the worker pool. It
// returns job names immediately; outcomes are read by polling the job.
type Registrar struct {
	services  Services
	store     domain.ObjectStore
	parser    domain.VehicleFileParser
	notifier  *ValidationErrorsNotifier
	queue     domain.CleanupQueue
	submitter Submitter
	cfg       RegistrarConfig
}

// NewRegistrar creates a registrar. queue and notifier may be nil.
func NewRegistrar(services Services, store domain.ObjectStore, parser domain.VehicleFileParser, notifier *ValidationErrorsNotifier, queue domain.CleanupQueue, submitter Submitter, cfg RegistrarConfig) *Registrar {
	services.MaxErrorsCount = cfg.MaxErrorsCount
	return &Registrar{
		services:  services,
		store:     store,
		parser:    parser,
		notifier:  notifier,
		queue:     queue,
		submitter: submitter,
		cfg:       cfg,
	}
}

// StartCSVJob starts registering the CSV file at bucket/key. The file must
// carry a valid uploader id in its metadata.
func (r *Registrar) StartCSVJob(ctx context.Context, bucket, key, correlationID string) (string, error) {
	meta, err := ReadFileMetadata(ctx, r.store, bucket, key)
	if err != nil {
		return "", err
	}

	return r.services.Supervisor.Start(ctx, StartParams{
		Trigger:       domain.JobTriggerCSVFromS3,
		NameSuffix:    CSVJobSuffix(key),
		UploaderID:    meta.UploaderID,
		CorrelationID: correlationID,
		Invoker: r.invoker(correlationID, func() Source {
			return NewCSVSource(r.store, r.parser, r.notifier, bucket, key, r.cfg.MaxErrorsCount)
		}),
	})
}

// StartAPIJob starts registering licences submitted through the API.
func (r *Registrar) StartAPIJob(ctx context.Context, rows []domain.VehicleRow, uploaderID uuid.UUID, correlationID string) (string, error) {
	if len(rows) > r.cfg.MaxLicencesCount {
		return "", &domain.PayloadTooLargeError{Max: r.cfg.MaxLicencesCount, Actual: len(rows)}
	}

	return r.services.Supervisor.Start(ctx, StartParams{
		Trigger:       domain.JobTriggerAPICall,
		UploaderID:    uploaderID,
		CorrelationID: correlationID,
		Invoker: r.invoker(correlationID, func() Source {
			return NewAPISource(rows, uploaderID, correlationID, r.cfg.API, r.queue, r.store)
		}),
	})
}

// FindJob returns the job with the given name.
func (r *Registrar) FindJob(ctx context.Context, name string) (domain.RegisterJob, error) {
	return r.services.Supervisor.FindJobByName(ctx, name)
}

func (r *Registrar) invoker(correlationID string, newSource func() Source) JobInvoker {
	return func(_ context.Context, jobID int) error {
		err := r.submitter.SubmitDetached(func(ctx context.Context) {
			ctx, release := r.services.Supervisor.Track(ctx, jobID)
			defer release()
			NewRegisterCommand(r.services, jobID, correlationID, newSource()).Execute(ctx)
		})
		if err != nil {
			return fmt.Errorf("submitting register job: %w", err)
		}
		return nil
	}
}

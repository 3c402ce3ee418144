package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neomorfeo/taxireg/internal/domain"
	"github.com/neomorfeo/taxireg/internal/platform/logger"
)

// APISettings configures API submissions.
type APISettings struct {
	CleanupThreshold int
	CleanupDelay     time.Duration
	AuditBucket      string
}

// VehicleDetails is the body of an API submission, also used as the audit
// record of an accepted payload.
type VehicleDetails struct {
	VehicleDetails []domain.VehicleRow `json:"vehicleDetails"`
}

// APISource registers licences submitted in an API call.
type APISource struct {
	rows          []domain.VehicleRow
	uploaderID    uuid.UUID
	correlationID string
	settings      APISettings
	queue         domain.CleanupQueue
	store         domain.ObjectStore
}

// NewAPISource creates a source for the given rows. queue and store may be nil.
func NewAPISource(rows []domain.VehicleRow, uploaderID uuid.UUID, correlationID string, settings APISettings, queue domain.CleanupQueue, store domain.ObjectStore) *APISource {
	for i := range rows {
		rows[i].Trigger = domain.JobTriggerAPICall
		rows[i].Line = 0
	}
	return &APISource{
		rows:          rows,
		uploaderID:    uploaderID,
		correlationID: correlationID,
		settings:      settings,
		queue:         queue,
		store:         store,
	}
}

// Trigger implements Source.
func (s *APISource) Trigger() domain.JobTrigger {
	return domain.JobTriggerAPICall
}

// BeforeExecute schedules the deferred cleanup of large payloads.
func (s *APISource) BeforeExecute(ctx context.Context, jobID int) error {
	if s.queue == nil || len(s.rows) <= s.settings.CleanupThreshold {
		return nil
	}
	if err := s.queue.SendCleanupMessage(ctx, jobID, s.correlationID, s.settings.CleanupDelay); err != nil {
		return fmt.Errorf("sending cleanup message: %w", err)
	}
	logger.Info("scheduled job cleanup",
		zap.Int("job_id", jobID),
		zap.Int("licences", len(s.rows)),
		zap.Duration("delay", s.settings.CleanupDelay),
	)
	return nil
}

// UploaderID implements Source.
func (s *APISource) UploaderID() uuid.UUID {
	return s.uploaderID
}

// LicencesToRegister implements Source.
func (s *APISource) LicencesToRegister() []domain.VehicleRow {
	return s.rows
}

// ParseErrors implements Source. API payloads have no parse step.
func (s *APISource) ParseErrors() []domain.ValidationError {
	return nil
}

// OnBeforeMarkJobFailed implements Source. API jobs are always marked.
func (s *APISource) OnBeforeMarkJobFailed(context.Context, domain.JobStatus, []domain.ValidationError) bool {
	return true
}

// AfterSuccess stores the accepted payload as <jobName>.json in the audit bucket.
func (s *APISource) AfterSuccess(ctx context.Context, job domain.RegisterJob) error {
	if s.store == nil || s.settings.AuditBucket == "" {
		return nil
	}
	body, err := json.Marshal(VehicleDetails{VehicleDetails: s.rows})
	if err != nil {
		return fmt.Errorf("encoding audit payload: %w", err)
	}
	if err := s.store.Put(ctx, s.settings.AuditBucket, job.Name+".json", body, "application/json"); err != nil {
		return fmt.Errorf("storing audit payload: %w", err)
	}
	return nil
}

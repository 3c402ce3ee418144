package app

import (
	"context"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neomorfeo/taxireg/internal/domain"
	"github.com/neomorfeo/taxireg/internal/platform/logger"
)

// FileMetadata is what uploaders attach to a CSV file in object storage.
type FileMetadata struct {
	UploaderID uuid.UUID
	OwnerEmail string
}

// ReadFileMetadata reads the uploader id and owner email of a stored file.
func ReadFileMetadata(ctx context.Context, store domain.ObjectStore, bucket, key string) (FileMetadata, error) {
	meta, err := store.Head(ctx, bucket, key)
	if err != nil {
		return FileMetadata{}, &ObjectStoreError{Op: "head " + bucket + "/" + key, Err: err}
	}

	raw, ok := meta[domain.MetadataUploaderID]
	if !ok || strings.TrimSpace(raw) == "" {
		return FileMetadata{}, domain.ErrUploaderIDMissing
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return FileMetadata{}, domain.ErrInvalidUploaderID
	}

	return FileMetadata{UploaderID: id, OwnerEmail: meta[domain.MetadataEmail]}, nil
}

// CSVJobSuffix returns the job name suffix for a CSV file: its base name
// without extension.
func CSVJobSuffix(key string) string {
	base := path.Base(key)
	return strings.TrimSuffix(base, path.Ext(base))
}

// CSVSource reads licences from a CSV file in object storage.
type CSVSource struct {
	store     domain.ObjectStore
	parser    domain.VehicleFileParser
	notifier  *ValidationErrorsNotifier
	bucket    string
	key       string
	maxErrors int

	metadata  FileMetadata
	rows      []domain.VehicleRow
	parseErrs []domain.ValidationError
}

// NewCSVSource creates a source for the file at bucket/key.
func NewCSVSource(store domain.ObjectStore, parser domain.VehicleFileParser, notifier *ValidationErrorsNotifier, bucket, key string, maxErrors int) *CSVSource {
	return &CSVSource{
		store:     store,
		parser:    parser,
		notifier:  notifier,
		bucket:    bucket,
		key:       key,
		maxErrors: maxErrors,
	}
}

// Trigger implements Source.
func (s *CSVSource) Trigger() domain.JobTrigger {
	return domain.JobTriggerCSVFromS3
}

// BeforeExecute fetches and parses the file.
func (s *CSVSource) BeforeExecute(ctx context.Context, _ int) error {
	meta, err := ReadFileMetadata(ctx, s.store, s.bucket, s.key)
	if err != nil {
		return err
	}
	s.metadata = meta

	body, err := s.store.Get(ctx, s.bucket, s.key)
	if err != nil {
		return &ObjectStoreError{Op: "get " + s.bucket + "/" + s.key, Err: err}
	}
	defer body.Close()

	rows, parseErrs, err := s.parser.Parse(body, s.maxErrors)
	if err != nil {
		return &ObjectStoreError{Op: "read " + s.bucket + "/" + s.key, Err: err}
	}
	for i := range rows {
		rows[i].Trigger = domain.JobTriggerCSVFromS3
	}

	s.rows = rows
	s.parseErrs = parseErrs
	return nil
}

// UploaderID implements Source.
func (s *CSVSource) UploaderID() uuid.UUID {
	return s.metadata.UploaderID
}

// LicencesToRegister implements Source.
func (s *CSVSource) LicencesToRegister() []domain.VehicleRow {
	return s.rows
}

// ParseErrors implements Source.
func (s *CSVSource) ParseErrors() []domain.ValidationError {
	return s.parseErrs
}

// OnBeforeMarkJobFailed deletes the file and emails the owner. The job is
// only marked failed when the file is gone, so a file that could not be
// deleted can still be retried.
func (s *CSVSource) OnBeforeMarkJobFailed(ctx context.Context, status domain.JobStatus, errs []domain.ValidationError) bool {
	sorted := append([]domain.ValidationError(nil), errs...)
	domain.SortByLine(sorted)

	deleted := true
	if err := s.store.Delete(ctx, s.bucket, s.key); err != nil {
		logger.Error("deleting csv file",
			zap.String("bucket", s.bucket),
			zap.String("key", s.key),
			zap.Error(err),
		)
		deleted = false
	}

	if err := s.notifier.Notify(ctx, s.metadata.OwnerEmail, status, sorted); err != nil {
		logger.Warn("sending validation errors email", zap.Error(err))
	}
	return deleted
}

// AfterSuccess implements Source. Nothing happens for CSV files.
func (s *CSVSource) AfterSuccess(context.Context, domain.RegisterJob) error {
	return nil
}

package app

import (
	"errors"

	"github.com/neomorfeo/taxireg/internal/domain"
)

// ObjectStoreError wraps a failure to read a submitted file from object
// storage.
type ObjectStoreError struct {
	Op  string
	Err error
}

func (e *ObjectStoreError) Error() string {
	return "object storage " + e.Op + ": " + e.Err.Error()
}

func (e *ObjectStoreError) Unwrap() error {
	return e.Err
}

// ExceptionResolver turns an unexpected error raised while running a job
// into a failure result and the status the job should end with.
type ExceptionResolver interface {
	Resolve(err error) (domain.RegisterResult, domain.JobStatus)
}

// DefaultExceptionResolver reports object storage problems as S3 validation
// errors and everything else as an unknown failure.
type DefaultExceptionResolver struct{}

// Resolve implements ExceptionResolver.
func (DefaultExceptionResolver) Resolve(err error) (domain.RegisterResult, domain.JobStatus) {
	var storeErr *ObjectStoreError
	switch {
	case errors.Is(err, domain.ErrObjectNotFound):
		return domain.FailureResult(domain.OutcomeValidationErrors,
			domain.S3Error("Unable to fetch file from S3")), domain.JobStatusFailureValidation
	case errors.Is(err, domain.ErrUploaderIDMissing), errors.Is(err, domain.ErrInvalidUploaderID):
		return domain.FailureResult(domain.OutcomeValidationErrors,
			domain.S3Error(err.Error())), domain.JobStatusFailureValidation
	case errors.As(err, &storeErr):
		return domain.FailureResult(domain.OutcomeValidationErrors,
			domain.S3Error(storeErr.Error())), domain.JobStatusFailureValidation
	default:
		return domain.FailureResult(domain.OutcomeUnknownFailure,
			domain.UnknownError()), domain.JobStatusFailureUnknown
	}
}

package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrJobNotFound       = errors.New("register job not found")
	ErrObjectNotFound    = errors.New("object not found")
	ErrUploaderIDMissing = errors.New("uploader id missing")
	ErrInvalidUploaderID = errors.New("invalid format of uploader-id, expected: UUID")
	ErrLicenceNotFound   = errors.New("no licences found for vrm")
	ErrInvalidWindow     = errors.New("reporting window start must not be after its end")
	ErrFutureDate        = errors.New("cannot process a future date")
	ErrInvalidPage       = errors.New("page size must be positive and page number must not be negative")
)

// TransitionError is returned when a job status transition is not allowed.
type TransitionError struct {
	Event   JobEvent
	Current JobStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from status %q", e.Event, e.Current)
}

// AuthorityUnavailableError is returned when another active job already
// holds a lock on one of the requested authorities.
type AuthorityUnavailableError struct {
	AuthorityIDs []int
}

func (e *AuthorityUnavailableError) Error() string {
	return fmt.Sprintf("licensing authorities %v are locked by another job", e.AuthorityIDs)
}

// PayloadTooLargeError is returned when a submission exceeds the allowed
// number of licences.
type PayloadTooLargeError struct {
	Max    int
	Actual int
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("Max number of vehicles exceeded. Expected: up to %d, actual: %d. "+
		"Please contact the system administrator for further information.", e.Max, e.Actual)
}

// JobNameConflictError is returned when a job name is already taken.
type JobNameConflictError struct {
	Name string
}

func (e *JobNameConflictError) Error() string {
	return fmt.Sprintf("register job name %q is already in use", e.Name)
}

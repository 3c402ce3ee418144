package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrorKind classifies a validation error. Its value is the title shown to
// uploaders.
type ErrorKind string

const (
	KindValueError             ErrorKind = "Value error"
	KindMissingField           ErrorKind = "Mandatory field missing"
	KindS3Error                ErrorKind = "S3 error"
	KindInsufficientPermission ErrorKind = "Insufficient Permissions"
	KindAuthorityUnavailable   ErrorKind = "Licensing Authority Unavailability"
	KindRequestProcessing      ErrorKind = "Request processing error"
	KindUnknown                ErrorKind = "Unknown error"
)

// Messages shared between the converter, parser and command.
const (
	MsgAuthorityMismatch     = "Vehicle's licensing authority %s does not match any existing ones."
	MsgNotAuthorised         = "You are not authorised to submit data for "
	MsgAuthorityLocked       = "Licence Authority is locked because it is being updated now by another Uploader"
	MsgDuplicateLicence      = "There are multiple vehicles with the same VRN"
	MsgInvalidWheelchairFlag = "Invalid wheelchair accessible value. Can only be True or False"
	MsgUnknownError          = "Unknown error occurred while processing registration"
)

// ValidationError describes a single problem with a submission.
type ValidationError struct {
	Kind    ErrorKind `json:"title"`
	VRM     string    `json:"vrm,omitempty"`
	Message string    `json:"message"`
	Line    int       `json:"line,omitempty"`
}

// Title returns the user-facing error title.
func (e ValidationError) Title() string {
	return string(e.Kind)
}

// Detail returns the message, prefixed with its line number when known.
func (e ValidationError) Detail() string {
	if e.Line > 0 {
		return fmt.Sprintf("Line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// ValueError reports a field whose value is invalid.
func ValueError(vrm, message string, line int) ValidationError {
	return ValidationError{Kind: KindValueError, VRM: vrm, Message: message, Line: line}
}

// MissingFieldError reports a mandatory field that is absent.
func MissingFieldError(vrm, message string, line int) ValidationError {
	return ValidationError{Kind: KindMissingField, VRM: vrm, Message: message, Line: line}
}

// S3Error reports a failure to read the submitted file.
func S3Error(message string) ValidationError {
	return ValidationError{Kind: KindS3Error, Message: message}
}

// InsufficientPermissionsError names the authorities the uploader may not modify.
func InsufficientPermissionsError(names []string) ValidationError {
	return ValidationError{
		Kind:    KindInsufficientPermission,
		Message: MsgNotAuthorised + strings.Join(names, ", "),
	}
}

// AuthorityUnavailabilityError reports that another job is updating a target authority.
func AuthorityUnavailabilityError() ValidationError {
	return ValidationError{Kind: KindAuthorityUnavailable, Message: MsgAuthorityLocked}
}

// RequestProcessingError reports a job that could not be processed to completion.
func RequestProcessingError(message string) ValidationError {
	return ValidationError{Kind: KindRequestProcessing, Message: message}
}

// UnknownError reports an unexpected infrastructure failure.
func UnknownError() ValidationError {
	return ValidationError{Kind: KindUnknown, Message: MsgUnknownError}
}

// SortByLine orders errors by line number; errors without one go last.
func SortByLine(errs []ValidationError) {
	sort.SliceStable(errs, func(i, j int) bool {
		return sortLine(errs[i]) < sortLine(errs[j])
	})
}

func sortLine(e ValidationError) int {
	if e.Line <= 0 {
		return math.MaxInt
	}
	return e.Line
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a registration job.
type JobStatus string

const (
	JobStatusStarting               JobStatus = "STARTING"
	JobStatusRunning                JobStatus = "RUNNING"
	JobStatusFinishedSuccess        JobStatus = "FINISHED_SUCCESS"
	JobStatusFailureValidation      JobStatus = "FINISHED_FAILURE_VALIDATION_ERRORS"
	JobStatusFailureMismatch        JobStatus = "FINISHED_FAILURE_MISMATCH"
	JobStatusFailureUnauthorised    JobStatus = "FINISHED_FAILURE_UNAUTHORISED"
	JobStatusFailureAuthorityLocked JobStatus = "FINISHED_FAILURE_AUTHORITY_LOCKED"
	JobStatusFailureUnknown         JobStatus = "FINISHED_FAILURE_UNKNOWN"
	JobStatusAborted                JobStatus = "ABORTED"
)

// IsActive reports whether a job in this status holds its authority locks.
func (s JobStatus) IsActive() bool {
	return s == JobStatusStarting || s == JobStatusRunning
}

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return !s.IsActive()
}

// JobEvent represents an action that moves a job between statuses.
type JobEvent string

const (
	JobEventRun              JobEvent = "run"
	JobEventSucceed          JobEvent = "succeed"
	JobEventFailValidation   JobEvent = "fail_validation"
	JobEventFailMismatch     JobEvent = "fail_mismatch"
	JobEventFailUnauthorised JobEvent = "fail_unauthorised"
	JobEventFailLocked       JobEvent = "fail_authority_locked"
	JobEventFailUnknown      JobEvent = "fail_unknown"
	JobEventAbort            JobEvent = "abort"
)

// JobTransition defines a valid status change: an event moves a job from Src to Dst.
type JobTransition struct {
	Event JobEvent
	Src   JobStatus
	Dst   JobStatus
}

// JobTransitions defines all valid status changes of a registration job.
// Failures may happen before the job reaches RUNNING (e.g. the worker pool
// rejected it), so every failure event is also accepted from STARTING.
var JobTransitions = []JobTransition{
	{Event: JobEventRun, Src: JobStatusStarting, Dst: JobStatusRunning},
	{Event: JobEventSucceed, Src: JobStatusRunning, Dst: JobStatusFinishedSuccess},

	{Event: JobEventFailValidation, Src: JobStatusStarting, Dst: JobStatusFailureValidation},
	{Event: JobEventFailValidation, Src: JobStatusRunning, Dst: JobStatusFailureValidation},
	{Event: JobEventFailMismatch, Src: JobStatusRunning, Dst: JobStatusFailureMismatch},
	{Event: JobEventFailUnauthorised, Src: JobStatusRunning, Dst: JobStatusFailureUnauthorised},
	{Event: JobEventFailLocked, Src: JobStatusRunning, Dst: JobStatusFailureAuthorityLocked},
	{Event: JobEventFailUnknown, Src: JobStatusStarting, Dst: JobStatusFailureUnknown},
	{Event: JobEventFailUnknown, Src: JobStatusRunning, Dst: JobStatusFailureUnknown},

	{Event: JobEventAbort, Src: JobStatusRunning, Dst: JobStatusAborted},
}

// EventFor returns the event that drives a job into the given terminal status.
func EventFor(dst JobStatus) (JobEvent, bool) {
	for _, t := range JobTransitions {
		if t.Dst == dst {
			return t.Event, true
		}
	}
	return "", false
}

// JobTrigger is the source of a registration job.
type JobTrigger string

const (
	JobTriggerCSVFromS3 JobTrigger = "CSV_FROM_S3"
	JobTriggerAPICall   JobTrigger = "API_CALL"
)

// RegisterJob is one tracked execution of a submission-to-storage reconciliation run.
type RegisterJob struct {
	ID                   int
	Name                 string
	Trigger              JobTrigger
	UploaderID           uuid.UUID
	CorrelationID        string
	Status               JobStatus
	Errors               []ValidationError
	ImpactedAuthorityIDs []int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewRegisterJob creates a job in the initial STARTING status.
func NewRegisterJob(name string, trigger JobTrigger, uploaderID uuid.UUID, correlationID string) RegisterJob {
	now := time.Now().UTC()
	return RegisterJob{
		Name:          name,
		Trigger:       trigger,
		UploaderID:    uploaderID,
		CorrelationID: correlationID,
		Status:        JobStatusStarting,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

package domain

// Outcome tags the result of a registration run.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeValidationErrors
	OutcomeMismatch
	OutcomeUnauthorised
	OutcomeAuthorityLocked
	OutcomeUnknownFailure
)

// JobStatus maps the outcome to the terminal status of its job.
func (o Outcome) JobStatus() JobStatus {
	switch o {
	case OutcomeSuccess:
		return JobStatusFinishedSuccess
	case OutcomeValidationErrors:
		return JobStatusFailureValidation
	case OutcomeMismatch:
		return JobStatusFailureMismatch
	case OutcomeUnauthorised:
		return JobStatusFailureUnauthorised
	case OutcomeAuthorityLocked:
		return JobStatusFailureAuthorityLocked
	default:
		return JobStatusFailureUnknown
	}
}

// RegisterResult is the outcome of a registration run. Failed results never
// carry affected authorities.
type RegisterResult struct {
	Outcome             Outcome
	AffectedAuthorities []LicensingAuthority
	AffectedVRMs        []string
	ValidationErrors    []ValidationError
}

// Success reports whether the registration was applied.
func (r RegisterResult) Success() bool {
	return r.Outcome == OutcomeSuccess
}

// SuccessResult builds a successful result.
func SuccessResult(authorities []LicensingAuthority, vrms []string) RegisterResult {
	return RegisterResult{
		Outcome:             OutcomeSuccess,
		AffectedAuthorities: authorities,
		AffectedVRMs:        vrms,
	}
}

// FailureResult builds a failed result with the given errors.
func FailureResult(outcome Outcome, errs ...ValidationError) RegisterResult {
	return RegisterResult{Outcome: outcome, ValidationErrors: errs}
}

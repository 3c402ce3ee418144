package app

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/neomorfeo/taxireg/internal/domain"
)

const validationErrorsSubject = "Taxi & PHV Database- CSV file error messages"

var validationErrorsBody = template.Must(template.New("validation-errors").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(`Your Taxi & PHV licence file could not be processed.<br>` +
		`Please correct the following errors and upload the file again:<br>` +
		`{{join .Details "<br>"}}`))

// ValidationErrorsNotifier emails the owner of a CSV file that failed
// validation.
type ValidationErrorsNotifier struct {
	sender domain.EmailSender
}

// NewValidationErrorsNotifier creates a notifier. A nil sender disables it.
func NewValidationErrorsNotifier(sender domain.EmailSender) *ValidationErrorsNotifier {
	return &ValidationErrorsNotifier{sender: sender}
}

// Notify sends the error list to ownerEmail. Only jobs that failed on
// validation errors and have a known owner are notified.
func (n *ValidationErrorsNotifier) Notify(ctx context.Context, ownerEmail string, status domain.JobStatus, errs []domain.ValidationError) error {
	if n == nil || n.sender == nil {
		return nil
	}
	if status != domain.JobStatusFailureValidation || ownerEmail == "" {
		return nil
	}

	body, err := prepareBody(errs)
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, ownerEmail, validationErrorsSubject, body)
}

func prepareBody(errs []domain.ValidationError) (string, error) {
	details := make([]string, 0, len(errs))
	for _, e := range errs {
		details = append(details, e.Detail())
	}

	var buf bytes.Buffer
	if err := validationErrorsBody.Execute(&buf, struct{ Details []string }{details}); err != nil {
		return "", fmt.Errorf("rendering validation errors email: %w", err)
	}
	return buf.String(), nil
}

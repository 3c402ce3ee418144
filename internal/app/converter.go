package app

import (
	"time"

	"github.com/neomorfeo/taxireg/internal/domain"
)

// Converter turns raw vehicle rows into validated licences.
type Converter struct {
	now func() time.Time
}

// NewConverter creates a converter that validates dates against the current time.
func NewConverter() *Converter {
	return &Converter{now: time.Now}
}

// Convert validates rows until maxErrors validation errors have been
// collected. The returned error list never exceeds maxErrors. With a zero
// budget nothing is converted at all.
func (c *Converter) Convert(rows []domain.VehicleRow, maxErrors int) ([]domain.Licence, []domain.ValidationError) {
	if maxErrors <= 0 {
		return nil, nil
	}

	now := c.now()
	seen := make(map[domain.UniqueLicenceAttributes]struct{}, len(rows))
	licences := make([]domain.Licence, 0, len(rows))
	var errs []domain.ValidationError

	for _, row := range rows {
		if len(errs) >= maxErrors {
			break
		}

		licence, rowErrs := newRowValidator(row, now).validate()
		if len(rowErrs) > 0 {
			errs = append(errs, rowErrs...)
			continue
		}

		key := licence.UniqueAttributes()
		if _, dup := seen[key]; dup {
			errs = append(errs, domain.ValueError(licence.VRM, domain.MsgDuplicateLicence, row.Line))
			continue
		}
		seen[key] = struct{}{}
		licences = append(licences, licence)
	}

	if len(errs) > maxErrors {
		errs = errs[:maxErrors]
	}
	return licences, errs
}

package app

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/neomorfeo/taxireg/internal/domain"
)

const (
	maxVRMLength           = 7
	maxDescriptionLength   = 100
	maxAuthorityNameLength = 50
	maxPlateNumberLength   = 15
	maxLicenceYears        = 20

	csvDateFormat = "02/01/2006"
)

var vrmPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// rowValidator validates a single raw vehicle row. It collects every problem
// found so uploaders can fix a row in one go.
type rowValidator struct {
	row  domain.VehicleRow
	vrm  string
	now  time.Time
	errs []domain.ValidationError
}

func newRowValidator(row domain.VehicleRow, now time.Time) *rowValidator {
	return &rowValidator{row: row, vrm: normalizeVRM(row.VRM), now: now}
}

func normalizeVRM(vrm string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, vrm))
}

func (v *rowValidator) valueError(msg string) {
	v.errs = append(v.errs, domain.ValueError(v.vrm, msg, v.row.Line))
}

func (v *rowValidator) missing(msg string) {
	v.errs = append(v.errs, domain.MissingFieldError(v.vrm, msg, v.row.Line))
}

func (v *rowValidator) validateVRM() {
	switch {
	case v.vrm == "":
		v.missing("Missing VRM")
	case len(v.vrm) > maxVRMLength || !vrmPattern.MatchString(v.vrm):
		v.valueError("Invalid format of VRM")
	}
}

func (v *rowValidator) validateDates() (start, end time.Time, ok bool) {
	start, startOK := v.parseDate(v.row.Start, "start")
	end, endOK := v.parseDate(v.row.End, "end")
	if !startOK || !endOK {
		return start, end, false
	}

	if end.Before(start) {
		v.valueError("Start date must be before end date")
		return start, end, false
	}

	today := domain.TruncateToDate(v.now)
	valid := true
	if !start.After(today.AddDate(-maxLicenceYears, 0, 0)) {
		v.valueError(fmt.Sprintf("Start date cannot be more than %d years in the past", maxLicenceYears))
		valid = false
	}
	if !end.Before(today.AddDate(maxLicenceYears, 0, 0)) {
		v.valueError(fmt.Sprintf("End date cannot be more than %d years in the future", maxLicenceYears))
		valid = false
	}
	return start, end, valid
}

// parseDate accepts DD/MM/YYYY (CSV only) and ISO dates.
func (v *rowValidator) parseDate(raw, which string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		v.missing(fmt.Sprintf("Missing %s date", which))
		return time.Time{}, false
	}

	if v.row.Trigger == domain.JobTriggerCSVFromS3 {
		if d, err := time.Parse(csvDateFormat, raw); err == nil {
			return d, true
		}
	}
	if d, err := time.Parse(domain.DateFormat, raw); err == nil {
		return d, true
	}

	v.valueError(fmt.Sprintf(
		"Invalid %s date format. Date format must be either ISO (YYYY-MM-DD) or DD/MM/YYYY", which))
	return time.Time{}, false
}

func (v *rowValidator) validateDescription() string {
	d := v.row.Description
	switch {
	case strings.TrimSpace(d) == "":
		v.missing("Missing licence type")
	case len(d) > maxDescriptionLength:
		v.valueError("Licence type too long")
	}
	return d
}

func (v *rowValidator) validateAuthorityName() string {
	name := strings.TrimSpace(v.row.LicensingAuthorityName)
	switch {
	case name == "":
		v.missing("Missing licensing authority name")
	case len(name) > maxAuthorityNameLength:
		v.valueError("Invalid licensing authority name")
	}
	return name
}

func (v *rowValidator) validatePlateNumber() string {
	plate := strings.TrimSpace(v.row.PlateNumber)
	switch {
	case plate == "":
		v.missing("Missing licence plate number")
	case len(plate) > maxPlateNumberLength:
		v.valueError("Invalid licence plate number")
	}
	return plate
}

// validateWheelchairFlag accepts true/false in any case; blank means unknown.
func (v *rowValidator) validateWheelchairFlag() *bool {
	raw := strings.TrimSpace(v.row.WheelchairAccessible)
	if raw == "" {
		return nil
	}
	switch strings.ToLower(raw) {
	case "true":
		b := true
		return &b
	case "false":
		b := false
		return &b
	default:
		v.valueError(domain.MsgInvalidWheelchairFlag)
		return nil
	}
}

// validate runs every field check and builds the licence when the row is clean.
func (v *rowValidator) validate() (domain.Licence, []domain.ValidationError) {
	v.validateVRM()
	start, end, _ := v.validateDates()
	description := v.validateDescription()
	authority := v.validateAuthorityName()
	plate := v.validatePlateNumber()
	wheelchair := v.validateWheelchairFlag()

	if len(v.errs) > 0 {
		return domain.Licence{}, v.errs
	}

	return domain.Licence{
		VRM:                  v.vrm,
		Start:                start,
		End:                  end,
		Description:          description,
		LicensingAuthority:   domain.LicensingAuthority{Name: authority},
		PlateNumber:          plate,
		WheelchairAccessible: wheelchair,
	}, nil
}

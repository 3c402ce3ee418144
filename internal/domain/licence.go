package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateFormat is the ISO layout used for licence validity dates.
const DateFormat = "2006-01-02"

// LicensingAuthority is the body that issued a licence. Names are immutable
// and unique across the register.
type LicensingAuthority struct {
	ID   int
	Name string
}

// Licence is a single taxi/PHV vehicle licence.
type Licence struct {
	ID                   int
	UploaderID           uuid.UUID
	VRM                  string
	Start                time.Time
	End                  time.Time
	Description          string
	LicensingAuthority   LicensingAuthority
	PlateNumber          string
	WheelchairAccessible *bool
}

// UniqueLicenceAttributes identifies "the same licence" across submissions
// and storage. Never persisted.
type UniqueLicenceAttributes struct {
	VRM           string
	Start         string
	End           string
	AuthorityName string
	PlateNumber   string
}

// UniqueAttributes returns the natural key of the licence.
func (l Licence) UniqueAttributes() UniqueLicenceAttributes {
	return UniqueLicenceAttributes{
		VRM:           strings.ToUpper(l.VRM),
		Start:         l.Start.Format(DateFormat),
		End:           l.End.Format(DateFormat),
		AuthorityName: l.LicensingAuthority.Name,
		PlateNumber:   l.PlateNumber,
	}
}

// AttributesDiffer reports whether the mutable attributes of two licences
// with the same natural key differ.
func (l Licence) AttributesDiffer(other Licence) bool {
	if l.Description != other.Description {
		return true
	}
	return !sameFlag(l.WheelchairAccessible, other.WheelchairAccessible)
}

// IsActiveOn reports whether the licence validity period covers the given day.
func (l Licence) IsActiveOn(day time.Time) bool {
	d := TruncateToDate(day)
	return !d.Before(l.Start) && !d.After(l.End)
}

// TruncateToDate drops the time-of-day part, keeping the calendar date in UTC.
func TruncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameFlag(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// VehicleRow is a raw, not yet validated licence record as submitted through
// a CSV file or the REST API.
type VehicleRow struct {
	VRM                    string `json:"vrm"`
	Start                  string `json:"start"`
	End                    string `json:"end"`
	Description            string `json:"taxiOrPHV"`
	LicensingAuthorityName string `json:"licensingAuthorityName"`
	PlateNumber            string `json:"licensePlateNumber"`
	WheelchairAccessible   string `json:"wheelchairAccessibleVehicle,omitempty"`

	Line    int        `json:"-"`
	Trigger JobTrigger `json:"-"`
}

// LicenceInfo summarises the licences held by a single VRM.
type LicenceInfo struct {
	VRM                          string   `json:"vrm"`
	HasAnyOperatingLicenceActive bool     `json:"hasAnyOperatingLicenceActive"`
	WheelchairAccessible         *bool    `json:"wheelchairAccessible"`
	LicensingAuthoritiesNames    []string `json:"licensingAuthoritiesNames"`
}

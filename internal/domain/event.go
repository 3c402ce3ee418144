package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LicenceAction is the kind of change recorded in the licence change log.
type LicenceAction string

const (
	ActionInsert LicenceAction = "I"
	ActionUpdate LicenceAction = "U"
	ActionDelete LicenceAction = "D"
)

// LicenceEvent is one entry of the append-only licence change log, carrying a
// snapshot of the licence at the time of the change.
type LicenceEvent struct {
	LicenceID            int
	VRM                  string
	EventTimestamp       time.Time
	InsertTimestamp      time.Time
	Action               LicenceAction
	UploaderID           uuid.UUID
	LicensingAuthorityID int
	PlateNumber          string
	Start                time.Time
	End                  time.Time
	WheelchairAccessible *bool
	Description          string
}

// IdentityKey groups events that belong to the same licence.
func (e LicenceEvent) IdentityKey() string {
	return fmt.Sprintf("%s|%d|%s|%s|%s",
		e.VRM, e.LicensingAuthorityID, e.PlateNumber,
		e.Start.Format(DateFormat), e.End.Format(DateFormat))
}

// HappenedBefore reports whether the event happened strictly before t.
func (e LicenceEvent) HappenedBefore(t time.Time) bool {
	return e.EventTimestamp.Before(t)
}

// HappenedAfter reports whether the event happened strictly after t.
func (e LicenceEvent) HappenedAfter(t time.Time) bool {
	return e.EventTimestamp.After(t)
}

// OverlapsWindow reports whether the licence was at least partially active
// within [start, end].
func (e LicenceEvent) OverlapsWindow(start, end time.Time) bool {
	return !e.Start.After(TruncateToDate(end)) && !e.End.Before(TruncateToDate(start))
}

// StatusInWindow is the status of a licence event within a reporting window.
type StatusInWindow string

const (
	StatusExisting StatusInWindow = "EXISTING"
	StatusInsert   StatusInWindow = "INSERT"
	StatusUpdate   StatusInWindow = "UPDATE"
	StatusDelete   StatusInWindow = "DELETE"
)

// StatusFor maps a change-log action to its in-window status.
func StatusFor(action LicenceAction) StatusInWindow {
	switch action {
	case ActionInsert:
		return StatusInsert
	case ActionUpdate:
		return StatusUpdate
	default:
		return StatusDelete
	}
}

// ActiveLicenceInReportingWindow is a licence event found relevant to a
// reporting window.
type ActiveLicenceInReportingWindow struct {
	Event  LicenceEvent
	Status StatusInWindow
}

// Label is the wording of the action in a licence history.
func (a LicenceAction) Label() string {
	switch a {
	case ActionInsert:
		return "Created"
	case ActionUpdate:
		return "Updated"
	case ActionDelete:
		return "Removed"
	default:
		return ""
	}
}

// UnknownAuthorityName stands in for an authority that no longer exists.
const UnknownAuthorityName = "UNKNOWN"

// LicenceChange is one entry of a VRM's licence history. Removals carry the
// licence as it was before it was deleted.
type LicenceChange struct {
	ModifyDate             time.Time
	Action                 LicenceAction
	LicensingAuthorityName string
	PlateNumber            string
	Start                  time.Time
	End                    time.Time
	WheelchairAccessible   *bool
}

// HistoryQuery selects a page of a VRM's changes made between two days,
// both inclusive. PageNumber counts from zero.
type HistoryQuery struct {
	VRM        string
	From       time.Time
	To         time.Time
	PageNumber int
	PageSize   int
}

// Offset is the number of changes before the requested page.
func (q HistoryQuery) Offset() int {
	return q.PageNumber * q.PageSize
}

// LicenceHistory is a page of changes with the total number of changes
// matching the query.
type LicenceHistory struct {
	Changes           []LicenceChange
	TotalChangesCount int
}

// PageCount is the number of pages of the given size needed for the
// history.
func (h LicenceHistory) PageCount(pageSize int) int {
	if pageSize < 1 {
		return 0
	}
	return (h.TotalChangesCount + pageSize - 1) / pageSize
}

package app

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/neomorfeo/taxireg/internal/domain"
	"github.com/neomorfeo/taxireg/internal/platform/logger"
)

// Collate reconstructs which licences were at least partially active in the
// reporting window [start, end] (whole days, inclusive) from the licence
// change log.
//
// events MUST be ordered by event timestamp, oldest first. The pass stops at
// the first event after the window and relies on that order for correctness.
func Collate(events []domain.LicenceEvent, start, end time.Time) []domain.ActiveLicenceInReportingWindow {
	windowStart := domain.TruncateToDate(start)
	windowEnd := domain.TruncateToDate(end).Add(24*time.Hour - time.Nanosecond)

	relevant := make(map[string][]domain.ActiveLicenceInReportingWindow, len(events)/4+1)
	total := 0

	for _, e := range events {
		if e.HappenedAfter(windowEnd) {
			break
		}

		key := e.IdentityKey()
		if e.HappenedBefore(windowStart) {
			// History before the window: a delete means the licence did
			// not exist entering the window; anything else that overlaps
			// it was already there.
			if e.Action == domain.ActionDelete {
				total -= len(relevant[key])
				delete(relevant, key)
			} else if e.OverlapsWindow(windowStart, windowEnd) {
				total -= len(relevant[key])
				relevant[key] = []domain.ActiveLicenceInReportingWindow{{Event: e, Status: domain.StatusExisting}}
				total++
			}
			continue
		}

		if e.OverlapsWindow(windowStart, windowEnd) {
			relevant[key] = append(relevant[key], domain.ActiveLicenceInReportingWindow{
				Event:  e,
				Status: domain.StatusFor(e.Action),
			})
			total++
		}
	}

	out := make([]domain.ActiveLicenceInReportingWindow, 0, total)
	for _, entries := range relevant {
		out = append(out, entries...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Event.EventTimestamp.Before(out[j].Event.EventTimestamp)
	})

	logger.Debug("collated licence events",
		zap.Int("events", len(events)),
		zap.Int("matching", len(out)),
	)
	return out
}

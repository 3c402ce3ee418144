package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/neomorfeo/taxireg/internal/domain"
	"github.com/neomorfeo/taxireg/internal/platform/logger"
)

// ReportingService answers audit queries over the licence change log.
type ReportingService struct {
	events      domain.LicenceEventRepository
	authorities domain.AuthorityRepository
	now         func() time.Time
}

// NewReportingService creates a reporting service.
func NewReportingService(events domain.LicenceEventRepository, authorities domain.AuthorityRepository) *ReportingService {
	return &ReportingService{events: events, authorities: authorities, now: time.Now}
}

// ActiveLicencesInReportingWindow returns every licence event relevant to
// the window [start, end], oldest first.
func (s *ReportingService) ActiveLicencesInReportingWindow(ctx context.Context, start, end time.Time) ([]domain.ActiveLicenceInReportingWindow, error) {
	if domain.TruncateToDate(start).After(domain.TruncateToDate(end)) {
		return nil, domain.ErrInvalidWindow
	}

	events, err := s.events.FindUpTo(ctx, end)
	if err != nil {
		return nil, fmt.Errorf("loading licence events: %w", err)
	}
	return Collate(events, start, end), nil
}

// LicensingAuthoritiesOfActiveLicences returns the sorted names of the
// authorities that held an active licence for the VRM on the given day, as
// the register stood at the end of that day. Authorities that no longer
// exist are reported as domain.UnknownAuthorityName.
func (s *ReportingService) LicensingAuthoritiesOfActiveLicences(ctx context.Context, vrm string, day time.Time) ([]string, error) {
	day = domain.TruncateToDate(day)
	if day.After(domain.TruncateToDate(s.now().UTC())) {
		return nil, domain.ErrFutureDate
	}
	vrm = normalizeVRM(vrm)

	events, err := s.events.FindByVRMUpTo(ctx, vrm, day)
	if err != nil {
		return nil, fmt.Errorf("loading licence events of %s: %w", vrm, err)
	}

	// Later events replace earlier ones of the same licence.
	latest := make(map[string]domain.LicenceEvent, len(events))
	for _, e := range events {
		latest[licenceKey(e)] = e
	}

	activeIDs := make(map[int]struct{})
	for _, e := range latest {
		if e.Action == domain.ActionDelete || day.Before(e.Start) || day.After(e.End) {
			continue
		}
		activeIDs[e.LicensingAuthorityID] = struct{}{}
	}
	if len(activeIDs) == 0 {
		return []string{}, nil
	}

	all, err := s.authorities.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading licensing authorities: %w", err)
	}
	byID := make(map[int]string, len(all))
	for _, a := range all {
		byID[a.ID] = a.Name
	}

	seen := make(map[string]struct{}, len(activeIDs))
	names := make([]string, 0, len(activeIDs))
	for id := range activeIDs {
		name, ok := byID[id]
		if !ok {
			name = domain.UnknownAuthorityName
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)

	logger.Info("resolved authorities of active licences",
		zap.String("vrm", vrm),
		zap.Time("date", day),
		zap.Int("authorities", len(names)),
	)
	return names, nil
}

// licenceKey identifies the licence an event belongs to. Events recorded
// before licence ids were logged fall back to the natural key.
func licenceKey(e domain.LicenceEvent) string {
	if e.LicenceID > 0 {
		return fmt.Sprintf("id:%d", e.LicenceID)
	}
	return e.IdentityKey()
}

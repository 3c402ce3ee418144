package app

import (
	"context"
	"fmt"

	"github.com/neomorfeo/taxireg/internal/domain"
)

// HistoryService pages through the licence changes of a single vehicle.
type HistoryService struct {
	history domain.LicenceHistoryRepository
}

// NewHistoryService creates a history service.
func NewHistoryService(history domain.LicenceHistoryRepository) *HistoryService {
	return &HistoryService{history: history}
}

// FindChanges returns the requested page of changes, newest first. A first
// page shorter than the page size is the whole history, so the count query
// is skipped.
func (s *HistoryService) FindChanges(ctx context.Context, q domain.HistoryQuery) (domain.LicenceHistory, error) {
	if q.PageSize < 1 || q.PageNumber < 0 {
		return domain.LicenceHistory{}, domain.ErrInvalidPage
	}
	if domain.TruncateToDate(q.From).After(domain.TruncateToDate(q.To)) {
		return domain.LicenceHistory{}, domain.ErrInvalidWindow
	}
	q.VRM = normalizeVRM(q.VRM)

	changes, err := s.history.FindChanges(ctx, q)
	if err != nil {
		return domain.LicenceHistory{}, fmt.Errorf("loading history of %s: %w", q.VRM, err)
	}
	if q.PageNumber == 0 && len(changes) < q.PageSize {
		return domain.LicenceHistory{Changes: changes, TotalChangesCount: len(changes)}, nil
	}

	total, err := s.history.CountChanges(ctx, q)
	if err != nil {
		return domain.LicenceHistory{}, fmt.Errorf("counting history of %s: %w", q.VRM, err)
	}
	return domain.LicenceHistory{Changes: changes, TotalChangesCount: total}, nil
}

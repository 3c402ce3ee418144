package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/neomorfeo/taxireg/internal/domain"
	"github.com/neomorfeo/taxireg/internal/platform/logger"
)

// RegisterService reconciles submitted licences with the stored ones and
// applies the difference.
type RegisterService struct {
	contexts   *ContextBuilder
	licences   domain.LicenceRepository
	cache      domain.LicenceCache
	compliance domain.ComplianceCache
	metrics    domain.RegistrationMetrics
}

// RegisterServiceOption configures optional collaborators.
type RegisterServiceOption func(*RegisterService)

// WithLicenceCache evicts changed VRMs from the local lookup cache.
func WithLicenceCache(cache domain.LicenceCache) RegisterServiceOption {
	return func(s *RegisterService) { s.cache = cache }
}

// WithComplianceCache purges changed VRMs from the remote compliance cache.
func WithComplianceCache(compliance domain.ComplianceCache) RegisterServiceOption {
	return func(s *RegisterService) { s.compliance = compliance }
}

// WithMetrics records the number of changed licences.
func WithMetrics(metrics domain.RegistrationMetrics) RegisterServiceOption {
	return func(s *RegisterService) { s.metrics = metrics }
}

// NewRegisterService creates a register service.
func NewRegisterService(contexts *ContextBuilder, licences domain.LicenceRepository, opts ...RegisterServiceOption) *RegisterService {
	s := &RegisterService{contexts: contexts, licences: licences}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register replaces the stored licences of every authority present in the
// submission with the submitted ones. Unknown authorities fail the whole
// submission with a mismatch result and nothing is written.
func (s *RegisterService) Register(ctx context.Context, licences []domain.Licence, uploaderID uuid.UUID) (domain.RegisterResult, error) {
	rc, mismatches, err := s.contexts.Build(ctx, licences, uploaderID)
	if err != nil {
		return domain.RegisterResult{}, err
	}
	if len(mismatches) > 0 {
		return domain.FailureResult(domain.OutcomeMismatch, mismatches...), nil
	}

	changes := ComputeChanges(rc)
	if err := s.licences.Apply(ctx, changes); err != nil {
		return domain.RegisterResult{}, fmt.Errorf("applying licence changes: %w", err)
	}
	ctx = context.WithoutCancel(ctx)
	s.recordChanges(ctx, changes)

	affected := make([]domain.LicensingAuthority, 0, len(changes))
	for _, c := range changes {
		affected = append(affected, c.Authority)
	}
	vrms := changedVRMs(changes)

	s.invalidateCaches(ctx, vrms)

	return domain.SuccessResult(affected, vrms), nil
}

// ComputeChanges diffs submitted and current licences per authority. A
// stored licence missing from the submission is deleted, a submitted one
// missing from storage is inserted, and one present in both is updated only
// if its mutable attributes changed.
func ComputeChanges(rc *ReconciliationContext) []domain.AuthorityChanges {
	changes := make([]domain.AuthorityChanges, 0, len(rc.AuthorityOrder))

	for _, id := range rc.AuthorityOrder {
		current := rc.Current[id]
		c := domain.AuthorityChanges{Authority: rc.Authority(id)}

		submittedKeys := make(map[domain.UniqueLicenceAttributes]struct{}, len(rc.Submitted[id]))
		for _, l := range rc.Submitted[id] {
			key := l.UniqueAttributes()
			submittedKeys[key] = struct{}{}

			stored, ok := current[key]
			if !ok {
				c.ToInsert = append(c.ToInsert, l)
				continue
			}
			if stored.AttributesDiffer(l) {
				l.ID = stored.ID
				c.ToUpdate = append(c.ToUpdate, l)
			}
		}

		for key, stored := range current {
			if _, ok := submittedKeys[key]; !ok {
				c.ToDelete = append(c.ToDelete, stored)
			}
		}
		sort.Slice(c.ToDelete, func(i, j int) bool { return c.ToDelete[i].ID < c.ToDelete[j].ID })

		changes = append(changes, c)
	}

	return changes
}

func changedVRMs(changes []domain.AuthorityChanges) []string {
	seen := make(map[string]struct{})
	add := func(ls []domain.Licence) {
		for _, l := range ls {
			seen[l.VRM] = struct{}{}
		}
	}
	for _, c := range changes {
		add(c.ToDelete)
		add(c.ToUpdate)
		add(c.ToInsert)
	}

	vrms := make([]string, 0, len(seen))
	for vrm := range seen {
		vrms = append(vrms, vrm)
	}
	sort.Strings(vrms)
	return vrms
}

func (s *RegisterService) recordChanges(ctx context.Context, changes []domain.AuthorityChanges) {
	if s.metrics == nil {
		return
	}
	var deleted, updated, inserted int
	for _, c := range changes {
		deleted += len(c.ToDelete)
		updated += len(c.ToUpdate)
		inserted += len(c.ToInsert)
	}
	s.metrics.LicencesChanged(ctx, "delete", deleted)
	s.metrics.LicencesChanged(ctx, "update", updated)
	s.metrics.LicencesChanged(ctx, "insert", inserted)
}

// invalidateCaches evicts the local lookup cache and purges the remote
// compliance cache concurrently. Failures are logged and never fail the
// registration.
func (s *RegisterService) invalidateCaches(ctx context.Context, vrms []string) {
	if len(vrms) == 0 {
		return
	}

	var g errgroup.Group
	if s.cache != nil {
		g.Go(func() error {
			if err := s.cache.Evict(ctx, vrms); err != nil {
				return fmt.Errorf("evicting licence cache: %w", err)
			}
			return nil
		})
	}
	if s.compliance != nil {
		g.Go(func() error {
			if err := s.compliance.PurgeCache(ctx, vrms); err != nil {
				return fmt.Errorf("purging compliance cache: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Warn("cache invalidation failed",
			zap.Int("vrm_count", len(vrms)),
			zap.Error(err),
		)
	}
}

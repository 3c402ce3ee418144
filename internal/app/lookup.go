package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/neomorfeo/taxireg/internal/domain"
	"github.com/neomorfeo/taxireg/internal/platform/logger"
)

// LookupService answers "is this vehicle licensed" questions with a
// read-through cache in front of the licence store.
type LookupService struct {
	licences    domain.LicenceRepository
	authorities domain.AuthorityRepository
	cache       domain.LicenceCache
	now         func() time.Time
}

// NewLookupService creates a lookup service. cache may be nil.
func NewLookupService(licences domain.LicenceRepository, authorities domain.AuthorityRepository, cache domain.LicenceCache) *LookupService {
	return &LookupService{licences: licences, authorities: authorities, cache: cache, now: time.Now}
}

// GetLicenceInfo summarises the licences of a VRM. It returns
// domain.ErrLicenceNotFound when the VRM holds no licence at all.
func (s *LookupService) GetLicenceInfo(ctx context.Context, vrm string) (domain.LicenceInfo, error) {
	vrm = normalizeVRM(vrm)

	if s.cache != nil {
		info, ok, err := s.cache.Get(ctx, vrm)
		if err != nil {
			logger.Warn("reading licence cache", zap.String("vrm", vrm), zap.Error(err))
		} else if ok {
			return info, nil
		}
	}

	licences, err := s.licences.FindByVRM(ctx, vrm)
	if err != nil {
		return domain.LicenceInfo{}, fmt.Errorf("loading licences of %s: %w", vrm, err)
	}
	if len(licences) == 0 {
		return domain.LicenceInfo{}, domain.ErrLicenceNotFound
	}

	names, err := s.authorities.FindNamesByVRM(ctx, vrm)
	if err != nil {
		return domain.LicenceInfo{}, fmt.Errorf("loading authority names of %s: %w", vrm, err)
	}

	today := s.now()
	info := domain.LicenceInfo{
		VRM:                          vrm,
		HasAnyOperatingLicenceActive: anyActive(licences, today),
		LicensingAuthoritiesNames:    names,
	}
	info.WheelchairAccessible = wheelchairFlag(licences, info.HasAnyOperatingLicenceActive, today)

	if s.cache != nil {
		if err := s.cache.Set(ctx, info); err != nil {
			logger.Warn("writing licence cache", zap.String("vrm", vrm), zap.Error(err))
		}
	}
	return info, nil
}

// MaxBulkLookupVRMs bounds the number of VRMs in one bulk lookup.
const MaxBulkLookupVRMs = 100

const bulkLookupConcurrency = 8

// GetLicencesInfo looks up several VRMs at once, keyed by normalized VRM.
// VRMs holding no licence are left out.
func (s *LookupService) GetLicencesInfo(ctx context.Context, vrms []string) (map[string]domain.LicenceInfo, error) {
	var (
		mu    sync.Mutex
		infos = make(map[string]domain.LicenceInfo, len(vrms))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkLookupConcurrency)
	for _, vrm := range vrms {
		g.Go(func() error {
			info, err := s.GetLicenceInfo(gctx, vrm)
			if errors.Is(err, domain.ErrLicenceNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			infos[info.VRM] = info
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return infos, nil
}

func anyActive(licences []domain.Licence, day time.Time) bool {
	for _, l := range licences {
		if l.IsActiveOn(day) {
			return true
		}
	}
	return false
}

// wheelchairFlag is true when an active licence is accessible. With no
// active licence it is nil when no licence knows the answer, false otherwise.
func wheelchairFlag(licences []domain.Licence, hasActive bool, day time.Time) *bool {
	if hasActive {
		var known, accessible bool
		for _, l := range licences {
			if !l.IsActiveOn(day) || l.WheelchairAccessible == nil {
				continue
			}
			known = true
			accessible = accessible || *l.WheelchairAccessible
		}
		if !known {
			return nil
		}
		return &accessible
	}

	for _, l := range licences {
		if l.WheelchairAccessible != nil {
			f := false
			return &f
		}
	}
	return nil
}

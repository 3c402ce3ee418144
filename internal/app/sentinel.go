package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/neomorfeo/taxireg/internal/domain"
)

// SecuritySentinel checks whether an uploader may modify a set of licensing
// authorities.
type SecuritySentinel struct {
	authorities domain.AuthorityRepository
}

// NewSecuritySentinel creates a sentinel backed by the authority repository.
func NewSecuritySentinel(authorities domain.AuthorityRepository) *SecuritySentinel {
	return &SecuritySentinel{authorities: authorities}
}

// CheckUploaderPermissions returns an insufficient-permissions error naming,
// in sorted order, every requested authority the uploader may not modify. It
// returns nil when the uploader is allowed to modify all of them.
func (s *SecuritySentinel) CheckUploaderPermissions(ctx context.Context, uploaderID uuid.UUID, names []string) (*domain.ValidationError, error) {
	if len(names) == 0 {
		return nil, nil
	}

	permitted, err := s.authorities.FindAllowedToBeModifiedBy(ctx, uploaderID)
	if err != nil {
		return nil, fmt.Errorf("loading permitted authorities: %w", err)
	}

	allowed := make(map[string]struct{}, len(permitted))
	for _, a := range permitted {
		allowed[a.Name] = struct{}{}
	}

	var denied []string
	for _, name := range distinct(names) {
		if _, ok := allowed[name]; !ok {
			denied = append(denied, name)
		}
	}
	if len(denied) == 0 {
		return nil, nil
	}

	sort.Strings(denied)
	verr := domain.InsufficientPermissionsError(denied)
	return &verr, nil
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// authorityNames returns the distinct authority names of the licences in
// order of first appearance.
func authorityNames(licences []domain.Licence) []string {
	names := make([]string, 0, len(licences))
	for _, l := range licences {
		names = append(names, l.LicensingAuthority.Name)
	}
	return distinct(names)
}

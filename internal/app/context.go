package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/neomorfeo/taxireg/internal/domain"
)

// ReconciliationContext is the current and submitted state of every
// authority touched by a submission.
type ReconciliationContext struct {
	UploaderID        uuid.UUID
	AuthoritiesByName map[string]domain.LicensingAuthority
	// Submitted licences grouped by authority id, in submission order.
	Submitted map[int][]domain.Licence
	// Current stored licences grouped by authority id, then natural key.
	Current map[int]map[domain.UniqueLicenceAttributes]domain.Licence
	// AuthorityOrder lists authority ids in order of first appearance.
	AuthorityOrder []int
}

// ContextBuilder loads the storage state needed to reconcile a submission.
type ContextBuilder struct {
	authorities domain.AuthorityRepository
	licences    domain.LicenceRepository
}

// NewContextBuilder creates a builder backed by the given repositories.
func NewContextBuilder(authorities domain.AuthorityRepository, licences domain.LicenceRepository) *ContextBuilder {
	return &ContextBuilder{authorities: authorities, licences: licences}
}

// Build resolves the authorities of the submitted licences and loads their
// current licences. Licences naming an unknown authority are returned as
// mismatch errors and no context is built.
func (b *ContextBuilder) Build(ctx context.Context, licences []domain.Licence, uploaderID uuid.UUID) (*ReconciliationContext, []domain.ValidationError, error) {
	names := authorityNames(licences)
	found, err := b.authorities.FindByNames(ctx, names)
	if err != nil {
		return nil, nil, fmt.Errorf("loading authorities by name: %w", err)
	}

	byName := make(map[string]domain.LicensingAuthority, len(found))
	for _, a := range found {
		byName[a.Name] = a
	}

	var mismatches []domain.ValidationError
	for _, l := range licences {
		if _, ok := byName[l.LicensingAuthority.Name]; !ok {
			mismatches = append(mismatches, domain.ValueError(l.VRM,
				fmt.Sprintf(domain.MsgAuthorityMismatch, l.LicensingAuthority.Name), 0))
		}
	}
	if len(mismatches) > 0 {
		return nil, mismatches, nil
	}

	rc := &ReconciliationContext{
		UploaderID:        uploaderID,
		AuthoritiesByName: byName,
		Submitted:         make(map[int][]domain.Licence, len(byName)),
		Current:           make(map[int]map[domain.UniqueLicenceAttributes]domain.Licence, len(byName)),
	}

	for _, l := range licences {
		authority := byName[l.LicensingAuthority.Name]
		l.LicensingAuthority = authority
		l.UploaderID = uploaderID
		if _, ok := rc.Submitted[authority.ID]; !ok {
			rc.AuthorityOrder = append(rc.AuthorityOrder, authority.ID)
		}
		rc.Submitted[authority.ID] = append(rc.Submitted[authority.ID], l)
	}

	for _, id := range rc.AuthorityOrder {
		stored, err := b.licences.FindByAuthority(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("loading licences of authority %d: %w", id, err)
		}
		current := make(map[domain.UniqueLicenceAttributes]domain.Licence, len(stored))
		for _, l := range stored {
			current[l.UniqueAttributes()] = l
		}
		rc.Current[id] = current
	}

	return rc, nil, nil
}

// Authority returns the authority with the given id.
func (rc *ReconciliationContext) Authority(id int) domain.LicensingAuthority {
	for _, a := range rc.AuthoritiesByName {
		if a.ID == id {
			return a
		}
	}
	return domain.LicensingAuthority{ID: id}
}

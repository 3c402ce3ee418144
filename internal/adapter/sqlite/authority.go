package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/neomorfeo/taxireg/internal/domain"
)

// Compile-time check: AuthorityRepository implements domain.AuthorityRepository.
var _ domain.AuthorityRepository = (*AuthorityRepository)(nil)

// AuthorityRepository implements domain.AuthorityRepository using SQLite.
type AuthorityRepository struct {
	db *sql.DB
}

// Create registers a new licensing authority.
func (r *AuthorityRepository) Create(ctx context.Context, name string) (domain.LicensingAuthority, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO licensing_authority (name) VALUES (?)`, name)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.LicensingAuthority{}, fmt.Errorf("licensing authority %q already exists: %w", name, err)
		}
		return domain.LicensingAuthority{}, fmt.Errorf("inserting licensing authority: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.LicensingAuthority{}, fmt.Errorf("reading authority id: %w", err)
	}
	return domain.LicensingAuthority{ID: int(id), Name: name}, nil
}

// GrantPermission allows the uploader to modify the authority's licences.
func (r *AuthorityRepository) GrantPermission(ctx context.Context, uploaderID uuid.UUID, authorityID int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO authority_permission (licensing_authority_id, uploader_id) VALUES (?, ?)`,
		authorityID, uploaderID.String(),
	)
	if err != nil {
		return fmt.Errorf("granting permission: %w", err)
	}
	return nil
}

func (r *AuthorityRepository) FindAll(ctx context.Context) ([]domain.LicensingAuthority, error) {
	return r.query(ctx, `SELECT id, name FROM licensing_authority ORDER BY id`)
}

func (r *AuthorityRepository) FindByNames(ctx context.Context, names []string) ([]domain.LicensingAuthority, error) {
	if len(names) == 0 {
		return nil, nil
	}
	return r.query(ctx,
		`SELECT id, name FROM licensing_authority WHERE name IN (`+inClause(len(names))+`) ORDER BY id`,
		stringArgs(names)...,
	)
}

func (r *AuthorityRepository) FindAllowedToBeModifiedBy(ctx context.Context, uploaderID uuid.UUID) ([]domain.LicensingAuthority, error) {
	return r.query(ctx,
		`SELECT a.id, a.name FROM licensing_authority a
		 JOIN authority_permission p ON p.licensing_authority_id = a.id
		 WHERE p.uploader_id = ? ORDER BY a.id`,
		uploaderID.String(),
	)
}

func (r *AuthorityRepository) FindNamesByVRM(ctx context.Context, vrm string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT a.name FROM licensing_authority a
		 JOIN licence l ON l.licensing_authority_id = a.id
		 WHERE l.vrm = ? ORDER BY a.name`,
		vrm,
	)
	if err != nil {
		return nil, fmt.Errorf("finding authority names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning authority name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *AuthorityRepository) query(ctx context.Context, query string, args ...any) ([]domain.LicensingAuthority, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying licensing authorities: %w", err)
	}
	defer rows.Close()

	var authorities []domain.LicensingAuthority
	for rows.Next() {
		var a domain.LicensingAuthority
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, fmt.Errorf("scanning licensing authority: %w", err)
		}
		authorities = append(authorities, a)
	}
	return authorities, rows.Err()
}

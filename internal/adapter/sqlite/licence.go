package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/neomorfeo/taxireg/internal/domain"
)

// Compile-time check: LicenceRepository implements domain.LicenceRepository.
var _ domain.LicenceRepository = (*LicenceRepository)(nil)

// LicenceRepository implements domain.LicenceRepository using SQLite. Every
// write fires a trigger that appends to licence_event.
type LicenceRepository struct {
	db *sql.DB
}

const selectLicence = `SELECT l.id, l.uploader_id, l.vrm, l.start_date, l.end_date, l.description,
	a.id, a.name, l.plate_number, l.wheelchair_accessible
	FROM licence l JOIN licensing_authority a ON a.id = l.licensing_authority_id`

func (r *LicenceRepository) FindByAuthority(ctx context.Context, authorityID int) ([]domain.Licence, error) {
	return r.query(ctx, selectLicence+` WHERE l.licensing_authority_id = ? ORDER BY l.id`, authorityID)
}

func (r *LicenceRepository) FindByVRM(ctx context.Context, vrm string) ([]domain.Licence, error) {
	return r.query(ctx, selectLicence+` WHERE l.vrm = ? ORDER BY l.id`, vrm)
}

// Apply writes deletes first, then updates, then inserts for each authority.
// Nothing is written if any statement fails.
func (r *LicenceRepository) Apply(ctx context.Context, changes []domain.AuthorityChanges) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, c := range changes {
			if err := deleteLicences(ctx, tx, c.ToDelete); err != nil {
				return err
			}
			if err := updateLicences(ctx, tx, c.ToUpdate); err != nil {
				return err
			}
			if err := insertLicences(ctx, tx, c.Authority.ID, c.ToInsert); err != nil {
				return err
			}
		}
		return nil
	})
}

func deleteLicences(ctx context.Context, tx *sql.Tx, licences []domain.Licence) error {
	for _, l := range licences {
		if _, err := tx.ExecContext(ctx, `DELETE FROM licence WHERE id = ?`, l.ID); err != nil {
			return fmt.Errorf("deleting licence %d: %w", l.ID, err)
		}
	}
	return nil
}

func updateLicences(ctx context.Context, tx *sql.Tx, licences []domain.Licence) error {
	for _, l := range licences {
		_, err := tx.ExecContext(ctx,
			`UPDATE licence SET uploader_id = ?, description = ?, wheelchair_accessible = ? WHERE id = ?`,
			l.UploaderID.String(), l.Description, nullBool(l.WheelchairAccessible), l.ID,
		)
		if err != nil {
			return fmt.Errorf("updating licence %d: %w", l.ID, err)
		}
	}
	return nil
}

func insertLicences(ctx context.Context, tx *sql.Tx, authorityID int, licences []domain.Licence) error {
	if len(licences) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO licence (uploader_id, vrm, start_date, end_date, description,
		 licensing_authority_id, plate_number, wheelchair_accessible)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing licence insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range licences {
		_, err := stmt.ExecContext(ctx,
			l.UploaderID.String(), l.VRM,
			l.Start.Format(dateFormat), l.End.Format(dateFormat),
			l.Description, authorityID, l.PlateNumber, nullBool(l.WheelchairAccessible),
		)
		if err != nil {
			return fmt.Errorf("inserting licence %s: %w", l.VRM, err)
		}
	}
	return nil
}

func (r *LicenceRepository) query(ctx context.Context, query string, args ...any) ([]domain.Licence, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying licences: %w", err)
	}
	defer rows.Close()

	var licences []domain.Licence
	for rows.Next() {
		l, err := scanLicence(rows)
		if err != nil {
			return nil, err
		}
		licences = append(licences, l)
	}
	return licences, rows.Err()
}

func scanLicence(rows *sql.Rows) (domain.Licence, error) {
	var (
		l                    domain.Licence
		uploaderID           string
		start, end           string
		wheelchairAccessible sql.NullBool
	)
	err := rows.Scan(&l.ID, &uploaderID, &l.VRM, &start, &end, &l.Description,
		&l.LicensingAuthority.ID, &l.LicensingAuthority.Name, &l.PlateNumber, &wheelchairAccessible)
	if err != nil {
		return domain.Licence{}, fmt.Errorf("scanning licence row: %w", err)
	}

	l.UploaderID, _ = uuid.Parse(uploaderID)
	l.Start = parseDate(start)
	l.End = parseDate(end)
	l.WheelchairAccessible = boolPtr(wheelchairAccessible)
	return l, nil
}

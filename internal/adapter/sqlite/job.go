package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/neomorfeo/taxireg/internal/domain"
)

// Compile-time check: JobRepository implements domain.JobRepository.
var _ domain.JobRepository = (*JobRepository)(nil)

// JobRepository implements domain.JobRepository using SQLite. Authority locks
// are the register_job_authority rows of STARTING and RUNNING jobs.
type JobRepository struct {
	db *sql.DB
}

func (r *JobRepository) Insert(ctx context.Context, job domain.RegisterJob) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO register_job (name, job_trigger, uploader_id, correlation_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.Name, string(job.Trigger), job.UploaderID.String(), job.CorrelationID, string(job.Status),
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, &domain.JobNameConflictError{Name: job.Name}
		}
		return 0, fmt.Errorf("inserting register job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading register job id: %w", err)
	}
	return int(id), nil
}

const selectJob = `SELECT id, name, job_trigger, uploader_id, correlation_id, status, errors, created_at, updated_at
	FROM register_job`

func (r *JobRepository) FindByID(ctx context.Context, id int) (domain.RegisterJob, error) {
	return r.find(ctx, selectJob+` WHERE id = ?`, id)
}

func (r *JobRepository) FindByName(ctx context.Context, name string) (domain.RegisterJob, error) {
	return r.find(ctx, selectJob+` WHERE name = ?`, name)
}

func (r *JobRepository) UpdateStatus(ctx context.Context, id int, status domain.JobStatus) error {
	return r.setStatus(ctx, r.db, id, status)
}

// LockAuthorities checks for competing active jobs and records the locks in
// the same transaction.
func (r *JobRepository) LockAuthorities(ctx context.Context, id int, authorityIDs []int) error {
	if len(authorityIDs) == 0 {
		return nil
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		count, err := countActiveJobs(ctx, tx, id, authorityIDs)
		if err != nil {
			return err
		}
		if count > 0 {
			return &domain.AuthorityUnavailableError{AuthorityIDs: authorityIDs}
		}
		return replaceAuthorities(ctx, tx, id, authorityIDs)
	})
}

// Finish writes the terminal state. A nil affectedAuthorityIDs keeps the
// locked authorities on record.
func (r *JobRepository) Finish(ctx context.Context, id int, status domain.JobStatus, errs []domain.ValidationError, affectedAuthorityIDs []int) error {
	var encoded sql.NullString
	if len(errs) > 0 {
		b, err := json.Marshal(errs)
		if err != nil {
			return fmt.Errorf("encoding job errors: %w", err)
		}
		encoded = sql.NullString{String: string(b), Valid: true}
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE register_job SET status = ?, errors = ?, updated_at = ? WHERE id = ?`,
			string(status), encoded, formatTime(time.Now()), id,
		)
		if err != nil {
			return fmt.Errorf("finishing register job: %w", err)
		}
		if err := requireRow(res); err != nil {
			return err
		}
		if affectedAuthorityIDs == nil {
			return nil
		}
		return replaceAuthorities(ctx, tx, id, affectedAuthorityIDs)
	})
}

func (r *JobRepository) CountActiveJobs(ctx context.Context, authorityIDs []int) (int, error) {
	if len(authorityIDs) == 0 {
		return 0, nil
	}
	return countActiveJobs(ctx, r.db, 0, authorityIDs)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func countActiveJobs(ctx context.Context, q querier, excludeID int, authorityIDs []int) (int, error) {
	args := append([]any{string(domain.JobStatusStarting), string(domain.JobStatusRunning), excludeID}, intArgs(authorityIDs)...)

	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT j.id) FROM register_job j
		 JOIN register_job_authority ja ON ja.register_job_id = j.id
		 WHERE j.status IN (?, ?) AND j.id != ?
		 AND ja.licensing_authority_id IN (`+inClause(len(authorityIDs))+`)`,
		args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting active jobs: %w", err)
	}
	return count, nil
}

func replaceAuthorities(ctx context.Context, tx *sql.Tx, id int, authorityIDs []int) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM register_job_authority WHERE register_job_id = ?`, id); err != nil {
		return fmt.Errorf("clearing job authorities: %w", err)
	}
	for _, authorityID := range authorityIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO register_job_authority (register_job_id, licensing_authority_id) VALUES (?, ?)`,
			id, authorityID,
		); err != nil {
			return fmt.Errorf("recording job authority: %w", err)
		}
	}
	return nil
}

func (r *JobRepository) setStatus(ctx context.Context, q querier, id int, status domain.JobStatus) error {
	res, err := q.ExecContext(ctx,
		`UPDATE register_job SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("updating register job status: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *JobRepository) find(ctx context.Context, query string, arg any) (domain.RegisterJob, error) {
	var (
		job                  domain.RegisterJob
		trigger, uploaderID  string
		status               string
		errs                 sql.NullString
		createdAt, updatedAt string
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&job.ID, &job.Name, &trigger, &uploaderID, &job.CorrelationID, &status, &errs, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RegisterJob{}, domain.ErrJobNotFound
		}
		return domain.RegisterJob{}, fmt.Errorf("scanning register job: %w", err)
	}

	job.Trigger = domain.JobTrigger(trigger)
	job.UploaderID, _ = uuid.Parse(uploaderID)
	job.Status = domain.JobStatus(status)
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	if errs.Valid {
		if err := json.Unmarshal([]byte(errs.String), &job.Errors); err != nil {
			return domain.RegisterJob{}, fmt.Errorf("decoding job errors: %w", err)
		}
	}

	authorityIDs, err := r.authorityIDs(ctx, job.ID)
	if err != nil {
		return domain.RegisterJob{}, err
	}
	job.ImpactedAuthorityIDs = authorityIDs
	return job, nil
}

func (r *JobRepository) authorityIDs(ctx context.Context, id int) ([]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT licensing_authority_id FROM register_job_authority
		 WHERE register_job_id = ? ORDER BY licensing_authority_id`, id)
	if err != nil {
		return nil, fmt.Errorf("querying job authorities: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var authorityID int
		if err := rows.Scan(&authorityID); err != nil {
			return nil, fmt.Errorf("scanning job authority: %w", err)
		}
		ids = append(ids, authorityID)
	}
	return ids, rows.Err()
}

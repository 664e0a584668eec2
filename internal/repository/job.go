package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/emilianohg/internhub/internal/models"
)

type JobRepo struct {
	db *sql.DB
}

func NewJobRepo(db *sql.DB) *JobRepo {
	return &JobRepo{db: db}
}

const jobColumns = `id, company_id, title, status, view_count, application_count,
	interview_count, hire_count, version, created_at`

func scanJob(row interface{ Scan(...interface{}) error }, j *models.Job) error {
	return row.Scan(
		&j.ID, &j.CompanyID, &j.Title, &j.Status, &j.ViewCount, &j.ApplicationCount,
		&j.InterviewCount, &j.HireCount, &j.Version, &j.CreatedAt,
	)
}

func (r *JobRepo) Create(ctx context.Context, companyID int64, title, status string, createdAt time.Time) (*models.Job, error) {
	if status == "" {
		status = models.JobDraft
	}
	result, err := r.db.ExecContext(ctx,
		"INSERT INTO jobs (company_id, title, status, created_at) VALUES (?, ?, ?, ?)",
		companyID, title, status, stamp(createdAt),
	)
	if err != nil {
		return nil, errors.Wrap(err, "insert job")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "insert job")
	}

	return r.GetByID(ctx, id)
}

func (r *JobRepo) GetByID(ctx context.Context, id int64) (*models.Job, error) {
	var j models.Job
	err := scanJob(r.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id), &j)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select job")
	}
	return &j, nil
}

// GetByIDs is the in-set fetch used to attach job titles.
func (r *JobRepo) GetByIDs(ctx context.Context, ids []int64) ([]models.Job, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+jobColumns+" FROM jobs WHERE id IN ("+placeholders(len(ids))+")",
		int64Args(ids)...,
	)
	if err != nil {
		return nil, errors.Wrap(err, "select jobs by id")
	}
	defer rows.Close()
	return r.scanJobs(rows)
}

// GetByCompanyID lists the company's jobs newest first, optionally by status.
func (r *JobRepo) GetByCompanyID(ctx context.Context, companyID int64, status string) ([]models.Job, error) {
	w := &where{}
	w.add("company_id = ?", companyID)
	if status != "" {
		w.add("status = ?", status)
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+jobColumns+" FROM jobs"+w.String()+" ORDER BY created_at DESC, id DESC",
		w.args...,
	)
	if err != nil {
		return nil, errors.Wrap(err, "select jobs")
	}
	defer rows.Close()
	return r.scanJobs(rows)
}

func (r *JobRepo) Count(ctx context.Context, companyID int64, status string) (int, error) {
	w := &where{}
	w.add("company_id = ?", companyID)
	if status != "" {
		w.add("status = ?", status)
	}
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs"+w.String(), w.args...).Scan(&n)
	return n, errors.Wrap(err, "count jobs")
}

// CompareAndSetStatus moves a job from expected to next. It reports false
// when the stored status no longer equals expected.
func (r *JobRepo) CompareAndSetStatus(ctx context.Context, id int64, expected, next string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE jobs SET status = ?, version = version + 1 WHERE id = ? AND status = ?",
		next, id, expected,
	)
	if err != nil {
		return false, errors.Wrap(err, "update job status")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "update job status")
	}
	return n == 1, nil
}

func (r *JobRepo) scanJobs(rows *sql.Rows) ([]models.Job, error) {
	var jobs []models.Job
	for rows.Next() {
		var j models.Job
		if err := scanJob(rows, &j); err != nil {
			return nil, errors.Wrap(err, "scan job")
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

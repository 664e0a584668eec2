package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/emilianohg/internhub/internal/models"
)

type InterviewRepo struct {
	db *sql.DB
}

func NewInterviewRepo(db *sql.DB) *InterviewRepo {
	return &InterviewRepo{db: db}
}

const interviewColumns = `id, company_id, user_id, job_id, scheduled_date, scheduled_time,
	interview_type, location, status, created_at`

func (r *InterviewRepo) Create(ctx context.Context, iv models.Interview) (*models.Interview, error) {
	if iv.Status == "" {
		iv.Status = "scheduled"
	}
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO interviews (company_id, user_id, job_id, scheduled_date, scheduled_time,
			interview_type, location, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, iv.CompanyID, iv.UserID, iv.JobID, iv.ScheduledDate, iv.ScheduledTime,
		iv.InterviewType, iv.Location, iv.Status, stamp(iv.CreatedAt))
	if err != nil {
		return nil, errors.Wrap(err, "insert interview")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "insert interview")
	}

	var out models.Interview
	err = r.scanOne(r.db.QueryRowContext(ctx, "SELECT "+interviewColumns+" FROM interviews WHERE id = ?", id), &out)
	if err != nil {
		return nil, errors.Wrap(err, "select interview")
	}
	return &out, nil
}

// GetByCompanyID lists interviews newest first.
func (r *InterviewRepo) GetByCompanyID(ctx context.Context, companyID int64) ([]models.Interview, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+interviewColumns+`
		FROM interviews
		WHERE company_id = ?
		ORDER BY created_at DESC, id DESC
	`, companyID)
	if err != nil {
		return nil, errors.Wrap(err, "select interviews")
	}
	defer rows.Close()

	var interviews []models.Interview
	for rows.Next() {
		var iv models.Interview
		if err := r.scanOne(rows, &iv); err != nil {
			return nil, errors.Wrap(err, "scan interview")
		}
		interviews = append(interviews, iv)
	}
	return interviews, rows.Err()
}

// CountUpcoming counts scheduled interviews on or after fromDate (YYYY-MM-DD).
func (r *InterviewRepo) CountUpcoming(ctx context.Context, companyID int64, fromDate string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM interviews
		WHERE company_id = ? AND status = 'scheduled' AND scheduled_date >= ?
	`, companyID, fromDate).Scan(&n)
	return n, errors.Wrap(err, "count interviews")
}

func (r *InterviewRepo) scanOne(row interface{ Scan(...interface{}) error }, iv *models.Interview) error {
	return row.Scan(
		&iv.ID, &iv.CompanyID, &iv.UserID, &iv.JobID, &iv.ScheduledDate, &iv.ScheduledTime,
		&iv.InterviewType, &iv.Location, &iv.Status, &iv.CreatedAt,
	)
}

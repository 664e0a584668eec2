package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/emilianohg/internhub/internal/models"
)

type ApplicationRepo struct {
	db *sql.DB
}

func NewApplicationRepo(db *sql.DB) *ApplicationRepo {
	return &ApplicationRepo{db: db}
}

// ApplicationFilter selects applications. Zero fields are not filtered on.
type ApplicationFilter struct {
	CompanyID int64
	JobID     int64
	UserID    string
	Status    string
	Limit     int
}

func (f ApplicationFilter) where() *where {
	w := &where{}
	if f.CompanyID != 0 {
		w.add("company_id = ?", f.CompanyID)
	}
	if f.JobID != 0 {
		w.add("job_id = ?", f.JobID)
	}
	if f.UserID != "" {
		w.add("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	return w
}

const applicationColumns = "id, user_id, job_id, company_id, status, version, created_at, updated_at"

func scanApplication(row interface{ Scan(...interface{}) error }, a *models.Application) error {
	return row.Scan(&a.ID, &a.UserID, &a.JobID, &a.CompanyID, &a.Status, &a.Version, &a.CreatedAt, &a.UpdatedAt)
}

func (r *ApplicationRepo) Create(ctx context.Context, a models.Application) (*models.Application, error) {
	if a.Status == "" {
		a.Status = models.StatusScreening
	}
	created := stamp(a.CreatedAt)
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO applications (user_id, job_id, company_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.UserID, a.JobID, a.CompanyID, a.Status, created, created)
	if err != nil {
		return nil, errors.Wrap(err, "insert application")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "insert application")
	}

	return r.GetByID(ctx, id)
}

func (r *ApplicationRepo) GetByID(ctx context.Context, id int64) (*models.Application, error) {
	var a models.Application
	err := scanApplication(r.db.QueryRowContext(ctx,
		"SELECT "+applicationColumns+" FROM applications WHERE id = ?", id), &a)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select application")
	}
	return &a, nil
}

// List returns matching applications newest first.
func (r *ApplicationRepo) List(ctx context.Context, f ApplicationFilter) ([]models.Application, error) {
	w := f.where()
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+applicationColumns+" FROM applications"+w.String()+
			" ORDER BY created_at DESC, id DESC"+limitClause(f.Limit),
		w.args...,
	)
	if err != nil {
		return nil, errors.Wrap(err, "select applications")
	}
	defer rows.Close()

	var apps []models.Application
	for rows.Next() {
		var a models.Application
		if err := scanApplication(rows, &a); err != nil {
			return nil, errors.Wrap(err, "scan application")
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

func (r *ApplicationRepo) Count(ctx context.Context, f ApplicationFilter) (int, error) {
	w := f.where()
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM applications"+w.String(), w.args...).Scan(&n)
	return n, errors.Wrap(err, "count applications")
}

// FindActive returns the user's non-rejected application to jobID, if any.
func (r *ApplicationRepo) FindActive(ctx context.Context, userID string, jobID int64) (*models.Application, error) {
	var a models.Application
	err := scanApplication(r.db.QueryRowContext(ctx,
		"SELECT "+applicationColumns+" FROM applications WHERE user_id = ? AND job_id = ? AND status != ? ORDER BY id LIMIT 1",
		userID, jobID, models.StatusRejected), &a)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select active application")
	}
	return &a, nil
}

type ApplicationCounts struct {
	Applications int
	Hires        int
}

// CountsByUser groups application and hire counts for userIDs in one query.
// Users with no applications are absent from the map.
func (r *ApplicationRepo) CountsByUser(ctx context.Context, userIDs []string) (map[string]ApplicationCounts, error) {
	counts := make(map[string]ApplicationCounts)
	if len(userIDs) == 0 {
		return counts, nil
	}

	args := append([]interface{}{models.StatusAccepted}, stringArgs(userIDs)...)
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id,
		       COUNT(*) AS application_count,
		       SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS hire_count
		FROM applications
		WHERE user_id IN (`+placeholders(len(userIDs))+`)
		GROUP BY user_id
	`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "count applications by user")
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		var c ApplicationCounts
		if err := rows.Scan(&userID, &c.Applications, &c.Hires); err != nil {
			return nil, errors.Wrap(err, "scan application counts")
		}
		counts[userID] = c
	}
	return counts, rows.Err()
}

// CompareAndSetStatus moves an application from expected to next. It reports
// false when the stored status no longer equals expected.
func (r *ApplicationRepo) CompareAndSetStatus(ctx context.Context, id int64, expected, next string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE applications
		SET status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND status = ?
	`, next, stamp(at), id, expected)
	if err != nil {
		return false, errors.Wrap(err, "update application status")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "update application status")
	}
	return n == 1, nil
}

package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/emilianohg/internhub/internal/models"
)

type CompanyRepo struct {
	db *sql.DB
}

func NewCompanyRepo(db *sql.DB) *CompanyRepo {
	return &CompanyRepo{db: db}
}

func (r *CompanyRepo) Create(ctx context.Context, name, industry string) (*models.Company, error) {
	result, err := r.db.ExecContext(ctx,
		"INSERT INTO companies (name, industry, created_at) VALUES (?, ?, ?)",
		name, industry, nowUTC(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "insert company")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "insert company")
	}

	return r.GetByID(ctx, id)
}

func (r *CompanyRepo) GetByID(ctx context.Context, id int64) (*models.Company, error) {
	var c models.Company
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, industry, created_at FROM companies WHERE id = ?",
		id,
	).Scan(&c.ID, &c.Name, &c.Industry, &c.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select company")
	}
	return &c, nil
}

// GetByIDs fetches companies in one IN query. Missing ids are simply absent.
func (r *CompanyRepo) GetByIDs(ctx context.Context, ids []int64) ([]models.Company, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, industry, created_at FROM companies WHERE id IN ("+placeholders(len(ids))+")",
		int64Args(ids)...,
	)
	if err != nil {
		return nil, errors.Wrap(err, "select companies by id")
	}
	defer rows.Close()

	var companies []models.Company
	for rows.Next() {
		var c models.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.Industry, &c.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan company")
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

func (r *CompanyRepo) Update(ctx context.Context, id int64, name, industry string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE companies SET name = ?, industry = ? WHERE id = ?", name, industry, id)
	return errors.Wrap(err, "update company")
}

func (r *CompanyRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM companies WHERE id = ?", id)
	return errors.Wrap(err, "delete company")
}

type CompanyWithStats struct {
	models.Company
	JobCount         int
	PublishedJobs    int
	ApplicationCount int
}

func (r *CompanyRepo) GetAllWithStats(ctx context.Context) ([]CompanyWithStats, error) {
	query := `
		SELECT
			c.id, c.name, c.industry, c.created_at,
			COUNT(DISTINCT j.id) AS job_count,
			COUNT(DISTINCT CASE WHEN j.status = 'published' THEN j.id END) AS published_jobs,
			COUNT(DISTINCT a.id) AS application_count
		FROM companies c
		LEFT JOIN jobs j ON j.company_id = c.id
		LEFT JOIN applications a ON a.company_id = c.id
		GROUP BY c.id
		ORDER BY c.name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "select companies with stats")
	}
	defer rows.Close()

	var companies []CompanyWithStats
	for rows.Next() {
		var c CompanyWithStats
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Industry, &c.CreatedAt,
			&c.JobCount, &c.PublishedJobs, &c.ApplicationCount,
		); err != nil {
			return nil, errors.Wrap(err, "scan company")
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

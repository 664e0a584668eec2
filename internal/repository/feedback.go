package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/emilianohg/internhub/internal/models"
)

type FeedbackTemplateRepo struct {
	db *sql.DB
}

func NewFeedbackTemplateRepo(db *sql.DB) *FeedbackTemplateRepo {
	return &FeedbackTemplateRepo{db: db}
}

func (r *FeedbackTemplateRepo) Create(ctx context.Context, companyID int64, name string, categories []string) (*models.FeedbackTemplate, error) {
	if categories == nil {
		categories = []string{}
	}
	categoriesJSON, err := json.Marshal(categories)
	if err != nil {
		return nil, errors.Wrap(err, "encode template categories")
	}

	result, err := r.db.ExecContext(ctx,
		"INSERT INTO feedback_templates (company_id, name, categories, created_at) VALUES (?, ?, ?, ?)",
		companyID, name, string(categoriesJSON), nowUTC(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "insert feedback template")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "insert feedback template")
	}

	templates, err := r.GetByIDs(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, errors.Errorf("feedback template %d vanished after insert", id)
	}
	return &templates[0], nil
}

func (r *FeedbackTemplateRepo) GetByCompanyID(ctx context.Context, companyID int64) ([]models.FeedbackTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, company_id, name, categories, created_at
		FROM feedback_templates
		WHERE company_id = ?
		ORDER BY name, id
	`, companyID)
	if err != nil {
		return nil, errors.Wrap(err, "select feedback templates")
	}
	defer rows.Close()
	return r.scanTemplates(rows)
}

func (r *FeedbackTemplateRepo) GetByIDs(ctx context.Context, ids []int64) ([]models.FeedbackTemplate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, company_id, name, categories, created_at FROM feedback_templates WHERE id IN ("+placeholders(len(ids))+")",
		int64Args(ids)...,
	)
	if err != nil {
		return nil, errors.Wrap(err, "select feedback templates by id")
	}
	defer rows.Close()
	return r.scanTemplates(rows)
}

func (r *FeedbackTemplateRepo) scanTemplates(rows *sql.Rows) ([]models.FeedbackTemplate, error) {
	var templates []models.FeedbackTemplate
	for rows.Next() {
		var t models.FeedbackTemplate
		var categoriesJSON string
		if err := rows.Scan(&t.ID, &t.CompanyID, &t.Name, &categoriesJSON, &t.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan feedback template")
		}
		if err := json.Unmarshal([]byte(categoriesJSON), &t.Categories); err != nil {
			return nil, errors.Wrapf(err, "decode categories of template %d", t.ID)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

type FeedbackRepo struct {
	db *sql.DB
}

func NewFeedbackRepo(db *sql.DB) *FeedbackRepo {
	return &FeedbackRepo{db: db}
}

const feedbackColumns = `id, student_id, company_id, job_id, template_id, ratings, comments,
	overall_comment, overall_rating, created_at, updated_at`

func (r *FeedbackRepo) Create(ctx context.Context, f models.Feedback) (*models.Feedback, error) {
	if f.Ratings == nil {
		f.Ratings = map[string]int{}
	}
	if f.Comments == nil {
		f.Comments = map[string]string{}
	}
	ratingsJSON, err := json.Marshal(f.Ratings)
	if err != nil {
		return nil, errors.Wrap(err, "encode ratings")
	}
	commentsJSON, err := json.Marshal(f.Comments)
	if err != nil {
		return nil, errors.Wrap(err, "encode comments")
	}

	created := stamp(f.CreatedAt)
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO feedbacks (student_id, company_id, job_id, template_id, ratings, comments,
			overall_comment, overall_rating, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.StudentID, f.CompanyID, f.JobID, f.TemplateID, string(ratingsJSON), string(commentsJSON),
		f.OverallComment, f.OverallRating, created, created)
	if err != nil {
		return nil, errors.Wrap(err, "insert feedback")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "insert feedback")
	}

	rows, err := r.db.QueryContext(ctx, "SELECT "+feedbackColumns+" FROM feedbacks WHERE id = ?", id)
	if err != nil {
		return nil, errors.Wrap(err, "select feedback")
	}
	defer rows.Close()
	out, err := r.scanFeedbacks(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.Errorf("feedback %d vanished after insert", id)
	}
	return &out[0], nil
}

// GetByCompanyID lists feedbacks newest first.
func (r *FeedbackRepo) GetByCompanyID(ctx context.Context, companyID int64) ([]models.Feedback, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+feedbackColumns+`
		FROM feedbacks
		WHERE company_id = ?
		ORDER BY created_at DESC, id DESC
	`, companyID)
	if err != nil {
		return nil, errors.Wrap(err, "select feedbacks")
	}
	defer rows.Close()
	return r.scanFeedbacks(rows)
}

func (r *FeedbackRepo) Count(ctx context.Context, companyID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feedbacks WHERE company_id = ?", companyID).Scan(&n)
	return n, errors.Wrap(err, "count feedbacks")
}

func (r *FeedbackRepo) scanFeedbacks(rows *sql.Rows) ([]models.Feedback, error) {
	var feedbacks []models.Feedback
	for rows.Next() {
		var f models.Feedback
		var ratingsJSON, commentsJSON string
		if err := rows.Scan(
			&f.ID, &f.StudentID, &f.CompanyID, &f.JobID, &f.TemplateID, &ratingsJSON, &commentsJSON,
			&f.OverallComment, &f.OverallRating, &f.CreatedAt, &f.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan feedback")
		}
		if err := json.Unmarshal([]byte(ratingsJSON), &f.Ratings); err != nil {
			return nil, errors.Wrapf(err, "decode ratings of feedback %d", f.ID)
		}
		if err := json.Unmarshal([]byte(commentsJSON), &f.Comments); err != nil {
			return nil, errors.Wrapf(err, "decode comments of feedback %d", f.ID)
		}
		feedbacks = append(feedbacks, f)
	}
	return feedbacks, rows.Err()
}

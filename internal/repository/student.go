package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/emilianohg/internhub/internal/models"
)

type StudentRepo struct {
	db *sql.DB
}

func NewStudentRepo(db *sql.DB) *StudentRepo {
	return &StudentRepo{db: db}
}

func (r *StudentRepo) Create(ctx context.Context, userID, email string, createdAt time.Time) (*models.Student, error) {
	result, err := r.db.ExecContext(ctx,
		"INSERT INTO students (user_id, email, created_at) VALUES (?, ?, ?)",
		userID, email, stamp(createdAt),
	)
	if err != nil {
		return nil, errors.Wrap(err, "insert student")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "insert student")
	}

	var s models.Student
	err = r.db.QueryRowContext(ctx,
		"SELECT id, user_id, email, status, created_at FROM students WHERE id = ?", id,
	).Scan(&s.ID, &s.UserID, &s.Email, &s.Status, &s.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "select student")
	}
	return &s, nil
}

// List returns active students newest first.
func (r *StudentRepo) List(ctx context.Context, limit int) ([]models.Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, email, status, created_at
		FROM students
		WHERE status = 'active'
		ORDER BY created_at DESC, id DESC`+limitClause(limit))
	if err != nil {
		return nil, errors.Wrap(err, "select students")
	}
	defer rows.Close()

	var students []models.Student
	for rows.Next() {
		var s models.Student
		if err := rows.Scan(&s.ID, &s.UserID, &s.Email, &s.Status, &s.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan student")
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

func (r *StudentRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM students WHERE status = 'active'").Scan(&n)
	return n, errors.Wrap(err, "count students")
}

type ProfileRepo struct {
	db *sql.DB
}

func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// Upsert writes the profile for p.UserID.
func (r *ProfileRepo) Upsert(ctx context.Context, p models.Profile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, full_name, avatar_url, university, faculty, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			full_name = excluded.full_name,
			avatar_url = excluded.avatar_url,
			university = excluded.university,
			faculty = excluded.faculty,
			updated_at = excluded.updated_at
	`, p.UserID, p.FullName, p.AvatarURL, p.University, p.Faculty, nowUTC())
	return errors.Wrap(err, "upsert profile")
}

// GetByUserIDs is the in-set fetch used by the joins.
func (r *ProfileRepo) GetByUserIDs(ctx context.Context, userIDs []string) ([]models.Profile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, full_name, avatar_url, university, faculty, updated_at
		FROM profiles
		WHERE user_id IN (`+placeholders(len(userIDs))+`)`,
		stringArgs(userIDs)...,
	)
	if err != nil {
		return nil, errors.Wrap(err, "select profiles")
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.UserID, &p.FullName, &p.AvatarURL, &p.University, &p.Faculty, &p.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan profile")
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

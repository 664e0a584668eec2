package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

type BookmarkRepo struct {
	db *sql.DB
}

func NewBookmarkRepo(db *sql.DB) *BookmarkRepo {
	return &BookmarkRepo{db: db}
}

func (r *BookmarkRepo) Exists(ctx context.Context, userID string, jobID int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bookmarks WHERE user_id = ? AND job_id = ?", userID, jobID,
	).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, "select bookmark")
	}
	return n > 0, nil
}

// Create is idempotent; bookmarking twice keeps one row.
func (r *BookmarkRepo) Create(ctx context.Context, userID string, jobID int64) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO bookmarks (user_id, job_id, created_at) VALUES (?, ?, ?) ON CONFLICT(user_id, job_id) DO NOTHING",
		userID, jobID, nowUTC(),
	)
	return errors.Wrap(err, "insert bookmark")
}

func (r *BookmarkRepo) Delete(ctx context.Context, userID string, jobID int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM bookmarks WHERE user_id = ? AND job_id = ?", userID, jobID)
	return errors.Wrap(err, "delete bookmark")
}

// UserIDsByJobID lists who bookmarked jobID, oldest bookmark first.
func (r *BookmarkRepo) UserIDsByJobID(ctx context.Context, jobID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT user_id FROM bookmarks WHERE job_id = ? ORDER BY created_at, id", jobID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "select bookmarks")
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan bookmark")
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, rows.Err()
}

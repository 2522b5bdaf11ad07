package repository

import (
	"context"
	"database/sql"
	"strings"
)

// RatingRepo stores one rating row per (post, user) pair.  The table has
// a unique key on (post_id, user_id); duplicate detection rides on that
// key instead of a check-then-insert, so two concurrent submissions for
// the same pair leave exactly one row.
type RatingRepo struct{ DB *sql.DB }

func NewRatingRepo(db *sql.DB) *RatingRepo { return &RatingRepo{DB: db} }

// Insert adds a rating row.  A second rating for the same (post, user)
// pair trips the unique key and returns ErrAlreadyRated.
func (r *RatingRepo) Insert(ctx context.Context, postID, userID uint64, rating int) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO post_ratings (post_id, user_id, rating) VALUES (?,?,?)",
		postID, userID, rating)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "1062") {
		return ErrAlreadyRated
	}
	return err
}

// Average returns the arithmetic mean of all ratings for the post and
// how many rows went into it.  A post with no ratings yields (0, 0).
func (r *RatingRepo) Average(ctx context.Context, postID uint64) (float64, int, error) {
	var (
		avg   sql.NullFloat64
		count int
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT AVG(rating), COUNT(*) FROM post_ratings WHERE post_id=?",
		postID).Scan(&avg, &count)
	if err != nil {
		return 0, 0, err
	}
	return avg.Float64, count, nil
}

// Delete removes one user's rating of a post (moderation path).
func (r *RatingRepo) Delete(ctx context.Context, postID, userID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM post_ratings WHERE post_id=? AND user_id=?", postID, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

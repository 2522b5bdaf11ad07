package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Post mirrors the 'posts' table.  AverageRating is a denormalized,
// eventually-consistent mean of the post's ratings, maintained by the
// recompute worker rather than on the write path.
type Post struct {
	ID            uint64
	UserID        uint64
	Description   string
	AverageRating float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type PostRepo struct{ DB *sql.DB }

func NewPostRepo(db *sql.DB) *PostRepo { return &PostRepo{DB: db} }

// Create inserts a post and returns its ID.
func (r *PostRepo) Create(ctx context.Context, userID uint64, description string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO posts (user_id, description) VALUES (?,?)",
		userID, description)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a post by id.
func (r *PostRepo) GetByID(ctx context.Context, id uint64) (Post, error) {
	var p Post
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, description, average_rating, created_at, updated_at FROM posts WHERE id=? LIMIT 1",
		id).Scan(&p.ID, &p.UserID, &p.Description, &p.AverageRating, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, ErrNotFound
	}
	return p, err
}

// Delete removes a post.  Rating and comment rows go with it through
// their post_id foreign keys.
func (r *PostRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM posts WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAverageRating writes the recomputed mean.  A post deleted between
// enqueue and job execution matches zero rows, which is deliberately not
// an error: the recompute job must no-op in that case.
func (r *PostRepo) SetAverageRating(ctx context.Context, id uint64, avg float64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE posts SET average_rating=? WHERE id=?", avg, id)
	return err
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Comment mirrors the 'comments' table.  ReplyID points at the parent
// comment for replies and is nil for top-level comments.
type Comment struct {
	ID        uint64
	PostID    uint64
	UserID    uint64
	ReplyID   *uint64
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CommentRepo stores post comments, including one level of threading via
// reply_id.
type CommentRepo struct{ DB *sql.DB }

func NewCommentRepo(db *sql.DB) *CommentRepo { return &CommentRepo{DB: db} }

const commentColumns = `id, post_id, user_id, reply_id, comment, created_at, updated_at`

// Create inserts a comment and returns its ID.  replyID is nil for a
// top-level comment.
func (r *CommentRepo) Create(ctx context.Context, postID, userID uint64, replyID *uint64, body string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO comments (post_id, user_id, reply_id, comment) VALUES (?,?,?,?)",
		postID, userID, replyID, body)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches one comment.
func (r *CommentRepo) GetByID(ctx context.Context, id uint64) (Comment, error) {
	var cm Comment
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+commentColumns+" FROM comments WHERE id=? LIMIT 1",
		id).Scan(&cm.ID, &cm.PostID, &cm.UserID, &cm.ReplyID, &cm.Body, &cm.CreatedAt, &cm.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Comment{}, ErrNotFound
	}
	return cm, err
}

// ListByPost returns all comments of a post, oldest first.
func (r *CommentRepo) ListByPost(ctx context.Context, postID uint64) ([]Comment, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+commentColumns+" FROM comments WHERE post_id=? ORDER BY id", postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanComments(rows)
}

// Replies returns the direct replies to a comment, oldest first.
func (r *CommentRepo) Replies(ctx context.Context, commentID uint64) ([]Comment, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+commentColumns+" FROM comments WHERE reply_id=? ORDER BY id", commentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanComments(rows)
}

// Update replaces the text of a comment, scoped to its author.
func (r *CommentRepo) Update(ctx context.Context, id, userID uint64, body string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE comments SET comment=? WHERE id=? AND user_id=?", body, id, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a comment, scoped to its author.
func (r *CommentRepo) Delete(ctx context.Context, id, userID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM comments WHERE id=? AND user_id=?", id, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Remove deletes a comment regardless of author.  Moderation only.
func (r *CommentRepo) Remove(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM comments WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanComments(rows *sql.Rows) ([]Comment, error) {
	var out []Comment
	for rows.Next() {
		var cm Comment
		if err := rows.Scan(&cm.ID, &cm.PostID, &cm.UserID, &cm.ReplyID, &cm.Body, &cm.CreatedAt, &cm.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, cm)
	}
	return out, rows.Err()
}

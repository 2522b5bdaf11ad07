package repository

import (
	"context"
	"database/sql"
	"strings"
)

// FollowRepo maintains the 'followers' relation.  The composite primary
// key (follower_id, followed_id) makes a repeated follow a conflict at
// the storage layer.
type FollowRepo struct{ DB *sql.DB }

func NewFollowRepo(db *sql.DB) *FollowRepo { return &FollowRepo{DB: db} }

// Follow records that follower follows followed.  Returns
// ErrAlreadyFollowing when the edge already exists.
func (r *FollowRepo) Follow(ctx context.Context, followerID, followedID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO followers (follower_id, followed_id) VALUES (?,?)",
		followerID, followedID)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "1062") {
		return ErrAlreadyFollowing
	}
	return err
}

// Unfollow removes the edge; ErrNotFound when it was not there.
func (r *FollowRepo) Unfollow(ctx context.Context, followerID, followedID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM followers WHERE follower_id=? AND followed_id=?",
		followerID, followedID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Followers returns how many users follow the given user.
func (r *FollowRepo) Followers(ctx context.Context, userID uint64) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM followers WHERE followed_id=?", userID).Scan(&n)
	return n, err
}

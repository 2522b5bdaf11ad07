package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Session mirrors the 'auth_sessions' table.  The table carries a unique
// key on (user_id, device_type), so a user holds at most one live refresh
// token per device class.
type Session struct {
	ID           uint64
	UserID       uint64
	DeviceType   string
	RefreshToken string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// SessionRepo tracks the single live refresh token per (user, device type).
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Upsert stores token as the current refresh token for (userID,
// deviceType).  A fresh login inserts a row; a re-login for the same
// device type overwrites token and expiry in place.  The single INSERT ..
// ON DUPLICATE KEY UPDATE statement makes the replace atomic: a failure
// leaves the previous session untouched.
func (r *SessionRepo) Upsert(ctx context.Context, userID uint64, deviceType, token string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO auth_sessions (user_id, device_type, refresh_token, expires_at)
		 VALUES (?,?,?,?)
		 ON DUPLICATE KEY UPDATE refresh_token=VALUES(refresh_token), expires_at=VALUES(expires_at)`,
		userID, deviceType, token, expiresAt)
	return err
}

// FindByToken returns the user's session holding exactly the presented
// refresh token.  A superseded or revoked token no longer matches any row
// and yields ErrNotFound, which callers must treat as 401.
func (r *SessionRepo) FindByToken(ctx context.Context, userID uint64, token string) (Session, error) {
	var s Session
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, device_type, refresh_token, expires_at, created_at
		 FROM auth_sessions WHERE user_id=? AND refresh_token=? LIMIT 1`,
		userID, token).Scan(&s.ID, &s.UserID, &s.DeviceType, &s.RefreshToken, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return s, err
}

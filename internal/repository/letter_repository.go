package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// LetterRepo records outgoing transactional mail so opens can be tracked
// through the pixel endpoint.  Letter ids are uuids generated here and
// embedded into tracking tokens.
type LetterRepo struct{ DB *sql.DB }

func NewLetterRepo(db *sql.DB) *LetterRepo { return &LetterRepo{DB: db} }

// Draft inserts an unsent, unopened letter row for the user and returns
// its id.
func (r *LetterRepo) Draft(ctx context.Context, userID uint64) (string, error) {
	id := uuid.NewString()
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO letters (id, user_id) VALUES (?,?)", id, userID)
	if err != nil {
		return "", err
	}
	return id, nil
}

// MarkOpened flags the letter as opened.  Unknown ids are ignored: the
// tracking pixel path must never produce a visible failure.
func (r *LetterRepo) MarkOpened(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE letters SET opened=1, opened_at=NOW() WHERE id=?", id)
	return err
}

package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/vibast-solutions/ms-go-nengtul/app/entity"
)

type BlacklistTokenRepository struct {
	db DBTX
}

func NewBlacklistTokenRepository(db DBTX) *BlacklistTokenRepository {
	return &BlacklistTokenRepository{db: db}
}

func (r *BlacklistTokenRepository) Insert(ctx context.Context, token *entity.BlacklistToken) error {
	query := `
		INSERT INTO blacklist_tokens (email, token, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		token.Email,
		token.Token,
		TokenHash(token.Token),
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	token.ID = uint64(id)
	return nil
}

// Exists reports whether the (email, token) pair is revoked. Rows whose
// token already expired are ignored.
func (r *BlacklistTokenRepository) Exists(ctx context.Context, email, token string, now time.Time) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM blacklist_tokens WHERE email = ? AND token_hash = ? AND expires_at > ?)`
	var found bool
	if err := r.db.QueryRowContext(ctx, query, email, TokenHash(token), now).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}

func (r *BlacklistTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM blacklist_tokens WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// TokenHash is the indexed lookup key for a blacklisted token. Token length
// grows with the email claim, so the raw value is stored as TEXT.
func TokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

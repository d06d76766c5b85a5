package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-nengtul/app/entity"
)

const userSelect = `
		SELECT id, name, nickname, email, password_hash, phone_number, address, address_detail,
		       profile_image_url, email_verified, verification_code, verify_expired_at,
		       refresh_token, created_at, updated_at
		FROM users`

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (name, nickname, email, password_hash, phone_number, address, address_detail,
		                   email_verified, verification_code, verify_expired_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		user.Name,
		user.Nickname,
		user.Email,
		user.PasswordHash,
		user.PhoneNumber,
		user.Address,
		user.AddressDetail,
		user.EmailVerified,
		user.VerificationCode,
		user.VerifyExpiredAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = uint64(id)
	return nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.findOne(ctx, userSelect+` WHERE email = ?`, email)
}

func (r *UserRepository) FindByID(ctx context.Context, id uint64) (*entity.User, error) {
	return r.findOne(ctx, userSelect+` WHERE id = ?`, id)
}

func (r *UserRepository) FindByRefreshToken(ctx context.Context, token string) (*entity.User, error) {
	return r.findOne(ctx, userSelect+` WHERE refresh_token = ?`, token)
}

func (r *UserRepository) FindByNameAndPhone(ctx context.Context, name, phone string) (*entity.User, error) {
	return r.findOne(ctx, userSelect+` WHERE name = ? AND phone_number = ?`, name, phone)
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email)
}

func (r *UserRepository) ExistsByNickname(ctx context.Context, nickname string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE nickname = ?)`, nickname)
}

func (r *UserRepository) ExistsByPhoneNumber(ctx context.Context, phone string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE phone_number = ?)`, phone)
}

func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	query := `
		UPDATE users SET
			nickname = ?,
			password_hash = ?,
			phone_number = ?,
			address = ?,
			address_detail = ?,
			profile_image_url = ?,
			email_verified = ?,
			verification_code = ?,
			verify_expired_at = ?,
			updated_at = ?
		WHERE id = ?
	`
	user.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, query,
		user.Nickname,
		user.PasswordHash,
		user.PhoneNumber,
		user.Address,
		user.AddressDetail,
		user.ProfileImageURL,
		user.EmailVerified,
		user.VerificationCode,
		user.VerifyExpiredAt,
		user.UpdatedAt,
		user.ID,
	)
	return err
}

// UpdateRefreshToken overwrites the stored refresh token for the account.
// Concurrent logins race here and the last write wins.
func (r *UserRepository) UpdateRefreshToken(ctx context.Context, email, token string) (int64, error) {
	query := `UPDATE users SET refresh_token = ?, updated_at = ? WHERE email = ?`
	result, err := r.db.ExecContext(ctx, query, token, time.Now(), email)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RotateRefreshToken swaps the stored refresh token only if it still equals
// current. Zero rows affected means another login or refresh won the race.
func (r *UserRepository) RotateRefreshToken(ctx context.Context, email, current, next string) (int64, error) {
	query := `UPDATE users SET refresh_token = ?, updated_at = ? WHERE email = ? AND refresh_token = ?`
	result, err := r.db.ExecContext(ctx, query, next, time.Now(), email, current)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *UserRepository) ClearRefreshToken(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET refresh_token = NULL, updated_at = ? WHERE email = ?`, time.Now(), email)
	return err
}

func (r *UserRepository) Delete(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.User, error) {
	row := r.db.QueryRowContext(ctx, query, args...)
	user, err := scanUser(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var found bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}

func scanUser(scan rowScanner) (*entity.User, error) {
	user := &entity.User{}
	if err := scan(
		&user.ID,
		&user.Name,
		&user.Nickname,
		&user.Email,
		&user.PasswordHash,
		&user.PhoneNumber,
		&user.Address,
		&user.AddressDetail,
		&user.ProfileImageURL,
		&user.EmailVerified,
		&user.VerificationCode,
		&user.VerifyExpiredAt,
		&user.RefreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return user, nil
}

package repository_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-nengtul/app/entity"
	"github.com/vibast-solutions/ms-go-nengtul/app/repository"

	"github.com/DATA-DOG/go-sqlmock"
)

const (
	insertBlacklistQuery  = `(?s)INSERT INTO blacklist_tokens \(email, token, token_hash, expires_at, created_at\)\s+VALUES \(\?, \?, \?, \?, \?\)`
	existsBlacklistQuery  = `SELECT EXISTS\(SELECT 1 FROM blacklist_tokens WHERE email = \? AND token_hash = \? AND expires_at > \?\)`
	deleteBlacklistExpiry = `DELETE FROM blacklist_tokens WHERE expires_at <= \?`
)

func TestBlacklistTokenRepository_Insert(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewBlacklistTokenRepository(db)
	now := time.Now()
	token := &entity.BlacklistToken{
		Email:     "user@example.com",
		Token:     "access-token",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}

	mock.ExpectExec(insertBlacklistQuery).
		WithArgs(token.Email, token.Token, repository.TokenHash(token.Token), token.ExpiresAt, token.CreatedAt).
		WillReturnResult(sqlmock.NewResult(11, 1))

	if err := repo.Insert(context.Background(), token); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if token.ID != 11 {
		t.Fatalf("expected ID 11, got %d", token.ID)
	}
}

func TestBlacklistTokenRepository_Exists(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewBlacklistTokenRepository(db)
	now := time.Now()

	mock.ExpectQuery(existsBlacklistQuery).
		WithArgs("user@example.com", repository.TokenHash("access-token"), now).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(existsBlacklistQuery).
		WithArgs("user@example.com", repository.TokenHash("other-token"), now).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	found, err := repo.Exists(context.Background(), "user@example.com", "access-token", now)
	if err != nil || !found {
		t.Fatalf("expected blacklisted token, got %v %v", found, err)
	}
	found, err = repo.Exists(context.Background(), "user@example.com", "other-token", now)
	if err != nil || found {
		t.Fatalf("expected token not blacklisted, got %v %v", found, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBlacklistTokenRepository_ExistsError(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewBlacklistTokenRepository(db)
	mock.ExpectQuery(existsBlacklistQuery).
		WillReturnError(errors.New("db down"))

	if _, err := repo.Exists(context.Background(), "user@example.com", "t", time.Now()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestBlacklistTokenRepository_DeleteExpired(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewBlacklistTokenRepository(db)
	now := time.Now()
	mock.ExpectExec(deleteBlacklistExpiry).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 5))

	deleted, err := repo.DeleteExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("delete expired failed: %v", err)
	}
	if deleted != 5 {
		t.Fatalf("expected 5 deleted rows, got %d", deleted)
	}
}

func TestTokenHashIsFixedLength(t *testing.T) {
	short := repository.TokenHash("a")
	long := repository.TokenHash(strings.Repeat("x", 4096))

	if len(short) != 64 || len(long) != 64 {
		t.Fatalf("expected 64 hex characters, got %d and %d", len(short), len(long))
	}
	if short == long {
		t.Fatalf("expected different digests for different tokens")
	}
	if repository.TokenHash("a") != short {
		t.Fatalf("expected a stable digest")
	}
}

func TestBlacklistTokenRepository_InsertLongToken(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewBlacklistTokenRepository(db)
	now := time.Now()
	long := strings.Repeat("t", 2048)

	mock.ExpectExec(insertBlacklistQuery).
		WithArgs("user@example.com", long, repository.TokenHash(long), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Insert(context.Background(), &entity.BlacklistToken{
		Email: "user@example.com", Token: long, ExpiresAt: now.Add(time.Hour), CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

package entity

import (
	"database/sql"
	"time"
)

type User struct {
	ID               uint64
	Name             string
	Nickname         string
	Email            string
	PasswordHash     string
	PhoneNumber      string
	Address          string
	AddressDetail    string
	ProfileImageURL  sql.NullString
	EmailVerified    bool
	VerificationCode sql.NullString
	VerifyExpiredAt  sql.NullTime
	RefreshToken     sql.NullString
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// BlacklistToken is an access token revoked before its natural expiry.
// Rows are only meaningful until ExpiresAt.
type BlacklistToken struct {
	ID        uint64
	Email     string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

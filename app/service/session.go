package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/vibast-solutions/ms-go-nengtul/app/entity"
	"github.com/vibast-solutions/ms-go-nengtul/app/metrics"
	"github.com/vibast-solutions/ms-go-nengtul/app/token"
	"github.com/vibast-solutions/ms-go-nengtul/config"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

type tokenCodec interface {
	Issue(kind token.Kind, email string, ttl time.Duration) (string, error)
	Verify(tokenString string) bool
	ExtractSubject(tokenString string) (string, bool)
	ExpiresAt(tokenString string) (time.Time, bool)
	KindOf(tokenString string) (token.Kind, bool)
}

type sessionUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByRefreshToken(ctx context.Context, token string) (*entity.User, error)
	UpdateRefreshToken(ctx context.Context, email, token string) (int64, error)
	RotateRefreshToken(ctx context.Context, email, current, next string) (int64, error)
}

type blacklistRepository interface {
	Insert(ctx context.Context, token *entity.BlacklistToken) error
	Exists(ctx context.Context, email, token string, now time.Time) (bool, error)
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

type SessionOption func(*SessionManager)

func WithSessionClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithSessionMetrics(recorder metrics.Recorder) SessionOption {
	return func(m *SessionManager) {
		if recorder != nil {
			m.metrics = recorder
		}
	}
}

// SessionManager issues, refreshes and revokes bearer tokens on top of the
// stateless codec. Verification failures surface as booleans or
// ErrInvalidToken, never as codec errors.
type SessionManager struct {
	users     sessionUserRepository
	blacklist blacklistRepository
	codec     tokenCodec
	cfg       config.JWTConfig
	metrics   metrics.Recorder
	now       func() time.Time
}

func NewSessionManager(
	users sessionUserRepository,
	blacklist blacklistRepository,
	codec tokenCodec,
	cfg config.JWTConfig,
	opts ...SessionOption,
) *SessionManager {
	m := &SessionManager{
		users:     users,
		blacklist: blacklist,
		codec:     codec,
		cfg:       cfg,
		metrics:   metrics.Nop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Login checks the password and issues a new token pair. The refresh token
// overwrites whatever was stored for the account before.
func (m *SessionManager) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	email = NormalizeEmail(email)

	user, err := m.users.FindByEmail(ctx, email)
	if err != nil {
		m.metrics.RecordLogin(metrics.ResultError)
		return nil, err
	}
	if user == nil {
		m.metrics.RecordLogin(metrics.ResultNotFound)
		return nil, ErrUserNotFound
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		m.metrics.RecordLogin(metrics.ResultInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	pair, err := m.issuePair(user.Email)
	if err != nil {
		m.metrics.RecordLogin(metrics.ResultError)
		return nil, err
	}

	if _, err = m.users.UpdateRefreshToken(ctx, user.Email, pair.RefreshToken); err != nil {
		m.metrics.RecordLogin(metrics.ResultError)
		return nil, err
	}

	m.metrics.RecordLogin(metrics.ResultSuccess)
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. Refresh tokens carry no
// subject, so the account is resolved through the stored refresh token and
// the stored value is rotated. A token that was already rotated or
// overwritten by a later login is rejected.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if kind, ok := m.codec.KindOf(refreshToken); !ok || kind != token.Refresh {
		m.metrics.RecordRefresh(metrics.ResultInvalidToken)
		return nil, ErrInvalidToken
	}

	user, err := m.users.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		m.metrics.RecordRefresh(metrics.ResultError)
		return nil, err
	}
	if user == nil {
		m.metrics.RecordRefresh(metrics.ResultInvalidToken)
		return nil, ErrInvalidToken
	}

	pair, err := m.issuePair(user.Email)
	if err != nil {
		m.metrics.RecordRefresh(metrics.ResultError)
		return nil, err
	}

	rotated, err := m.users.RotateRefreshToken(ctx, user.Email, refreshToken, pair.RefreshToken)
	if err != nil {
		m.metrics.RecordRefresh(metrics.ResultError)
		return nil, err
	}
	if rotated == 0 {
		m.metrics.RecordRefresh(metrics.ResultInvalidToken)
		return nil, ErrInvalidToken
	}

	m.metrics.RecordRefresh(metrics.ResultSuccess)
	return pair, nil
}

// AccessToken returns the raw bearer token from the configured access header.
func (m *SessionManager) AccessToken(r *http.Request) (string, bool) {
	return token.BearerToken(r.Header.Get(m.cfg.AccessHeader))
}

// RefreshToken returns the raw bearer token from the configured refresh header.
func (m *SessionManager) RefreshToken(r *http.Request) (string, bool) {
	return token.BearerToken(r.Header.Get(m.cfg.RefreshHeader))
}

func (m *SessionManager) ExtractPrincipal(r *http.Request) (string, bool) {
	raw, ok := m.AccessToken(r)
	if !ok {
		return "", false
	}
	return m.codec.ExtractSubject(raw)
}

func (m *SessionManager) Subject(accessToken string) (string, bool) {
	return m.codec.ExtractSubject(accessToken)
}

// Logout blacklists the access token until it would have expired anyway.
// The stored refresh token is left untouched.
func (m *SessionManager) Logout(ctx context.Context, email, accessToken string) error {
	subject, ok := m.codec.ExtractSubject(accessToken)
	if !ok || subject != email {
		return ErrInvalidToken
	}
	expiresAt, ok := m.codec.ExpiresAt(accessToken)
	if !ok {
		return ErrInvalidToken
	}

	if err := m.blacklist.Insert(ctx, &entity.BlacklistToken{
		Email:     email,
		Token:     accessToken,
		ExpiresAt: expiresAt,
		CreatedAt: m.now(),
	}); err != nil {
		return err
	}

	m.metrics.RecordLogout()
	logrus.WithField("email", email).Debug("Access token blacklisted")
	return nil
}

func (m *SessionManager) IsBlacklisted(ctx context.Context, email, accessToken string) (bool, error) {
	return m.blacklist.Exists(ctx, email, accessToken, m.now())
}

func (m *SessionManager) RecordRejection(reason string) {
	m.metrics.RecordGateRejection(reason)
}

func (m *SessionManager) issuePair(email string) (*TokenPair, error) {
	accessToken, err := m.codec.Issue(token.Access, email, m.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refreshToken, err := m.codec.Issue(token.Refresh, "", m.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(m.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

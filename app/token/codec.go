// Package token signs and verifies the bearer tokens handed out at login.
//
// Tokens are HS512 JWTs. The registered subject carries the token kind
// ("AccessToken" or "RefreshToken"); access tokens add an "email" claim.
// Refresh tokens never carry an email, so ExtractSubject always reports
// them as absent. Every token gets a random jti so two tokens minted in the
// same second never collide.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Kind string

const (
	Access  Kind = "AccessToken"
	Refresh Kind = "RefreshToken"
)

const BearerPrefix = "Bearer "

var ErrUnknownKind = errors.New("unknown token kind")

type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type Config struct {
	Secret string
	Issuer string
}

type Option func(*Codec)

// WithClock replaces time.Now for issuance and verification.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewCodec(cfg Config, opts ...Option) *Codec {
	c := &Codec{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue signs a token of the given kind expiring ttl from now. The email is
// embedded only for access tokens.
func (c *Codec) Issue(kind Kind, email string, ttl time.Duration) (string, error) {
	if kind != Access && kind != Refresh {
		return "", ErrUnknownKind
	}

	now := c.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   string(kind),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if kind == Access {
		claims.Email = email
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(c.secret)
}

func (c *Codec) Verify(tokenString string) bool {
	_, ok := c.parse(tokenString)
	return ok
}

// ExtractSubject returns the email of a valid access token. Invalid tokens
// and tokens without an email claim are both reported as absent.
func (c *Codec) ExtractSubject(tokenString string) (string, bool) {
	claims, ok := c.parse(tokenString)
	if !ok || claims.Email == "" {
		return "", false
	}
	return claims.Email, true
}

func (c *Codec) ExpiresAt(tokenString string) (time.Time, bool) {
	claims, ok := c.parse(tokenString)
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// KindOf reports the declared kind of a valid token.
func (c *Codec) KindOf(tokenString string) (Kind, bool) {
	claims, ok := c.parse(tokenString)
	if !ok {
		return "", false
	}
	return Kind(claims.Subject), true
}

func (c *Codec) parse(tokenString string) (*Claims, bool) {
	if tokenString == "" {
		return nil, false
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		logrus.WithError(err).Debug("Token verification failed")
		return nil, false
	}
	return claims, true
}

// BearerToken strips the "Bearer " prefix from a header value. Values
// without the prefix are rejected.
func BearerToken(headerValue string) (string, bool) {
	if !strings.HasPrefix(headerValue, BearerPrefix) {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(headerValue, BearerPrefix))
	if raw == "" {
		return "", false
	}
	return raw, true
}

package middleware

import (
	"context"
	"errors"
	"net/http"

	httpdto "github.com/vibast-solutions/ms-go-nengtul/app/dto/http"
	"github.com/vibast-solutions/ms-go-nengtul/app/metrics"
	"github.com/vibast-solutions/ms-go-nengtul/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	ContextUserEmail   = "user_email"
	ContextAccessToken = "access_token"
)

type sessionGate interface {
	AccessToken(r *http.Request) (string, bool)
	Subject(accessToken string) (string, bool)
	IsBlacklisted(ctx context.Context, email, accessToken string) (bool, error)
	RecordRejection(reason string)
}

type verificationChecker interface {
	IsVerified(ctx context.Context, email string) (bool, error)
}

type AuthMiddleware struct {
	sessions sessionGate
	users    verificationChecker
}

func NewAuthMiddleware(sessions sessionGate, users verificationChecker) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions, users: users}
}

// RequireAuth admits a request only with a valid, non-revoked access token.
// Missing, malformed, expired and revoked tokens all get the same 401.
func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, ok := m.sessions.AccessToken(c.Request())
		if !ok {
			logrus.Debug("Missing or malformed access token header")
			return m.reject(c, metrics.RejectMissingToken)
		}

		email, ok := m.sessions.Subject(raw)
		if !ok {
			logrus.Debug("Invalid or expired access token")
			return m.reject(c, metrics.RejectInvalidToken)
		}

		blacklisted, err := m.sessions.IsBlacklisted(c.Request().Context(), email, raw)
		if err != nil {
			logrus.WithError(err).WithField("email", email).Error("Blacklist lookup failed")
			return c.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
		}
		if blacklisted {
			logrus.WithField("email", email).Debug("Blacklisted access token presented")
			return m.reject(c, metrics.RejectBlacklisted)
		}

		c.Set(ContextUserEmail, email)
		c.Set(ContextAccessToken, raw)

		return next(c)
	}
}

// RequireVerifiedEmail must run after RequireAuth.
func (m *AuthMiddleware) RequireVerifiedEmail(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		email, ok := c.Get(ContextUserEmail).(string)
		if !ok || email == "" {
			return c.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
		}

		verified, err := m.users.IsVerified(c.Request().Context(), email)
		if errors.Is(err, service.ErrUserNotFound) {
			logrus.WithField("email", email).Warn("Token subject no longer exists")
			return c.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
		}
		if err != nil {
			logrus.WithError(err).WithField("email", email).Error("Verification lookup failed")
			return c.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
		}
		if !verified {
			return c.JSON(http.StatusForbidden, httpdto.ErrorResponse{Error: "email is not verified"})
		}

		return next(c)
	}
}

func (m *AuthMiddleware) reject(c echo.Context, reason string) error {
	m.sessions.RecordRejection(reason)
	return c.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
}

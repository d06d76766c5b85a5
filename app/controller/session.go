package controller

import (
	"errors"
	"net/http"

	dto "github.com/vibast-solutions/ms-go-nengtul/app/dto/http"
	"github.com/vibast-solutions/ms-go-nengtul/app/middleware"
	"github.com/vibast-solutions/ms-go-nengtul/app/service"
	"github.com/vibast-solutions/ms-go-nengtul/config"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type SessionController struct {
	sessions *service.SessionManager
	cfg      config.JWTConfig
}

func NewSessionController(sessions *service.SessionManager, cfg config.JWTConfig) *SessionController {
	return &SessionController{sessions: sessions, cfg: cfg}
}

func (c *SessionController) Login(ctx echo.Context) error {
	var req dto.LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
	}
	if err := ctx.Validate(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	pair, err := c.sessions.Login(ctx.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid credentials"})
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Login failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	return c.writePair(ctx, pair)
}

// Refresh reads the refresh token from the refresh header, not the body.
func (c *SessionController) Refresh(ctx echo.Context) error {
	raw, ok := c.sessions.RefreshToken(ctx.Request())
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "refresh token is required"})
	}

	pair, err := c.sessions.Refresh(ctx.Request().Context(), raw)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid refresh token"})
		}
		logrus.WithError(err).Error("Token refresh failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	return c.writePair(ctx, pair)
}

func (c *SessionController) Logout(ctx echo.Context) error {
	email, ok := ctx.Get(middleware.ContextUserEmail).(string)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthorized"})
	}
	raw, _ := ctx.Get(middleware.ContextAccessToken).(string)

	if err := c.sessions.Logout(ctx.Request().Context(), email, raw); err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthorized"})
		}
		logrus.WithError(err).WithField("email", email).Error("Logout failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "logged out successfully"})
}

func (c *SessionController) writePair(ctx echo.Context, pair *service.TokenPair) error {
	header := ctx.Response().Header()
	header.Set(c.cfg.AccessHeader, "Bearer "+pair.AccessToken)
	header.Set(c.cfg.RefreshHeader, "Bearer "+pair.RefreshToken)

	return ctx.JSON(http.StatusOK, dto.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	})
}

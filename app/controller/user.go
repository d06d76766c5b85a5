package controller

import (
	"context"
	"errors"
	"net/http"
	"strings"

	dto "github.com/vibast-solutions/ms-go-nengtul/app/dto/http"
	"github.com/vibast-solutions/ms-go-nengtul/app/middleware"
	"github.com/vibast-solutions/ms-go-nengtul/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type sessionRevoker interface {
	Logout(ctx context.Context, email, accessToken string) error
}

type UserController struct {
	users    *service.UserService
	sessions sessionRevoker
}

func NewUserController(users *service.UserService, sessions sessionRevoker) *UserController {
	return &UserController{users: users, sessions: sessions}
}

func (c *UserController) Join(ctx echo.Context) error {
	var req dto.JoinRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
	}
	if err := ctx.Validate(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	user, err := c.users.Join(ctx.Request().Context(), service.JoinInput{
		Name:          req.Name,
		Nickname:      req.Nickname,
		Email:         req.Email,
		Password:      req.Password,
		PhoneNumber:   req.PhoneNumber,
		Address:       req.Address,
		AddressDetail: req.AddressDetail,
	})
	if err != nil {
		return c.fail(ctx, err, "Join failed")
	}

	return ctx.JSON(http.StatusCreated, dto.JoinResponse{
		UserID:  user.ID,
		Email:   user.Email,
		Message: "registration successful, please verify your email",
	})
}

func (c *UserController) VerifyEmail(ctx echo.Context) error {
	var req dto.VerifyEmailRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request"})
	}
	if err := ctx.Validate(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	if err := c.users.VerifyEmail(ctx.Request().Context(), req.Email, req.Code); err != nil {
		return c.fail(ctx, err, "Email verification failed")
	}

	return ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "email verified"})
}

func (c *UserController) ResendVerification(ctx echo.Context) error {
	email, ok := principal(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthorized"})
	}

	if err := c.users.ResendVerification(ctx.Request().Context(), email); err != nil {
		return c.fail(ctx, err, "Verification resend failed")
	}

	return ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "verification mail sent"})
}

func (c *UserController) Detail(ctx echo.Context) error {
	email, ok := principal(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthorized"})
	}

	user, err := c.users.Detail(ctx.Request().Context(), email)
	if err != nil {
		return c.fail(ctx, err, "User lookup failed")
	}

	return ctx.JSON(http.StatusOK, dto.NewUserDetailResponse(user))
}

// UpdateProfile accepts multipart form data. The "image" file part is optional.
func (c *UserController) UpdateProfile(ctx echo.Context) error {
	email, ok := principal(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthorized"})
	}

	var req dto.UpdateProfileRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
	}
	if err := ctx.Validate(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	var upload *service.ImageUpload
	fileHeader, err := ctx.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid image upload"})
	default:
		contentType := fileHeader.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "image/") {
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "image must be an image file"})
		}
		file, err := fileHeader.Open()
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid image upload"})
		}
		defer file.Close()
		upload = &service.ImageUpload{Filename: fileHeader.Filename, ContentType: contentType, Body: file}
	}

	user, err := c.users.UpdateProfile(ctx.Request().Context(), email, service.ProfileInput{
		Nickname:      req.Nickname,
		PhoneNumber:   req.PhoneNumber,
		Address:       req.Address,
		AddressDetail: req.AddressDetail,
	}, upload)
	if err != nil {
		return c.fail(ctx, err, "Profile update failed")
	}

	return ctx.JSON(http.StatusOK, dto.NewUserDetailResponse(user))
}

func (c *UserController) ChangePassword(ctx echo.Context) error {
	email, ok := principal(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthorized"})
	}

	var req dto.ChangePasswordRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
	}
	if err := ctx.Validate(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	if err := c.users.ChangePassword(ctx.Request().Context(), email, req.OldPassword, req.NewPassword); err != nil {
		return c.fail(ctx, err, "Password change failed")
	}

	return ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "password changed"})
}

func (c *UserController) FindEmail(ctx echo.Context) error {
	var req dto.FindEmailRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
	}
	if err := ctx.Validate(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	email, err := c.users.FindEmail(ctx.Request().Context(), req.Name, req.PhoneNumber)
	if err != nil {
		return c.fail(ctx, err, "Email lookup failed")
	}

	return ctx.JSON(http.StatusOK, dto.FindEmailResponse{Email: email})
}

func (c *UserController) FindPassword(ctx echo.Context) error {
	var req dto.FindPasswordRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
	}
	if err := ctx.Validate(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	if err := c.users.IssueTemporaryPassword(ctx.Request().Context(), req.Email, req.Name, req.PhoneNumber); err != nil {
		return c.fail(ctx, err, "Temporary password issue failed")
	}

	return ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "temporary password sent"})
}

func (c *UserController) Quit(ctx echo.Context) error {
	email, ok := principal(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthorized"})
	}

	// The access token is blacklisted before the row goes away.
	raw, _ := ctx.Get(middleware.ContextAccessToken).(string)
	if err := c.sessions.Logout(ctx.Request().Context(), email, raw); err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthorized"})
		}
		logrus.WithError(err).WithField("email", email).Error("Token revocation before account deletion failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	if err := c.users.Quit(ctx.Request().Context(), email); err != nil {
		return c.fail(ctx, err, "Account deletion failed")
	}

	return ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "account deleted"})
}

func (c *UserController) fail(ctx echo.Context, err error, msg string) error {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		return ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "user not found"})
	case errors.Is(err, service.ErrEmailExists),
		errors.Is(err, service.ErrNicknameExists),
		errors.Is(err, service.ErrPhoneExists):
		return ctx.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrAlreadyVerified),
		errors.Is(err, service.ErrWrongVerifyCode),
		errors.Is(err, service.ErrExpiredCode):
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrPasswordMismatch):
		return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrImageStorageDisabled):
		return ctx.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: err.Error()})
	}

	logrus.WithError(err).Error(msg)
	return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
}

func principal(ctx echo.Context) (string, bool) {
	email, ok := ctx.Get(middleware.ContextUserEmail).(string)
	return email, ok && email != ""
}

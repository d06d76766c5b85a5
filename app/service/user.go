package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/vibast-solutions/ms-go-nengtul/app/entity"
	"github.com/vibast-solutions/ms-go-nengtul/app/mail"
	"github.com/vibast-solutions/ms-go-nengtul/app/storage"
	"github.com/vibast-solutions/ms-go-nengtul/config"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailExists          = errors.New("email already registered")
	ErrNicknameExists       = errors.New("nickname already in use")
	ErrPhoneExists          = errors.New("phone number already in use")
	ErrWeakPassword         = errors.New("password does not meet policy requirements")
	ErrPasswordMismatch     = errors.New("old password is incorrect")
	ErrAlreadyVerified      = errors.New("email is already verified")
	ErrWrongVerifyCode      = errors.New("verification code does not match")
	ErrExpiredCode          = errors.New("verification code has expired")
	ErrEmailNotVerified     = errors.New("email is not verified")
	ErrImageStorageDisabled = errors.New("image storage is not configured")
)

type userRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByNameAndPhone(ctx context.Context, name, phone string) (*entity.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByNickname(ctx context.Context, nickname string) (bool, error)
	ExistsByPhoneNumber(ctx context.Context, phone string) (bool, error)
	Update(ctx context.Context, user *entity.User) error
	ClearRefreshToken(ctx context.Context, email string) error
	Delete(ctx context.Context, id uint64) error
}

type imageStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

type JoinInput struct {
	Name          string
	Nickname      string
	Email         string
	Password      string
	PhoneNumber   string
	Address       string
	AddressDetail string
}

type ProfileInput struct {
	Nickname      string
	PhoneNumber   string
	Address       string
	AddressDetail string
}

type ImageUpload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type UserServiceOption func(*UserService)

func WithImageStore(store imageStore) UserServiceOption {
	return func(s *UserService) {
		s.images = store
	}
}

func WithCodeGenerator(gen CodeGenerator) UserServiceOption {
	return func(s *UserService) {
		if gen != nil {
			s.newCode = gen
		}
	}
}

func WithPasswordGenerator(gen PasswordGenerator) UserServiceOption {
	return func(s *UserService) {
		if gen != nil {
			s.newPassword = gen
		}
	}
}

func WithUserClock(now func() time.Time) UserServiceOption {
	return func(s *UserService) {
		if now != nil {
			s.now = now
		}
	}
}

type UserService struct {
	users       userRepository
	mailer      mail.Sender
	images      imageStore
	cfg         *config.Config
	newCode     CodeGenerator
	newPassword PasswordGenerator
	now         func() time.Time
}

func NewUserService(users userRepository, mailer mail.Sender, cfg *config.Config, opts ...UserServiceOption) *UserService {
	s := &UserService{
		users:       users,
		mailer:      mailer,
		cfg:         cfg,
		newCode:     RandomAlphanumeric,
		newPassword: RandomPassword,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Join registers an unverified account and mails its verification link.
func (s *UserService) Join(ctx context.Context, in JoinInput) (*entity.User, error) {
	email := NormalizeEmail(in.Email)

	if err := s.ensureUnique(ctx, s.users.ExistsByEmail, email, ErrEmailExists); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, s.users.ExistsByNickname, in.Nickname, ErrNicknameExists); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, s.users.ExistsByPhoneNumber, in.PhoneNumber, ErrPhoneExists); err != nil {
		return nil, err
	}

	if err := s.cfg.Password.Policy.Validate(in.Password); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	code, err := s.newCode(s.cfg.Verification.CodeLength)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &entity.User{
		Name:             in.Name,
		Nickname:         in.Nickname,
		Email:            email,
		PasswordHash:     string(hashedPassword),
		PhoneNumber:      in.PhoneNumber,
		Address:          in.Address,
		AddressDetail:    in.AddressDetail,
		VerificationCode: sql.NullString{String: code, Valid: true},
		VerifyExpiredAt:  sql.NullTime{Time: now.Add(s.cfg.Verification.CodeTTL), Valid: true},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err = s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if err = s.sendVerification(ctx, user, code); err != nil {
		logrus.WithError(err).WithField("email", email).Warn("Failed to send verification mail")
	}

	return user, nil
}

// VerifyEmail checks, in order: already verified, code mismatch, expiry.
func (s *UserService) VerifyEmail(ctx context.Context, email, code string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}

	if user.EmailVerified {
		return ErrAlreadyVerified
	}
	if !user.VerificationCode.Valid || user.VerificationCode.String != code {
		return ErrWrongVerifyCode
	}
	if !user.VerifyExpiredAt.Valid || user.VerifyExpiredAt.Time.Before(s.now()) {
		return ErrExpiredCode
	}

	user.EmailVerified = true
	user.VerificationCode = sql.NullString{}
	user.VerifyExpiredAt = sql.NullTime{}
	return s.users.Update(ctx, user)
}

func (s *UserService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return ErrAlreadyVerified
	}

	code, err := s.newCode(s.cfg.Verification.CodeLength)
	if err != nil {
		return err
	}
	user.VerificationCode = sql.NullString{String: code, Valid: true}
	user.VerifyExpiredAt = sql.NullTime{Time: s.now().Add(s.cfg.Verification.CodeTTL), Valid: true}
	if err = s.users.Update(ctx, user); err != nil {
		return err
	}

	return s.sendVerification(ctx, user, code)
}

func (s *UserService) IsVerified(ctx context.Context, email string) (bool, error) {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	return user.EmailVerified, nil
}

func (s *UserService) Detail(ctx context.Context, email string) (*entity.User, error) {
	return s.findByEmail(ctx, email)
}

// UpdateProfile changes contact details and, when image is set, replaces the
// profile picture.
func (s *UserService) UpdateProfile(ctx context.Context, email string, in ProfileInput, image *ImageUpload) (*entity.User, error) {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if in.Nickname != user.Nickname {
		if err = s.ensureUnique(ctx, s.users.ExistsByNickname, in.Nickname, ErrNicknameExists); err != nil {
			return nil, err
		}
	}
	if in.PhoneNumber != user.PhoneNumber {
		if err = s.ensureUnique(ctx, s.users.ExistsByPhoneNumber, in.PhoneNumber, ErrPhoneExists); err != nil {
			return nil, err
		}
	}

	previousImage := user.ProfileImageURL
	if image != nil {
		if s.images == nil {
			return nil, ErrImageStorageDisabled
		}
		imageURL, err := s.images.Put(ctx, storage.ProfileKey(user.Email, image.Filename), image.ContentType, image.Body)
		if err != nil {
			return nil, err
		}
		user.ProfileImageURL = sql.NullString{String: imageURL, Valid: true}
	}

	user.Nickname = in.Nickname
	user.PhoneNumber = in.PhoneNumber
	user.Address = in.Address
	user.AddressDetail = in.AddressDetail

	// The old image is only removed once the row points at the new one.
	if err = s.users.Update(ctx, user); err != nil {
		if image != nil {
			s.deleteImage(ctx, user.ProfileImageURL.String)
		}
		return nil, err
	}
	if image != nil && previousImage.Valid {
		s.deleteImage(ctx, previousImage.String)
	}
	return user, nil
}

// ChangePassword replaces the password and drops the stored refresh token so
// other sessions cannot be refreshed.
func (s *UserService) ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrPasswordMismatch
	}

	if err = s.cfg.Password.Policy.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user.PasswordHash = string(hashedPassword)
	if err = s.users.Update(ctx, user); err != nil {
		return err
	}

	return s.users.ClearRefreshToken(ctx, user.Email)
}

func (s *UserService) FindEmail(ctx context.Context, name, phone string) (string, error) {
	user, err := s.users.FindByNameAndPhone(ctx, name, phone)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}
	return user.Email, nil
}

// IssueTemporaryPassword resets the password to a random value and mails it.
// Name and phone must match the account. Nothing is saved unless the mail
// was sent.
func (s *UserService) IssueTemporaryPassword(ctx context.Context, email, name, phone string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.Name != name || user.PhoneNumber != phone {
		return ErrUserNotFound
	}

	tempPassword, err := s.newPassword(s.cfg.Password.Policy)
	if err != nil {
		return err
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if err = s.mailer.Send(ctx, mail.Message{
		From:    s.cfg.Mail.From,
		To:      user.Email,
		Subject: "Nengtul temporary password",
		Text: fmt.Sprintf("Hello %s! Sign in with the temporary password below and change it right away.\n\nTemporary password: %s",
			user.Name, tempPassword),
	}); err != nil {
		return err
	}

	user.PasswordHash = string(hashedPassword)
	if err = s.users.Update(ctx, user); err != nil {
		return err
	}
	return s.users.ClearRefreshToken(ctx, user.Email)
}

// Quit deletes the account. The profile image is removed best effort.
func (s *UserService) Quit(ctx context.Context, email string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err = s.users.Delete(ctx, user.ID); err != nil {
		return err
	}
	if user.ProfileImageURL.Valid {
		s.deleteImage(ctx, user.ProfileImageURL.String)
	}
	return nil
}

func (s *UserService) findByEmail(ctx context.Context, email string) (*entity.User, error) {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) ensureUnique(ctx context.Context, exists func(context.Context, string) (bool, error), value string, conflict error) error {
	found, err := exists(ctx, value)
	if err != nil {
		return err
	}
	if found {
		return conflict
	}
	return nil
}

func (s *UserService) deleteImage(ctx context.Context, imageURL string) {
	if s.images == nil {
		return
	}
	if err := s.images.Delete(ctx, imageURL); err != nil {
		logrus.WithError(err).WithField("url", imageURL).Warn("Failed to delete profile image")
	}
}

func (s *UserService) sendVerification(ctx context.Context, user *entity.User, code string) error {
	link := fmt.Sprintf("%s/v1/user/verify?email=%s&code=%s",
		s.cfg.Verification.BaseURL, url.QueryEscape(user.Email), url.QueryEscape(code))

	return s.mailer.Send(ctx, mail.Message{
		From:    s.cfg.Mail.From,
		To:      user.Email,
		Subject: "Nengtul account verification",
		Text:    fmt.Sprintf("Hello %s! Follow the link to verify your email.\n\n%s", user.Name, link),
	})
}

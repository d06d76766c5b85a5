package http

import (
	"time"

	"github.com/vibast-solutions/ms-go-nengtul/app/entity"
)

type JoinResponse struct {
	UserID  uint64 `json:"user_id"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type FindEmailResponse struct {
	Email string `json:"email"`
}

type UserDetailResponse struct {
	ID              uint64    `json:"id"`
	Name            string    `json:"name"`
	Nickname        string    `json:"nickname"`
	Email           string    `json:"email"`
	PhoneNumber     string    `json:"phone_number"`
	Address         string    `json:"address"`
	AddressDetail   string    `json:"address_detail"`
	ProfileImageURL string    `json:"profile_image_url,omitempty"`
	EmailVerified   bool      `json:"email_verified"`
	CreatedAt       time.Time `json:"created_at"`
}

func NewUserDetailResponse(u *entity.User) *UserDetailResponse {
	return &UserDetailResponse{
		ID:              u.ID,
		Name:            u.Name,
		Nickname:        u.Nickname,
		Email:           u.Email,
		PhoneNumber:     u.PhoneNumber,
		Address:         u.Address,
		AddressDetail:   u.AddressDetail,
		ProfileImageURL: u.ProfileImageURL.String,
		EmailVerified:   u.EmailVerified,
		CreatedAt:       u.CreatedAt,
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

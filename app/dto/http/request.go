package http

type JoinRequest struct {
	Name          string `json:"name" validate:"required,max=50"`
	Nickname      string `json:"nickname" validate:"required,max=30"`
	Email         string `json:"email" validate:"required,email,max=254"`
	Password      string `json:"password" validate:"required"`
	PhoneNumber   string `json:"phone_number" validate:"required,max=20"`
	Address       string `json:"address" validate:"max=255"`
	AddressDetail string `json:"address_detail" validate:"max=255"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

type VerifyEmailRequest struct {
	Email string `query:"email" validate:"required,email,max=254"`
	Code  string `query:"code" validate:"required"`
}

type UpdateProfileRequest struct {
	Nickname      string `form:"nickname" validate:"required,max=30"`
	PhoneNumber   string `form:"phone_number" validate:"required,max=20"`
	Address       string `form:"address" validate:"max=255"`
	AddressDetail string `form:"address_detail" validate:"max=255"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type FindEmailRequest struct {
	Name        string `json:"name" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"required"`
}

type FindPasswordRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Name        string `json:"name" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"required"`
}

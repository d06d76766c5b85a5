package validator_test

import (
	"strings"
	"testing"

	"github.com/vibast-solutions/ms-go-nengtul/app/validator"
)

type sample struct {
	Email    string `json:"email" validate:"required,email"`
	Nickname string `json:"nickname" validate:"required,max=5"`
	Code     string `query:"code" validate:"required"`
}

func TestValidateReportsFieldNames(t *testing.T) {
	v := validator.New()

	err := v.Validate(&sample{Email: "nope", Nickname: "toolongname"})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{
		"email must be a valid email address",
		"nickname must be at most 5 characters long",
		"code is required",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}
}

func TestValidatePasses(t *testing.T) {
	v := validator.New()
	if err := v.Validate(&sample{Email: "user@example.com", Nickname: "kim", Code: "ABC"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

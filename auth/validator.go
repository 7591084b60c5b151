package auth

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SignupRequest is the body of POST /signup. Usernames are restricted
// to alphanumerics because they end up inside storage keys.
type SignupRequest struct {
	Username string `json:"username" validate:"required,alphanum,min=3,max=32"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

func ValidateSignup(req SignupRequest) error {
	return validate.Struct(req)
}

func ValidateLogin(req LoginRequest) error {
	return validate.Struct(req)
}

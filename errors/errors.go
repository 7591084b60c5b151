package errors

import "fmt"

var (
	// Admission errors. All three are fatal to the connection attempt.
	ErrMissingCredential = fmt.Errorf("authentication required")
	ErrInvalidCredential = fmt.Errorf("invalid or expired token")
	ErrCredentialExpired = fmt.Errorf("token expired, please log in again")

	// Account errors.
	ErrUserAlreadyExists  = fmt.Errorf("username or email already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid username or password")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrValidation         = fmt.Errorf("invalid request")

	// Messaging errors. Surfaced to the originating connection only.
	ErrPersistence = fmt.Errorf("message persistence failed")
)

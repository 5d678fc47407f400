package auth

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                 = errors.New("account not found")
	ErrInvalidCredentials       = errors.New("invalid email or password")
	ErrInvalidOTP               = errors.New("invalid or expired code")
	ErrEmailNotVerified         = errors.New("email not verified, please check your inbox")
	ErrAlreadyVerified          = errors.New("email already verified")
	ErrInvalidVerificationToken = errors.New("invalid verification token")
	ErrVerificationTokenExpired = errors.New("verification token has expired")
	ErrUnsupportedLoginMethod   = errors.New("login method must be one of: password, otp")

	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("insufficient role for this operation")
	ErrUpstream     = errors.New("upstream service failed")
)

// ValidationError reports the first field that failed input validation
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// upstream marks err as a failure of an external collaborator
func upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
}

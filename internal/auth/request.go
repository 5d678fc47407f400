package auth

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/redmonkez12/fmea-api/internal/user"
)

const (
	maxEmailLen    = 254
	minPasswordLen = 8
	maxPasswordLen = 128
	otpDigits      = 6
)

// Register intents
const (
	IntentRegister = "register"
	IntentResend   = "resend"
)

// Login methods
const (
	MethodPassword = "password"
	MethodOTP      = "otp"
)

// RegisterRequest is the body of POST /register.
// Intent selects the variant. When it is empty a body carrying only an email
// is treated as a resend.
type RegisterRequest struct {
	Intent   string `json:"intent,omitempty" example:"register"`
	Name     string `json:"name,omitempty" example:"Alice Smith"`
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password,omitempty" example:"correct-horse"`
	Role     string `json:"role,omitempty" example:"user"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// RegisterCommand is either FullRegistration or ResendVerification
type RegisterCommand interface {
	registerCommand()
}

// FullRegistration creates a new account
type FullRegistration struct {
	Name     string
	Email    string
	Password string
	Role     user.Role
	Phone    string
	Address  string
	Avatar   string // http(s) URL or upload reference
}

// ResendVerification issues a fresh verification link
type ResendVerification struct {
	Email string
}

func (FullRegistration) registerCommand()   {}
func (ResendVerification) registerCommand() {}

// Command validates the request and returns the selected variant
func (r RegisterRequest) Command() (RegisterCommand, error) {
	intent := strings.ToLower(strings.TrimSpace(r.Intent))
	if intent == "" {
		intent = IntentRegister
		if r.onlyEmail() {
			intent = IntentResend
		}
	}

	switch intent {
	case IntentResend:
		email, err := validateEmail(r.Email)
		if err != nil {
			return nil, err
		}
		return ResendVerification{Email: email}, nil
	case IntentRegister:
		return r.fullRegistration()
	default:
		return nil, invalid("intent", "intent must be one of: register, resend")
	}
}

func (r RegisterRequest) onlyEmail() bool {
	return r.Name == "" && r.Password == "" && r.Role == "" &&
		r.Phone == "" && r.Address == "" && r.Avatar == ""
}

func (r RegisterRequest) fullRegistration() (FullRegistration, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return FullRegistration{}, invalid("name", "name is required")
	}
	if utf8.RuneCountInString(name) > user.MaxNameLen {
		return FullRegistration{}, invalid("name", "name must be at most %d characters", user.MaxNameLen)
	}

	email, err := validateEmail(r.Email)
	if err != nil {
		return FullRegistration{}, err
	}

	if err := validatePassword("password", r.Password); err != nil {
		return FullRegistration{}, err
	}

	role, err := user.ParseRole(r.Role)
	if err != nil {
		return FullRegistration{}, invalid("role", "%s", err.Error())
	}

	phone := strings.TrimSpace(r.Phone)
	if len(phone) > user.MaxPhoneLen {
		return FullRegistration{}, invalid("phone", "phone must be at most %d characters", user.MaxPhoneLen)
	}

	address := strings.TrimSpace(r.Address)
	if utf8.RuneCountInString(address) > user.MaxAddressLen {
		return FullRegistration{}, invalid("address", "address must be at most %d characters", user.MaxAddressLen)
	}

	return FullRegistration{
		Name:     name,
		Email:    email,
		Password: r.Password,
		Role:     role,
		Phone:    phone,
		Address:  address,
		Avatar:   strings.TrimSpace(r.Avatar),
	}, nil
}

// LoginRequest is the body of POST /login. Method defaults to "password".
type LoginRequest struct {
	Method   string `json:"method,omitempty" example:"password"`
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password,omitempty"`
	OTP      string `json:"otp,omitempty" example:"123456"`
}

// LoginCommand is either CredentialLogin or OTPLogin
type LoginCommand interface {
	loginCommand()
}

// CredentialLogin authenticates with email and password
type CredentialLogin struct {
	Email    string
	Password string
}

// OTPLogin authenticates with an emailed one-time code
type OTPLogin struct {
	Email string
	Code  string
}

func (CredentialLogin) loginCommand() {}
func (OTPLogin) loginCommand()        {}

// Command validates the request and returns the selected variant
func (r LoginRequest) Command() (LoginCommand, error) {
	method := strings.ToLower(strings.TrimSpace(r.Method))
	if method == "" {
		method = MethodPassword
	}

	switch method {
	case MethodPassword:
		email, err := validateEmail(r.Email)
		if err != nil {
			return nil, err
		}
		if r.Password == "" {
			return nil, invalid("password", "password is required")
		}
		return CredentialLogin{Email: email, Password: r.Password}, nil
	case MethodOTP:
		cmd, err := VerifyOTPRequest{Email: r.Email, OTP: r.OTP}.Command()
		if err != nil {
			return nil, err
		}
		return cmd, nil
	default:
		return nil, ErrUnsupportedLoginMethod
	}
}

// VerifyOTPRequest is the body of POST /verify-otp
type VerifyOTPRequest struct {
	Email string `json:"email" example:"alice@example.com"`
	OTP   string `json:"otp" example:"123456"`
}

func (r VerifyOTPRequest) Command() (OTPLogin, error) {
	email, err := validateEmail(r.Email)
	if err != nil {
		return OTPLogin{}, err
	}

	code := strings.TrimSpace(r.OTP)
	if len(code) != otpDigits || strings.Trim(code, "0123456789") != "" {
		return OTPLogin{}, invalid("otp", "otp must be a %d-digit code", otpDigits)
	}

	return OTPLogin{Email: email, Code: code}, nil
}

// EmailRequest is the body of endpoints that take only an email
type EmailRequest struct {
	Email string `json:"email" example:"alice@example.com"`
}

// UpdatePasswordRequest is the body of PUT /update-password
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (r UpdatePasswordRequest) Validate() error {
	if r.CurrentPassword == "" {
		return invalid("currentPassword", "current password is required")
	}
	return validatePassword("newPassword", r.NewPassword)
}

// ResetPasswordRequest is the body of POST /reset-password
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (r ResetPasswordRequest) Validate() error {
	if strings.TrimSpace(r.Token) == "" {
		return invalid("token", "token is required")
	}
	return validatePassword("newPassword", r.NewPassword)
}

func validateEmail(raw string) (string, error) {
	email := user.NormalizeEmail(raw)
	if email == "" {
		return "", invalid("email", "email is required")
	}
	if len(email) > maxEmailLen {
		return "", invalid("email", "email must be at most %d characters", maxEmailLen)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("email", "invalid email format")
	}

	return email, nil
}

func validatePassword(field, password string) error {
	switch {
	case password == "":
		return invalid(field, "password is required")
	case utf8.RuneCountInString(password) < minPasswordLen:
		return invalid(field, "password must be at least %d characters", minPasswordLen)
	case len(password) > maxPasswordLen:
		return invalid(field, "password must be at most %d bytes", maxPasswordLen)
	}
	return nil
}

package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/fmea-api/internal/user"
)

func TestRegisterRequest_Command(t *testing.T) {
	tests := []struct {
		name      string
		req       RegisterRequest
		want      RegisterCommand
		wantField string
	}{
		{
			name: "email only is a resend",
			req:  RegisterRequest{Email: " Alice@Example.com "},
			want: ResendVerification{Email: "alice@example.com"},
		},
		{
			name: "explicit resend ignores other fields",
			req:  RegisterRequest{Intent: "resend", Email: "alice@example.com", Name: "Alice"},
			want: ResendVerification{Email: "alice@example.com"},
		},
		{
			name: "full registration defaults role",
			req:  RegisterRequest{Name: " Alice ", Email: "alice@example.com", Password: "correct-horse"},
			want: FullRegistration{Name: "Alice", Email: "alice@example.com", Password: "correct-horse", Role: user.RoleUser},
		},
		{
			name: "full registration keeps optional fields",
			req: RegisterRequest{
				Name: "Bob", Email: "bob@example.com", Password: "correct-horse", Role: "admin",
				Phone: "+420 123", Address: "Main St 1", Avatar: "https://img.example/b.png",
			},
			want: FullRegistration{
				Name: "Bob", Email: "bob@example.com", Password: "correct-horse", Role: user.RoleAdmin,
				Phone: "+420 123", Address: "Main St 1", Avatar: "https://img.example/b.png",
			},
		},
		{
			name:      "missing name",
			req:       RegisterRequest{Intent: "register", Email: "alice@example.com", Password: "correct-horse"},
			wantField: "name",
		},
		{
			name:      "bad email reported before password",
			req:       RegisterRequest{Name: "Alice", Email: "not-an-email", Password: "x"},
			wantField: "email",
		},
		{
			name:      "display-name email rejected",
			req:       RegisterRequest{Email: "Alice <alice@example.com>"},
			wantField: "email",
		},
		{
			name:      "short password",
			req:       RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "short"},
			wantField: "password",
		},
		{
			name:      "unknown role",
			req:       RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "correct-horse", Role: "root"},
			wantField: "role",
		},
		{
			name:      "long phone",
			req:       RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "correct-horse", Phone: strings.Repeat("1", 33)},
			wantField: "phone",
		},
		{
			name:      "unknown intent",
			req:       RegisterRequest{Intent: "delete", Email: "alice@example.com"},
			wantField: "intent",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.req.Command()
			if tc.wantField != "" {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tc.wantField, verr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLoginRequest_Command(t *testing.T) {
	cmd, err := LoginRequest{Email: "Alice@example.com", Password: "otp"}.Command()
	require.NoError(t, err)
	assert.Equal(t, CredentialLogin{Email: "alice@example.com", Password: "otp"}, cmd,
		"a password that happens to read otp is still just a password")

	cmd, err = LoginRequest{Method: "OTP", Email: "alice@example.com", OTP: " 123456 "}.Command()
	require.NoError(t, err)
	assert.Equal(t, OTPLogin{Email: "alice@example.com", Code: "123456"}, cmd)

	_, err = LoginRequest{Method: "otp", Email: "alice@example.com", OTP: "12a456"}.Command()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "otp", verr.Field)

	_, err = LoginRequest{Email: "alice@example.com"}.Command()
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "password", verr.Field)

	_, err = LoginRequest{Method: "magic-link", Email: "alice@example.com"}.Command()
	assert.ErrorIs(t, err, ErrUnsupportedLoginMethod)
}

package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/redmonkez12/fmea-api/internal/httputil"
	"github.com/redmonkez12/fmea-api/internal/logging"
	"github.com/redmonkez12/fmea-api/internal/user"
)

// Rate limit purposes
const (
	purposeRegister      = "register"
	purposeLogin         = "login"
	purposeRequestOTP    = "request-otp"
	purposeVerifyOTP     = "verify-otp"
	purposeVerification  = "verification"
	purposePasswordReset = "password-reset"
)

// RateLimiter throttles requests per client IP and emails per address
type RateLimiter interface {
	CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error)
	RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error
	CheckEmailCooldown(ctx context.Context, purpose, email string) (bool, error)
	SetEmailCooldown(ctx context.Context, purpose, email string) error
}

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service       *Service
	rateLimiter   RateLimiter
	cookieName    string
	secureCookies bool
}

func NewHandler(service *Service, rateLimiter RateLimiter, cookieName string, secureCookies bool) *Handler {
	return &Handler{
		service:       service,
		rateLimiter:   rateLimiter,
		cookieName:    cookieName,
		secureCookies: secureCookies,
	}
}

// RegisterResponse represents the registration response
type RegisterResponse struct {
	User    *user.User `json:"user"`
	Message string     `json:"message"`
}

// SessionResponse is returned after a successful login. Token is omitted when
// the session is delivered as a cookie.
type SessionResponse struct {
	Message   string    `json:"message"`
	Token     string    `json:"token,omitempty"`
	TokenType string    `json:"tokenType,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      Identity  `json:"user"`
}

// Register handles both registration variants
// @Summary      Register or resend verification
// @Description  With intent "register" (or any field besides email) creates an account and emails a verification link. A duplicate unverified email gets a fresh link instead. With intent "resend" (or only an email) resends the link.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration or resend request"
// @Success      201 {object} RegisterResponse "Account created"
// @Success      200 {object} httputil.MessageResponse "Verification resent"
// @Failure      400 {object} httputil.ErrorResponse "Validation error or already verified"
// @Failure      404 {object} httputil.ErrorResponse "Unknown email (resend)"
// @Failure      409 {object} httputil.ErrorResponse "Email already registered and verified"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      502 {object} httputil.ErrorResponse "Email delivery failed"
// @Router       /register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req RegisterRequest
	if !decodeBody(w, r, logger, &req) {
		return
	}

	h.register(w, r, logger, req)
}

// ResendVerification handles the explicit resend endpoint
// @Summary      Resend verification email
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body EmailRequest true "Email address"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Already verified"
// @Failure      404 {object} httputil.ErrorResponse "Unknown email"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /register/resend [post]
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req EmailRequest
	if !decodeBody(w, r, logger, &req) {
		return
	}

	h.register(w, r, logger, RegisterRequest{Intent: IntentResend, Email: req.Email})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request, logger *logging.Logger, req RegisterRequest) {
	if !h.allow(w, r, logger, purposeRegister) {
		return
	}

	cmd, err := req.Command()
	if err != nil {
		respondServiceError(w, logger, "registration", err)
		return
	}

	var email string
	switch c := cmd.(type) {
	case FullRegistration:
		email = c.Email
	case ResendVerification:
		email = c.Email
		if h.coolingDown(w, r, logger, purposeVerification, email) {
			return
		}
	}

	logger = logger.WithFields(map[string]any{"email": email})

	result, err := h.service.Register(r.Context(), cmd)
	if err != nil {
		respondServiceError(w, logger, "registration", err)
		return
	}

	h.startCooldown(r.Context(), logger, purposeVerification, email)

	if result.Outcome == VerificationResent {
		logger.Info("verification email resent", "user_id", result.User.ID)
		respondJSON(w, httputil.MessageResponse{
			Message: "A new verification link has been sent to your email.",
		}, http.StatusOK)
		return
	}

	logger.Info("user registered successfully", "user_id", result.User.ID, "role", result.User.Role)

	respondJSON(w, RegisterResponse{
		User:    result.User,
		Message: "Registration successful. Please check your email to verify your account.",
	}, http.StatusCreated)
}

// VerifyEmail handles email verification
// @Summary      Verify email address
// @Description  Consume a verification token from the emailed link
// @Tags         auth
// @Produce      json
// @Param        token query string true "Verification token"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Missing, invalid or expired token"
// @Router       /verify-email [get]
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "verification token is required", httputil.CodeVerificationTokenRequired, http.StatusBadRequest)
		return
	}

	if err := h.service.VerifyEmail(r.Context(), token); err != nil {
		respondServiceError(w, logger, "email verification", err)
		return
	}

	logger.Info("email verified successfully")

	respondJSON(w, httputil.MessageResponse{
		Message: "Email verified successfully. You can now log in.",
	}, http.StatusOK)
}

// RequestOTP emails a one-time login code
// @Summary      Request a login code
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body EmailRequest true "Email address"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid email"
// @Failure      404 {object} httputil.ErrorResponse "Unknown email"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      502 {object} httputil.ErrorResponse "Email delivery failed"
// @Router       /request-otp [post]
func (h *Handler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req EmailRequest
	if !decodeBody(w, r, logger, &req) {
		return
	}

	email, err := validateEmail(req.Email)
	if err != nil {
		respondServiceError(w, logger, "otp request", err)
		return
	}
	logger = logger.WithFields(map[string]any{"email": email})

	if !h.allow(w, r, logger, purposeRequestOTP) || h.coolingDown(w, r, logger, purposeRequestOTP, email) {
		return
	}

	if err := h.service.RequestOTP(r.Context(), email); err != nil {
		respondServiceError(w, logger, "otp request", err)
		return
	}

	h.startCooldown(r.Context(), logger, purposeRequestOTP, email)
	logger.Info("otp issued")

	respondJSON(w, httputil.MessageResponse{
		Message: "A login code has been sent to your email.",
	}, http.StatusOK)
}

// VerifyOTP logs in with an emailed code
// @Summary      Log in with a one-time code
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body VerifyOTPRequest true "Email and code"
// @Success      200 {object} SessionResponse
// @Failure      400 {object} httputil.ErrorResponse "Malformed code"
// @Failure      401 {object} httputil.ErrorResponse "Wrong or expired code"
// @Failure      403 {object} httputil.ErrorResponse "Email not verified"
// @Failure      404 {object} httputil.ErrorResponse "Unknown email"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /verify-otp [post]
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allow(w, r, logger, purposeVerifyOTP) {
		return
	}

	var req VerifyOTPRequest
	if !decodeBody(w, r, logger, &req) {
		return
	}

	cmd, err := req.Command()
	if err != nil {
		respondServiceError(w, logger, "otp login", err)
		return
	}

	h.login(w, r, logger.WithFields(map[string]any{"email": cmd.Email, "method": MethodOTP}), cmd)
}

// Login handles both login variants
// @Summary      Log in
// @Description  method "password" (default) checks email and password, method "otp" checks an emailed code. Browsers receive the session as an HttpOnly cookie, other clients in the body.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login request"
// @Success      200 {object} SessionResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials or code"
// @Failure      403 {object} httputil.ErrorResponse "Email not verified"
// @Failure      404 {object} httputil.ErrorResponse "Unknown email"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allow(w, r, logger, purposeLogin) {
		return
	}

	var req LoginRequest
	if !decodeBody(w, r, logger, &req) {
		return
	}

	cmd, err := req.Command()
	if err != nil {
		respondServiceError(w, logger, "login", err)
		return
	}

	h.login(w, r, logger.WithFields(map[string]any{"email": user.NormalizeEmail(req.Email)}), cmd)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, logger *logging.Logger, cmd LoginCommand) {
	session, err := h.service.Login(r.Context(), cmd)
	if err != nil {
		respondServiceError(w, logger, "login", err)
		return
	}

	logger.Info("user logged in successfully", "user_id", session.Claims.UserID)

	resp := SessionResponse{
		Message:   "logged in successfully",
		ExpiresAt: session.ExpiresAt,
		User:      session.Claims.Identity,
	}

	// Set cookies if request is from browser
	if ShouldUseCookies(r) {
		SetSessionCookie(w, h.cookieName, session.Token, session.ExpiresAt, h.secureCookies)
	} else {
		resp.Token = session.Token
		resp.TokenType = "Bearer"
	}

	respondJSON(w, resp, http.StatusOK)
}

// Logout handles user logout
// @Summary      Log out
// @Description  Revoke the presented session and clear the session cookie
// @Tags         auth
// @Produce      json
// @Success      200 {object} httputil.MessageResponse
// @Router       /logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	token, _ := SessionToken(r, h.cookieName)
	if err := h.service.Logout(r.Context(), token); err != nil {
		logger.Error("failed to revoke session", "error", err.Error())
		respondError(w, "failed to logout", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	ClearSessionCookie(w, h.cookieName, h.secureCookies)

	logger.Info("user logged out successfully")

	respondJSON(w, httputil.MessageResponse{Message: "logged out"}, http.StatusOK)
}

// UpdatePassword changes the password of the signed-in user
// @Summary      Change password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body UpdatePasswordRequest true "Current and new password"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Not signed in or wrong current password"
// @Router       /update-password [put]
func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}
	logger = logger.WithFields(map[string]any{"user_id": userID})

	var req UpdatePasswordRequest
	if !decodeBody(w, r, logger, &req) {
		return
	}

	if err := h.service.UpdatePassword(r.Context(), userID, req); err != nil {
		respondServiceError(w, logger, "password update", err)
		return
	}

	logger.Info("password updated")

	respondJSON(w, httputil.MessageResponse{Message: "Password updated successfully."}, http.StatusOK)
}

// ForgotPassword handles password reset requests
// @Summary      Request password reset
// @Description  Send a password reset link to the user's email. Always returns success to prevent email enumeration.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body EmailRequest true "Email address"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /forgot-password [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req EmailRequest
	if !decodeBody(w, r, logger, &req) {
		return
	}

	email, err := validateEmail(req.Email)
	if err != nil {
		respondServiceError(w, logger, "password reset request", err)
		return
	}

	if !h.allow(w, r, logger, purposePasswordReset) || h.coolingDown(w, r, logger, purposePasswordReset, email) {
		return
	}
	h.startCooldown(r.Context(), logger, purposePasswordReset, email)

	// Process request (always returns nil for security)
	_ = h.service.RequestPasswordReset(r.Context(), email)

	respondJSON(w, httputil.MessageResponse{
		Message: "If an account exists with that email, a password reset link has been sent.",
	}, http.StatusOK)
}

// ResetPassword handles password reset with token
// @Summary      Reset password
// @Description  Reset a user's password using a valid reset token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ResetPasswordRequest true "Reset token and new password"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request or token"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /reset-password [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ResetPasswordRequest
	if !decodeBody(w, r, logger, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), req); err != nil {
		respondServiceError(w, logger, "password reset", err)
		return
	}

	logger.Info("password reset successfully")

	respondJSON(w, httputil.MessageResponse{
		Message: "Password reset successfully. You can now login with your new password.",
	}, http.StatusOK)
}

// allow applies the per-IP limit for purpose and counts the request.
// Limiter failures are logged and let the request through.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, logger *logging.Logger, purpose string) bool {
	if h.rateLimiter == nil {
		return true
	}

	ip := getClientIP(r)
	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, purpose)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return false
	}

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, purpose); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}

	return true
}

// coolingDown responds 429 when an email for purpose went to email recently
func (h *Handler) coolingDown(w http.ResponseWriter, r *http.Request, logger *logging.Logger, purpose, email string) bool {
	if h.rateLimiter == nil {
		return false
	}

	onCooldown, err := h.rateLimiter.CheckEmailCooldown(r.Context(), purpose, email)
	if err != nil {
		logger.Error("failed to check email cooldown", "error", err.Error())
		return false
	}
	if onCooldown {
		logger.Warn("email on cooldown", "purpose", purpose)
		respondError(w, "please wait before requesting another email", httputil.CodeCooldownActive, http.StatusTooManyRequests)
		return true
	}

	return false
}

func (h *Handler) startCooldown(ctx context.Context, logger *logging.Logger, purpose, email string) {
	if h.rateLimiter == nil {
		return
	}
	if err := h.rateLimiter.SetEmailCooldown(ctx, purpose, email); err != nil {
		logger.Error("failed to set email cooldown", "error", err.Error())
	}
}

// respondServiceError maps service errors to HTTP responses. Unexpected
// errors are logged and reported without detail.
func respondServiceError(w http.ResponseWriter, logger *logging.Logger, action string, err error) {
	var verr *ValidationError

	switch {
	case errors.As(err, &verr):
		logger.Warn(action+" failed: validation error", "field", verr.Field, "error", verr.Message)
		respondError(w, verr.Message, httputil.CodeValidationFailed, http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		logger.Warn(action + " failed: account not found")
		respondError(w, "account not found", httputil.CodeUserNotFound, http.StatusNotFound)
	case errors.Is(err, ErrInvalidCredentials):
		logger.Warn(action + " failed: invalid credentials")
		respondError(w, ErrInvalidCredentials.Error(), httputil.CodeInvalidCredentials, http.StatusUnauthorized)
	case errors.Is(err, ErrInvalidOTP):
		logger.Warn(action + " failed: invalid otp")
		respondError(w, ErrInvalidOTP.Error(), httputil.CodeInvalidOTP, http.StatusUnauthorized)
	case errors.Is(err, ErrEmailNotVerified):
		logger.Warn(action + " failed: email not verified")
		respondError(w, ErrEmailNotVerified.Error(), httputil.CodeEmailNotVerified, http.StatusForbidden)
	case errors.Is(err, ErrAlreadyVerified):
		logger.Warn(action + " failed: already verified")
		respondError(w, ErrAlreadyVerified.Error(), httputil.CodeAlreadyVerified, http.StatusBadRequest)
	case errors.Is(err, user.ErrDuplicateEmail):
		logger.Warn(action + " failed: email already exists")
		respondError(w, "email already exists", httputil.CodeEmailAlreadyExists, http.StatusConflict)
	case errors.Is(err, ErrInvalidVerificationToken):
		logger.Warn(action + " failed: invalid token")
		respondError(w, ErrInvalidVerificationToken.Error(), httputil.CodeVerificationFailed, http.StatusBadRequest)
	case errors.Is(err, ErrVerificationTokenExpired):
		logger.Warn(action + " failed: token expired")
		respondError(w, ErrVerificationTokenExpired.Error(), httputil.CodeTokenExpired, http.StatusBadRequest)
	case errors.Is(err, ErrPasswordResetTokenNotFound):
		logger.Warn(action + " failed: invalid or expired reset token")
		respondError(w, ErrPasswordResetTokenNotFound.Error(), httputil.CodeInvalidResetToken, http.StatusBadRequest)
	case errors.Is(err, ErrUnsupportedLoginMethod):
		logger.Warn(action + " failed: unsupported method")
		respondError(w, ErrUnsupportedLoginMethod.Error(), httputil.CodeUnsupportedLogin, http.StatusBadRequest)
	case errors.Is(err, ErrUpstream):
		logger.Error(action+" failed: upstream error", "error", err.Error())
		respondError(w, "an external service failed, please try again later", httputil.CodeUpstreamFailure, http.StatusBadGateway)
	default:
		logger.Error(action+" failed: internal error", "error", err.Error())
		respondError(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, logger *logging.Logger, v any) bool {
	if err := httputil.DecodeJSON(w, r, v); err != nil {
		logger.Warn("invalid request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return false
	}
	return true
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	httputil.RespondJSON(w, data, statusCode)
}

// respondError sends an error response with a machine-readable code
func respondError(w http.ResponseWriter, message string, code string, statusCode int) {
	httputil.RespondErrorWithCode(w, message, code, statusCode)
}

// getClientIP returns the host part of RemoteAddr. The router's RealIP
// middleware has already applied X-Forwarded-For / X-Real-IP.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

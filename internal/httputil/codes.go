package httputil

// Machine-readable error codes returned in ErrorResponse.Code
const (
	CodeInternalError      = "INTERNAL_ERROR"
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeCooldownActive     = "COOLDOWN_ACTIVE"
	CodeUpstreamFailure    = "UPSTREAM_FAILURE"
	CodeNotFound           = "NOT_FOUND"

	// Registration and verification
	CodeEmailAlreadyExists        = "EMAIL_ALREADY_EXISTS"
	CodeUserNotFound              = "USER_NOT_FOUND"
	CodeAlreadyVerified           = "ALREADY_VERIFIED"
	CodeVerificationTokenRequired = "VERIFICATION_TOKEN_REQUIRED"
	CodeVerificationFailed        = "VERIFICATION_FAILED"
	CodeTokenExpired              = "TOKEN_EXPIRED"

	// Login and sessions
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidOTP         = "INVALID_OTP"
	CodeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
	CodeUnsupportedLogin   = "UNSUPPORTED_LOGIN_METHOD"
	CodeInvalidResetToken  = "INVALID_RESET_TOKEN"

	// Route guard
	CodeMissingAuth       = "MISSING_AUTH"
	CodeInvalidAuthHeader = "INVALID_AUTH_HEADER"
	CodeInvalidToken      = "INVALID_TOKEN"
	CodeSessionRevoked    = "SESSION_REVOKED"
	CodeForbidden         = "FORBIDDEN"

	// Equipment
	CodeEquipmentNotFound = "EQUIPMENT_NOT_FOUND"
	CodeDuplicateTag      = "DUPLICATE_TAG"

	// Uploads
	CodeInvalidUpload = "INVALID_UPLOAD"
)

package constants

const (
	// Shared transport-agnostic errors
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodePayloadTooLarge = "PAYLOAD_TOO_LARGE"

	// Authentication domain errors
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeInvalidToken        = "INVALID_TOKEN"
	ErrCodeNonceMismatch       = "NONCE_MISMATCH"
	ErrCodeCodeExpired         = "CODE_EXPIRED"
	ErrCodeCodeMismatch        = "CODE_MISMATCH"
	ErrCodeNoActiveCode        = "NO_ACTIVE_CODE"
	ErrCodeDuplicateAccount    = "DUPLICATE_ACCOUNT"
	ErrCodeAccountDisabled     = "ACCOUNT_DISABLED"
	ErrCodeEmailNotVerified    = "EMAIL_NOT_VERIFIED"
	ErrCodePhoneNotVerified    = "PHONE_NOT_VERIFIED"
	ErrCodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	ErrCodeSessionExpired      = "SESSION_EXPIRED"
)

const IDRandomBytes = 16

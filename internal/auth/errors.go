package auth

import (
	"errors"

	"hotride/internal/constants"
)

// Kind is the stable machine-readable classification of an authentication
// failure. Values double as wire error codes.
type Kind string

const (
	KindInvalidCredentials  Kind = constants.ErrCodeInvalidCredentials
	KindInvalidToken        Kind = constants.ErrCodeInvalidToken
	KindNonceMismatch       Kind = constants.ErrCodeNonceMismatch
	KindCodeExpired         Kind = constants.ErrCodeCodeExpired
	KindCodeMismatch        Kind = constants.ErrCodeCodeMismatch
	KindNoActiveCode        Kind = constants.ErrCodeNoActiveCode
	KindDuplicateAccount    Kind = constants.ErrCodeDuplicateAccount
	KindAccountDisabled     Kind = constants.ErrCodeAccountDisabled
	KindEmailNotVerified    Kind = constants.ErrCodeEmailNotVerified
	KindPhoneNotVerified    Kind = constants.ErrCodePhoneNotVerified
	KindProviderUnavailable Kind = constants.ErrCodeProviderUnavailable
	KindSessionExpired      Kind = constants.ErrCodeSessionExpired
	KindRateLimited         Kind = constants.ErrCodeRateLimited
	KindInvalidRequest      Kind = constants.ErrCodeInvalidRequest
)

// Error is a typed authentication failure. The message is safe to show to
// the end user; wrapped causes are for logs only.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf extracts the Kind from an error chain, or "" for untyped errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

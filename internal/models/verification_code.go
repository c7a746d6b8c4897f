package models

import "time"

// Purpose distinguishes what a verification code proves. Each purpose has its
// own live-code slot per target.
type Purpose string

const (
	PurposeEmailVerify   Purpose = "email_verify"
	PurposePhoneVerify   Purpose = "phone_verify"
	PurposePasswordReset Purpose = "password_reset"
)

// VerificationCode rows store only a hash of the code. A row is live while
// used_at and superseded_at are both NULL and expires_at is in the future.
type VerificationCode struct {
	ID           string
	Purpose      Purpose
	Target       string
	CodeHash     string
	ExpiresAt    time.Time
	UsedAt       *time.Time
	SupersededAt *time.Time
	Attempts     int
	CreatedAt    time.Time
}

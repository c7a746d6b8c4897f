package models

import "time"

// Provider identifies which credential branch created an account.
// It is set once at creation and never changes.
type Provider string

const (
	ProviderEmail  Provider = "email"
	ProviderGoogle Provider = "google"
	ProviderApple  Provider = "apple"
)

type Account struct {
	ID                string     `json:"id"`
	Email             *string    `json:"email,omitempty"`
	Phone             *string    `json:"phone,omitempty"`
	EmailVerified     bool       `json:"emailVerified"`
	PhoneVerified     bool       `json:"phoneVerified"`
	Provider          Provider   `json:"oauthProvider"`
	OAuthSubject      *string    `json:"-"`
	PasswordHash      *string    `json:"-"`
	FullName          *string    `json:"fullName,omitempty"`
	ProfilePictureURL *string    `json:"profilePictureUrl,omitempty"`
	ProfileCompleted  bool       `json:"profileCompleted"`
	Active            bool       `json:"-"`
	SessionVersion    int        `json:"-"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         *time.Time `json:"updatedAt,omitempty"`
}

func (a *Account) GetEmail() string {
	if a.Email != nil {
		return *a.Email
	}
	return ""
}

func (a *Account) GetPhone() string {
	if a.Phone != nil {
		return *a.Phone
	}
	return ""
}

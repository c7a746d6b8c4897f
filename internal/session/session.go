// Package session implements the client-held session: an opaque bearer token
// plus a cached snapshot of the account, persisted in two fixed storage
// slots. The token is never parsed client-side; the server is the only judge
// of its validity.
package session

import (
	"time"

	"hotride/internal/models"
)

type Session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
	User      *models.Account `json:"user"`
}

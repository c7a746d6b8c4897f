package auth

import (
	"errors"
	"fmt"
	netmail "net/mail"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// dummyHash is compared against when the identifier resolves to no account,
// keeping the unknown-identifier path as slow as the wrong-password path.
var dummyHash = []byte("$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW")

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored bcrypt hash.
// bcrypt's comparison is constant-time over the derived key.
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false
	}
	return err == nil
}

// BurnPasswordCheck runs a bcrypt comparison against a throwaway hash.
func BurnPasswordCheck(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

var phoneRegex = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// IdentifierKind classifies a login identifier as an email address or a
// phone number by format.
type IdentifierKind int

const (
	IdentifierInvalid IdentifierKind = iota
	IdentifierEmail
	IdentifierPhone
)

func SniffIdentifier(identifier string) IdentifierKind {
	if _, err := netmail.ParseAddress(identifier); err == nil {
		return IdentifierEmail
	}
	if phoneRegex.MatchString(identifier) {
		return IdentifierPhone
	}
	return IdentifierInvalid
}

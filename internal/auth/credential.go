package auth

import (
	"context"
	"errors"

	"hotride/internal/db"
	"hotride/internal/models"
)

// Credential is the closed set of ways a rider can prove who they are.
// Each variant carries exactly the fields its exchange protocol needs.
type Credential interface {
	Provider() models.Provider
}

type PasswordCredential struct {
	Identifier string // email or phone, format-sniffed
	Password   string
}

type GoogleCredential struct {
	IDToken string
}

// AppleCredential carries the identity token plus the raw nonce generated for
// this sign-in attempt. User is only populated on first consent; Apple omits
// name and email from every later sign-in.
type AppleCredential struct {
	IdentityToken string
	Nonce         string
	User          *AppleUser
}

type AppleUser struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

func (PasswordCredential) Provider() models.Provider { return models.ProviderEmail }
func (GoogleCredential) Provider() models.Provider   { return models.ProviderGoogle }
func (AppleCredential) Provider() models.Provider    { return models.ProviderApple }

// ProviderClaims are the verified claims extracted from an identity
// provider's token. Never populated from unverified input.
type ProviderClaims struct {
	Subject       string
	Email         string
	EmailVerified bool
	FullName      string
	PictureURL    string
}

type GoogleTokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*ProviderClaims, error)
}

type AppleTokenVerifier interface {
	Verify(ctx context.Context, identityToken, nonce string) (*ProviderClaims, error)
}

// Verifier resolves a Credential to an Account, creating one on first OAuth
// sign-in. It never mutates password credentials.
type Verifier struct {
	accounts *db.AccountRepository
	google   GoogleTokenVerifier
	apple    AppleTokenVerifier
}

func NewVerifier(accounts *db.AccountRepository, google GoogleTokenVerifier, apple AppleTokenVerifier) *Verifier {
	return &Verifier{accounts: accounts, google: google, apple: apple}
}

func (v *Verifier) Verify(ctx context.Context, cred Credential) (*models.Account, error) {
	switch c := cred.(type) {
	case PasswordCredential:
		return v.verifyPassword(c)
	case GoogleCredential:
		return v.verifyGoogle(ctx, c)
	case AppleCredential:
		return v.verifyApple(ctx, c)
	default:
		return nil, E(KindInvalidRequest, "unsupported credential type")
	}
}

// verifyPassword deliberately reports one error for unknown identifier,
// wrong password, and passwordless account, and burns a hash comparison on
// the miss paths so response timing does not reveal which case occurred.
func (v *Verifier) verifyPassword(c PasswordCredential) (*models.Account, error) {
	var account *models.Account
	var err error

	switch SniffIdentifier(c.Identifier) {
	case IdentifierEmail:
		account, err = v.accounts.FindByEmail(c.Identifier)
	case IdentifierPhone:
		account, err = v.accounts.FindByPhone(c.Identifier)
	default:
		return nil, E(KindInvalidRequest, "enter a valid email address or phone number")
	}

	if errors.Is(err, db.ErrNotFound) {
		BurnPasswordCheck(c.Password)
		return nil, E(KindInvalidCredentials, "invalid email/phone or password")
	}
	if err != nil {
		return nil, err
	}

	if account.PasswordHash == nil {
		BurnPasswordCheck(c.Password)
		return nil, E(KindInvalidCredentials, "invalid email/phone or password")
	}

	if !CheckPassword(c.Password, *account.PasswordHash) {
		return nil, E(KindInvalidCredentials, "invalid email/phone or password")
	}

	if !account.Active {
		return nil, E(KindAccountDisabled, "your account has been suspended, contact support")
	}

	return account, nil
}

func (v *Verifier) verifyGoogle(ctx context.Context, c GoogleCredential) (*models.Account, error) {
	claims, err := v.google.Verify(ctx, c.IDToken)
	if err != nil {
		return nil, err
	}
	if claims.Email == "" {
		return nil, E(KindInvalidToken, "email not provided by Google")
	}

	return v.resolveOAuthAccount(models.ProviderGoogle, claims)
}

func (v *Verifier) verifyApple(ctx context.Context, c AppleCredential) (*models.Account, error) {
	claims, err := v.apple.Verify(ctx, c.IdentityToken, c.Nonce)
	if err != nil {
		return nil, err
	}

	// Apple sends email and name only on first consent; trust the
	// client-relayed copy solely as a fallback for that first sign-in.
	if claims.Email == "" && c.User != nil {
		claims.Email = c.User.Email
	}
	if claims.FullName == "" && c.User != nil {
		claims.FullName = c.User.FullName
	}

	if claims.Email == "" {
		account, err := v.accounts.FindByOAuthSubject(models.ProviderApple, claims.Subject)
		if errors.Is(err, db.ErrNotFound) {
			return nil, E(KindInvalidToken, "email not provided by Apple, please try again")
		}
		if err != nil {
			return nil, err
		}
		if !account.Active {
			return nil, E(KindAccountDisabled, "your account has been suspended, contact support")
		}
		return account, nil
	}

	return v.resolveOAuthAccount(models.ProviderApple, claims)
}

// resolveOAuthAccount locates the account for verified provider claims, or
// creates it on first sign-in. Provider accounts are identity-verified at
// creation; no email-code step follows.
func (v *Verifier) resolveOAuthAccount(provider models.Provider, claims *ProviderClaims) (*models.Account, error) {
	account, err := v.accounts.FindByOAuthSubject(provider, claims.Subject)
	if err == nil {
		if !account.Active {
			return nil, E(KindAccountDisabled, "your account has been suspended, contact support")
		}
		return account, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	existing, err := v.accounts.FindByEmail(claims.Email)
	if err == nil {
		if existing.Provider != provider {
			return nil, E(KindDuplicateAccount, "an account with this email already exists, please log in with the method you signed up with")
		}
		if !existing.Active {
			return nil, E(KindAccountDisabled, "your account has been suspended, contact support")
		}
		return existing, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	params := db.CreateAccountParams{
		Email:         &claims.Email,
		EmailVerified: true,
		Provider:      provider,
		OAuthSubject:  &claims.Subject,
	}
	if claims.FullName != "" {
		params.FullName = &claims.FullName
	}
	if claims.PictureURL != "" {
		params.ProfilePictureURL = &claims.PictureURL
	}

	account, err = v.accounts.Create(params)
	if errors.Is(err, db.ErrDuplicate) {
		return nil, E(KindDuplicateAccount, "an account with this email already exists")
	}
	if err != nil {
		return nil, err
	}

	return account, nil
}

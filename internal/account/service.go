package account

import (
	"context"
	"errors"
	"strings"

	"hotride/internal/auth"
	"hotride/internal/db"
	"hotride/internal/models"
	"hotride/internal/session"
	"hotride/internal/verify"
)

// RevocationNotifier is told when every outstanding token for an account has
// been invalidated, so connected clients can drop their session immediately.
type RevocationNotifier interface {
	SessionRevoked(accountID string)
}

// Service drives the account state machine. It is the only writer of account
// state transitions; handlers and other packages go through it.
type Service struct {
	accounts *db.AccountRepository
	verifier *auth.Verifier
	codes    *verify.Manager
	tokens   *auth.TokenService
	notifier RevocationNotifier
}

func NewService(
	accounts *db.AccountRepository,
	verifier *auth.Verifier,
	codes *verify.Manager,
	tokens *auth.TokenService,
	notifier RevocationNotifier,
) *Service {
	return &Service{
		accounts: accounts,
		verifier: verifier,
		codes:    codes,
		tokens:   tokens,
		notifier: notifier,
	}
}

// Register creates a password account and issues the email verification
// code. A duplicate email fails before any code is issued.
func (s *Service) Register(ctx context.Context, fullName, email, password string) error {
	email = normalizeEmail(email)

	if _, err := s.accounts.FindByEmail(email); err == nil {
		return auth.E(auth.KindDuplicateAccount, "an account with this email already exists")
	} else if !errors.Is(err, db.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	params := db.CreateAccountParams{
		Email:        &email,
		Provider:     models.ProviderEmail,
		PasswordHash: &hash,
	}
	if name := strings.TrimSpace(fullName); name != "" {
		params.FullName = &name
	}

	if _, err := s.accounts.Create(params); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return auth.E(auth.KindDuplicateAccount, "an account with this email already exists")
		}
		return err
	}

	return s.codes.Issue(ctx, models.PurposeEmailVerify, email)
}

// VerifyEmail redeems the registration code and, on success, returns the
// account's first session.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) (*session.Session, error) {
	email = normalizeEmail(email)

	account, err := s.accounts.FindByEmail(email)
	if errors.Is(err, db.ErrNotFound) {
		return nil, auth.E(auth.KindNoActiveCode, "no active code, request a new one")
	}
	if err != nil {
		return nil, err
	}

	if err := s.codes.Redeem(models.PurposeEmailVerify, email, code); err != nil {
		return nil, err
	}

	if !account.EmailVerified {
		if err := s.accounts.MarkEmailVerified(account.ID); err != nil {
			return nil, err
		}
		account, err = s.accounts.FindByID(account.ID)
		if err != nil {
			return nil, err
		}
	}

	return s.issueSession(account)
}

// ResendEmailCode reissues the verification code. Unknown and already
// verified emails return success so the endpoint cannot be used to probe for
// accounts.
func (s *Service) ResendEmailCode(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	account, err := s.accounts.FindByEmail(email)
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if account.EmailVerified {
		return nil
	}

	return s.codes.Issue(ctx, models.PurposeEmailVerify, email)
}

// Login exchanges identifier+password for a session. Password accounts must
// have redeemed their email code first.
func (s *Service) Login(ctx context.Context, identifier, password string) (*session.Session, error) {
	account, err := s.verifier.Verify(ctx, auth.PasswordCredential{
		Identifier: strings.TrimSpace(identifier),
		Password:   password,
	})
	if err != nil {
		return nil, err
	}

	if !SessionEligible(account) {
		return nil, auth.E(auth.KindEmailNotVerified, "verify your email address before signing in")
	}

	return s.issueSession(account)
}

func (s *Service) LoginWithGoogle(ctx context.Context, idToken string) (*session.Session, error) {
	account, err := s.verifier.Verify(ctx, auth.GoogleCredential{IDToken: idToken})
	if err != nil {
		return nil, err
	}
	return s.issueSession(account)
}

func (s *Service) LoginWithApple(ctx context.Context, identityToken, nonce string, user *auth.AppleUser) (*session.Session, error) {
	account, err := s.verifier.Verify(ctx, auth.AppleCredential{
		IdentityToken: identityToken,
		Nonce:         nonce,
		User:          user,
	})
	if err != nil {
		return nil, err
	}
	return s.issueSession(account)
}

// SendPhoneCode stores the phone number on the account (resetting its
// verified flag if it changed) and dispatches a code to it.
func (s *Service) SendPhoneCode(ctx context.Context, accountID, phone string) error {
	phone = strings.TrimSpace(phone)
	if auth.SniffIdentifier(phone) != auth.IdentifierPhone {
		return auth.E(auth.KindInvalidRequest, "enter a valid phone number")
	}

	account, err := s.accounts.FindByID(accountID)
	if err != nil {
		return err
	}

	if account.GetPhone() != phone {
		if err := s.accounts.SetPhone(accountID, phone); err != nil {
			if errors.Is(err, db.ErrDuplicate) {
				return auth.E(auth.KindDuplicateAccount, "this phone number is already in use")
			}
			return err
		}
	}

	return s.codes.Issue(ctx, models.PurposePhoneVerify, phone)
}

// VerifyPhone flips the phone-verified flag. It does not re-authenticate and
// never creates a session.
func (s *Service) VerifyPhone(ctx context.Context, accountID, phone, code string) error {
	phone = strings.TrimSpace(phone)

	account, err := s.accounts.FindByID(accountID)
	if err != nil {
		return err
	}
	if account.GetPhone() != phone {
		return auth.E(auth.KindNoActiveCode, "no active code, request a new one")
	}

	if err := s.codes.Redeem(models.PurposePhoneVerify, phone, code); err != nil {
		return err
	}

	return s.accounts.MarkPhoneVerified(accountID)
}

type ProfileFields struct {
	FullName          *string
	ProfilePictureURL *string
}

// CompleteProfile finishes onboarding. A phone number on the account must be
// verified first or removed; omitting phone entirely is allowed.
func (s *Service) CompleteProfile(ctx context.Context, accountID string, fields ProfileFields) (*models.Account, error) {
	account, err := s.accounts.FindByID(accountID)
	if err != nil {
		return nil, err
	}

	if !SessionEligible(account) {
		return nil, auth.E(auth.KindEmailNotVerified, "verify your email address first")
	}
	if account.Phone != nil && !account.PhoneVerified {
		return nil, auth.E(auth.KindPhoneNotVerified, "verify your phone number before completing your profile")
	}

	hasName := account.FullName != nil
	if fields.FullName != nil && strings.TrimSpace(*fields.FullName) != "" {
		hasName = true
	}
	if !hasName {
		return nil, auth.E(auth.KindInvalidRequest, "full name is required")
	}

	if fields.FullName != nil || fields.ProfilePictureURL != nil {
		if err := s.accounts.UpdateProfile(accountID, db.UpdateProfileParams{
			FullName:          fields.FullName,
			ProfilePictureURL: fields.ProfilePictureURL,
		}); err != nil {
			return nil, err
		}
	}

	if err := s.accounts.MarkProfileCompleted(accountID); err != nil {
		return nil, err
	}

	return s.accounts.FindByID(accountID)
}

// UpdateProfile mutates profile attributes after onboarding.
func (s *Service) UpdateProfile(accountID string, fields ProfileFields) (*models.Account, error) {
	if fields.FullName != nil || fields.ProfilePictureURL != nil {
		if err := s.accounts.UpdateProfile(accountID, db.UpdateProfileParams{
			FullName:          fields.FullName,
			ProfilePictureURL: fields.ProfilePictureURL,
		}); err != nil {
			return nil, err
		}
	}
	return s.accounts.FindByID(accountID)
}

// ForgotPassword issues a reset code. Unknown emails and provider accounts
// return success to avoid enumeration.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	account, err := s.accounts.FindByEmail(email)
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if account.Provider != models.ProviderEmail {
		return nil
	}

	return s.codes.Issue(ctx, models.PurposePasswordReset, email)
}

// ResetPassword redeems a reset code, replaces the hash, and revokes every
// outstanding session token.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)

	account, err := s.accounts.FindByEmail(email)
	if errors.Is(err, db.ErrNotFound) {
		return auth.E(auth.KindNoActiveCode, "no active code, request a new one")
	}
	if err != nil {
		return err
	}

	if err := s.codes.Redeem(models.PurposePasswordReset, email, code); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.accounts.SetPasswordHash(account.ID, hash); err != nil {
		return err
	}

	return s.revokeSessions(account.ID)
}

// Logout revokes every outstanding token for the account. The client clears
// its own stored session; this makes sure stolen copies die too.
func (s *Service) Logout(accountID string) error {
	return s.revokeSessions(accountID)
}

// CheckSession resolves validated token claims to a live account, rejecting
// tokens from before the last revocation.
func (s *Service) CheckSession(accountID string, sessionVersion int) (*models.Account, error) {
	account, err := s.accounts.FindByID(accountID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, auth.E(auth.KindSessionExpired, "session is no longer valid")
	}
	if err != nil {
		return nil, err
	}
	if !account.Active {
		return nil, auth.E(auth.KindAccountDisabled, "your account has been suspended, contact support")
	}
	if account.SessionVersion != sessionVersion {
		return nil, auth.E(auth.KindSessionExpired, "session is no longer valid")
	}
	return account, nil
}

func (s *Service) GetByID(accountID string) (*models.Account, error) {
	return s.accounts.FindByID(accountID)
}

func (s *Service) revokeSessions(accountID string) error {
	if _, err := s.accounts.IncrementSessionVersion(accountID); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.SessionRevoked(accountID)
	}
	return nil
}

func (s *Service) issueSession(account *models.Account) (*session.Session, error) {
	token, expiresAt, err := s.tokens.IssueAccessToken(account)
	if err != nil {
		return nil, err
	}
	return &session.Session{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      account,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

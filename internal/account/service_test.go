package account

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"hotride/internal/auth"
	"hotride/internal/db"
	"hotride/internal/models"
	"hotride/internal/verify"
)

type captureDispatcher struct {
	codes []string
}

func (d *captureDispatcher) Dispatch(ctx context.Context, target, code string, ttl time.Duration) error {
	d.codes = append(d.codes, code)
	return nil
}

func (d *captureDispatcher) last(t *testing.T) string {
	t.Helper()
	if len(d.codes) == 0 {
		t.Fatalf("no code was dispatched")
	}
	return d.codes[len(d.codes)-1]
}

type recordingNotifier struct {
	revoked []string
}

func (n *recordingNotifier) SessionRevoked(accountID string) {
	n.revoked = append(n.revoked, accountID)
}

// fakeGoogle returns fixed provider claims for any token.
type fakeGoogle struct {
	claims *auth.ProviderClaims
	err    error
}

func (f *fakeGoogle) Verify(ctx context.Context, idToken string) (*auth.ProviderClaims, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.claims, nil
}

// fakeApple returns fixed provider claims, or a canned failure.
type fakeApple struct {
	claims *auth.ProviderClaims
	err    error
}

func (f *fakeApple) Verify(ctx context.Context, identityToken, nonce string) (*auth.ProviderClaims, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.claims, nil
}

type testEnv struct {
	svc      *Service
	database *db.DB
	email    *captureDispatcher
	sms      *captureDispatcher
	notifier *recordingNotifier
	google   *fakeGoogle
	apple    *fakeApple
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	accounts := db.NewAccountRepository(database)
	codes := db.NewVerificationCodeRepository(database)

	email := &captureDispatcher{}
	sms := &captureDispatcher{}
	notifier := &recordingNotifier{}
	google := &fakeGoogle{}
	apple := &fakeApple{}

	manager := verify.NewManager(codes, email, sms, 10*time.Minute, 0)
	verifier := auth.NewVerifier(accounts, google, apple)
	tokens := auth.NewTokenService("0123456789abcdef0123456789abcdef", time.Hour)

	return &testEnv{
		svc:      NewService(accounts, verifier, manager, tokens, notifier),
		database: database,
		email:    email,
		sms:      sms,
		notifier: notifier,
		google:   google,
		apple:    apple,
	}
}

func (e *testEnv) registerVerified(t *testing.T, email, password string) *models.Account {
	t.Helper()

	ctx := context.Background()
	if err := e.svc.Register(ctx, "Jane Doe", email, password); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	sess, err := e.svc.VerifyEmail(ctx, email, e.email.last(t))
	if err != nil {
		t.Fatalf("VerifyEmail() error = %v", err)
	}
	return sess.User
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.svc.Register(ctx, "Jane Doe", "Jane@Example.com", "hunter2hunter2"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if len(env.email.codes) != 1 {
		t.Fatalf("dispatched codes = %d, want 1", len(env.email.codes))
	}

	// A password account cannot sign in before redeeming the email code.
	_, err := env.svc.Login(ctx, "jane@example.com", "hunter2hunter2")
	if auth.KindOf(err) != auth.KindEmailNotVerified {
		t.Fatalf("Login() before verify error = %v, want kind %q", err, auth.KindEmailNotVerified)
	}

	// Email lookup is case-insensitive through normalization.
	sess, err := env.svc.VerifyEmail(ctx, "JANE@example.com", env.email.last(t))
	if err != nil {
		t.Fatalf("VerifyEmail() error = %v", err)
	}
	if sess.Token == "" {
		t.Fatalf("VerifyEmail() returned an empty token")
	}
	if !sess.User.EmailVerified {
		t.Fatalf("account not marked email verified")
	}

	sess, err = env.svc.Login(ctx, "jane@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login() after verify error = %v", err)
	}
	if sess.User.GetEmail() != "jane@example.com" {
		t.Fatalf("email = %q, want %q", sess.User.GetEmail(), "jane@example.com")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.svc.Register(ctx, "Jane Doe", "jane@example.com", "hunter2hunter2"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	err := env.svc.Register(ctx, "Impostor", "jane@example.com", "different-pass")
	if auth.KindOf(err) != auth.KindDuplicateAccount {
		t.Fatalf("second Register() error = %v, want kind %q", err, auth.KindDuplicateAccount)
	}
	if len(env.email.codes) != 1 {
		t.Fatalf("duplicate registration dispatched a code")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "jane@example.com", "hunter2hunter2")

	_, err := env.svc.Login(context.Background(), "jane@example.com", "wrong-password")
	if auth.KindOf(err) != auth.KindInvalidCredentials {
		t.Fatalf("Login() error = %v, want kind %q", err, auth.KindInvalidCredentials)
	}
}

func TestLoginUnknownIdentifierIsIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "jane@example.com", "hunter2hunter2")

	unknown, err1 := env.svc.Login(context.Background(), "nobody@example.com", "hunter2hunter2")
	wrong, err2 := env.svc.Login(context.Background(), "jane@example.com", "wrong-password")

	if unknown != nil || wrong != nil {
		t.Fatalf("expected both logins to fail")
	}
	if auth.KindOf(err1) != auth.KindInvalidCredentials || auth.KindOf(err2) != auth.KindInvalidCredentials {
		t.Fatalf("kinds = %q, %q, want both %q", auth.KindOf(err1), auth.KindOf(err2), auth.KindInvalidCredentials)
	}
	if err1.Error() != err2.Error() {
		t.Fatalf("messages differ: %q vs %q", err1.Error(), err2.Error())
	}
}

func TestResendEmailCodeMasksUnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	if err := env.svc.ResendEmailCode(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("ResendEmailCode() error = %v, want success mask", err)
	}
	if len(env.email.codes) != 0 {
		t.Fatalf("a code was dispatched for an unknown email")
	}
}

func TestResendEmailCodeMasksVerifiedAccount(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "jane@example.com", "hunter2hunter2")
	sent := len(env.email.codes)

	if err := env.svc.ResendEmailCode(context.Background(), "jane@example.com"); err != nil {
		t.Fatalf("ResendEmailCode() error = %v, want success mask", err)
	}
	if len(env.email.codes) != sent {
		t.Fatalf("a code was dispatched for an already verified account")
	}
}

func TestPhoneVerificationFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acct := env.registerVerified(t, "jane@example.com", "hunter2hunter2")

	if err := env.svc.SendPhoneCode(ctx, acct.ID, "+4712345678"); err != nil {
		t.Fatalf("SendPhoneCode() error = %v", err)
	}
	if len(env.sms.codes) != 1 {
		t.Fatalf("sms codes dispatched = %d, want 1", len(env.sms.codes))
	}

	// An unverified phone blocks profile completion.
	name := "Jane Doe"
	_, err := env.svc.CompleteProfile(ctx, acct.ID, ProfileFields{FullName: &name})
	if auth.KindOf(err) != auth.KindPhoneNotVerified {
		t.Fatalf("CompleteProfile() error = %v, want kind %q", err, auth.KindPhoneNotVerified)
	}

	if err := env.svc.VerifyPhone(ctx, acct.ID, "+4712345678", env.sms.last(t)); err != nil {
		t.Fatalf("VerifyPhone() error = %v", err)
	}

	updated, err := env.svc.CompleteProfile(ctx, acct.ID, ProfileFields{FullName: &name})
	if err != nil {
		t.Fatalf("CompleteProfile() after phone verify error = %v", err)
	}
	if !updated.PhoneVerified || !updated.ProfileCompleted {
		t.Fatalf("phoneVerified = %v, profileCompleted = %v, want both true", updated.PhoneVerified, updated.ProfileCompleted)
	}
}

func TestSendPhoneCodeRejectsBadNumber(t *testing.T) {
	env := newTestEnv(t)
	acct := env.registerVerified(t, "jane@example.com", "hunter2hunter2")

	err := env.svc.SendPhoneCode(context.Background(), acct.ID, "not-a-number")
	if auth.KindOf(err) != auth.KindInvalidRequest {
		t.Fatalf("SendPhoneCode() error = %v, want kind %q", err, auth.KindInvalidRequest)
	}
}

func TestChangingPhoneResetsVerification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acct := env.registerVerified(t, "jane@example.com", "hunter2hunter2")

	if err := env.svc.SendPhoneCode(ctx, acct.ID, "+4712345678"); err != nil {
		t.Fatalf("SendPhoneCode() error = %v", err)
	}
	if err := env.svc.VerifyPhone(ctx, acct.ID, "+4712345678", env.sms.last(t)); err != nil {
		t.Fatalf("VerifyPhone() error = %v", err)
	}

	if err := env.svc.SendPhoneCode(ctx, acct.ID, "+4787654321"); err != nil {
		t.Fatalf("SendPhoneCode(new number) error = %v", err)
	}

	current, err := env.svc.GetByID(acct.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if current.PhoneVerified {
		t.Fatalf("phone still verified after the number changed")
	}
}

func TestCompleteProfileRequiresName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Register without a name so nothing is on file.
	if err := env.svc.Register(ctx, "", "jane@example.com", "hunter2hunter2"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	sess, err := env.svc.VerifyEmail(ctx, "jane@example.com", env.email.last(t))
	if err != nil {
		t.Fatalf("VerifyEmail() error = %v", err)
	}

	_, err = env.svc.CompleteProfile(ctx, sess.User.ID, ProfileFields{})
	if auth.KindOf(err) != auth.KindInvalidRequest {
		t.Fatalf("CompleteProfile() error = %v, want kind %q", err, auth.KindInvalidRequest)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acct := env.registerVerified(t, "jane@example.com", "old-password-1")

	if err := env.svc.ForgotPassword(ctx, "jane@example.com"); err != nil {
		t.Fatalf("ForgotPassword() error = %v", err)
	}

	if err := env.svc.ResetPassword(ctx, "jane@example.com", env.email.last(t), "new-password-1"); err != nil {
		t.Fatalf("ResetPassword() error = %v", err)
	}

	if _, err := env.svc.Login(ctx, "jane@example.com", "old-password-1"); auth.KindOf(err) != auth.KindInvalidCredentials {
		t.Fatalf("Login(old password) error = %v, want kind %q", err, auth.KindInvalidCredentials)
	}
	if _, err := env.svc.Login(ctx, "jane@example.com", "new-password-1"); err != nil {
		t.Fatalf("Login(new password) error = %v", err)
	}

	// The reset revoked every token issued before it.
	if _, err := env.svc.CheckSession(acct.ID, acct.SessionVersion); auth.KindOf(err) != auth.KindSessionExpired {
		t.Fatalf("CheckSession(old version) error = %v, want kind %q", err, auth.KindSessionExpired)
	}
	if len(env.notifier.revoked) == 0 || env.notifier.revoked[0] != acct.ID {
		t.Fatalf("revocation notifier not told about %q, got %v", acct.ID, env.notifier.revoked)
	}
}

func TestForgotPasswordMasksUnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	if err := env.svc.ForgotPassword(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("ForgotPassword() error = %v, want success mask", err)
	}
	if len(env.email.codes) != 0 {
		t.Fatalf("a reset code was dispatched for an unknown email")
	}
}

func TestLogoutRevokesOutstandingTokens(t *testing.T) {
	env := newTestEnv(t)
	acct := env.registerVerified(t, "jane@example.com", "hunter2hunter2")

	if _, err := env.svc.CheckSession(acct.ID, acct.SessionVersion); err != nil {
		t.Fatalf("CheckSession() before logout error = %v", err)
	}

	if err := env.svc.Logout(acct.ID); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	if _, err := env.svc.CheckSession(acct.ID, acct.SessionVersion); auth.KindOf(err) != auth.KindSessionExpired {
		t.Fatalf("CheckSession() after logout error = %v, want kind %q", err, auth.KindSessionExpired)
	}
	if len(env.notifier.revoked) != 1 {
		t.Fatalf("notifier calls = %d, want 1", len(env.notifier.revoked))
	}
}

func TestCheckSessionSuspendedAccount(t *testing.T) {
	env := newTestEnv(t)
	acct := env.registerVerified(t, "jane@example.com", "hunter2hunter2")

	if _, err := env.database.Exec(`UPDATE accounts SET active = 0 WHERE id = ?`, acct.ID); err != nil {
		t.Fatalf("suspending account: %v", err)
	}

	_, err := env.svc.CheckSession(acct.ID, acct.SessionVersion)
	if auth.KindOf(err) != auth.KindAccountDisabled {
		t.Fatalf("CheckSession() error = %v, want kind %q", err, auth.KindAccountDisabled)
	}

	_, err = env.svc.Login(context.Background(), "jane@example.com", "hunter2hunter2")
	if auth.KindOf(err) != auth.KindAccountDisabled {
		t.Fatalf("Login() error = %v, want kind %q", err, auth.KindAccountDisabled)
	}
}

func TestLoginWithGoogleCreatesVerifiedAccount(t *testing.T) {
	env := newTestEnv(t)
	env.google.claims = &auth.ProviderClaims{
		Subject:       "google-sub-1",
		Email:         "jane@example.com",
		EmailVerified: true,
		FullName:      "Jane Doe",
	}

	sess, err := env.svc.LoginWithGoogle(context.Background(), "opaque-id-token")
	if err != nil {
		t.Fatalf("LoginWithGoogle() error = %v", err)
	}
	if !sess.User.EmailVerified {
		t.Fatalf("provider account not created email-verified")
	}
	if sess.User.Provider != models.ProviderGoogle {
		t.Fatalf("provider = %q, want %q", sess.User.Provider, models.ProviderGoogle)
	}

	again, err := env.svc.LoginWithGoogle(context.Background(), "opaque-id-token")
	if err != nil {
		t.Fatalf("second LoginWithGoogle() error = %v", err)
	}
	if again.User.ID != sess.User.ID {
		t.Fatalf("second sign-in created a new account: %q vs %q", again.User.ID, sess.User.ID)
	}
}

func TestLoginWithAppleNonceMismatchCreatesNoAccount(t *testing.T) {
	env := newTestEnv(t)
	env.apple.err = auth.E(auth.KindNonceMismatch, "sign in with Apple failed, please try again")

	_, err := env.svc.LoginWithApple(context.Background(), "identity-token", "stale-nonce", nil)
	if auth.KindOf(err) != auth.KindNonceMismatch {
		t.Fatalf("LoginWithApple() error = %v, want kind %q", err, auth.KindNonceMismatch)
	}

	var count int
	if err := env.database.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		t.Fatalf("counting accounts: %v", err)
	}
	if count != 0 {
		t.Fatalf("accounts = %d after rejected sign-in, want 0", count)
	}
}

func TestLoginWithAppleFirstConsentUserData(t *testing.T) {
	env := newTestEnv(t)

	// Apple's token omits email on later sign-ins; the relayed user payload
	// only counts on first consent.
	env.apple.claims = &auth.ProviderClaims{Subject: "apple-sub-1"}

	sess, err := env.svc.LoginWithApple(context.Background(), "identity-token", "nonce", &auth.AppleUser{
		Email:    "jane@example.com",
		FullName: "Jane Doe",
	})
	if err != nil {
		t.Fatalf("LoginWithApple() error = %v", err)
	}
	if sess.User.GetEmail() != "jane@example.com" {
		t.Fatalf("email = %q, want %q", sess.User.GetEmail(), "jane@example.com")
	}

	// Second sign-in without user data resolves by subject.
	again, err := env.svc.LoginWithApple(context.Background(), "identity-token", "nonce", nil)
	if err != nil {
		t.Fatalf("second LoginWithApple() error = %v", err)
	}
	if again.User.ID != sess.User.ID {
		t.Fatalf("second sign-in created a new account: %q vs %q", again.User.ID, sess.User.ID)
	}
}

func TestLoginWithGoogleConflictsWithPasswordAccount(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "jane@example.com", "hunter2hunter2")

	env.google.claims = &auth.ProviderClaims{
		Subject: "google-sub-1",
		Email:   "jane@example.com",
	}

	_, err := env.svc.LoginWithGoogle(context.Background(), "opaque-id-token")
	if auth.KindOf(err) != auth.KindDuplicateAccount {
		t.Fatalf("LoginWithGoogle() error = %v, want kind %q", err, auth.KindDuplicateAccount)
	}
}

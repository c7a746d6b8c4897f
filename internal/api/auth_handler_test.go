package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hotride/internal/account"
	"hotride/internal/auth"
	"hotride/internal/constants"
	"hotride/internal/db"
	"hotride/internal/session"
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

type testAPI struct {
	accounts   *account.Service
	tokens     *auth.TokenService
	auth       *AuthHandler
	profile    *ProfileHandler
	middleware *AuthMiddleware
	email      *captureDispatcher
	sms        *captureDispatcher
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	accountRepo := db.NewAccountRepository(database)
	codeRepo := db.NewVerificationCodeRepository(database)

	email := &captureDispatcher{}
	sms := &captureDispatcher{}

	tokens := auth.NewTokenService("0123456789abcdef0123456789abcdef", time.Hour)
	verifier := auth.NewVerifier(accountRepo, nil, nil)
	manager := verify.NewManager(codeRepo, email, sms, 10*time.Minute, 0)
	accounts := account.NewService(accountRepo, verifier, manager, tokens, nil)

	return &testAPI{
		accounts:   accounts,
		tokens:     tokens,
		auth:       NewAuthHandler(accounts),
		profile:    NewProfileHandler(accounts),
		middleware: NewAuthMiddleware(tokens, accounts),
		email:      email,
		sms:        sms,
	}
}

func (a *testAPI) registerVerified(t *testing.T, email, password string) *session.Session {
	t.Helper()

	ctx := context.Background()
	if err := a.accounts.Register(ctx, "Jane Doe", email, password); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	sess, err := a.accounts.VerifyEmail(ctx, email, a.email.last(t))
	if err != nil {
		t.Fatalf("VerifyEmail() error = %v", err)
	}
	return sess
}

func decodeErrorResponse(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()

	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, body=%q", err, rr.Body.String())
	}
	return resp
}

func TestRegisterEndpoint(t *testing.T) {
	api := newTestAPI(t)

	body := `{"fullName":"Jane Doe","email":"jane@example.com","password":"hunter2hunter2"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	rr := httptest.NewRecorder()

	api.auth.Register(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusCreated, rr.Body.String())
	}
	if len(api.email.codes) != 1 {
		t.Fatalf("dispatched codes = %d, want 1", len(api.email.codes))
	}
}

func TestRegisterEndpointDuplicate(t *testing.T) {
	api := newTestAPI(t)
	api.registerVerified(t, "jane@example.com", "hunter2hunter2")

	body := `{"fullName":"Impostor","email":"jane@example.com","password":"hunter2hunter2"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	rr := httptest.NewRecorder()

	api.auth.Register(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusConflict, rr.Body.String())
	}
	if resp := decodeErrorResponse(t, rr); resp.Error.Code != constants.ErrCodeDuplicateAccount {
		t.Fatalf("error.code = %q, want %q", resp.Error.Code, constants.ErrCodeDuplicateAccount)
	}
}

func TestRegisterEndpointRejectsInvalidBody(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed email", `{"fullName":"Jane","email":"not-an-email","password":"hunter2hunter2"}`},
		{"short password", `{"fullName":"Jane","email":"jane@example.com","password":"short"}`},
		{"unknown field", `{"fullName":"Jane","email":"jane@example.com","password":"hunter2hunter2","admin":true}`},
		{"empty body", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()

			api.auth.Register(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusBadRequest, rr.Body.String())
			}
		})
	}
}

func TestLoginEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.registerVerified(t, "jane@example.com", "hunter2hunter2")

	body := `{"identifier":"jane@example.com","password":"hunter2hunter2"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	rr := httptest.NewRecorder()

	api.auth.Login(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}

	var sess session.Session
	if err := json.Unmarshal(rr.Body.Bytes(), &sess); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, body=%q", err, rr.Body.String())
	}
	if sess.Token == "" {
		t.Fatalf("login response missing token")
	}
	if sess.User == nil || sess.User.GetEmail() != "jane@example.com" {
		t.Fatalf("login response user = %+v", sess.User)
	}
	if sess.User.PasswordHash != nil {
		t.Fatalf("login response leaked the password hash")
	}
}

func TestLoginEndpointWrongPassword(t *testing.T) {
	api := newTestAPI(t)
	api.registerVerified(t, "jane@example.com", "hunter2hunter2")

	body := `{"identifier":"jane@example.com","password":"wrong-password"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	rr := httptest.NewRecorder()

	api.auth.Login(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusUnauthorized, rr.Body.String())
	}
	if resp := decodeErrorResponse(t, rr); resp.Error.Code != constants.ErrCodeInvalidCredentials {
		t.Fatalf("error.code = %q, want %q", resp.Error.Code, constants.ErrCodeInvalidCredentials)
	}
}

func TestLoginEndpointUnverifiedEmail(t *testing.T) {
	api := newTestAPI(t)
	if err := api.accounts.Register(context.Background(), "Jane Doe", "jane@example.com", "hunter2hunter2"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	body := `{"identifier":"jane@example.com","password":"hunter2hunter2"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	rr := httptest.NewRecorder()

	api.auth.Login(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusForbidden, rr.Body.String())
	}
	if resp := decodeErrorResponse(t, rr); resp.Error.Code != constants.ErrCodeEmailNotVerified {
		t.Fatalf("error.code = %q, want %q", resp.Error.Code, constants.ErrCodeEmailNotVerified)
	}
}

func TestVerifyEmailEndpoint(t *testing.T) {
	api := newTestAPI(t)
	if err := api.accounts.Register(context.Background(), "Jane Doe", "jane@example.com", "hunter2hunter2"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	body := fmt.Sprintf(`{"email":"jane@example.com","code":%q}`, api.email.last(t))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/email/verify", strings.NewReader(body))
	rr := httptest.NewRecorder()

	api.auth.VerifyEmail(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}

	var sess session.Session
	if err := json.Unmarshal(rr.Body.Bytes(), &sess); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, body=%q", err, rr.Body.String())
	}
	if sess.Token == "" {
		t.Fatalf("verify response missing token")
	}
}

func TestVerifyEmailEndpointWrongCode(t *testing.T) {
	api := newTestAPI(t)
	if err := api.accounts.Register(context.Background(), "Jane Doe", "jane@example.com", "hunter2hunter2"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	wrong := "000000"
	if wrong == api.email.last(t) {
		wrong = "000001"
	}

	body := fmt.Sprintf(`{"email":"jane@example.com","code":%q}`, wrong)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/email/verify", strings.NewReader(body))
	rr := httptest.NewRecorder()

	api.auth.VerifyEmail(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
	if resp := decodeErrorResponse(t, rr); resp.Error.Code != constants.ErrCodeCodeMismatch {
		t.Fatalf("error.code = %q, want %q", resp.Error.Code, constants.ErrCodeCodeMismatch)
	}
}

func TestResendEmailCodeEndpointMasksUnknown(t *testing.T) {
	api := newTestAPI(t)

	body := `{"email":"nobody@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/email/resend", strings.NewReader(body))
	rr := httptest.NewRecorder()

	api.auth.ResendEmailCode(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}
	if len(api.email.codes) != 0 {
		t.Fatalf("a code was dispatched for an unknown email")
	}
}

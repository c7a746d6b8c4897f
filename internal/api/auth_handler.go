package api

import (
	"net/http"

	"hotride/internal/account"
	"hotride/internal/auth"
)

type AuthHandler struct {
	accounts *account.Service
}

func NewAuthHandler(accounts *account.Service) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

type RegisterRequest struct {
	FullName string `json:"fullName" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.accounts.Register(r.Context(), req.FullName, req.Email, req.Password); err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "Account created. Check your email for a verification code.",
	})
}

type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Password   string `json:"password" validate:"required,max=128"`
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	sess, err := h.accounts.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

type GoogleLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// POST /api/v1/auth/google
func (h *AuthHandler) LoginWithGoogle(w http.ResponseWriter, r *http.Request) {
	var req GoogleLoginRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	sess, err := h.accounts.LoginWithGoogle(r.Context(), req.IDToken)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

type AppleLoginRequest struct {
	IdentityToken string          `json:"identityToken" validate:"required"`
	Nonce         string          `json:"nonce" validate:"required"`
	User          *auth.AppleUser `json:"user,omitempty"`
}

// POST /api/v1/auth/apple
func (h *AuthHandler) LoginWithApple(w http.ResponseWriter, r *http.Request) {
	var req AppleLoginRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	sess, err := h.accounts.LoginWithApple(r.Context(), req.IdentityToken, req.Nonce, req.User)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// POST /api/v1/auth/email/verify
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	sess, err := h.accounts.VerifyEmail(r.Context(), req.Email, req.Code)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

type ResendEmailCodeRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// POST /api/v1/auth/email/resend
func (h *AuthHandler) ResendEmailCode(w http.ResponseWriter, r *http.Request) {
	var req ResendEmailCodeRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.accounts.ResendEmailCode(r.Context(), req.Email); err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "If an account exists with this email, a verification code has been sent",
	})
}

type SendPhoneCodeRequest struct {
	Phone string `json:"phone" validate:"required,max=16"`
}

// POST /api/v1/auth/phone/send-code
func (h *AuthHandler) SendPhoneCode(w http.ResponseWriter, r *http.Request) {
	acct := AccountFrom(r)
	if acct == nil {
		unauthorized(w, "Account not found in context")
		return
	}

	var req SendPhoneCodeRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.accounts.SendPhoneCode(r.Context(), acct.ID, req.Phone); err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Verification code sent"})
}

type VerifyPhoneRequest struct {
	Phone string `json:"phone" validate:"required,max=16"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// POST /api/v1/auth/phone/verify
func (h *AuthHandler) VerifyPhone(w http.ResponseWriter, r *http.Request) {
	acct := AccountFrom(r)
	if acct == nil {
		unauthorized(w, "Account not found in context")
		return
	}

	var req VerifyPhoneRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.accounts.VerifyPhone(r.Context(), acct.ID, req.Phone, req.Code); err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Phone number verified"})
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// POST /api/v1/auth/password/forgot
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.accounts.ForgotPassword(r.Context(), req.Email); err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "If an account exists with this email, a reset code has been sent",
	})
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=128"`
}

// POST /api/v1/auth/password/reset
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.accounts.ResetPassword(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated. Sign in with your new password."})
}

// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	acct := AccountFrom(r)
	if acct == nil {
		unauthorized(w, "Account not found in context")
		return
	}

	if err := h.accounts.Logout(acct.ID); err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

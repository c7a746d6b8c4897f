package api

import (
	"net/http"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"hotride/internal/account"
)

// Profile fields are rendered in emails and other clients; strip any markup
// before it reaches storage.
var namePolicy = bluemonday.StrictPolicy()

type ProfileHandler struct {
	accounts *account.Service
}

func NewProfileHandler(accounts *account.Service) *ProfileHandler {
	return &ProfileHandler{accounts: accounts}
}

// GET /api/v1/auth/me
func (h *ProfileHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	acct := AccountFrom(r)
	if acct == nil {
		unauthorized(w, "Account not found in context")
		return
	}

	writeJSON(w, http.StatusOK, acct)
}

type UpdateProfileRequest struct {
	FullName          *string `json:"fullName" validate:"omitempty,min=2,max=100"`
	ProfilePictureURL *string `json:"profilePictureUrl" validate:"omitempty,url,max=2048"`
}

// PATCH /api/v1/auth/me
func (h *ProfileHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	acct := AccountFrom(r)
	if acct == nil {
		unauthorized(w, "Account not found in context")
		return
	}

	var req UpdateProfileRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	updated, err := h.accounts.UpdateProfile(acct.ID, account.ProfileFields{
		FullName:          sanitizeName(req.FullName),
		ProfilePictureURL: req.ProfilePictureURL,
	})
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

type CompleteProfileRequest struct {
	FullName          *string `json:"fullName" validate:"omitempty,min=2,max=100"`
	ProfilePictureURL *string `json:"profilePictureUrl" validate:"omitempty,url,max=2048"`
}

// POST /api/v1/auth/profile/complete
func (h *ProfileHandler) CompleteProfile(w http.ResponseWriter, r *http.Request) {
	acct := AccountFrom(r)
	if acct == nil {
		unauthorized(w, "Account not found in context")
		return
	}

	var req CompleteProfileRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	updated, err := h.accounts.CompleteProfile(r.Context(), acct.ID, account.ProfileFields{
		FullName:          sanitizeName(req.FullName),
		ProfilePictureURL: req.ProfilePictureURL,
	})
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func sanitizeName(name *string) *string {
	if name == nil {
		return nil
	}
	clean := strings.TrimSpace(namePolicy.Sanitize(*name))
	return &clean
}

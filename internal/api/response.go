package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"hotride/internal/auth"
	"hotride/internal/constants"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest, message)
}

func unauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, constants.ErrCodeUnauthorized, message)
}

func notFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, constants.ErrCodeNotFound, message)
}

func internalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, constants.ErrCodeInternal, "An internal error occurred")
}

// writeAuthError maps a typed auth failure onto the wire. Untyped errors are
// logged and masked as internal.
func writeAuthError(w http.ResponseWriter, err error) {
	kind := auth.KindOf(err)
	if kind == "" {
		slog.Error("unexpected auth error", "error", err)
		internalError(w)
		return
	}

	message := "Authentication failed"
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		message = authErr.Message
	}

	writeError(w, statusForKind(kind), string(kind), message)
}

func statusForKind(kind auth.Kind) int {
	switch kind {
	case auth.KindInvalidCredentials, auth.KindInvalidToken, auth.KindNonceMismatch, auth.KindSessionExpired:
		return http.StatusUnauthorized
	case auth.KindCodeExpired, auth.KindCodeMismatch, auth.KindNoActiveCode, auth.KindInvalidRequest:
		return http.StatusBadRequest
	case auth.KindEmailNotVerified, auth.KindPhoneNotVerified, auth.KindAccountDisabled:
		return http.StatusForbidden
	case auth.KindDuplicateAccount:
		return http.StatusConflict
	case auth.KindRateLimited:
		return http.StatusTooManyRequests
	case auth.KindProviderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

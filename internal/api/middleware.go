package api

import (
	"context"
	"net/http"
	"strings"

	"hotride/internal/account"
	"hotride/internal/auth"
	"hotride/internal/constants"
	"hotride/internal/models"
)

type contextKey string

const accountKey contextKey = "account"

type AuthMiddleware struct {
	tokens   *auth.TokenService
	accounts *account.Service
}

func NewAuthMiddleware(tokens *auth.TokenService, accounts *account.Service) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, accounts: accounts}
}

// RequireAuth validates the bearer token and rejects tokens issued before
// the account's last revocation. The SESSION_EXPIRED code is the client's
// signal to clear its stored session and return to login.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, "Authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			unauthorized(w, "Invalid authorization header format")
			return
		}

		claims, err := m.tokens.ValidateAccessToken(parts[1])
		if err != nil {
			writeError(w, http.StatusUnauthorized, constants.ErrCodeSessionExpired, "Invalid or expired token")
			return
		}

		acct, err := m.accounts.CheckSession(claims.Subject, claims.SessionVersion)
		if err != nil {
			writeAuthError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), accountKey, acct)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccountFrom returns the authenticated account, or nil outside RequireAuth.
func AccountFrom(r *http.Request) *models.Account {
	if v := r.Context().Value(accountKey); v != nil {
		if acct, ok := v.(*models.Account); ok {
			return acct
		}
	}
	return nil
}

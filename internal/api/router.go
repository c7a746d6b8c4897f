package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"hotride/internal/account"
	"hotride/internal/auth"
	"hotride/internal/config"
	"hotride/internal/db"
	"hotride/internal/verify"
)

type Server struct {
	router *chi.Mux
	config *config.Config
}

func NewServer(
	cfg *config.Config,
	database *db.DB,
	emailDispatch verify.Dispatcher,
	smsDispatch verify.Dispatcher,
	google auth.GoogleTokenVerifier,
	apple auth.AppleTokenVerifier,
) (*Server, error) {
	accountRepo := db.NewAccountRepository(database)
	codeRepo := db.NewVerificationCodeRepository(database)

	tokenService := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	credentialVerifier := auth.NewVerifier(accountRepo, google, apple)
	codeManager := verify.NewManager(codeRepo, emailDispatch, smsDispatch, cfg.Auth.CodeTTL, cfg.Auth.ResendCooldown)

	eventsHandler := NewEventsHandler(tokenService, nil)
	accountService := account.NewService(accountRepo, credentialVerifier, codeManager, tokenService, eventsHandler)
	eventsHandler.accounts = accountService

	authHandler := NewAuthHandler(accountService)
	profileHandler := NewProfileHandler(accountService)
	healthHandler := NewHealthHandler(database)

	authMiddleware := NewAuthMiddleware(tokenService, accountService)

	r := chi.NewRouter()
	r.Use(slogRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(securityHeadersMiddleware)

	r.Get("/health", healthHandler.Check)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(maxBodySizeMiddleware(1 << 20)) // 1 MB

		// Credential exchanges and code issuance are the abuse surface;
		// everything else rides on bearer tokens.
		credentialLimit := httprate.LimitByIP(10, time.Minute)
		codeLimit := httprate.LimitByIP(5, time.Minute)

		r.With(credentialLimit).Post("/register", authHandler.Register)
		r.With(credentialLimit).Post("/login", authHandler.Login)
		r.With(credentialLimit).Post("/google", authHandler.LoginWithGoogle)
		r.With(credentialLimit).Post("/apple", authHandler.LoginWithApple)
		r.With(codeLimit).Post("/email/verify", authHandler.VerifyEmail)
		r.With(codeLimit).Post("/email/resend", authHandler.ResendEmailCode)
		r.With(codeLimit).Post("/password/forgot", authHandler.ForgotPassword)
		r.With(codeLimit).Post("/password/reset", authHandler.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.With(codeLimit).Post("/phone/send-code", authHandler.SendPhoneCode)
			r.With(codeLimit).Post("/phone/verify", authHandler.VerifyPhone)
			r.Post("/profile/complete", profileHandler.CompleteProfile)
			r.Get("/me", profileHandler.GetMe)
			r.Patch("/me", profileHandler.UpdateMe)
			r.Post("/logout", authHandler.Logout)
		})
	})

	r.Get("/api/v1/auth/events", eventsHandler.ServeEvents)

	return &Server{
		router: r,
		config: cfg,
	}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func maxBodySizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr,
		)
	})
}

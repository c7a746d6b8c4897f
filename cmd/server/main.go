package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hotride/internal/api"
	"hotride/internal/auth"
	"hotride/internal/config"
	"hotride/internal/db"
	"hotride/internal/email"
	"hotride/internal/sms"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting server", "name", cfg.Server.Name)

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.Info("database opened", "path", cfg.Database.Path)

	cleanupService := db.NewCleanupService(db.NewVerificationCodeRepository(database))
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	go cleanupService.Start(cleanupCtx)

	emailService := email.NewSMTPService(
		cfg.Email.SMTP.Host,
		cfg.Email.SMTP.Port,
		cfg.Email.SMTP.Username,
		cfg.Email.SMTP.Password,
		cfg.Email.SMTP.From,
	)
	slog.Info("email configured", "host", cfg.Email.SMTP.Host, "port", cfg.Email.SMTP.Port)

	smsService := sms.NewGatewayService(
		cfg.SMS.GatewayURL,
		cfg.SMS.APIKey,
		cfg.SMS.From,
		cfg.SMS.Timeout,
	)

	var googleVerifier auth.GoogleTokenVerifier = unavailableGoogle{}
	if cfg.Google.ClientID != "" {
		initCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		gv, err := auth.NewGoogleVerifier(initCtx, cfg.Google.ClientID)
		cancel()
		if err != nil {
			// OIDC discovery failing must not keep password logins down.
			slog.Error("google verifier unavailable", "error", err)
		} else {
			googleVerifier = gv
			slog.Info("google sign-in configured")
		}
	}

	var appleVerifier auth.AppleTokenVerifier = unavailableApple{}
	if cfg.Apple.ClientID != "" {
		appleVerifier = auth.NewAppleVerifier(cfg.Apple.ClientID)
		slog.Info("apple sign-in configured")
	}

	server, err := api.NewServer(
		cfg,
		database,
		emailService,
		smsService,
		googleVerifier,
		appleVerifier,
	)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server,
	}

	go func() {
		slog.Info("server listening", "addr", addr, "base_url", cfg.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down")

	cleanupCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// Stand-ins for providers that are not configured or whose discovery failed
// at startup.
type unavailableGoogle struct{}

func (unavailableGoogle) Verify(ctx context.Context, idToken string) (*auth.ProviderClaims, error) {
	return nil, auth.E(auth.KindProviderUnavailable, "this sign-in method is not available right now")
}

type unavailableApple struct{}

func (unavailableApple) Verify(ctx context.Context, identityToken, nonce string) (*auth.ProviderClaims, error) {
	return nil, auth.E(auth.KindProviderUnavailable, "this sign-in method is not available right now")
}

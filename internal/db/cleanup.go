package db

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultCleanupInterval = 1 * time.Hour
)

// CleanupService periodically deletes expired verification codes. Expired
// codes are already unredeemable; this just keeps the table from growing.
type CleanupService struct {
	codes    *VerificationCodeRepository
	interval time.Duration
}

func NewCleanupService(codes *VerificationCodeRepository) *CleanupService {
	return &CleanupService{
		codes:    codes,
		interval: DefaultCleanupInterval,
	}
}

func (s *CleanupService) Start(ctx context.Context) {
	slog.Info("starting code cleanup service", "component", "cleanup", "interval", s.interval)

	s.runCleanup()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping code cleanup service", "component", "cleanup")
			return
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

func (s *CleanupService) runCleanup() {
	deleted, err := s.codes.DeleteExpired()
	if err != nil {
		slog.Error("error deleting expired verification codes", "component", "cleanup", "error", err)
	} else if deleted > 0 {
		slog.Info("deleted expired verification codes", "component", "cleanup", "count", deleted)
	}
}

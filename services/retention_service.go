package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"nerdsphere/domain"
	"nerdsphere/errors"
	"nerdsphere/repositories"
)

// RetentionService purges messages past the retention horizon.
// A failed pass is reported and left to the next schedule.
type RetentionService struct {
	log        *slog.Logger
	repository repositories.IMessageRepository
	timeout    time.Duration
}

func NewRetentionService(log *slog.Logger, repository repositories.IMessageRepository, timeout time.Duration) *RetentionService {
	return &RetentionService{log: log, repository: repository, timeout: timeout}
}

// Sweep deletes every message created strictly before now - 24h.
// The cutoff is computed once, messages inserted during the pass survive.
func (s *RetentionService) Sweep(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.UTC().Add(-domain.RetentionHorizon)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	deleted, err := s.repository.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.log.Error("Retention sweep failed", "cutoff", cutoff, "error", err)
		return 0, fmt.Errorf("sweep: %w: %w", errors.ErrStoreUnavailable, err)
	}
	s.log.Info("Retention sweep done", "deleted", deleted, "cutoff", cutoff)
	return deleted, nil
}

package services

import (
	"context"
	"fmt"
	"time"

	"nerdsphere/domain/ratelimit"
	"nerdsphere/errors"
	"nerdsphere/repositories"
)

// RateLimiter is the authoritative cooldown check, it reads the durable
// history so that clearing client storage does not reset anything.
type RateLimiter struct {
	repository repositories.IMessageRepository
	window     time.Duration
}

func NewRateLimiter(repository repositories.IMessageRepository, window time.Duration) *RateLimiter {
	return &RateLimiter{repository: repository, window: window}
}

// Check returns a *errors.RateLimitedError when fingerprint posted less than
// one window before now.
func (r *RateLimiter) Check(ctx context.Context, fingerprint string, now time.Time) error {
	last, err := r.repository.LastMessageAt(ctx, fingerprint)
	if err != nil {
		return fmt.Errorf("cooldown of %s: %w: %w", fingerprint, errors.ErrStoreUnavailable, err)
	}
	decision := ratelimit.Evaluate(last, now, r.window)
	if !decision.Allowed {
		return &errors.RateLimitedError{RemainingSeconds: decision.RemainingSeconds}
	}
	return nil
}

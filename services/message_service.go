package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"nerdsphere/domain"
	"nerdsphere/domain/content"
	"nerdsphere/errors"
	"nerdsphere/infrastructure/lock"
	"nerdsphere/repositories"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Clock gives the server time used for created_at and cooldown checks.
type Clock func() time.Time

type IMessageService interface {
	Submit(ctx context.Context, raw, fingerprint string) (domain.Message, error)
	Recent(ctx context.Context, limit int) ([]domain.Message, error)
}

type MessageService struct {
	log          *slog.Logger
	repository   repositories.IMessageRepository
	limiter      *RateLimiter
	locker       lock.Locker
	storeTimeout time.Duration
	clock        Clock
}

func NewMessageService(
	log *slog.Logger,
	repository repositories.IMessageRepository,
	locker lock.Locker,
	window time.Duration,
	storeTimeout time.Duration,
	clock Clock,
) *MessageService {
	return &MessageService{
		log:          log,
		repository:   repository,
		limiter:      NewRateLimiter(repository, window),
		locker:       locker,
		storeTimeout: storeTimeout,
		clock:        clock,
	}
}

// Submit runs the whole pipeline for one post: presence, sanitize, validate,
// cooldown, insert. Nothing is written unless every step passes.
// The cooldown check and the insert of one fingerprint run under its lock,
// so two concurrent posts can't both pass the check.
func (s *MessageService) Submit(ctx context.Context, raw, fingerprint string) (domain.Message, error) {
	if raw == "" || fingerprint == "" {
		return domain.Message{}, errors.ErrMissingField
	}

	clean := content.Sanitize(raw)
	if err := content.Validate(clean); err != nil {
		s.log.Debug("Message rejected", "fingerprint", fingerprint, "reason", err)
		return domain.Message{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	unlock, err := s.locker.Lock(ctx, fingerprint)
	if err != nil {
		s.log.Error("Failed to lock fingerprint", "fingerprint", fingerprint, "error", err)
		return domain.Message{}, fmt.Errorf("lock %s: %w: %w", fingerprint, errors.ErrStoreUnavailable, err)
	}
	defer unlock()

	now := s.clock().UTC()
	if err := s.limiter.Check(ctx, fingerprint, now); err != nil {
		if stderrors.Is(err, errors.ErrRateLimited) {
			s.log.Info("Message rejected by cooldown", "fingerprint", fingerprint, "error", err)
		} else {
			s.log.Error("Failed to check cooldown", "fingerprint", fingerprint, "error", err)
		}
		return domain.Message{}, err
	}

	stored, err := s.repository.StoreMessage(ctx, domain.Message{
		ID:          uuid.NewString(),
		Content:     clean,
		CreatedAt:   now,
		Fingerprint: fingerprint,
	})
	if err != nil {
		s.log.Error("Failed to store message", "fingerprint", fingerprint, "error", err)
		return domain.Message{}, fmt.Errorf("submit: %w: %w", errors.ErrStoreUnavailable, err)
	}
	s.log.Debug("Message accepted", "id", stored.ID, "fingerprint", fingerprint)
	return stored, nil
}

// Recent returns the newest messages first. A non positive limit means the maximum.
func (s *MessageService) Recent(ctx context.Context, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = domain.MaxRecentMessages
	}
	limit = lo.Clamp(limit, 1, domain.MaxRecentMessages)

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	messages, err := s.repository.GetMessages(ctx, limit)
	if err != nil {
		s.log.Error("Failed to fetch messages", "limit", limit, "error", err)
		return nil, fmt.Errorf("recent: %w: %w", errors.ErrStoreUnavailable, err)
	}
	return messages, nil
}

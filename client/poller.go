package client

import (
	"context"
	"log/slog"
	"time"

	"nerdsphere/domain"

	"github.com/samber/lo"
)

type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Feed is what the poller reads from, *API satisfies it.
type Feed interface {
	Recent(ctx context.Context, limit int) ([]domain.Message, error)
}

// Poller re-fetches the newest messages at a fixed interval.
// Each batch is handed over in chronological order (oldest first).
// A failed fetch only flips the status, the next tick tries again.
type Poller struct {
	log      *slog.Logger
	feed     Feed
	interval time.Duration
	limit    int
	onBatch  func([]domain.Message)
	onStatus func(Status)
	status   Status
}

func NewPoller(log *slog.Logger, feed Feed, interval time.Duration,
	onBatch func([]domain.Message), onStatus func(Status)) *Poller {
	if onStatus == nil {
		onStatus = func(Status) {}
	}
	return &Poller{
		log:      log,
		feed:     feed,
		interval: interval,
		limit:    domain.MaxRecentMessages,
		onBatch:  onBatch,
		onStatus: onStatus,
	}
}

func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			p.log.Debug("Context done, stopping poller")
			return nil
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	messages, err := p.feed.Recent(ctx, p.limit)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Debug("Poll failed", "error", err)
			p.setStatus(StatusDisconnected)
		}
		return
	}
	p.setStatus(StatusConnected)
	p.onBatch(lo.Reverse(messages))
}

func (p *Poller) setStatus(status Status) {
	if p.status == status {
		return
	}
	p.status = status
	p.onStatus(status)
}

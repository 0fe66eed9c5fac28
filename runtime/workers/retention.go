package workers

import (
	"context"
	"log/slog"
	"time"

	"nerdsphere/contract"
)

// RetentionWorker runs the retention sweep once at start, then on every tick.
// A failed pass is logged only, the next tick is the retry.
type RetentionWorker struct {
	log      *slog.Logger
	sweeper  contract.Sweeper
	interval time.Duration
	clock    func() time.Time
}

func NewRetentionWorker(log *slog.Logger, sweeper contract.Sweeper, interval time.Duration, clock func() time.Time) *RetentionWorker {
	return &RetentionWorker{log: log, sweeper: sweeper, interval: interval, clock: clock}
}

func (w *RetentionWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping retention sweeps")
			return nil
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *RetentionWorker) sweep(ctx context.Context) {
	deleted, err := w.sweeper.Sweep(ctx, w.clock())
	if err != nil {
		w.log.Warn("Scheduled sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		w.log.Debug("Scheduled sweep removed expired messages", "deleted", deleted)
	}
}

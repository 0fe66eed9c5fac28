package workers

import (
	"context"
	"log/slog"
	"time"

	"nerdsphere/observability"
)

type StatsSource interface {
	Snapshot() (observability.ProcessStats, error)
}

// TelemetryWorker logs the server's own process figures at a fixed interval.
type TelemetryWorker struct {
	log            *slog.Logger
	source         StatsSource
	metricInterval time.Duration
}

func NewTelemetryWorker(log *slog.Logger, source StatsSource, metricInterval time.Duration) *TelemetryWorker {
	return &TelemetryWorker{log: log, source: source, metricInterval: metricInterval}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry")
			return nil
		case <-ticker.C:
			stats, err := w.source.Snapshot()
			if err != nil {
				w.log.Debug("Error while reading process stats", "error", err)
				continue
			}
			w.log.Info("Process stats",
				"pid", stats.PID,
				"rss_bytes", stats.RSSBytes,
				"cpu_percent", stats.CPUPercent,
				"goroutines", stats.Goroutines,
				"uptime", stats.Uptime.Round(time.Second),
			)
		}
	}
}

package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"nerdsphere/observability"

	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls atomic.Int32
}

func (s *countingSource) Snapshot() (observability.ProcessStats, error) {
	if s.calls.Add(1) == 1 {
		return observability.ProcessStats{}, fmt.Errorf("process gone")
	}
	return observability.ProcessStats{PID: 42, Goroutines: 3}, nil
}

func TestTelemetryWorker_Survives_Snapshot_Errors(t *testing.T) {
	req := require.New(t)
	source := &countingSource{}
	ctx, cancel := context.WithCancel(context.Background())

	worker := NewTelemetryWorker(slog.Default(), source, 5*time.Millisecond)
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	req.Eventually(func() bool { return source.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	req.NoError(<-done)
}

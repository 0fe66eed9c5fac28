package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"nerdsphere/domain"

	"github.com/stretchr/testify/require"
)

type scriptedFeed struct {
	mu      sync.Mutex
	answers []error
	calls   int
}

func (f *scriptedFeed) Recent(_ context.Context, limit int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if f.calls < len(f.answers) {
		err = f.answers[f.calls]
	}
	f.calls++
	if err != nil {
		return nil, err
	}
	// Newest first, as the server answers
	return []domain.Message{
		{ID: "2", Content: "second"},
		{ID: "1", Content: "first"},
	}, nil
}

func TestPoller_Chronological_Batches_And_Status(t *testing.T) {
	req := require.New(t)
	feed := &scriptedFeed{answers: []error{nil, fmt.Errorf("connection refused"), nil}}

	var mu sync.Mutex
	var batches [][]domain.Message
	var statuses []Status

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller := NewPoller(slog.Default(), feed, 10*time.Millisecond,
		func(messages []domain.Message) {
			mu.Lock()
			defer mu.Unlock()
			batches = append(batches, messages)
		},
		func(status Status) {
			mu.Lock()
			defer mu.Unlock()
			statuses = append(statuses, status)
		},
	)

	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	req.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()
	req.NoError(<-done)

	mu.Lock()
	defer mu.Unlock()
	req.Equal("first", batches[0][0].Content)
	req.Equal("second", batches[0][1].Content)
	req.Equal([]Status{StatusConnected, StatusDisconnected, StatusConnected}, statuses[:3])
}

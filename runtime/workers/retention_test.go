package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"nerdsphere/errors"
	"nerdsphere/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestRetentionWorker_Sweeps_On_Start_And_Every_Tick(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	now := time.Date(2025, 10, 14, 12, 0, 0, 0, time.UTC)
	sweeper := mocks.NewMockSweeper(ctrl)
	var calls int32
	sweeper.EXPECT().
		Sweep(gomock.Any(), now).
		DoAndReturn(func(context.Context, time.Time) (int, error) {
			atomic.AddInt32(&calls, 1)
			return 2, nil
		}).
		MinTimes(3)

	worker := NewRetentionWorker(slog.Default(), sweeper, 20*time.Millisecond, func() time.Time { return now })
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	// Then the worker stops cleanly once the context is done
	req.NoError(worker.Run(ctx))
	req.GreaterOrEqual(atomic.LoadInt32(&calls), int32(3))
}

func TestRetentionWorker_Keeps_Running_After_Failure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sweeper := mocks.NewMockSweeper(ctrl)
	gomock.InOrder(
		sweeper.EXPECT().Sweep(gomock.Any(), gomock.Any()).Return(0, errors.ErrStoreUnavailable),
		sweeper.EXPECT().Sweep(gomock.Any(), gomock.Any()).Return(1, nil).MinTimes(1),
	)

	worker := NewRetentionWorker(slog.Default(), sweeper, 20*time.Millisecond, time.Now)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req.NoError(worker.Run(ctx))
}

func TestRetentionWorker_Under_Supervisor(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sweeper := mocks.NewMockSweeper(ctrl)
	sweeper.EXPECT().Sweep(gomock.Any(), gomock.Any()).Return(0, nil).MinTimes(1)

	sup := NewSupervisor(slog.Default())
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		sup.Add(NewRetentionWorker(slog.Default(), sweeper, time.Hour, time.Now)).Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "Supervisor should stop with its context")
	}
}

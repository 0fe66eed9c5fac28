package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"nerdsphere/contract"
	"nerdsphere/errors"
)

const (
	waitTimeBeforeRestart = 200 * time.Millisecond
	maxWaitBeforeRestart  = 10 * time.Second
)

// Supervisor runs background workers of the chat server (retention sweeps,
// debug inspector) each in its own goroutine.
// A worker returning nil is done for good, an error or a panic restarts it
// after a growing delay. Canceling the parent context stops everything and
// Run returns once every goroutine exited.
type Supervisor struct {
	Cancel   context.CancelFunc
	wg       *sync.WaitGroup
	log      *slog.Logger
	workers  []contract.Worker
	restarts atomic.Int64
}

func NewSupervisor(log *slog.Logger) *Supervisor {
	return &Supervisor{wg: &sync.WaitGroup{}, log: log}
}

// Run blocks until every worker finished or ctx is done.
// Stop only cancels the workers of this supervisor, not the parent.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.Cancel = cancel
	defer s.Cancel()

	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Start runs one worker under supervision.
// A panic is recovered into errors.ErrWorkerPanic so one failing worker never
// takes the HTTP server down with it.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	workerName := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()
		delay := waitTimeBeforeRestart

		for {
			if ctx.Err() != nil {
				s.log.Info(fmt.Sprintf("Stopping : %s", workerName))
				return
			}

			err := s.runOnce(ctx, worker)
			if err == nil {
				s.log.Info(fmt.Sprintf("Worker finished : %s", workerName))
				return
			}
			if ctx.Err() != nil {
				s.log.Info("Worker stopped (context canceled)", "name", workerName)
				return
			}

			s.restarts.Add(1)
			s.log.Warn("Worker crashed, restarting", "name", workerName, "error", err, "delay", delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, maxWaitBeforeRestart)
		}
	}()
}

func (s *Supervisor) runOnce(ctx context.Context, worker contract.Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
		}
	}()
	return worker.Run(ctx)
}

// Restarts is the number of restarts since the supervisor was created.
func (s *Supervisor) Restarts() int64 {
	return s.restarts.Load()
}

// Stop cancels every supervised worker, Run returns once they all exited.
func (s *Supervisor) Stop() {
	if s.Cancel != nil {
		s.Cancel()
	}
}

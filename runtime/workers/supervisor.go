// Package workers supervises the relay's background goroutines. Workers
// stay small and unguarded; crash recovery and restart pacing live here.
package workers

import (
	"chat-relay/contract"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	initialRestartDelay = 200 * time.Millisecond
	maxRestartDelay     = 5 * time.Second
)

// Supervisor runs each added worker in its own goroutine, recovers its
// panics, and restarts it with an escalating delay until it returns nil or
// the context is canceled. One crashing worker never takes down another.
type Supervisor struct {
	log     *slog.Logger
	workers []contract.Worker
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewSupervisor(log *slog.Logger) *Supervisor {
	return &Supervisor{log: log}
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Run supervises all added workers and blocks until every one of them has
// unwound. Cancellation of the parent ctx, or a call to Stop, ends the
// supervision; the two triggers are independent.
func (s *Supervisor) Run(ctx context.Context) {
	supervised, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	for _, worker := range s.workers {
		s.Start(supervised, worker)
	}
	s.wg.Wait()
}

// Start launches a single worker under supervision.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.supervise(ctx, worker)
	}()
}

func (s *Supervisor) supervise(ctx context.Context, worker contract.Worker) {
	name := contract.GetWorkerName(worker)
	delay := initialRestartDelay

	for ctx.Err() == nil {
		err := runRecovered(ctx, worker)
		switch {
		case err == nil:
			// A nil return is a deliberate exit, not a crash.
			s.log.Info("Worker finished", "worker", name)
			return
		case ctx.Err() != nil:
			s.log.Info("Worker stopped", "worker", name)
			return
		}

		s.log.Warn("Worker crashed, restarting", "worker", name, "error", err, "delay", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if delay *= 2; delay > maxRestartDelay {
			delay = maxRestartDelay
		}
	}
	s.log.Info("Worker stopped", "worker", name)
}

// runRecovered invokes the worker once, converting a panic into an error
// carrying the panic value so the restart log can show it.
func runRecovered(ctx context.Context, worker contract.Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
		}
	}()
	return worker.Run(ctx)
}

// Stop cancels all supervised goroutines; Run returns once they finish.
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

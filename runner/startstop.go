// Package runner implements the restartable background-task handle the
// node supervisor and its listeners are built from, grounded on the
// corpus's own runner/startStop shape (Start/Stop/IsRunning/Uptime/
// ErrorsLast/ErrorsList) and re-expressed over goroutines and
// context.Context instead of OS thread handles.
package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Func is a blocking task body: Start functions run until ctx is
// cancelled, Stop functions run once to unwind a running Start.
type Func func(ctx context.Context) error

// StartStop is a single restartable background task.
type StartStop interface {
	// Start launches the task. If already running, the previous
	// instance is stopped first.
	Start(ctx context.Context) error
	// Stop cancels a running task and waits for it to return.
	Stop(ctx context.Context) error

	IsRunning() bool
	Uptime() time.Duration

	ErrorsLast() error
	ErrorsList() []error
}

type startStop struct {
	start Func
	stop  Func

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool
	started atomic.Int64 // unix nano, 0 when not running

	errMu sync.Mutex
	errs  []error
}

// New builds a StartStop around start/stop. Either may be nil: a nil
// start is a no-op task that exits immediately; a nil stop performs no
// extra unwind work beyond context cancellation.
func New(start, stop Func) StartStop {
	return &startStop{start: start, stop: stop}
}

func (s *startStop) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		s.stopLocked(ctx)
	}

	cctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)
	s.started.Store(time.Now().UnixNano())

	go func() {
		defer close(s.done)
		defer s.running.Store(false)
		defer s.started.Store(0)

		if s.start != nil {
			if err := s.start(cctx); err != nil {
				s.pushErr(err)
			}
		}
	}()

	return nil
}

func (s *startStop) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked(ctx)
}

func (s *startStop) stopLocked(ctx context.Context) error {
	if !s.running.Load() {
		return nil
	}

	if s.stop != nil {
		if err := s.stop(ctx); err != nil {
			s.pushErr(err)
		}
	}

	if s.cancel != nil {
		s.cancel()
	}

	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

func (s *startStop) IsRunning() bool {
	return s.running.Load()
}

func (s *startStop) Uptime() time.Duration {
	t := s.started.Load()
	if t == 0 {
		return 0
	}
	return time.Since(time.Unix(0, t))
}

func (s *startStop) pushErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *startStop) ErrorsLast() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if len(s.errs) == 0 {
		return nil
	}
	return s.errs[len(s.errs)-1]
}

func (s *startStop) ErrorsList() []error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	out := make([]error, len(s.errs))
	copy(out, s.errs)
	return out
}

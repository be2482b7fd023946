package runner_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openrobots-dev/rosnode/runner"
)

func TestStartRunsUntilStopped(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var running atomic.Bool

	start := func(c context.Context) error {
		running.Store(true)
		<-c.Done()
		running.Store(false)
		return nil
	}
	stop := func(c context.Context) error { return nil }

	r := runner.New(start, stop)
	if err := r.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for !r.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !r.IsRunning() {
		t.Fatalf("expected runner to be running")
	}

	if err := r.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if r.IsRunning() {
		t.Fatalf("expected runner to be stopped")
	}
}

func TestRestartStopsPreviousInstance(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var startCount atomic.Int32
	start := func(c context.Context) error {
		startCount.Add(1)
		<-c.Done()
		return nil
	}
	stop := func(c context.Context) error { return nil }

	r := runner.New(start, stop)
	if err := r.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if err := r.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if startCount.Load() < 2 {
		t.Fatalf("expected at least 2 starts, got %d", startCount.Load())
	}
	_ = r.Stop(ctx)
}

func TestErrorsListCapturesStartFailure(t *testing.T) {
	ctx := context.Background()
	boom := errBoom{}
	start := func(c context.Context) error { return boom }
	stop := func(c context.Context) error { return nil }

	r := runner.New(start, stop)
	if err := r.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for r.ErrorsLast() == nil && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if r.ErrorsLast() != boom {
		t.Fatalf("expected captured start error, got %v", r.ErrorsLast())
	}
	if len(r.ErrorsList()) != 1 {
		t.Fatalf("expected exactly one error recorded")
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

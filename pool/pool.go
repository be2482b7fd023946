// Package pool implements a bounded worker pool: N pre-spawned workers,
// each blocked on a rendezvous handoff until dispatched with a task, then
// returning to idle. The handoff is modelled as an unbuffered channel of
// tasks: a dispatcher only considers a worker "taken" once that worker
// has received the task off the channel, preserving synchronous
// rendezvous semantics rather than queueing work behind a buffer.
package pool

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/openrobots-dev/rosnode/xerr"
)

// Task is the routine+argument pair a worker executes, carrying its own
// context so a blocked handler observes cancellation cooperatively.
type Task func(ctx context.Context)

// Pool is a fixed-size worker pool. At quiescence, ready+busy == Size().
type Pool struct {
	size int
	sem  *semaphore.Weighted // one unit per busy worker

	handoff chan Task
	wg      sync.WaitGroup
	busy    atomic.Int32

	closeOnce sync.Once
	closed    chan struct{}
}

// New spawns size workers, each idle until a Task is handed to them via
// Dispatch.
func New(size int) *Pool {
	p := &Pool{
		size:    size,
		sem:     semaphore.NewWeighted(int64(size)),
		handoff: make(chan Task),
		closed:  make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.closed:
			return
		case t, ok := <-p.handoff:
			if !ok {
				return
			}
			p.busy.Add(1)
			t(context.Background())
			p.busy.Add(-1)
			p.sem.Release(1)
		}
	}
}

// Dispatch hands a task to an idle worker, blocking until one accepts
// it (or ctx is cancelled, or the pool is closed). This is the Go
// analogue of startWorker: the call returns only after a worker has
// taken ownership of the task.
func (p *Pool) Dispatch(ctx context.Context, t Task) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return xerr.Busy.Error(err)
	}

	select {
	case <-p.closed:
		p.sem.Release(1)
		return xerr.Forced.Error()
	case p.handoff <- t:
		return nil
	case <-ctx.Done():
		p.sem.Release(1)
		return xerr.Timeout.Error(ctx.Err())
	}
}

// Size returns the fixed worker count.
func (p *Pool) Size() int {
	return p.size
}

// Busy returns the number of workers currently executing a task.
func (p *Pool) Busy() int {
	return int(p.busy.Load())
}

// Ready returns the number of idle workers awaiting a handoff.
func (p *Pool) Ready() int {
	return p.size - p.Busy()
}

// Close marks the pool as exiting and waits for every worker to
// terminate. Workers mid-task finish their current task before
// observing the close.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
	p.wg.Wait()
}

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"bikestreets_backend/platform/logger"
)

// ErrLoopStopped is returned for work submitted after Run has returned.
var ErrLoopStopped = errors.New("session: loop stopped")

const (
	taskQueued int32 = iota
	taskRunning
	taskAbandoned
)

// Loop is the single goroutine that owns a Machine. Work posted to it runs
// one function at a time in posting order.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	closed  bool
	wake    chan struct{}
	stopped chan struct{}
	log     *logger.Logger
}

// NewLoop creates a loop. Nothing runs until Run is called.
func NewLoop(log *logger.Logger) *Loop {
	return &Loop{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		log:     log.WithComponent("session_loop"),
	}
}

// Post enqueues fn without waiting. It never blocks, so it is safe to call
// from the loop itself. It reports false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it to finish. It must not be called
// from the loop goroutine. If ctx ends while fn is still queued, fn is skipped
// and ctx.Err() is returned; once fn has started Do waits for it and returns
// nil, so an error always means fn did not run.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	var phase atomic.Int32
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		if !phase.CompareAndSwap(taskQueued, taskRunning) {
			return
		}
		fn()
	}) {
		return ErrLoopStopped
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		if phase.CompareAndSwap(taskQueued, taskAbandoned) {
			return ctx.Err()
		}
		<-done
		return nil
	case <-l.stopped:
		if phase.CompareAndSwap(taskQueued, taskAbandoned) {
			return ErrLoopStopped
		}
		<-done
		return nil
	}
}

// Run drains posted work until ctx is done. Work still queued at that point
// is dropped.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		if len(batch) == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-l.wake:
			}
			continue
		}

		for _, fn := range batch {
			l.run(fn)
		}
	}
}

// Stopped is closed once Run has returned.
func (l *Loop) Stopped() <-chan struct{} {
	return l.stopped
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("session loop task panicked", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

func (l *Loop) stop() {
	l.mu.Lock()
	l.closed = true
	l.queue = nil
	l.mu.Unlock()
	close(l.stopped)
}

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"bikestreets_backend/platform/logger"
)

func TestLoopRunsWorkInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop := NewLoop(logger.Discard())
	go func() { _ = loop.Run(ctx) }()

	var order []int
	for i := range 5 {
		loop.Post(func() { order = append(order, i) })
	}
	// Posting from inside the loop must not deadlock.
	if err := loop.Do(ctx, func() {
		loop.Post(func() { order = append(order, 99) })
	}); err != nil {
		t.Fatal(err)
	}
	if err := loop.Do(ctx, func() {}); err != nil {
		t.Fatal(err)
	}

	want := []int{0, 1, 2, 3, 4, 99}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestLoopSurvivesPanickingTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop := NewLoop(logger.Discard())
	go func() { _ = loop.Run(ctx) }()

	loop.Post(func() { panic("boom") })
	ran := false
	if err := loop.Do(ctx, func() { ran = true }); err != nil || !ran {
		t.Fatalf("loop stopped after panic: ran=%v err=%v", ran, err)
	}
}

func TestLoopRejectsWorkAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	loop := NewLoop(logger.Discard())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	if loop.Post(func() {}) {
		t.Error("Post should report false after stop")
	}
	if err := loop.Do(context.Background(), func() {}); !errors.Is(err, ErrLoopStopped) {
		t.Errorf("expected ErrLoopStopped, got %v", err)
	}
}

func TestLoopDoSkipsWorkAbandonedByContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop := NewLoop(logger.Discard())
	go func() { _ = loop.Run(ctx) }()

	gate := make(chan struct{})
	loop.Post(func() { <-gate })

	reqCtx, reqCancel := context.WithCancel(context.Background())
	ran := false
	errc := make(chan error, 1)
	go func() { errc <- loop.Do(reqCtx, func() { ran = true }) }()

	reqCancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	close(gate)

	if err := loop.Do(ctx, func() {}); err != nil {
		t.Fatal(err)
	}
	if ran {
		t.Error("work abandoned by its caller must not run")
	}
}

func TestLoopDoWaitsForStartedWork(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop := NewLoop(logger.Discard())
	go func() { _ = loop.Run(ctx) }()

	reqCtx, reqCancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	ran := false
	errc := make(chan error, 1)
	go func() {
		errc <- loop.Do(reqCtx, func() {
			close(started)
			<-release
			ran = true
		})
	}()

	<-started
	reqCancel()
	close(release)
	if err := <-errc; err != nil {
		t.Fatalf("started work should report success, got %v", err)
	}
	if !ran {
		t.Error("expected work to complete")
	}
}

package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsTasks(t *testing.T) {
	d := NewDispatcher(4, time.Second, newTestLogger())
	d.Start()
	defer d.Stop()

	done := make(chan struct{})
	d.Dispatch("test-task", func(_ context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
}

func TestDispatcherNeverBlocksCaller(t *testing.T) {
	d := NewDispatcher(1, time.Second, newTestLogger())
	d.Start()
	defer d.Stop()

	block := make(chan struct{})
	defer close(block)
	d.Dispatch("blocker", func(_ context.Context) error {
		<-block
		return nil
	})

	// Queue capacity 1: fill it, then overflow. Dispatch must return
	// immediately either way.
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i := 0; i < 10; i++ {
			d.Dispatch("overflow", func(_ context.Context) error { return nil })
		}
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked the caller")
	}
}

func TestDispatcherSwallowsErrorsAndPanics(t *testing.T) {
	d := NewDispatcher(4, time.Second, newTestLogger())
	d.Start()

	d.Dispatch("failing", func(_ context.Context) error {
		return errors.New("boom")
	})
	d.Dispatch("panicking", func(_ context.Context) error {
		panic("boom")
	})

	done := make(chan struct{})
	d.Dispatch("after", func(_ context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker died on a failing task")
	}

	d.Stop()
}

func TestDispatcherStopDrains(t *testing.T) {
	d := NewDispatcher(4, time.Second, newTestLogger())
	d.Start()

	ran := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		d.Dispatch("drain", func(_ context.Context) error {
			ran <- struct{}{}
			return nil
		})
	}

	d.Stop()
	require.Len(t, ran, 3)
}

func TestDispatcherDropsWhenStopped(t *testing.T) {
	d := NewDispatcher(4, time.Second, newTestLogger())

	// Never started: dispatching must not panic or block.
	d.Dispatch("ignored", func(_ context.Context) error { return nil })
	d.Stop()
}

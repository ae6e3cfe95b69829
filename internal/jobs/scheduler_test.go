package jobs

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFullBackpressure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IOWorkers = 0 // nothing drains the queue
	cfg.IOCapacity = 1
	s := New(cfg)
	defer s.Shutdown()

	block := make(chan struct{})
	_, err := s.Submit(QueueIO, func(cancelled func() bool) error {
		<-block
		return nil
	}, nil)
	require.NoError(t, err)

	_, err = s.Submit(QueueIO, func(cancelled func() bool) error { return nil }, nil)
	assert.ErrorIs(t, err, ErrQueueFull{Queue: QueueIO})

	close(block)
}

func TestCompletionOrderingAndDrain(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CPUWorkers = 1
	cfg.CPUCapacity = 8
	s := New(cfg)
	defer s.Shutdown()

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		_, err := s.Submit(QueueCPU, func(cancelled func() bool) error {
			return nil
		}, func(err error, cancelled bool) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
		require.NoError(t, err)
	}

	deadline := time.After(2 * time.Second)
	for len(order) < 5 {
		s.PumpCompletions()
		select {
		case <-deadline:
			t.Fatal("timed out waiting for completions")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestCancellationSkipsSideEffects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CPUWorkers = 1
	s := New(cfg)
	defer s.Shutdown()

	// Occupy the single CPU worker so the job under test is still queued
	// when it is cancelled.
	block := make(chan struct{})
	running := make(chan struct{})
	_, err := s.Submit(QueueCPU, func(cancelled func() bool) error {
		close(running)
		<-block
		return nil
	}, nil)
	require.NoError(t, err)
	<-running

	completed := make(chan bool, 1)
	h, err := s.Submit(QueueCPU, func(cancelled func() bool) error {
		if cancelled() {
			return nil
		}
		t.Error("run should have observed cancellation")
		return nil
	}, func(err error, cancelled bool) {
		completed <- cancelled
	})
	require.NoError(t, err)
	h.Cancel()
	close(block)

	deadline := time.After(2 * time.Second)
	for len(completed) == 0 {
		s.PumpCompletions()
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the cancelled job's completion")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	assert.True(t, <-completed)

	_, err = s.Submit(QueueCPU, func(cancelled func() bool) error {
		if cancelled() {
			return nil
		}
		return nil
	}, func(err error, cancelled bool) {})
	require.NoError(t, err)
}

func TestPanicIsolation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeInline
	s := New(cfg)

	_, err := s.Submit(QueueCPU, func(cancelled func() bool) error {
		panic("boom")
	}, func(err error, cancelled bool) {
		assert.Error(t, err)
	})
	require.NoError(t, err)

	msg, ok := s.StickyError()
	require.True(t, ok)
	assert.Contains(t, msg, "boom")
}

package evnet

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorkerPoolExecutesAllBeforeShutdown(t *testing.T) {
	t.Parallel()

	const tasks = 100

	p := NewWorkerPool(4)

	var ran atomic.Int64
	for i := 0; i < tasks; i++ {
		_, err := p.Submit(func() (any, error) {
			ran.Add(1)
			return nil, nil
		})
		require.NoError(t, err)
	}

	p.Shutdown()

	// Shutdown returns only after every accepted task ran exactly once.
	require.Equal(t, int64(tasks), ran.Load())
}

func TestWorkerPoolSubmitAfterShutdown(t *testing.T) {
	t.Parallel()

	p := NewWorkerPool(2)
	p.Shutdown()

	var ran atomic.Bool
	res, err := p.Submit(func() (any, error) {
		ran.Store(true)
		return nil, nil
	})
	require.ErrorIs(t, err, ErrPoolClosed)
	require.Nil(t, res)

	time.Sleep(50 * time.Millisecond)
	require.False(t, ran.Load())
}

func TestWorkerPoolResult(t *testing.T) {
	t.Parallel()

	p := NewWorkerPool(2)
	defer p.Shutdown()

	t.Run("value", func(t *testing.T) {
		res, err := p.Submit(func() (any, error) {
			return 42, nil
		})
		require.NoError(t, err)

		v, err := res.Wait()
		require.NoError(t, err)
		require.Equal(t, 42, v)
	})

	t.Run("error", func(t *testing.T) {
		sentinel := errors.New("boom")
		res, err := p.Submit(func() (any, error) {
			return nil, sentinel
		})
		require.NoError(t, err)

		_, err = res.Wait()
		require.ErrorIs(t, err, sentinel)
	})

	t.Run("panic recovered", func(t *testing.T) {
		res, err := p.Submit(func() (any, error) {
			panic("kaboom")
		})
		require.NoError(t, err)

		_, err = res.Wait()
		require.Error(t, err)
		require.Contains(t, err.Error(), "kaboom")
	})

	t.Run("nil task", func(t *testing.T) {
		_, err := p.Submit(nil)
		require.Error(t, err)
	})
}

func TestWorkerPoolWaitContext(t *testing.T) {
	t.Parallel()

	p := NewWorkerPool(1)

	release := make(chan struct{})
	res, err := p.Submit(func() (any, error) {
		<-release
		return "done", nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = res.WaitContext(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	v, err := res.WaitContext(context.Background())
	require.NoError(t, err)
	require.Equal(t, "done", v)

	p.Shutdown()
}

func TestWorkerPoolPending(t *testing.T) {
	t.Parallel()

	p := NewWorkerPool(1)

	started := make(chan struct{})
	release := make(chan struct{})
	_, err := p.Submit(func() (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	require.NoError(t, err)
	<-started

	// The single worker is busy, so these stay queued.
	for i := 0; i < 3; i++ {
		_, err := p.Submit(func() (any, error) { return nil, nil })
		require.NoError(t, err)
	}
	require.Equal(t, 3, p.Pending())

	close(release)
	p.Shutdown()
	require.Equal(t, 0, p.Pending())
}

func TestWorkerPoolShutdownIdempotent(t *testing.T) {
	t.Parallel()

	p := NewWorkerPool(2)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		_, err := p.Submit(func() (any, error) { return nil, nil })
		require.NoError(t, err)
	}

	p.Shutdown()

	// A second call observes the stopping state and returns promptly.
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second Shutdown did not return")
	}
	wg.Wait()
}

func TestWorkerPoolDefaultSize(t *testing.T) {
	t.Parallel()

	p := NewWorkerPool(0)
	defer p.Shutdown()

	require.Equal(t, DefaultPoolSize, p.Size())
}

func TestWorkerPoolConcurrentSubmit(t *testing.T) {
	t.Parallel()

	const (
		goroutines = 8
		perG       = 50
	)

	p := NewWorkerPool(4)

	var ran atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				if _, err := p.Submit(func() (any, error) {
					ran.Add(1)
					return nil, nil
				}); err != nil {
					t.Errorf("submit: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	p.Shutdown()
	require.Equal(t, int64(goroutines*perG), ran.Load())
}

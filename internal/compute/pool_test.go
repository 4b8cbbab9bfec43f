// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

package compute_test

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mydex/mydex/internal/compute"
	"github.com/mydex/mydex/pkg/errutil"
)

func newPool(t *testing.T, workers, queue int) *compute.Pool {
	t.Helper()
	p, err := compute.NewPool(workers, queue)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestNewPool(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("defaults workers to GOMAXPROCS", func(t *testing.T) {
		p := newPool(t, 0, 1)
		assert.Equal(t, runtime.GOMAXPROCS(0), p.Stats().Workers)
	})

	t.Run("rejects negative queue size", func(t *testing.T) {
		_, err := compute.NewPool(1, -1)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "COMPUTE_INVALID_QUEUE")
	})
}

func TestPool_Do(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()

	t.Run("returns the task result", func(t *testing.T) {
		p := newPool(t, 2, 4)
		sentinel := errors.New("boom")

		require.NoError(t, p.Do(ctx, func() error { return nil }))
		assert.ErrorIs(t, p.Do(ctx, func() error { return sentinel }), sentinel)
	})

	t.Run("runs on a different goroutine", func(t *testing.T) {
		p := newPool(t, 1, 0)
		callerStack := make([]byte, 64)
		callerStack = callerStack[:runtime.Stack(callerStack, false)]

		var workerStack []byte
		require.NoError(t, p.Do(ctx, func() error {
			buf := make([]byte, 64)
			workerStack = buf[:runtime.Stack(buf, false)]
			return nil
		}))
		assert.NotEqual(t, goroutineHeader(callerStack), goroutineHeader(workerStack))
	})

	t.Run("bounds concurrency to worker count", func(t *testing.T) {
		const workers = 3
		p := newPool(t, workers, 16)

		var running, peak atomic.Int64
		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = p.Do(ctx, func() error {
					n := running.Add(1)
					for {
						old := peak.Load()
						if n <= old || peak.CompareAndSwap(old, n) {
							break
						}
					}
					time.Sleep(2 * time.Millisecond)
					running.Add(-1)
					return nil
				})
			}()
		}
		wg.Wait()
		assert.LessOrEqual(t, peak.Load(), int64(workers))
		assert.Positive(t, peak.Load())
	})

	t.Run("recovers task panics", func(t *testing.T) {
		p := newPool(t, 1, 1)
		err := p.Do(ctx, func() error { panic("kaboom") })
		require.ErrorIs(t, err, compute.ErrTaskPanicked)
		errutil.AssertErrorContext(t, err, "panic", "kaboom")

		require.NoError(t, p.Do(ctx, func() error { return nil }), "worker survives a panic")
	})
}

func TestPool_Cancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("caller returns when its context ends", func(t *testing.T) {
		p := newPool(t, 1, 1)
		release := make(chan struct{})
		started := make(chan struct{})

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() {
			errCh <- p.Do(ctx, func() error {
				close(started)
				<-release
				return nil
			})
		}()

		<-started
		cancel()
		assert.ErrorIs(t, <-errCh, context.Canceled)
		close(release)
	})

	t.Run("queued task with ended context is skipped", func(t *testing.T) {
		p := newPool(t, 1, 1)
		release := make(chan struct{})
		started := make(chan struct{})

		go func() {
			_ = p.Do(context.Background(), func() error {
				close(started)
				<-release
				return nil
			})
		}()
		<-started

		ctx, cancel := context.WithCancel(context.Background())
		var ran atomic.Bool
		errCh := make(chan error, 1)
		go func() {
			errCh <- p.Do(ctx, func() error {
				ran.Store(true)
				return nil
			})
		}()

		require.Eventually(t, func() bool { return p.Stats().Queued == 1 }, time.Second, time.Millisecond)
		cancel()
		assert.ErrorIs(t, <-errCh, context.Canceled)

		close(release)
		require.NoError(t, p.Do(context.Background(), func() error { return nil }))
		assert.False(t, ran.Load())
	})
}

func TestPool_Close(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("rejects work after close", func(t *testing.T) {
		p, err := compute.NewPool(1, 1)
		require.NoError(t, err)
		p.Close()

		err = p.Do(context.Background(), func() error { return nil })
		assert.ErrorIs(t, err, compute.ErrPoolClosed)
	})

	t.Run("is idempotent", func(t *testing.T) {
		p, err := compute.NewPool(2, 1)
		require.NoError(t, err)
		p.Close()
		p.Close()
	})

	t.Run("finishes queued work", func(t *testing.T) {
		p, err := compute.NewPool(1, 4)
		require.NoError(t, err)

		release := make(chan struct{})
		var done atomic.Int64
		var wg sync.WaitGroup
		for range 3 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = p.Do(context.Background(), func() error {
					<-release
					done.Add(1)
					return nil
				})
			}()
		}
		require.Eventually(t, func() bool {
			s := p.Stats()
			return s.Busy+s.Queued == 3
		}, time.Second, time.Millisecond)

		close(release)
		p.Close()
		wg.Wait()
		assert.Equal(t, int64(3), done.Load())
	})
}

func TestRegisterMetrics(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newPool(t, 2, 1)
	reg := prometheus.NewRegistry()
	require.NoError(t, compute.RegisterMetrics(reg, "verify", p))

	count, err := testutil.GatherAndCount(reg, "mydex_compute_pool_workers", "mydex_compute_pool_queued", "mydex_compute_pool_busy")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	err = compute.RegisterMetrics(reg, "verify", p)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "COMPUTE_METRICS_REGISTER")
}

// goroutineHeader returns the "goroutine N [running]:" line of a stack dump.
func goroutineHeader(stack []byte) string {
	for i, b := range stack {
		if b == '\n' {
			return string(stack[:i])
		}
	}
	return string(stack)
}

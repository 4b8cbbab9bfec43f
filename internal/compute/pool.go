// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

// Package compute runs CPU-bound work on a bounded set of worker goroutines,
// away from the goroutines that serve network I/O.
package compute

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/samber/oops"
)

// ErrPoolClosed is returned by Do after Close has been called.
var ErrPoolClosed = errors.New("compute pool closed")

// ErrTaskPanicked is returned by Do when the task panicked. The panic value
// is attached to the error context.
var ErrTaskPanicked = errors.New("compute task panicked")

// Stats is a point-in-time view of the pool.
type Stats struct {
	Workers int
	Queued  int
	Busy    int
}

type task struct {
	ctx  context.Context
	fn   func() error
	done chan error // buffered(1) so a worker never blocks on an abandoned caller
}

// Pool is a fixed-size worker pool fed by a bounded queue.
type Pool struct {
	workers int
	tasks   chan task
	quit    chan struct{}
	stopped chan struct{}
	busy    atomic.Int64

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewPool starts workers goroutines consuming a queue of queueSize pending
// tasks. workers <= 0 uses GOMAXPROCS; queueSize < 0 is rejected.
func NewPool(workers, queueSize int) (*Pool, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if queueSize < 0 {
		return nil, oops.Code("COMPUTE_INVALID_QUEUE").
			With("queue_size", queueSize).
			Errorf("queue size cannot be negative")
	}

	p := &Pool{
		workers: workers,
		tasks:   make(chan task, queueSize),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	p.wg.Add(workers)
	for range workers {
		go p.work()
	}
	go func() {
		p.wg.Wait()
		close(p.stopped)
	}()
	return p, nil
}

// Do runs fn on a worker and waits for it. It blocks while the queue is full.
//
// If ctx ends first, Do returns ctx.Err() immediately. A task that already
// started keeps running and its result is dropped; a queued task whose
// context has ended by the time a worker picks it up is skipped.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	t := task{ctx: ctx, fn: fn, done: make(chan error, 1)}

	select {
	case <-p.quit:
		return ErrPoolClosed
	default:
	}

	select {
	case p.tasks <- t:
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // caller inspects context errors directly
	case <-p.quit:
		return ErrPoolClosed
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // caller inspects context errors directly
	case <-p.stopped:
		// Workers drained the queue before exiting; the result may still be there.
		select {
		case err := <-t.done:
			return err
		default:
			return ErrPoolClosed
		}
	}
}

// Stats reports queue depth and busy workers.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers: p.workers,
		Queued:  len(p.tasks),
		Busy:    int(p.busy.Load()),
	}
}

// Close stops accepting work, runs what is already queued, and waits for
// the workers to exit. It is safe to call more than once.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.quit)
	})
	<-p.stopped
}

func (p *Pool) work() {
	defer p.wg.Done()
	for {
		select {
		case t := <-p.tasks:
			p.run(t)
		case <-p.quit:
			for {
				select {
				case t := <-p.tasks:
					p.run(t)
				default:
					return
				}
			}
		}
	}
}

func (p *Pool) run(t task) {
	if t.ctx.Err() != nil {
		t.done <- t.ctx.Err()
		return
	}

	p.busy.Add(1)
	defer p.busy.Add(-1)

	t.done <- safeCall(t.fn)
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = oops.Code("COMPUTE_TASK_PANIC").
				With("panic", fmt.Sprint(r)).
				Wrap(ErrTaskPanicked)
		}
	}()
	return fn()
}

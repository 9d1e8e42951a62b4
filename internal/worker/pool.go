// Package worker bounds how much pipeline work runs at once.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool runs tasks with at most size in flight. The poll path and batch jobs
// share one pool so their combined load stays bounded.
type Pool struct {
	sem    *semaphore.Weighted
	size   int
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewPool creates a new Pool. Sizes below one are treated as one.
func NewPool(size int, logger *slog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		sem:    semaphore.NewWeighted(int64(size)),
		size:   size,
		logger: logger,
	}
}

// Size returns the pool's concurrency limit
func (p *Pool) Size() int {
	return p.size
}

// Submit blocks until a slot is free, then runs task in its own goroutine.
// Returns ctx.Err() if the context ends before a slot frees up.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("worker pool: %w", err)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Worker task panicked",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
			}
		}()
		task()
	}()
	return nil
}

// Wait blocks until every submitted task has returned
func (p *Pool) Wait() {
	p.wg.Wait()
}

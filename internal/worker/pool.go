package worker

import (
	"context"
	"sync"
)

// Job is a unit of work producing an R
type Job[R any] interface {
	Execute(ctx context.Context) R
}

// JobFunc adapts a plain function to Job
type JobFunc[R any] func(ctx context.Context) R

// Execute calls f
func (f JobFunc[R]) Execute(ctx context.Context) R { return f(ctx) }

// Pool runs jobs on a fixed number of goroutines and streams their results.
// Results arrive in completion order. Cancelling the parent context stops the
// pool like Shutdown does.
type Pool[R any] struct {
	workers   int
	jobs      chan Job[R]
	results   chan R
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewPool creates a pool; fewer than one worker means one
func NewPool[R any](parent context.Context, workers int) *Pool[R] {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(parent)
	return &Pool[R]{
		workers: workers,
		jobs:    make(chan Job[R], workers*2),
		results: make(chan R, workers*2),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers
func (p *Pool[R]) Start() {
	p.wg.Add(p.workers)
	for range p.workers {
		go p.run()
	}
}

func (p *Pool[R]) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			out := job.Execute(p.ctx)
			select {
			case p.results <- out:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job. It reports false once the pool has stopped.
func (p *Pool[R]) Submit(job Job[R]) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.jobs <- job:
		return true
	}
}

// Results is the result stream. It closes after Close once the workers
// drain, or on Shutdown.
func (p *Pool[R]) Results() <-chan R {
	return p.results
}

// Close marks the end of submissions
func (p *Pool[R]) Close() {
	close(p.jobs)
	go func() {
		p.wg.Wait()
		p.closeResults()
		p.cancel()
	}()
}

// Wait closes the pool and collects every remaining result
func (p *Pool[R]) Wait() []R {
	p.Close()
	var out []R
	for r := range p.results {
		out = append(out, r)
	}
	return out
}

// Shutdown stops the workers without draining queued jobs
func (p *Pool[R]) Shutdown() {
	p.cancel()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool[R]) closeResults() {
	p.closeOnce.Do(func() { close(p.results) })
}

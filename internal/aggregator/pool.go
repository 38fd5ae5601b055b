package aggregator

import (
	"context"
	"sync"
)

// workerPool bounds the store concurrency of the batch job so it cannot
// starve the request-serving path of connections. Both passes funnel every
// store call through the same pool.
type workerPool struct {
	jobs      chan poolJob
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type poolJob struct {
	ctx  context.Context
	run  func(context.Context) error
	done chan error
}

func newWorkerPool(size int) *workerPool {
	p := &workerPool{jobs: make(chan poolJob)}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *workerPool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		job.done <- job.run(job.ctx)
	}
}

// Submit runs fn on a pool worker and waits for its result. The wait is
// bounded by ctx: a cancelled context abandons the job and returns the
// context error.
func (p *workerPool) Submit(ctx context.Context, fn func(context.Context) error) error {
	done := make(chan error, 1)
	select {
	case p.jobs <- poolJob{ctx: ctx, run: fn, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for in-flight work to finish.
func (p *workerPool) Close() {
	p.closeOnce.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}

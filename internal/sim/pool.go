package sim

import (
	"sync"
	"sync/atomic"
)

// Pool runs actions on a fixed set of worker goroutines. Workers start when
// the pool is built and live until Close. A Do call submits every action,
// waits for all of them, and reports the first error; later errors are
// dropped but their actions still run to completion.
type Pool struct {
	jobs    chan poolJob
	wg      sync.WaitGroup
	workers int
	closed  atomic.Bool
}

type poolJob struct {
	action Action
	batch  *poolBatch
}

type poolBatch struct {
	wg       sync.WaitGroup
	mu       sync.Mutex
	firstErr error
}

func (b *poolBatch) fail(err error) {
	b.mu.Lock()
	if b.firstErr == nil {
		b.firstErr = err
	}
	b.mu.Unlock()
}

// NewPool starts workers goroutines; counts below one are raised to one.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		jobs:    make(chan poolJob, workers),
		workers: workers,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		if job.action != nil {
			if err := job.action.Run(); err != nil {
				job.batch.fail(err)
			}
		}
		job.batch.wg.Done()
	}
}

// Workers reports the worker count.
func (p *Pool) Workers() int {
	if p == nil {
		return 0
	}
	return p.workers
}

// Do implements Submitter. It must not be called after Close, and actions
// must not call Do on the pool running them.
func (p *Pool) Do(actions []Action) error {
	if p == nil {
		return Serial{}.Do(actions)
	}
	if len(actions) == 0 {
		return nil
	}
	batch := &poolBatch{}
	batch.wg.Add(len(actions))
	for _, a := range actions {
		p.jobs <- poolJob{action: a, batch: batch}
	}
	batch.wg.Wait()
	return batch.firstErr
}

// Close stops the workers after the jobs already submitted finish. It is
// idempotent.
func (p *Pool) Close() {
	if p == nil {
		return
	}
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	close(p.jobs)
	p.wg.Wait()
}

// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"context"
	"runtime"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// NewJobPool creates a pool running at most workers jobs at once.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewJobPool(workers int, logger log.FieldLogger) *JobPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &JobPool{
		workers: workers,
		sem:     semaphore.NewWeighted(int64(workers)),
		log:     OrDiscard(logger).WithField("component", "jobs"),
	}
	p.idle = sync.NewCond(&p.mutex)
	return p
}

// JobPool is a JobRunner backed by goroutines. Enqueue never blocks,
// a weighted semaphore bounds how many jobs execute in parallel.
// A job that panics is logged and counted as finished.
//
// Thread safety: JobPool is safe for concurrent use.
type JobPool struct {
	workers int
	sem     *semaphore.Weighted
	log     log.FieldLogger

	mutex   sync.Mutex
	idle    *sync.Cond
	pending int
	closed  bool
}

// Enqueue implements JobRunner. Jobs enqueued after Close are dropped.
func (p *JobPool) Enqueue(job func()) {
	if job == nil {
		return
	}

	p.mutex.Lock()
	if p.closed {
		p.mutex.Unlock()
		p.log.Warn("job enqueued on a closed pool, dropped")
		return
	}
	p.pending++
	p.mutex.Unlock()

	go p.run(job)
}

func (p *JobPool) run(job func()) {
	defer p.done()

	// Acquire only fails on a cancelled context.
	_ = p.sem.Acquire(context.Background(), 1)
	defer p.sem.Release(1)

	defer func() {
		if r := recover(); r != nil {
			p.log.WithField("panic", r).Error("job panicked")
		}
	}()
	job()
}

func (p *JobPool) done() {
	p.mutex.Lock()
	p.pending--
	if p.pending == 0 {
		p.idle.Broadcast()
	}
	p.mutex.Unlock()
}

// WaitIdle implements JobRunner.
func (p *JobPool) WaitIdle() {
	p.mutex.Lock()
	for p.pending > 0 {
		p.idle.Wait()
	}
	p.mutex.Unlock()
}

// Pending returns the number of jobs enqueued and not yet finished.
func (p *JobPool) Pending() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.pending
}

// Workers returns the parallelism of the pool.
func (p *JobPool) Workers() int {
	return p.workers
}

// Close stops accepting work and waits for running jobs.
// Close is safe to call multiple times.
func (p *JobPool) Close() {
	p.mutex.Lock()
	p.closed = true
	p.mutex.Unlock()
	p.WaitIdle()
}

// ImmediateJobs runs every job inline on the enqueuing goroutine.
// Useful for tests and tools that want deterministic ordering.
type ImmediateJobs struct{}

// Enqueue implements JobRunner.
func (ImmediateJobs) Enqueue(job func()) {
	if job != nil {
		job()
	}
}

// WaitIdle implements JobRunner.
func (ImmediateJobs) WaitIdle() {}

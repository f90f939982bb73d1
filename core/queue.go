// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import "sync"

// NewFrameQueue creates an empty FrameQueue.
func NewFrameQueue() *FrameQueue {
	return &FrameQueue{}
}

// FrameQueue is a RenderQueue drained once per frame by the goroutine
// owning the device. Any goroutine may Enqueue; only the owner calls Flush.
type FrameQueue struct {
	mutex sync.Mutex
	jobs  []func()
}

// Enqueue implements RenderQueue.
func (q *FrameQueue) Enqueue(job func()) {
	if job == nil {
		return
	}
	q.mutex.Lock()
	q.jobs = append(q.jobs, job)
	q.mutex.Unlock()
}

// Flush implements Flusher. Jobs enqueued by a running job are
// executed in the same call, after the ones already queued.
func (q *FrameQueue) Flush() int {
	var ran int
	for {
		q.mutex.Lock()
		jobs := q.jobs
		q.jobs = nil
		q.mutex.Unlock()

		if len(jobs) == 0 {
			return ran
		}
		for _, job := range jobs {
			job()
		}
		ran += len(jobs)
	}
}

// Len returns the number of queued jobs.
func (q *FrameQueue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.jobs)
}

// ImmediateQueue runs jobs inline. Only valid when every caller
// already is the device owning goroutine.
type ImmediateQueue struct{}

// Enqueue implements RenderQueue.
func (ImmediateQueue) Enqueue(job func()) {
	if job != nil {
		job()
	}
}

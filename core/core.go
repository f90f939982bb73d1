// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package core holds the engine wide configuration, logging setup and
// the execution contexts the streaming pipeline runs on.
package core

// JobRunner runs CPU bound work, such as decoding and parsing,
// away from the render thread.
type JobRunner interface {
	// Enqueue schedules job for execution. It must not block
	// on the job itself.
	Enqueue(job func())

	// WaitIdle returns once every job enqueued before the call
	// has completed.
	WaitIdle()
}

// RenderQueue serializes work onto the goroutine that owns the GPU device.
// Jobs run in the order they were enqueued.
type RenderQueue interface {
	Enqueue(job func())
}

// Flusher is implemented by render queues that are drained explicitly
// by their owner. Flush runs all queued jobs on the calling goroutine
// and returns how many ran.
type Flusher interface {
	Flush() int
}

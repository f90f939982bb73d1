// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package resource implements the asynchronous load and GPU upload
// bookkeeping shared by every resource kind. A Store tracks identities,
// their state and load generation, and the queues of pending uploads
// and destroys. A Manager hands out one Store per kind.
package resource

import (
	"sync"
	"sync/atomic"

	"github.com/devblok/korustream/core"
)

// Properties is implemented by the load options of a resource kind.
// Kind names the kind for logging, Path is the source the resource is
// decoded from and WithPath returns a copy pointing at another source.
type Properties[P any] interface {
	Kind() string
	Path() string
	WithPath(path string) P
}

// Decoder turns a source path into CPU side data. It is called from job
// runner goroutines, never with store locks held. Missing or malformed
// sources are reported as errors.
type Decoder[P, C any] interface {
	Decode(props P, path string) (C, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc[P, C any] func(props P, path string) (C, error)

// Decode calls f.
func (f DecoderFunc[P, C]) Decode(props P, path string) (C, error) {
	return f(props, path)
}

// Uploader creates and destroys GPU objects. Both methods are only
// called from the render queue. Destroy must accept a zero payload.
type Uploader[C, P, G any] interface {
	CreateAndUpload(cpu C, props P) (G, error)
	Destroy(gpu G)
}

// IO bundles the collaborators a store drives for one kind.
type IO[P, C, G any] struct {
	Decoder  Decoder[P, C]
	Uploader Uploader[C, P, G]
	Jobs     core.JobRunner
	Render   core.RenderQueue
}

func newResource[P, G any](id string, props P) *Resource[P, G] {
	return &Resource[P, G]{
		id:    id,
		props: props,
	}
}

// Resource is the shared handle to one loaded resource. Its properties
// never change after construction; the GPU payload is swapped in when
// an upload completes.
//
// A Resource is reference counted. Every Resource returned by a store
// carries one reference for the caller, who gives it back with Release.
// Stores do not count themselves: an entry whose Resource has no
// references left is evicted by UnloadUnused.
type Resource[P, G any] struct {
	id    string
	props P
	refs  atomic.Int64

	mutex    sync.RWMutex
	gpu      G
	resident bool
}

// ID returns the identity the resource was requested with.
func (r *Resource[P, G]) ID() string {
	return r.id
}

// Properties returns the properties snapshot taken at creation.
func (r *Resource[P, G]) Properties() P {
	return r.props
}

// GPU returns the current GPU payload and whether one is resident.
func (r *Resource[P, G]) GPU() (G, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.gpu, r.resident
}

// Resident reports whether a GPU payload is attached.
func (r *Resource[P, G]) Resident() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.resident
}

// Retain adds a reference and returns r, for handing the resource
// to another owner.
func (r *Resource[P, G]) Retain() *Resource[P, G] {
	r.refs.Add(1)
	return r
}

// Release gives back one reference. Releasing more often than the
// resource was retained is a no-op.
func (r *Resource[P, G]) Release() {
	for {
		refs := r.refs.Load()
		if refs <= 0 {
			return
		}
		if r.refs.CompareAndSwap(refs, refs-1) {
			return
		}
	}
}

// Refs returns the number of outstanding references.
func (r *Resource[P, G]) Refs() int64 {
	return r.refs.Load()
}

// swap attaches gpu and returns the payload it replaced, if any.
func (r *Resource[P, G]) swap(gpu G) (G, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	old, had := r.gpu, r.resident
	r.gpu, r.resident = gpu, true
	return old, had
}

// take detaches the payload.
func (r *Resource[P, G]) take() (G, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	var zero G
	old, had := r.gpu, r.resident
	r.gpu, r.resident = zero, false
	return old, had
}

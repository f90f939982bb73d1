// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package resource

import (
	"fmt"
	"runtime"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/korustream/core"
)

// Budgets LoadSync uses for each ProcessUploads round.
const (
	SyncUploadBudget  = 16
	SyncDestroyBudget = 64
)

// ticket refers to a decoded payload waiting for upload.
type ticket struct {
	id         string
	generation uint64
}

type entry[P, C, G any] struct {
	res        *Resource[P, G]
	state      State
	generation uint64
	pending    C
	hasPending bool
	err        string
}

func (e *entry[P, C, G]) clearPending() {
	var zero C
	e.pending = zero
	e.hasPending = false
}

// NewStore creates an empty store for the kind named by P.
func NewStore[P Properties[P], C, G any](logger log.FieldLogger) *Store[P, C, G] {
	var props P
	return &Store[P, C, G]{
		kind:    props.Kind(),
		log:     core.OrDiscard(logger).WithField("kind", props.Kind()),
		entries: make(map[string]*entry[P, C, G]),
	}
}

// Store tracks every identity of one resource kind: its state, load
// generation, pending CPU payload and last error, plus the queues of
// payloads waiting to be uploaded or destroyed.
//
// Generations come from one store-wide counter, so an identity that is
// evicted and requested again never reuses an earlier attempt's number.
//
// A single mutex guards the entries and both queues. It is never held
// while calling into a decoder, uploader, job runner or render queue.
//
// Thread safety: Store is safe for concurrent use. ProcessUploads and
// LoadSync are meant for the goroutine that drains the render queue.
type Store[P Properties[P], C, G any] struct {
	kind string
	log  log.FieldLogger

	mutex      sync.Mutex
	generation uint64
	entries    map[string]*entry[P, C, G]
	uploads    fifo[ticket]
	destroys   fifo[G]
}

// Kind returns the name of the resource kind held.
func (s *Store[P, C, G]) Kind() string {
	return s.kind
}

// LoadAsync returns the resource for id, scheduling a decode when the
// identity is new or its last attempt failed. It never blocks on
// decoding or uploading. An empty path in props defaults to id.
//
// The returned resource carries a reference owned by the caller.
func (s *Store[P, C, G]) LoadAsync(id string, io IO[P, C, G], props P) *Resource[P, G] {
	s.mutex.Lock()
	e, ok := s.entries[id]
	if ok && e.state != Failed {
		res := e.res.Retain()
		s.mutex.Unlock()
		return res
	}

	if !ok {
		if props.Path() == "" {
			props = props.WithPath(id)
		}
		e = &entry[P, C, G]{res: newResource[P, G](id, props)}
		s.entries[id] = e
	}

	s.generation++
	if ok {
		s.log.WithFields(log.Fields{
			"id":         id,
			"generation": s.generation,
			"error":      e.err,
		}).Debug("restarting failed resource")
	}

	e.generation = s.generation
	e.state = Loading
	e.err = ""
	e.clearPending()

	task := decodeTask[P, C, G]{
		store:      s,
		io:         io,
		id:         id,
		generation: e.generation,
		props:      e.res.props,
	}
	res := e.res.Retain()
	s.mutex.Unlock()

	io.Jobs.Enqueue(task.run)
	return res
}

// LoadSync is LoadAsync followed by driving the pipeline until the
// resource is either loaded or failed. It waits for the job runner,
// processes uploads and flushes the render queue when it can, so it
// must run on the goroutine owning the render queue.
func (s *Store[P, C, G]) LoadSync(id string, io IO[P, C, G], props P) *Resource[P, G] {
	res := s.LoadAsync(id, io, props)
	flusher, _ := io.Render.(core.Flusher)

	for {
		switch s.State(id) {
		case Loaded, Failed, Unknown:
			return res
		}

		io.Jobs.WaitIdle()
		worked := s.ProcessUploads(io, SyncUploadBudget, SyncDestroyBudget)
		if flusher != nil && flusher.Flush() > 0 {
			worked = true
		}
		if !worked {
			runtime.Gosched()
		}
	}
}

// Find returns the live resource for id without triggering a load.
// A found resource carries a reference owned by the caller.
func (s *Store[P, C, G]) Find(id string) (*Resource[P, G], bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return e.res.Retain(), true
}

// State returns the state of id, Unknown if it was never requested.
func (s *Store[P, C, G]) State(id string) State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if e, ok := s.entries[id]; ok {
		return e.state
	}
	return Unknown
}

// Error returns the last failure message for id.
func (s *Store[P, C, G]) Error(id string) string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if e, ok := s.entries[id]; ok {
		return e.err
	}
	return ""
}

// Generation returns the current load attempt of id, 0 if unknown.
func (s *Store[P, C, G]) Generation(id string) uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if e, ok := s.entries[id]; ok {
		return e.generation
	}
	return 0
}

// Len returns the number of tracked identities.
func (s *Store[P, C, G]) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.entries)
}

// Pending returns the lengths of the upload and destroy queues.
func (s *Store[P, C, G]) Pending() (uploads, destroys int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.uploads.len(), s.destroys.len()
}

// ProcessUploads moves queued work onto the render queue: first up to
// maxDestroys GPU payloads to destroy, then up to maxUploads decoded
// payloads to upload. Stale upload tickets are dropped but count
// against maxUploads. It reports whether anything was dequeued.
func (s *Store[P, C, G]) ProcessUploads(io IO[P, C, G], maxUploads, maxDestroys int) bool {
	s.mutex.Lock()
	destroys := s.destroys.pop(maxDestroys)
	s.mutex.Unlock()

	for _, gpu := range destroys {
		gpu := gpu
		io.Render.Enqueue(func() {
			io.Uploader.Destroy(gpu)
		})
	}

	s.mutex.Lock()
	tickets := s.uploads.pop(maxUploads)
	tasks := make([]uploadTask[P, C, G], 0, len(tickets))
	for _, t := range tickets {
		e, ok := s.entries[t.id]
		if !ok || e.generation != t.generation || !e.hasPending {
			continue
		}
		tasks = append(tasks, uploadTask[P, C, G]{
			store:      s,
			io:         io,
			id:         t.id,
			generation: t.generation,
			props:      e.res.props,
			cpu:        e.pending,
		})
		e.clearPending()
	}
	s.mutex.Unlock()

	if dropped := len(tickets) - len(tasks); dropped > 0 {
		s.log.WithField("tickets", dropped).Debug("dropped stale upload tickets")
	}

	for _, task := range tasks {
		io.Render.Enqueue(task.run)
	}

	return len(destroys) > 0 || len(tickets) > 0
}

// UnloadUnused evicts every identity whose resource has no references
// left, queueing destruction of its GPU payload. It returns the number
// of evicted identities.
func (s *Store[P, C, G]) UnloadUnused() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var removed int
	for id, e := range s.entries {
		if e.res.Refs() > 0 {
			continue
		}
		if gpu, ok := e.res.take(); ok {
			s.destroys.push(gpu)
		}
		delete(s.entries, id)
		removed++
	}

	if removed > 0 {
		s.log.WithField("count", removed).Debug("unloaded unused resources")
	}
	return removed
}

// Clear forgets every identity regardless of references and queues
// destruction of all resident GPU payloads. Pending uploads are
// dropped; queued destroys are kept so a following ProcessUploads
// releases them.
func (s *Store[P, C, G]) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, e := range s.entries {
		if gpu, ok := e.res.take(); ok {
			s.destroys.push(gpu)
		}
	}
	s.entries = make(map[string]*entry[P, C, G])
	s.uploads.reset()
}

func (s *Store[P, C, G]) commitDecode(id string, generation uint64, cpu C, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	e, ok := s.entries[id]
	if !ok || e.generation != generation {
		s.log.WithFields(log.Fields{"id": id, "generation": generation}).Debug("dropped superseded decode result")
		return
	}

	if err != nil {
		e.state = Failed
		e.err = err.Error()
		e.clearPending()
		s.log.WithFields(log.Fields{"id": id, "error": e.err}).Warn("decode failed")
		return
	}

	e.pending = cpu
	e.hasPending = true
	s.uploads.push(ticket{id: id, generation: generation})
}

func (s *Store[P, C, G]) commitUpload(id string, generation uint64, gpu G, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	e, ok := s.entries[id]
	if !ok || e.generation != generation {
		if err == nil {
			s.destroys.push(gpu)
		}
		s.log.WithFields(log.Fields{"id": id, "generation": generation}).Debug("dropped superseded upload")
		return
	}

	if err != nil {
		e.state = Failed
		e.err = err.Error()
		s.log.WithFields(log.Fields{"id": id, "error": e.err}).Warn("upload failed")
		return
	}

	if old, had := e.res.swap(gpu); had {
		s.destroys.push(old)
	}
	e.state = Loaded
	e.err = ""
}

// decodeTask carries one decode attempt to the job runner.
type decodeTask[P Properties[P], C, G any] struct {
	store      *Store[P, C, G]
	io         IO[P, C, G]
	id         string
	generation uint64
	props      P
}

func (t decodeTask[P, C, G]) run() {
	cpu, err := t.decode()
	t.store.commitDecode(t.id, t.generation, cpu, err)
}

func (t decodeTask[P, C, G]) decode() (cpu C, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decoder panicked: %v", r)
		}
	}()
	return t.io.Decoder.Decode(t.props, t.props.Path())
}

// uploadTask carries one decoded payload to the render queue.
type uploadTask[P Properties[P], C, G any] struct {
	store      *Store[P, C, G]
	io         IO[P, C, G]
	id         string
	generation uint64
	props      P
	cpu        C
}

func (t uploadTask[P, C, G]) run() {
	gpu, err := t.upload()
	t.store.commitUpload(t.id, t.generation, gpu, err)
}

func (t uploadTask[P, C, G]) upload() (gpu G, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("uploader panicked: %v", r)
		}
	}()
	return t.io.Uploader.CreateAndUpload(t.cpu, t.props)
}

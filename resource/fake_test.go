// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package resource

import (
	"errors"
	"sync"
	"time"

	"github.com/devblok/korustream/core"
)

type fakeProps struct {
	path string
	tag  string
}

func (fakeProps) Kind() string { return "fake" }

func (p fakeProps) Path() string { return p.path }

func (p fakeProps) WithPath(path string) fakeProps {
	p.path = path
	return p
}

type otherProps struct {
	path string
}

func (otherProps) Kind() string { return "other" }

func (p otherProps) Path() string { return p.path }

func (p otherProps) WithPath(path string) otherProps {
	p.path = path
	return p
}

type fakeCPU struct {
	path string
}

type fakeGPU struct {
	id uint32
}

type fakeDecoder struct {
	mutex sync.Mutex
	calls map[string]int
	fail  map[string]bool
	panic bool
	delay time.Duration
}

func newFakeDecoder() *fakeDecoder {
	return &fakeDecoder{
		calls: make(map[string]int),
		fail:  make(map[string]bool),
	}
}

func (d *fakeDecoder) Decode(props fakeProps, path string) (fakeCPU, error) {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.calls[path]++
	if d.panic {
		panic("corrupt header")
	}
	if d.fail[path] {
		return fakeCPU{}, errors.New("no such file: " + path)
	}
	return fakeCPU{path: path}, nil
}

func (d *fakeDecoder) setFail(path string, fail bool) {
	d.mutex.Lock()
	d.fail[path] = fail
	d.mutex.Unlock()
}

func (d *fakeDecoder) callsFor(path string) int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.calls[path]
}

type fakeUploader struct {
	mutex     sync.Mutex
	fail      bool
	next      uint32
	created   []uint32
	destroyed []uint32
	uploaded  []string
}

func (u *fakeUploader) CreateAndUpload(cpu fakeCPU, props fakeProps) (fakeGPU, error) {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	if u.fail {
		return fakeGPU{}, errors.New("device lost")
	}
	u.next++
	u.created = append(u.created, u.next)
	u.uploaded = append(u.uploaded, cpu.path)
	return fakeGPU{id: u.next}, nil
}

func (u *fakeUploader) Destroy(gpu fakeGPU) {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	if gpu.id != 0 {
		u.destroyed = append(u.destroyed, gpu.id)
	}
}

func (u *fakeUploader) setFail(fail bool) {
	u.mutex.Lock()
	u.fail = fail
	u.mutex.Unlock()
}

// paths returns the decoded paths uploaded so far, in order.
func (u *fakeUploader) paths() []string {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	return append([]string(nil), u.uploaded...)
}

func (u *fakeUploader) counts() (created, destroyed int) {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	return len(u.created), len(u.destroyed)
}

// destroyedOnce reports whether every created id was destroyed exactly once.
func (u *fakeUploader) destroyedOnce() bool {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	seen := make(map[uint32]int)
	for _, id := range u.destroyed {
		seen[id]++
	}
	if len(seen) != len(u.created) {
		return false
	}
	for _, id := range u.created {
		if seen[id] != 1 {
			return false
		}
	}
	return true
}

// manualJobs holds jobs until WaitIdle runs them.
type manualJobs struct {
	mutex sync.Mutex
	jobs  []func()
}

func (m *manualJobs) Enqueue(job func()) {
	m.mutex.Lock()
	m.jobs = append(m.jobs, job)
	m.mutex.Unlock()
}

func (m *manualJobs) WaitIdle() {
	for {
		m.mutex.Lock()
		jobs := m.jobs
		m.jobs = nil
		m.mutex.Unlock()
		if len(jobs) == 0 {
			return
		}
		for _, job := range jobs {
			job()
		}
	}
}

// runOne runs the oldest held job only.
func (m *manualJobs) runOne() bool {
	m.mutex.Lock()
	if len(m.jobs) == 0 {
		m.mutex.Unlock()
		return false
	}
	job := m.jobs[0]
	m.jobs = m.jobs[1:]
	m.mutex.Unlock()
	job()
	return true
}

func (m *manualJobs) len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.jobs)
}

type fakeIO = IO[fakeProps, fakeCPU, fakeGPU]

func newFakeIO(jobs core.JobRunner, render core.RenderQueue) (fakeIO, *fakeDecoder, *fakeUploader) {
	dec := newFakeDecoder()
	up := &fakeUploader{}
	return fakeIO{
		Decoder:  dec,
		Uploader: up,
		Jobs:     jobs,
		Render:   render,
	}, dec, up
}

// drain runs ProcessUploads and flushes until no work is left.
func drain(s *Store[fakeProps, fakeCPU, fakeGPU], io fakeIO) {
	flusher, _ := io.Render.(core.Flusher)
	for {
		io.Jobs.WaitIdle()
		worked := s.ProcessUploads(io, 1000, 1000)
		if flusher != nil && flusher.Flush() > 0 {
			worked = true
		}
		if !worked {
			return
		}
	}
}

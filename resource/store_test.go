// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package resource

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/korustream/core"
)

func newFakeStore() *Store[fakeProps, fakeCPU, fakeGPU] {
	return NewStore[fakeProps, fakeCPU, fakeGPU](nil)
}

func TestLoadAsyncDeduplicates(t *testing.T) {
	c := qt.New(t)
	jobs := &manualJobs{}
	io, dec, _ := newFakeIO(jobs, core.ImmediateQueue{})
	s := newFakeStore()

	first := s.LoadAsync("brick", io, fakeProps{path: "brick.png"})
	second := s.LoadAsync("brick", io, fakeProps{path: "brick.png"})
	c.Assert(first == second, qt.IsTrue)
	c.Assert(s.State("brick"), qt.Equals, Loading)
	c.Assert(jobs.len(), qt.Equals, 1)

	jobs.WaitIdle()
	s.ProcessUploads(io, 8, 8)
	c.Assert(s.State("brick"), qt.Equals, Loaded)

	third := s.LoadAsync("brick", io, fakeProps{path: "brick.png"})
	c.Assert(third == first, qt.IsTrue)
	c.Assert(jobs.len(), qt.Equals, 0)
	c.Assert(dec.callsFor("brick.png"), qt.Equals, 1)
	c.Assert(first.Refs(), qt.Equals, int64(3))

	gpu, ok := first.GPU()
	c.Assert(ok, qt.IsTrue)
	c.Assert(gpu.id, qt.Equals, uint32(1))
}

func TestLoadAsyncDefaultsPathToIdentity(t *testing.T) {
	c := qt.New(t)
	io, dec, _ := newFakeIO(core.ImmediateJobs{}, core.ImmediateQueue{})
	s := newFakeStore()

	res := s.LoadAsync("textures/stone.png", io, fakeProps{tag: "albedo"})
	c.Assert(res.Properties().Path(), qt.Equals, "textures/stone.png")
	c.Assert(res.Properties().tag, qt.Equals, "albedo")
	c.Assert(res.ID(), qt.Equals, "textures/stone.png")
	c.Assert(dec.callsFor("textures/stone.png"), qt.Equals, 1)
}

func TestUnknownIdentity(t *testing.T) {
	c := qt.New(t)
	s := newFakeStore()

	c.Assert(s.State("nope"), qt.Equals, Unknown)
	c.Assert(s.Error("nope"), qt.Equals, "")
	c.Assert(s.Generation("nope"), qt.Equals, uint64(0))
	_, ok := s.Find("nope")
	c.Assert(ok, qt.IsFalse)
}

func TestDecodeFailureAndRestart(t *testing.T) {
	c := qt.New(t)
	io, dec, up := newFakeIO(core.ImmediateJobs{}, core.ImmediateQueue{})
	s := newFakeStore()
	dec.setFail("missing.png", true)

	res := s.LoadAsync("missing", io, fakeProps{path: "missing.png"})
	c.Assert(s.State("missing"), qt.Equals, Failed)
	c.Assert(s.Error("missing"), qt.Equals, "no such file: missing.png")
	c.Assert(s.Generation("missing"), qt.Equals, uint64(1))

	// Failed is restartable, the handle stays the same.
	dec.setFail("missing.png", false)
	jobs := &manualJobs{}
	io.Jobs = jobs
	again := s.LoadAsync("missing", io, fakeProps{path: "ignored.png"})
	c.Assert(again == res, qt.IsTrue)
	c.Assert(s.State("missing"), qt.Equals, Loading)
	c.Assert(s.Generation("missing"), qt.Equals, uint64(2))
	c.Assert(s.Error("missing"), qt.Equals, "")

	jobs.WaitIdle()
	s.ProcessUploads(io, 1, 0)
	c.Assert(s.State("missing"), qt.Equals, Loaded)
	c.Assert(dec.callsFor("missing.png"), qt.Equals, 2)
	c.Assert(dec.callsFor("ignored.png"), qt.Equals, 0)

	created, _ := up.counts()
	c.Assert(created, qt.Equals, 1)
}

func TestStaleDecodeIsIgnored(t *testing.T) {
	c := qt.New(t)
	jobs := &manualJobs{}
	io, dec, _ := newFakeIO(jobs, core.ImmediateQueue{})
	s := newFakeStore()
	dec.setFail("sky.png", true)

	s.LoadAsync("sky", io, fakeProps{path: "sky.png"})
	jobs.WaitIdle()
	c.Assert(s.State("sky"), qt.Equals, Failed)

	s.LoadAsync("sky", io, fakeProps{})
	c.Assert(s.Generation("sky"), qt.Equals, uint64(2))

	// A late result of the first attempt arrives after the restart.
	s.commitDecode("sky", 1, fakeCPU{path: "sky.png"}, nil)
	uploads, _ := s.Pending()
	c.Assert(uploads, qt.Equals, 0)
	c.Assert(s.State("sky"), qt.Equals, Loading)

	s.commitDecode("sky", 1, fakeCPU{}, fmt.Errorf("late failure"))
	c.Assert(s.State("sky"), qt.Equals, Loading)
	c.Assert(s.Error("sky"), qt.Equals, "")
}

func TestStaleUploadIsDestroyed(t *testing.T) {
	c := qt.New(t)
	render := core.NewFrameQueue()
	io, _, up := newFakeIO(core.ImmediateJobs{}, render)
	s := newFakeStore()

	res := s.LoadAsync("crate", io, fakeProps{path: "crate.png"})
	c.Assert(s.ProcessUploads(io, 8, 8), qt.IsTrue)
	c.Assert(render.Len(), qt.Equals, 1)

	// The entry goes away while its upload waits on the render queue.
	s.Clear()
	render.Flush()

	created, destroyed := up.counts()
	c.Assert(created, qt.Equals, 1)
	c.Assert(destroyed, qt.Equals, 0)
	c.Assert(res.Resident(), qt.IsFalse)

	_, destroys := s.Pending()
	c.Assert(destroys, qt.Equals, 1)

	drain(s, io)
	c.Assert(up.destroyedOnce(), qt.IsTrue)
}

func TestReloadAfterEvictionIgnoresOldDecode(t *testing.T) {
	c := qt.New(t)
	jobs := &manualJobs{}
	io, _, up := newFakeIO(jobs, core.ImmediateQueue{})
	s := newFakeStore()

	old := s.LoadAsync("a", io, fakeProps{path: "old.png"})
	first := s.Generation("a")
	old.Release()
	c.Assert(s.UnloadUnused(), qt.Equals, 1)

	fresh := s.LoadAsync("a", io, fakeProps{path: "new.png"})
	defer fresh.Release()
	c.Assert(s.Generation("a") > first, qt.IsTrue)
	c.Assert(jobs.len(), qt.Equals, 2)

	// The evicted attempt finishes first.
	c.Assert(jobs.runOne(), qt.IsTrue)
	s.ProcessUploads(io, 8, 8)
	c.Assert(s.State("a"), qt.Equals, Loading)
	c.Assert(up.paths(), qt.HasLen, 0)
	uploads, _ := s.Pending()
	c.Assert(uploads, qt.Equals, 0)

	jobs.WaitIdle()
	s.ProcessUploads(io, 8, 8)
	c.Assert(s.State("a"), qt.Equals, Loaded)
	c.Assert(up.paths(), qt.DeepEquals, []string{"new.png"})
	c.Assert(fresh.Properties().Path(), qt.Equals, "new.png")
}

func TestReloadAfterClearIgnoresOldDecode(t *testing.T) {
	c := qt.New(t)
	jobs := &manualJobs{}
	io, _, up := newFakeIO(jobs, core.ImmediateQueue{})
	s := newFakeStore()

	old := s.LoadAsync("a", io, fakeProps{path: "old.png"})
	defer old.Release()
	s.Clear()
	fresh := s.LoadAsync("a", io, fakeProps{path: "new.png"})
	defer fresh.Release()
	c.Assert(fresh == old, qt.IsFalse)

	c.Assert(jobs.runOne(), qt.IsTrue)
	s.ProcessUploads(io, 8, 8)
	c.Assert(s.State("a"), qt.Equals, Loading)
	c.Assert(up.paths(), qt.HasLen, 0)

	jobs.WaitIdle()
	s.ProcessUploads(io, 8, 8)
	c.Assert(s.State("a"), qt.Equals, Loaded)
	c.Assert(up.paths(), qt.DeepEquals, []string{"new.png"})
	c.Assert(old.Resident(), qt.IsFalse)
}

func TestReloadAfterClearDestroysOldUpload(t *testing.T) {
	c := qt.New(t)
	render := core.NewFrameQueue()
	io, _, up := newFakeIO(core.ImmediateJobs{}, render)
	s := newFakeStore()

	old := s.LoadAsync("a", io, fakeProps{path: "old.png"})
	defer old.Release()
	s.ProcessUploads(io, 8, 8)
	c.Assert(render.Len(), qt.Equals, 1)

	s.Clear()
	fresh := s.LoadAsync("a", io, fakeProps{path: "new.png"})
	defer fresh.Release()

	// The upload queued before the clear runs against the new entry.
	c.Assert(render.Flush(), qt.Equals, 1)
	c.Assert(s.State("a"), qt.Equals, Loading)
	c.Assert(fresh.Resident(), qt.IsFalse)
	_, destroys := s.Pending()
	c.Assert(destroys, qt.Equals, 1)

	drain(s, io)
	c.Assert(s.State("a"), qt.Equals, Loaded)
	c.Assert(up.paths(), qt.DeepEquals, []string{"old.png", "new.png"})
	gpu, ok := fresh.GPU()
	c.Assert(ok, qt.IsTrue)
	c.Assert(gpu.id, qt.Equals, uint32(2))

	created, destroyed := up.counts()
	c.Assert(created, qt.Equals, 2)
	c.Assert(destroyed, qt.Equals, 1)
}

func TestUploadFailure(t *testing.T) {
	c := qt.New(t)
	io, _, up := newFakeIO(core.ImmediateJobs{}, core.ImmediateQueue{})
	s := newFakeStore()
	up.setFail(true)

	s.LoadAsync("mesh", io, fakeProps{})
	s.ProcessUploads(io, 1, 1)
	c.Assert(s.State("mesh"), qt.Equals, Failed)
	c.Assert(s.Error("mesh"), qt.Equals, "device lost")

	up.setFail(false)
	s.LoadAsync("mesh", io, fakeProps{})
	s.ProcessUploads(io, 1, 1)
	c.Assert(s.State("mesh"), qt.Equals, Loaded)
}

func TestFailuresAreIsolated(t *testing.T) {
	c := qt.New(t)
	jobs := &manualJobs{}
	io, dec, _ := newFakeIO(jobs, core.ImmediateQueue{})
	s := newFakeStore()
	dec.setFail("b", true)

	for _, id := range []string{"a", "b", "c"} {
		s.LoadAsync(id, io, fakeProps{})
	}
	jobs.WaitIdle()
	s.ProcessUploads(io, 8, 8)

	c.Assert(s.State("a"), qt.Equals, Loaded)
	c.Assert(s.State("b"), qt.Equals, Failed)
	c.Assert(s.State("c"), qt.Equals, Loaded)
	c.Assert(s.Error("a"), qt.Equals, "")
}

func TestDecoderPanicIsRecorded(t *testing.T) {
	c := qt.New(t)
	io, dec, _ := newFakeIO(core.ImmediateJobs{}, core.ImmediateQueue{})
	dec.panic = true
	s := newFakeStore()

	s.LoadAsync("bad", io, fakeProps{})
	c.Assert(s.State("bad"), qt.Equals, Failed)
	c.Assert(s.Error("bad"), qt.Equals, "decoder panicked: corrupt header")
}

func TestProcessUploadsIsBounded(t *testing.T) {
	c := qt.New(t)
	render := core.NewFrameQueue()
	io, _, _ := newFakeIO(core.ImmediateJobs{}, render)
	s := newFakeStore()

	for i := 0; i < 10; i++ {
		s.LoadAsync(fmt.Sprintf("tex%d", i), io, fakeProps{})
	}
	uploads, _ := s.Pending()
	c.Assert(uploads, qt.Equals, 10)

	c.Assert(s.ProcessUploads(io, 3, 0), qt.IsTrue)
	uploads, _ = s.Pending()
	c.Assert(uploads, qt.Equals, 7)
	c.Assert(render.Flush(), qt.Equals, 3)

	drain(s, io)
	for i := 0; i < 10; i++ {
		res, ok := s.Find(fmt.Sprintf("tex%d", i))
		c.Assert(ok, qt.IsTrue)
		// Release the Find reference and the LoadAsync one.
		res.Release()
		res.Release()
	}
	c.Assert(s.UnloadUnused(), qt.Equals, 10)

	_, destroys := s.Pending()
	c.Assert(destroys, qt.Equals, 10)
	c.Assert(s.ProcessUploads(io, 0, 4), qt.IsTrue)
	_, destroys = s.Pending()
	c.Assert(destroys, qt.Equals, 6)
	c.Assert(render.Flush(), qt.Equals, 4)

	c.Assert(s.ProcessUploads(io, -1, -1), qt.IsFalse)
}

func TestDestroysDrainBeforeUploads(t *testing.T) {
	c := qt.New(t)
	render := core.NewFrameQueue()
	io, _, up := newFakeIO(core.ImmediateJobs{}, render)
	s := newFakeStore()

	old := s.LoadAsync("old", io, fakeProps{})
	drain(s, io)
	old.Release()
	s.UnloadUnused()

	s.LoadAsync("new", io, fakeProps{})
	s.ProcessUploads(io, 1, 1)
	render.Flush()

	up.mutex.Lock()
	defer up.mutex.Unlock()
	c.Assert(up.destroyed, qt.DeepEquals, []uint32{1})
	c.Assert(up.created, qt.DeepEquals, []uint32{1, 2})
}

func TestLoadSyncConverges(t *testing.T) {
	c := qt.New(t)
	pool := core.NewJobPool(4, nil)
	defer pool.Close()
	io, dec, _ := newFakeIO(pool, core.NewFrameQueue())
	dec.delay = 20 * time.Millisecond
	dec.setFail("broken", true)
	s := newFakeStore()

	res := s.LoadSync("slow", io, fakeProps{})
	c.Assert(s.State("slow"), qt.Equals, Loaded)
	c.Assert(res.Resident(), qt.IsTrue)

	s.LoadSync("broken", io, fakeProps{})
	c.Assert(s.State("broken"), qt.Equals, Failed)
	c.Assert(s.Error("broken"), qt.Not(qt.Equals), "")
}

func TestLoadSyncWithManyPending(t *testing.T) {
	c := qt.New(t)
	pool := core.NewJobPool(2, nil)
	defer pool.Close()
	io, _, _ := newFakeIO(pool, core.NewFrameQueue())
	s := newFakeStore()

	for i := 0; i < 100; i++ {
		s.LoadAsync(fmt.Sprintf("bulk%d", i), io, fakeProps{})
	}
	s.LoadSync("last", io, fakeProps{})
	c.Assert(s.State("last"), qt.Equals, Loaded)
}

func TestUnloadUnusedRespectsReferences(t *testing.T) {
	c := qt.New(t)
	io, _, up := newFakeIO(core.ImmediateJobs{}, core.ImmediateQueue{})
	s := newFakeStore()

	held := s.LoadSync("rock", io, fakeProps{})
	found, ok := s.Find("rock")
	c.Assert(ok, qt.IsTrue)

	c.Assert(s.UnloadUnused(), qt.Equals, 0)
	held.Release()
	c.Assert(s.UnloadUnused(), qt.Equals, 0)
	c.Assert(s.State("rock"), qt.Equals, Loaded)

	found.Release()
	c.Assert(s.UnloadUnused(), qt.Equals, 1)
	c.Assert(s.State("rock"), qt.Equals, Unknown)
	_, destroys := s.Pending()
	c.Assert(destroys, qt.Equals, 1)

	s.ProcessUploads(io, 0, 8)
	_, destroyed := up.counts()
	c.Assert(destroyed, qt.Equals, 1)

	// A second sweep finds nothing to destroy again.
	c.Assert(s.UnloadUnused(), qt.Equals, 0)
	_, destroys = s.Pending()
	c.Assert(destroys, qt.Equals, 0)
}

func TestReleaseBelowZero(t *testing.T) {
	c := qt.New(t)
	io, _, _ := newFakeIO(core.ImmediateJobs{}, core.ImmediateQueue{})
	s := newFakeStore()

	res := s.LoadAsync("x", io, fakeProps{})
	res.Release()
	res.Release()
	c.Assert(res.Refs(), qt.Equals, int64(0))
	c.Assert(res.Retain().Refs(), qt.Equals, int64(1))
}

func TestClearDestroysEverything(t *testing.T) {
	c := qt.New(t)
	io, _, up := newFakeIO(core.ImmediateJobs{}, core.ImmediateQueue{})
	s := newFakeStore()

	for i := 0; i < 5; i++ {
		s.LoadAsync(fmt.Sprintf("c%d", i), io, fakeProps{})
	}
	s.ProcessUploads(io, 3, 0)
	s.Clear()

	c.Assert(s.Len(), qt.Equals, 0)
	uploads, destroys := s.Pending()
	c.Assert(uploads, qt.Equals, 0)
	c.Assert(destroys, qt.Equals, 3)

	drain(s, io)
	c.Assert(up.destroyedOnce(), qt.IsTrue)
}

// TestNoOrphanedGPUObjects runs random sequences of loads, failures,
// releases, evictions and restarts and checks every created GPU object
// is destroyed exactly once after a final clear and drain.
func TestNoOrphanedGPUObjects(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		seed := seed
		t.Run(fmt.Sprintf("seed%d", seed), func(t *testing.T) {
			c := qt.New(t)
			rng := rand.New(rand.NewSource(seed))
			jobs := &manualJobs{}
			render := core.NewFrameQueue()
			io, dec, up := newFakeIO(jobs, render)
			s := newFakeStore()

			var held []*Resource[fakeProps, fakeGPU]
			ids := []string{"a", "b", "c", "d", "e", "f"}
			for step := 0; step < 300; step++ {
				id := ids[rng.Intn(len(ids))]
				switch rng.Intn(9) {
				case 0, 1:
					held = append(held, s.LoadAsync(id, io, fakeProps{}))
				case 2:
					dec.setFail(id, rng.Intn(2) == 0)
				case 3:
					up.setFail(rng.Intn(4) == 0)
				case 4:
					jobs.WaitIdle()
				case 5:
					s.ProcessUploads(io, rng.Intn(3), rng.Intn(3))
				case 6:
					render.Flush()
				case 7:
					if len(held) > 0 {
						i := rng.Intn(len(held))
						held[i].Release()
						held = append(held[:i], held[i+1:]...)
					}
				case 8:
					s.UnloadUnused()
				}
			}

			s.Clear()
			up.setFail(false)
			drain(s, io)

			created, destroyed := up.counts()
			c.Assert(created, qt.Equals, destroyed)
			c.Assert(up.destroyedOnce(), qt.IsTrue)
		})
	}
}

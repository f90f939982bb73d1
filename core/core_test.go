// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/korustream/core"
)

func TestLoadConfigurationDefaults(t *testing.T) {
	c := qt.New(t)
	cfg, err := core.LoadConfiguration("")
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Streaming.TextureUploads, qt.Equals, 8)
	c.Assert(cfg.Streaming.TextureDestroys, qt.Equals, 32)
	c.Assert(cfg.Streaming.MeshUploads, qt.Equals, 2)
	c.Assert(cfg.Streaming.MeshDestroys, qt.Equals, 32)
}

func TestLoadConfigurationEnvOverrides(t *testing.T) {
	c := qt.New(t)
	t.Setenv(core.EnvTexUploads, "3")
	t.Setenv(core.EnvAssetRoot, "/srv/assets")

	cfg, err := core.LoadConfiguration("")
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Streaming.TextureUploads, qt.Equals, 3)
	c.Assert(cfg.Assets.Root, qt.Equals, "/srv/assets")
}

func TestLoadConfigurationEnvFile(t *testing.T) {
	c := qt.New(t)
	envFile := filepath.Join(t.TempDir(), "koru.env")
	err := os.WriteFile(envFile, []byte("KORU_MESH_UPLOADS=5\nKORU_LOG_LEVEL=debug\n"), 0o644)
	c.Assert(err, qt.IsNil)
	t.Cleanup(func() {
		os.Unsetenv(core.EnvMeshUploads)
		os.Unsetenv(core.EnvLogLevel)
	})

	cfg, err := core.LoadConfiguration(envFile)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Streaming.MeshUploads, qt.Equals, 5)
	c.Assert(cfg.Log.Level, qt.Equals, "debug")
}

func TestLoadConfigurationRejectsGarbage(t *testing.T) {
	c := qt.New(t)
	t.Setenv(core.EnvMeshDestroys, "lots")

	_, err := core.LoadConfiguration("")
	c.Assert(err, qt.ErrorMatches, `KORU_MESH_DESTROYS: .*`)
}

func TestLoadConfigurationDevice(t *testing.T) {
	c := qt.New(t)
	t.Setenv(core.EnvHeadless, "true")
	t.Setenv(core.EnvDeviceName, "GeForce")

	cfg, err := core.LoadConfiguration("")
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Device.Headless, qt.IsTrue)
	c.Assert(cfg.Device.Debug, qt.IsFalse)
	c.Assert(cfg.Device.Name, qt.Equals, "GeForce")

	t.Setenv(core.EnvDeviceDebug, "maybe")
	_, err = core.LoadConfiguration("")
	c.Assert(err, qt.ErrorMatches, `KORU_VK_DEBUG: expected a boolean, got "maybe"`)
}

func TestOrDiscard(t *testing.T) {
	c := qt.New(t)
	var logger *log.Logger
	var entry *log.Entry
	for _, l := range []log.FieldLogger{nil, logger, entry} {
		out := core.OrDiscard(l)
		c.Assert(out, qt.Not(qt.IsNil))
		out.WithField("id", "a").Info("discarded")
	}

	given := log.New()
	c.Assert(core.OrDiscard(given), qt.Equals, log.FieldLogger(given))
}

func TestJobPoolWaitIdle(t *testing.T) {
	pool := core.NewJobPool(2, nil)
	defer pool.Close()

	var finished int32
	for i := 0; i < 16; i++ {
		pool.Enqueue(func() {
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&finished, 1)
		})
	}
	pool.WaitIdle()

	if n := atomic.LoadInt32(&finished); n != 16 {
		t.Errorf("expected 16 finished jobs, got %d", n)
	}
	if pool.Pending() != 0 {
		t.Error("pool should be idle")
	}
}

func TestJobPoolSurvivesPanic(t *testing.T) {
	pool := core.NewJobPool(1, nil)
	defer pool.Close()

	var ran int32
	pool.Enqueue(func() { panic("boom") })
	pool.Enqueue(func() { atomic.AddInt32(&ran, 1) })
	pool.WaitIdle()

	if atomic.LoadInt32(&ran) != 1 {
		t.Error("job after a panicking job did not run")
	}
}

func TestFrameQueueFlushOrder(t *testing.T) {
	q := core.NewFrameQueue()
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		q.Enqueue(func() { order = append(order, i) })
	}
	q.Enqueue(func() {
		q.Enqueue(func() { order = append(order, 99) })
	})

	if q.Len() != 4 {
		t.Errorf("expected 4 queued jobs, got %d", q.Len())
	}
	if ran := q.Flush(); ran != 5 {
		t.Errorf("expected 5 jobs to run, got %d", ran)
	}
	expected := []int{0, 1, 2, 99}
	if len(order) != len(expected) {
		t.Fatalf("unexpected order %v", order)
	}
	for i := range expected {
		if order[i] != expected[i] {
			t.Errorf("unexpected order %v", order)
		}
	}
}

func TestTimeFrames(t *testing.T) {
	tm := core.NewTime(core.TimeConfiguration{FramesPerSecond: 50})
	defer tm.Stop()

	if tm.Interval() != 20*time.Millisecond {
		t.Errorf("unexpected interval %s", tm.Interval())
	}
	tm.Frame()
	if tm.Frame() != 2 || tm.Frames() != 2 {
		t.Error("frame counter is off")
	}
}

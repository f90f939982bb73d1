// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package headless provides uploaders that allocate no device objects.
// They hand out ids and keep counts, which is enough to run the streaming
// pipeline in tests, on CI machines and in dry runs.
package headless

import (
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/korustream/core"
	"github.com/devblok/korustream/mesh"
	"github.com/devblok/korustream/texture"
)

// ErrDestroyedTwice is reported by Verify when an id was destroyed more than once
var ErrDestroyedTwice = errors.New("gpu object destroyed twice")

// Stats counts objects passing through a Device
type Stats struct {
	Created   int
	Destroyed int
	Live      int
	Bytes     int
}

// NewDevice creates an empty Device
func NewDevice(logger log.FieldLogger) *Device {
	return &Device{
		log:  core.OrDiscard(logger).WithField("component", "headless"),
		live: make(map[uint64]int),
		dead: make(map[uint64]bool),
	}
}

// Device tracks the objects created by its uploaders
type Device struct {
	log log.FieldLogger

	mutex  sync.Mutex
	nextID uint64
	live   map[uint64]int
	dead   map[uint64]bool
	stats  Stats
	twice  []uint64
	fail   func(kind, name string) error
}

func (d *Device) create(kind, name string, bytes int) (uint64, error) {
	d.mutex.Lock()
	fail := d.fail
	d.mutex.Unlock()
	if fail != nil {
		if err := fail(kind, name); err != nil {
			return 0, err
		}
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.nextID++
	d.live[d.nextID] = bytes
	d.stats.Created++
	d.stats.Live++
	d.stats.Bytes += bytes
	d.log.WithFields(log.Fields{"kind": kind, "name": name, "id": d.nextID, "bytes": bytes}).Debug("created")
	return d.nextID, nil
}

func (d *Device) destroy(id uint64) {
	if id == 0 {
		return
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()

	bytes, ok := d.live[id]
	if !ok {
		if d.dead[id] {
			d.twice = append(d.twice, id)
		}
		d.log.WithField("id", id).Warn("destroy of unknown object")
		return
	}
	delete(d.live, id)
	d.dead[id] = true
	d.stats.Destroyed++
	d.stats.Live--
	d.stats.Bytes -= bytes
}

// SetFail installs a hook asked before every creation. A non nil
// error fails the creation. A nil hook removes it.
func (d *Device) SetFail(fail func(kind, name string) error) {
	d.mutex.Lock()
	d.fail = fail
	d.mutex.Unlock()
}

// Stats returns the current counts
func (d *Device) Stats() Stats {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.stats
}

// Verify checks that every created object was destroyed exactly once
func (d *Device) Verify() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if len(d.twice) > 0 {
		return fmt.Errorf("%w: %v", ErrDestroyedTwice, d.twice)
	}
	if len(d.live) > 0 {
		return fmt.Errorf("%d gpu objects still live", len(d.live))
	}
	return nil
}

// Textures returns a texture uploader on d
func (d *Device) Textures() *TextureUploader {
	return &TextureUploader{device: d}
}

// Meshes returns a mesh uploader on d
func (d *Device) Meshes() *MeshUploader {
	return &MeshUploader{device: d}
}

// TextureUploader implements texture.Uploader
type TextureUploader struct {
	device *Device
}

// CreateAndUpload implements resource.Uploader
func (u *TextureUploader) CreateAndUpload(cpu texture.CPUData, props texture.Properties) (texture.GPUTexture, error) {
	if len(cpu.Layers) == 0 || cpu.Width == 0 || cpu.Height == 0 {
		return texture.GPUTexture{}, fmt.Errorf("%s: no pixel data", props.FilePath)
	}
	id, err := u.device.create(texture.Kind, props.FilePath, cpu.Size())
	if err != nil {
		return texture.GPUTexture{}, err
	}
	return texture.GPUTexture{
		ID:     id,
		Width:  cpu.Width,
		Height: cpu.Height,
		Layers: len(cpu.Layers),
		Mips:   cpu.Mips(),
		Format: cpu.Format,
		SRGB:   props.SRGB,
		Cube:   props.Cube,
	}, nil
}

// Destroy implements resource.Uploader
func (u *TextureUploader) Destroy(gpu texture.GPUTexture) {
	u.device.destroy(gpu.ID)
}

// MeshUploader implements mesh.Uploader
type MeshUploader struct {
	device *Device
}

// CreateAndUpload implements resource.Uploader
func (u *MeshUploader) CreateAndUpload(cpu mesh.CPUData, props mesh.Properties) (mesh.GPUMesh, error) {
	if len(cpu.Vertices) == 0 {
		return mesh.GPUMesh{}, fmt.Errorf("%s: no vertices", props.FilePath)
	}
	id, err := u.device.create(mesh.Kind, props.FilePath, cpu.Size())
	if err != nil {
		return mesh.GPUMesh{}, err
	}
	return mesh.GPUMesh{
		ID:          id,
		VertexCount: len(cpu.Vertices),
		IndexCount:  len(cpu.Indices),
		Bounds:      cpu.Bounds,
	}, nil
}

// Destroy implements resource.Uploader
func (u *MeshUploader) Destroy(gpu mesh.GPUMesh) {
	u.device.destroy(gpu.ID)
}

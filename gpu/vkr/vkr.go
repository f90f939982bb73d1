// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vkr uploads decoded textures and meshes to a Vulkan device.
// Uploads go through a host visible staging buffer and block until the
// transfer finished, so they must run on the goroutine owning the queue.
package vkr

import (
	"sync"

	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/korustream/core"
)

// Device is the part of an opened Vulkan device the uploaders need
type Device interface {
	Physical() vk.PhysicalDevice
	Logical() vk.Device
	Queue() vk.Queue
	CommandPool() vk.CommandPool
}

// NewUploader prepares an allocator and a command recorder on dev
func NewUploader(dev Device, logger log.FieldLogger) *Uploader {
	return &Uploader{
		log:       core.OrDiscard(logger).WithField("component", "vkr"),
		device:    dev.Logical(),
		allocator: NewMemoryAllocator(dev.Logical(), dev.Physical()),
		commands: commands{
			device: dev.Logical(),
			pool:   dev.CommandPool(),
			queue:  dev.Queue(),
		},
		images: make(map[uint64]*Image),
		meshes: make(map[uint64]*meshBuffers),
	}
}

// Uploader owns every object created through its texture and mesh
// uploaders. Objects are looked up by the id handed out on creation.
type Uploader struct {
	log       log.FieldLogger
	device    vk.Device
	allocator *MemoryAllocator
	commands  commands

	mutex  sync.Mutex
	nextID uint64
	images map[uint64]*Image
	meshes map[uint64]*meshBuffers
}

type meshBuffers struct {
	vertices Buffer
	indices  Buffer
}

func (u *Uploader) id() uint64 {
	u.nextID++
	return u.nextID
}

// Textures returns the texture uploader backed by u
func (u *Uploader) Textures() *TextureUploader {
	return &TextureUploader{uploader: u}
}

// Meshes returns the mesh uploader backed by u
func (u *Uploader) Meshes() *MeshUploader {
	return &MeshUploader{uploader: u}
}

// ImageView returns the view of an uploaded texture
func (u *Uploader) ImageView(id uint64) (vk.ImageView, bool) {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	img, ok := u.images[id]
	if !ok {
		return nil, false
	}
	return img.View(), true
}

// MeshBuffers returns the vertex and index buffers of an uploaded mesh
func (u *Uploader) MeshBuffers(id uint64) (vertices, indices vk.Buffer, ok bool) {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	m, ok := u.meshes[id]
	if !ok {
		return nil, nil, false
	}
	return m.vertices.Get(), m.indices.Get(), true
}

// Live returns how many textures and meshes are still allocated
func (u *Uploader) Live() (textures, meshes int) {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	return len(u.images), len(u.meshes)
}

// Release waits for the device and frees whatever is still allocated.
// Leftovers are logged, a drained pipeline leaves none.
func (u *Uploader) Release() {
	vk.DeviceWaitIdle(u.device)

	u.mutex.Lock()
	defer u.mutex.Unlock()
	if n := len(u.images) + len(u.meshes); n > 0 {
		u.log.WithFields(log.Fields{
			"textures": len(u.images),
			"meshes":   len(u.meshes),
		}).Warn("releasing objects that were never destroyed")
	}
	for id, img := range u.images {
		img.Release()
		delete(u.images, id)
	}
	for id, m := range u.meshes {
		m.vertices.Release()
		m.indices.Release()
		delete(u.meshes, id)
	}
}

// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"

	vk "github.com/devblok/vulkan"
)

// hostVisible is the memory used for staging and for buffers the
// CPU writes directly.
const hostVisible = vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit

// NewBuffer creates, configures, allocates and binds a new buffer.
func NewBuffer(dev vk.Device, size uint, usage vk.BufferUsageFlagBits, prop vk.MemoryPropertyFlagBits, ma *MemoryAllocator) (Buffer, error) {
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if err := vk.Error(vk.CreateBuffer(dev, &createInfo, nil, &buffer)); err != nil {
		return Buffer{}, fmt.Errorf("vk.CreateBuffer(): %s", err.Error())
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dev, buffer, &req)
	req.Deref()

	memory, err := ma.Malloc(req, prop)
	if err != nil {
		vk.DestroyBuffer(dev, buffer, nil)
		return Buffer{}, err
	}

	if err := vk.Error(vk.BindBufferMemory(dev, buffer, memory.Get(), vk.DeviceSize(memory.Offset()))); err != nil {
		vk.DestroyBuffer(dev, buffer, nil)
		memory.Release()
		return Buffer{}, fmt.Errorf("vk.BindBufferMemory(): %s", err.Error())
	}

	return Buffer{
		device: dev,
		buffer: buffer,
		size:   size,
		memory: memory,
	}, nil
}

// Buffer implements a generic vulkan buffer.
type Buffer struct {
	device vk.Device
	buffer vk.Buffer
	size   uint

	memory Memory
}

// Mem returns the Memory that the buffer is based on.
func (b *Buffer) Mem() *Memory {
	return &b.memory
}

// Get returns the vulkan Buffer handle.
func (b *Buffer) Get() vk.Buffer {
	return b.buffer
}

// Size is the size the buffer was created with
func (b *Buffer) Size() uint {
	return b.size
}

// Release destroys the buffer and memory asociated with it.
func (b *Buffer) Release() {
	if b.buffer == nil {
		return
	}
	vk.DestroyBuffer(b.device, b.buffer, nil)
	b.buffer = nil
	b.memory.Release()
}

// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"errors"
	"fmt"
	"unsafe"

	vk "github.com/devblok/vulkan"
)

// ErrNoMemoryType is returned when no memory type satisfies a request
var ErrNoMemoryType = errors.New("suitable memory type not found")

// Memory defines a usable memory region.
type Memory struct {
	mapped      bool
	len, offset uint
	device      vk.Device
	memory      vk.DeviceMemory
}

// Len returns the length of assigned memory.
func (m *Memory) Len() uint {
	return m.len
}

// Offset returns the start location of assigned memory.
func (m *Memory) Offset() uint {
	return m.offset
}

// Get returns the vulkan memory handle.
func (m *Memory) Get() vk.DeviceMemory {
	return m.memory
}

// Map maps the entire available memory region and
// returns a pointer to the mapped area.
func (m *Memory) Map() (unsafe.Pointer, error) {
	var memMapped unsafe.Pointer
	if err := vk.Error(vk.MapMemory(m.device, m.memory, vk.DeviceSize(m.offset), vk.DeviceSize(m.len), 0, &memMapped)); err != nil {
		return nil, fmt.Errorf("vk.MapMemory(): %s", err.Error())
	}
	m.mapped = true
	return memMapped, nil
}

// Unmap removes the memory mapping if it was mapped.
func (m *Memory) Unmap() {
	if m.mapped {
		vk.UnmapMemory(m.device, m.memory)
		m.mapped = false
	}
}

// Write copies data to the start of the region. The memory must be
// host visible and coherent.
func (m *Memory) Write(data []byte) error {
	if uint(len(data)) > m.len {
		return fmt.Errorf("write of %d bytes into %d byte region", len(data), m.len)
	}
	if len(data) == 0 {
		return nil
	}
	ptr, err := m.Map()
	if err != nil {
		return err
	}
	copy(unsafe.Slice((*byte)(ptr), len(data)), data)
	m.Unmap()
	return nil
}

// Release frees memory after unmapping it if previously mapped.
func (m *Memory) Release() {
	if m.memory == nil {
		return
	}
	m.Unmap()
	vk.FreeMemory(m.device, m.memory, nil)
	m.memory = nil
}

// NewMemoryAllocator creates a new memory allocator. Allocates for the logical device,
// reads memory properties of the physical device to influence allocation.
func NewMemoryAllocator(device vk.Device, phyDevice vk.PhysicalDevice) *MemoryAllocator {
	var memProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(phyDevice, &memProperties)
	memProperties.Deref()
	for idx := uint32(0); idx < memProperties.MemoryTypeCount; idx++ {
		memProperties.MemoryTypes[idx].Deref()
	}

	return &MemoryAllocator{
		device: device,
		types:  memoryTypes(memProperties),
	}
}

func memoryTypes(props vk.PhysicalDeviceMemoryProperties) []vk.MemoryPropertyFlags {
	types := make([]vk.MemoryPropertyFlags, props.MemoryTypeCount)
	for idx := range types {
		types[idx] = props.MemoryTypes[idx].PropertyFlags
	}
	return types
}

// MemoryAllocator is responsible returning usable
// memory for any resources that may need it.
type MemoryAllocator struct {
	device vk.Device
	types  []vk.MemoryPropertyFlags
}

// Malloc returns a usable memory chunk ready for use.
func (ma *MemoryAllocator) Malloc(req vk.MemoryRequirements, prop vk.MemoryPropertyFlagBits) (Memory, error) {
	memTypeIdx, err := findMemoryType(ma.types, req.MemoryTypeBits, vk.MemoryPropertyFlags(prop))
	if err != nil {
		return Memory{}, err
	}

	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memTypeIdx,
	}

	var memory vk.DeviceMemory
	if err := vk.Error(vk.AllocateMemory(ma.device, &mai, nil, &memory)); err != nil {
		return Memory{}, fmt.Errorf("vk.AllocateMemory(): %s", err.Error())
	}

	return Memory{
		offset: 0,
		len:    uint(req.Size),
		device: ma.device,
		memory: memory,
	}, nil
}

// findMemoryType returns the first type allowed by filter
// that carries every bit of prop.
func findMemoryType(types []vk.MemoryPropertyFlags, filter uint32, prop vk.MemoryPropertyFlags) (uint32, error) {
	for idx := range types {
		if filter&(1<<uint(idx)) != 0 && types[idx]&prop == prop {
			return uint32(idx), nil
		}
	}
	return 0, ErrNoMemoryType
}

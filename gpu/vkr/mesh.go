// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"
	"unsafe"

	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/korustream/mesh"
	"github.com/devblok/korustream/model"
)

// VertexBindingDescriptions return Vulkan Vertex descriptors
func VertexBindingDescriptions() []vk.VertexInputBindingDescription {
	return []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    uint32(unsafe.Sizeof(model.Vertex{})),
		InputRate: vk.VertexInputRateVertex,
	}}
}

// VertexAttributeDescriptions return Vulkan attribute descriptors
func VertexAttributeDescriptions() []vk.VertexInputAttributeDescription {
	return []vk.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   vk.FormatR32g32b32Sfloat,
			Offset:   uint32(unsafe.Offsetof(model.Vertex{}.Pos)),
		},
		{
			Binding:  0,
			Location: 1,
			Format:   vk.FormatR32g32b32Sfloat,
			Offset:   uint32(unsafe.Offsetof(model.Vertex{}.Normal)),
		},
		{
			Binding:  0,
			Location: 2,
			Format:   vk.FormatR32g32Sfloat,
			Offset:   uint32(unsafe.Offsetof(model.Vertex{}.UV)),
		},
	}
}

func vertexBytes(v []model.Vertex) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*int(unsafe.Sizeof(model.Vertex{})))
}

func indexBytes(i []uint32) []byte {
	if len(i) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&i[0])), len(i)*4)
}

// MeshUploader implements mesh.Uploader on a Vulkan device. Vertex and
// index data live in host visible buffers.
type MeshUploader struct {
	uploader *Uploader
}

func (m *MeshUploader) buffer(data []byte, usage vk.BufferUsageFlagBits) (Buffer, error) {
	u := m.uploader
	buf, err := NewBuffer(u.device, uint(len(data)), usage, hostVisible, u.allocator)
	if err != nil {
		return Buffer{}, err
	}
	if err := buf.Mem().Write(data); err != nil {
		buf.Release()
		return Buffer{}, err
	}
	return buf, nil
}

// CreateAndUpload implements resource.Uploader
func (m *MeshUploader) CreateAndUpload(cpu mesh.CPUData, props mesh.Properties) (mesh.GPUMesh, error) {
	u := m.uploader
	if len(cpu.Vertices) == 0 {
		return mesh.GPUMesh{}, fmt.Errorf("%s: no vertices", props.FilePath)
	}
	if len(cpu.Indices) == 0 {
		return mesh.GPUMesh{}, fmt.Errorf("%s: no indices", props.FilePath)
	}

	vertices, err := m.buffer(vertexBytes(cpu.Vertices), vk.BufferUsageVertexBufferBit)
	if err != nil {
		return mesh.GPUMesh{}, err
	}
	indices, err := m.buffer(indexBytes(cpu.Indices), vk.BufferUsageIndexBufferBit)
	if err != nil {
		vertices.Release()
		return mesh.GPUMesh{}, err
	}

	u.mutex.Lock()
	id := u.id()
	u.meshes[id] = &meshBuffers{vertices: vertices, indices: indices}
	u.mutex.Unlock()

	u.log.WithFields(log.Fields{
		"name":     props.FilePath,
		"id":       id,
		"vertices": len(cpu.Vertices),
		"indices":  len(cpu.Indices),
	}).Debug("mesh uploaded")

	return mesh.GPUMesh{
		ID:          id,
		VertexCount: len(cpu.Vertices),
		IndexCount:  len(cpu.Indices),
		Bounds:      cpu.Bounds,
	}, nil
}

// Destroy implements resource.Uploader
func (m *MeshUploader) Destroy(gpu mesh.GPUMesh) {
	u := m.uploader
	if gpu.ID == 0 {
		return
	}
	u.mutex.Lock()
	bufs, ok := u.meshes[gpu.ID]
	delete(u.meshes, gpu.ID)
	u.mutex.Unlock()
	if !ok {
		u.log.WithField("id", gpu.ID).Warn("destroy of unknown mesh")
		return
	}
	bufs.vertices.Release()
	bufs.indices.Release()
}

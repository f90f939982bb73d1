// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package mesh is the mesh resource kind.
package mesh

import (
	"unsafe"

	"github.com/devblok/korustream/model"
	"github.com/devblok/korustream/resource"
)

// Kind names meshes in logs and stats
const Kind = "mesh"

// VertexSize is the size in bytes of one model.Vertex
const VertexSize = int(unsafe.Sizeof(model.Vertex{}))

// Properties are the load options of a mesh
type Properties struct {
	// FilePath is the model file to import, the identity when empty.
	FilePath string

	// Scale multiplies positions when not zero.
	Scale float32

	// GenerateNormals recomputes smooth normals from the triangles.
	GenerateNormals bool
}

// Kind implements resource.Properties
func (Properties) Kind() string { return Kind }

// Path implements resource.Properties
func (p Properties) Path() string { return p.FilePath }

// WithPath implements resource.Properties
func (p Properties) WithPath(path string) Properties {
	p.FilePath = path
	return p
}

// CPUData is an imported indexed triangle list
type CPUData struct {
	Vertices []model.Vertex
	Indices  []uint32
	Bounds   model.Bounds
}

// Size returns the number of bytes the buffers take
func (d *CPUData) Size() int {
	return len(d.Vertices)*VertexSize + len(d.Indices)*4
}

// GPUMesh identifies a mesh created by an uploader. ID 0 is the empty
// handle and is ignored on destroy.
type GPUMesh struct {
	ID          uint64
	VertexCount int
	IndexCount  int
	Bounds      model.Bounds
}

// Kind aliases
type (
	IO       = resource.IO[Properties, CPUData, GPUMesh]
	Store    = resource.Store[Properties, CPUData, GPUMesh]
	Handle   = resource.Resource[Properties, GPUMesh]
	Decoder  = resource.Decoder[Properties, CPUData]
	Uploader = resource.Uploader[CPUData, Properties, GPUMesh]
)

// StoreFor returns the mesh store of m
func StoreFor(m *resource.Manager) *Store {
	return resource.StoreFor[Properties, CPUData, GPUMesh](m)
}

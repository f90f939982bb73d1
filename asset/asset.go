// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package asset is the entry point application code loads textures and
// meshes through. It forwards to the resource stores of each kind and
// resolves cubemap faces before a cube texture is requested.
package asset

import (
	"path"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/korustream/core"
	"github.com/devblok/korustream/mesh"
	"github.com/devblok/korustream/resource"
	"github.com/devblok/korustream/source"
	"github.com/devblok/korustream/texture"
)

// Budget bounds the work ProcessUploads schedules in one frame. Mesh
// creation costs more per call than texture creation, hence the lower
// default for mesh uploads.
type Budget struct {
	TextureUploads  int
	TextureDestroys int
	MeshUploads     int
	MeshDestroys    int
}

// DefaultBudget is a per frame budget suitable for 60 frames per second
var DefaultBudget = Budget{
	TextureUploads:  8,
	TextureDestroys: 32,
	MeshUploads:     2,
	MeshDestroys:    32,
}

// BudgetFrom reads the per frame budget of a configuration
func BudgetFrom(cfg core.StreamingConfiguration) Budget {
	return Budget{
		TextureUploads:  cfg.TextureUploads,
		TextureDestroys: cfg.TextureDestroys,
		MeshUploads:     cfg.MeshUploads,
		MeshDestroys:    cfg.MeshDestroys,
	}
}

// NewManager creates a Manager loading through resources. src is used
// for cubemap face resolution and should be the source the texture
// decoder reads from.
func NewManager(resources *resource.Manager, src source.Source, textures texture.IO, meshes mesh.IO, logger log.FieldLogger) *Manager {
	return &Manager{
		log:       core.OrDiscard(logger).WithField("component", "assets"),
		resources: resources,
		src:       src,
		textures:  textures,
		meshes:    meshes,
	}
}

// Manager loads textures and meshes. It holds no state of its own
// beyond its collaborators, every resource lives in the stores of the
// resource manager.
type Manager struct {
	log       log.FieldLogger
	resources *resource.Manager
	src       source.Source
	textures  texture.IO
	meshes    mesh.IO
}

// Resources returns the underlying resource manager
func (m *Manager) Resources() *resource.Manager {
	return m.resources
}

// LoadTextureAsync requests a texture without blocking
func (m *Manager) LoadTextureAsync(id string, props texture.Properties) *texture.Handle {
	return texture.StoreFor(m.resources).LoadAsync(id, m.textures, props)
}

// LoadTextureSync requests a texture and drives the pipeline until it is
// loaded or failed. Must be called on the goroutine draining the render
// queue.
func (m *Manager) LoadTextureSync(id string, props texture.Properties) *texture.Handle {
	return texture.StoreFor(m.resources).LoadSync(id, m.textures, props)
}

// LoadTextureCubeAsync resolves six faces for baseOrDir and requests a
// cube texture. Resolution errors are returned before anything is
// scheduled.
func (m *Manager) LoadTextureCubeAsync(id, baseOrDir string, props texture.Properties) (*texture.Handle, error) {
	props, err := m.cubeProperties(id, baseOrDir, props)
	if err != nil {
		return nil, err
	}
	return m.LoadTextureAsync(id, props), nil
}

// LoadTextureCubeSync is LoadTextureCubeAsync waiting like LoadTextureSync
func (m *Manager) LoadTextureCubeSync(id, baseOrDir string, props texture.Properties) (*texture.Handle, error) {
	props, err := m.cubeProperties(id, baseOrDir, props)
	if err != nil {
		return nil, err
	}
	return m.LoadTextureSync(id, props), nil
}

// ResolveCubemapFaces resolves faces preferring the last element of
// baseOrDir as base name
func (m *Manager) ResolveCubemapFaces(baseOrDir string) ([texture.FaceCount]string, error) {
	return ResolveCubemapFaces(m.src, baseOrDir, preferredBase(baseOrDir))
}

func (m *Manager) cubeProperties(id, baseOrDir string, props texture.Properties) (texture.Properties, error) {
	faces, err := ResolveCubemapFaces(m.src, baseOrDir, preferredBase(id))
	if err != nil {
		m.log.WithFields(log.Fields{"id": id, "path": baseOrDir, "error": err}).Warn("cubemap resolution failed")
		return props, err
	}
	m.log.WithFields(log.Fields{"id": id, "faces": faces}).Debug("cubemap resolved")

	props.Cube = true
	props.Faces = faces
	if props.FilePath == "" {
		props.FilePath = baseOrDir
	}
	return props, nil
}

func preferredBase(name string) string {
	base := path.Base(source.Clean(name))
	return strings.TrimSuffix(base, path.Ext(base))
}

// TextureState returns the load state of a texture
func (m *Manager) TextureState(id string) resource.State {
	return texture.StoreFor(m.resources).State(id)
}

// TextureError returns the last load error of a texture
func (m *Manager) TextureError(id string) string {
	return texture.StoreFor(m.resources).Error(id)
}

// FindTexture returns a texture without loading it
func (m *Manager) FindTexture(id string) (*texture.Handle, bool) {
	return texture.StoreFor(m.resources).Find(id)
}

// LoadMeshAsync requests a mesh without blocking
func (m *Manager) LoadMeshAsync(id string, props mesh.Properties) *mesh.Handle {
	return mesh.StoreFor(m.resources).LoadAsync(id, m.meshes, props)
}

// LoadMeshSync requests a mesh and drives the pipeline until it is
// loaded or failed
func (m *Manager) LoadMeshSync(id string, props mesh.Properties) *mesh.Handle {
	return mesh.StoreFor(m.resources).LoadSync(id, m.meshes, props)
}

// MeshState returns the load state of a mesh
func (m *Manager) MeshState(id string) resource.State {
	return mesh.StoreFor(m.resources).State(id)
}

// MeshError returns the last load error of a mesh
func (m *Manager) MeshError(id string) string {
	return mesh.StoreFor(m.resources).Error(id)
}

// FindMesh returns a mesh without loading it
func (m *Manager) FindMesh(id string) (*mesh.Handle, bool) {
	return mesh.StoreFor(m.resources).Find(id)
}

// ProcessUploads schedules destroys and uploads of both kinds within
// budget. Call once per frame. It reports whether any work was
// scheduled.
func (m *Manager) ProcessUploads(b Budget) bool {
	tex := texture.StoreFor(m.resources).ProcessUploads(m.textures, b.TextureUploads, b.TextureDestroys)
	meshes := mesh.StoreFor(m.resources).ProcessUploads(m.meshes, b.MeshUploads, b.MeshDestroys)
	return tex || meshes
}

// UnloadUnused evicts every texture and mesh no longer referenced
func (m *Manager) UnloadUnused() int {
	return m.resources.UnloadUnused()
}

// ClearAll forgets every resource. A following ProcessUploads, with the
// render queue flushed, destroys their GPU objects.
func (m *Manager) ClearAll() {
	m.resources.Clear()
}

// Pending reports whether any store still queues uploads or destroys
func (m *Manager) Pending() bool {
	for _, s := range m.resources.Stats() {
		if s.Uploads > 0 || s.Destroys > 0 {
			return true
		}
	}
	return false
}

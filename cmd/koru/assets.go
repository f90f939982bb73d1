// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"fmt"
	"os"

	"github.com/gobuffalo/packr"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/korustream/asset"
	"github.com/devblok/korustream/core"
	"github.com/devblok/korustream/mesh"
	"github.com/devblok/korustream/source"
	"github.com/devblok/korustream/texture"
)

// layeredSource is the asset root: the directory, then the archive,
// then the fallback box.
type layeredSource struct {
	source.Source
	archive *source.Archive
}

func (l *layeredSource) Close() error {
	if l.archive == nil {
		return nil
	}
	return l.archive.Close()
}

func openSource(cfg core.AssetConfiguration, box string) (*layeredSource, error) {
	var (
		layers []source.Source
		out    layeredSource
	)
	if cfg.Root != "" {
		if info, err := os.Stat(cfg.Root); err == nil && info.IsDir() {
			layers = append(layers, source.NewDir(cfg.Root))
		}
	}
	if cfg.Archive != "" {
		ar, err := source.OpenArchive(cfg.Archive)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Archive, err)
		}
		out.archive = ar
		layers = append(layers, ar)
	}
	if box != "" {
		layers = append(layers, source.NewBox(packr.NewBox(box)))
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("no asset root: %q does not exist and no archive is configured", cfg.Root)
	}
	out.Source = source.NewOverlay(layers...)
	return &out, nil
}

// requests remembers what was asked for so the frame loop knows when
// everything settled.
type requests struct {
	textures map[string]*texture.Handle
	meshes   map[string]*mesh.Handle
}

func request(assets *asset.Manager, textures, meshes, cubes []string) (*requests, error) {
	if len(textures)+len(meshes)+len(cubes) == 0 {
		return nil, errNothingRequested
	}
	r := &requests{
		textures: make(map[string]*texture.Handle),
		meshes:   make(map[string]*mesh.Handle),
	}
	for _, id := range textures {
		r.textures[id] = assets.LoadTextureAsync(id, texture.Properties{GenerateMips: true, SRGB: true})
	}
	for _, id := range cubes {
		h, err := assets.LoadTextureCubeAsync(id, id, texture.Properties{SRGB: true})
		if err != nil {
			r.release()
			return nil, err
		}
		r.textures[id] = h
	}
	for _, id := range meshes {
		r.meshes[id] = assets.LoadMeshAsync(id, mesh.Properties{})
	}
	return r, nil
}

func (r *requests) settled(assets *asset.Manager) bool {
	for id := range r.textures {
		if !assets.TextureState(id).Settled() {
			return false
		}
	}
	for id := range r.meshes {
		if !assets.MeshState(id).Settled() {
			return false
		}
	}
	return true
}

func (r *requests) report(assets *asset.Manager, logger log.FieldLogger) {
	for id := range r.textures {
		entry := logger.WithFields(log.Fields{"kind": texture.Kind, "id": id, "state": assets.TextureState(id)})
		if msg := assets.TextureError(id); msg != "" {
			entry = entry.WithField("error", msg)
		}
		entry.Info("request")
	}
	for id := range r.meshes {
		entry := logger.WithFields(log.Fields{"kind": mesh.Kind, "id": id, "state": assets.MeshState(id)})
		if msg := assets.MeshError(id); msg != "" {
			entry = entry.WithField("error", msg)
		}
		entry.Info("request")
	}
}

func (r *requests) release() {
	for id, h := range r.textures {
		h.Release()
		delete(r.textures, id)
	}
	for id, h := range r.meshes {
		h.Release()
		delete(r.meshes, id)
	}
}

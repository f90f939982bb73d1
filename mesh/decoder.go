// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package mesh

import (
	"fmt"
	"path"
	"strings"

	"github.com/devblok/korustream/model"
	"github.com/devblok/korustream/source"
)

// NewColladaDecoder creates a decoder importing .dae files from src
func NewColladaDecoder(src source.Source) *ColladaDecoder {
	return &ColladaDecoder{src: src}
}

// ColladaDecoder imports Collada geometry. Safe for concurrent use.
type ColladaDecoder struct {
	src source.Source
}

// Decode implements resource.Decoder
func (d *ColladaDecoder) Decode(props Properties, name string) (CPUData, error) {
	if ext := strings.ToLower(path.Ext(name)); ext != ".dae" {
		return CPUData{}, fmt.Errorf("%s: unsupported mesh format %q", name, ext)
	}

	raw, err := d.src.ReadFile(name)
	if err != nil {
		return CPUData{}, err
	}

	geo, err := model.ImportCollada(raw)
	if err != nil {
		return CPUData{}, fmt.Errorf("%s: %w", name, err)
	}
	if props.Scale != 0 && props.Scale != 1 {
		geo.Scale(props.Scale)
	}
	if props.GenerateNormals {
		geo.GenerateNormals()
	}

	return CPUData{
		Vertices: geo.Vertices,
		Indices:  geo.Indices,
		Bounds:   geo.Bounds(),
	}, nil
}

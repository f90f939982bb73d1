// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"errors"
	"fmt"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/korustream/util/collada"
)

// ErrNoGeometry is returned for documents without triangle data
var ErrNoGeometry = errors.New("model: no triangle geometry")

// ImportCollada reads the contents of a Collada (.dae) file and merges
// the triangles and polylists of every geometry into one indexed list.
// Corners sharing position, normal and texture coordinate are emitted
// once. Texture coordinates are flipped to a top-left origin.
func ImportCollada(fileContents []byte) (Geometry, error) {
	doc, err := collada.Parse(fileContents)
	if err != nil {
		return Geometry{}, err
	}

	var geo Geometry
	for gi := range doc.Geometries {
		mesh := &doc.Geometries[gi].Mesh
		im := importer{
			mesh:  mesh,
			geo:   &geo,
			index: make(map[corner]uint32),
		}

		for ti := range mesh.Triangles {
			if err := im.triangles(&mesh.Triangles[ti]); err != nil {
				return Geometry{}, fmt.Errorf("%s: %w", doc.Geometries[gi].ID, err)
			}
		}
		for pi := range mesh.Polylists {
			tris, err := mesh.Polylists[pi].Triangulate()
			if err != nil {
				return Geometry{}, fmt.Errorf("%s: %w", doc.Geometries[gi].ID, err)
			}
			if err := im.triangles(&tris); err != nil {
				return Geometry{}, fmt.Errorf("%s: %w", doc.Geometries[gi].ID, err)
			}
		}
	}

	if len(geo.Indices) == 0 {
		return Geometry{}, ErrNoGeometry
	}
	return geo, nil
}

// corner identifies a unique vertex within one geometry, -1 marks an
// absent attribute.
type corner struct {
	pos, normal, uv int
}

type importer struct {
	mesh  *collada.Mesh
	geo   *Geometry
	index map[corner]uint32
}

type attribute struct {
	source *collada.Source
	offset int
}

func (im *importer) triangles(tris *collada.Triangles) error {
	var (
		position attribute
		normal   attribute
		texcoord attribute
	)
	position.offset, normal.offset, texcoord.offset = -1, -1, -1

	for _, in := range tris.Inputs {
		switch in.Semantic {
		case collada.SemanticVertex:
			source, ok := im.mesh.PositionSource()
			if !ok {
				return errors.New("vertices without positions")
			}
			position = attribute{source, int(in.Offset)}
			// Per vertex attributes declared on the vertices element share
			// the position index.
			for _, vin := range im.mesh.Vertices.Inputs {
				source, ok := im.mesh.FindSource(vin.Source)
				if !ok {
					continue
				}
				switch vin.Semantic {
				case collada.SemanticNormal:
					normal = attribute{source, int(in.Offset)}
				case collada.SemanticTexcoord:
					texcoord = attribute{source, int(in.Offset)}
				}
			}
		case collada.SemanticNormal:
			source, ok := im.mesh.FindSource(in.Source)
			if !ok {
				return fmt.Errorf("missing normal source %s", in.Source)
			}
			normal = attribute{source, int(in.Offset)}
		case collada.SemanticTexcoord:
			if texcoord.offset >= 0 && in.Set != 0 {
				continue
			}
			source, ok := im.mesh.FindSource(in.Source)
			if !ok {
				return fmt.Errorf("missing texcoord source %s", in.Source)
			}
			texcoord = attribute{source, int(in.Offset)}
		}
	}
	if position.source == nil {
		return errors.New("triangles without a VERTEX input")
	}

	stride := collada.InputStride(tris.Inputs)
	if len(tris.Index)%(stride*3) != 0 {
		return fmt.Errorf("index length %d is not a multiple of %d", len(tris.Index), stride*3)
	}

	for at := 0; at < len(tris.Index); at += stride {
		idx := tris.Index[at : at+stride]
		key := corner{pos: idx[position.offset], normal: -1, uv: -1}
		if normal.source != nil {
			key.normal = idx[normal.offset]
		}
		if texcoord.source != nil {
			key.uv = idx[texcoord.offset]
		}

		if n, ok := im.index[key]; ok {
			im.geo.Indices = append(im.geo.Indices, n)
			continue
		}

		vert, err := im.vertex(key, position, normal, texcoord)
		if err != nil {
			return err
		}
		n := uint32(len(im.geo.Vertices))
		im.geo.Vertices = append(im.geo.Vertices, vert)
		im.geo.Indices = append(im.geo.Indices, n)
		im.index[key] = n
	}
	return nil
}

func (im *importer) vertex(key corner, position, normal, texcoord attribute) (Vertex, error) {
	var vert Vertex

	pos, err := position.source.Element(key.pos)
	if err != nil {
		return Vertex{}, err
	}
	if len(pos) < 3 {
		return Vertex{}, fmt.Errorf("position source %s has stride %d", position.source.ID, len(pos))
	}
	vert.Pos = glm.Vec3{pos[0], pos[1], pos[2]}

	if key.normal >= 0 {
		n, err := normal.source.Element(key.normal)
		if err != nil {
			return Vertex{}, err
		}
		if len(n) >= 3 {
			vert.Normal = glm.Vec3{n[0], n[1], n[2]}
		}
	}

	if key.uv >= 0 {
		uv, err := texcoord.source.Element(key.uv)
		if err != nil {
			return Vertex{}, err
		}
		if len(uv) >= 2 {
			vert.UV = glm.Vec2{uv[0], 1 - uv[1]}
		}
	}

	return vert, nil
}

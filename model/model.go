// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package model defines the engine's vertex format and imports geometry
// into indexed triangle lists.
package model

import (
	"math"

	glm "github.com/go-gl/mathgl/mgl32"
)

// Vertex is a model vertex
type Vertex struct {
	Pos    glm.Vec3
	Normal glm.Vec3
	UV     glm.Vec2
}

// Bounds is an axis aligned bounding box
type Bounds struct {
	Min glm.Vec3
	Max glm.Vec3
}

// Center returns the middle of the box
func (b Bounds) Center() glm.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the extent of the box along each axis
func (b Bounds) Size() glm.Vec3 {
	return b.Max.Sub(b.Min)
}

// Geometry is an indexed triangle list, every three indices form
// one counter-clockwise triangle.
type Geometry struct {
	Vertices []Vertex
	Indices  []uint32
}

// Triangles returns the number of triangles
func (g *Geometry) Triangles() int {
	return len(g.Indices) / 3
}

// Bounds computes the bounding box of all vertices,
// a zero box for empty geometry.
func (g *Geometry) Bounds() Bounds {
	if len(g.Vertices) == 0 {
		return Bounds{}
	}
	inf := float32(math.Inf(1))
	b := Bounds{
		Min: glm.Vec3{inf, inf, inf},
		Max: glm.Vec3{-inf, -inf, -inf},
	}
	for _, v := range g.Vertices {
		for i := 0; i < 3; i++ {
			b.Min[i] = float32(math.Min(float64(b.Min[i]), float64(v.Pos[i])))
			b.Max[i] = float32(math.Max(float64(b.Max[i]), float64(v.Pos[i])))
		}
	}
	return b
}

// Scale multiplies every position by factor
func (g *Geometry) Scale(factor float32) {
	scale := glm.Scale3D(factor, factor, factor)
	for i := range g.Vertices {
		g.Vertices[i].Pos = scale.Mul4x1(g.Vertices[i].Pos.Vec4(1)).Vec3()
	}
}

// GenerateNormals replaces vertex normals with the normalized sum of
// the face normals of every triangle sharing the vertex.
func (g *Geometry) GenerateNormals() {
	for i := range g.Vertices {
		g.Vertices[i].Normal = glm.Vec3{}
	}
	for t := 0; t+2 < len(g.Indices); t += 3 {
		a, b, c := g.Indices[t], g.Indices[t+1], g.Indices[t+2]
		p0, p1, p2 := g.Vertices[a].Pos, g.Vertices[b].Pos, g.Vertices[c].Pos
		face := p1.Sub(p0).Cross(p2.Sub(p0))
		g.Vertices[a].Normal = g.Vertices[a].Normal.Add(face)
		g.Vertices[b].Normal = g.Vertices[b].Normal.Add(face)
		g.Vertices[c].Normal = g.Vertices[c].Normal.Add(face)
	}
	for i := range g.Vertices {
		if g.Vertices[i].Normal.Len() > 0 {
			g.Vertices[i].Normal = g.Vertices[i].Normal.Normalize()
		}
	}
}

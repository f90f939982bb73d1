// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package collada holds the subset of the Collada document model needed to
// import triangle geometry.
package collada

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// Input semantics understood by the importer
const (
	SemanticVertex   = "VERTEX"
	SemanticPosition = "POSITION"
	SemanticNormal   = "NORMAL"
	SemanticTexcoord = "TEXCOORD"
)

// Parse decodes a Collada document
func Parse(data []byte) (*Collada, error) {
	var doc Collada
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("collada: %w", err)
	}
	return &doc, nil
}

// Collada is the top-level Collada object
type Collada struct {
	Geometries []Geometry `xml:"library_geometries>geometry"`
}

// Geometry represents Collada's geometry
type Geometry struct {
	Mesh Mesh   `xml:"mesh"`
	ID   string `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

// Mesh contains all the primitive data
type Mesh struct {
	Source    []Source    `xml:"source"`
	Vertices  Vertices    `xml:"vertices"`
	Triangles []Triangles `xml:"triangles"`
	Polylists []Polylist  `xml:"polylist"`
}

// FindSource looks a source up by an id or a "#id" reference
func (m *Mesh) FindSource(ref string) (*Source, bool) {
	id := strings.TrimPrefix(ref, "#")
	for i := range m.Source {
		if m.Source[i].ID == id {
			return &m.Source[i], true
		}
	}
	return nil, false
}

// PositionSource resolves the POSITION input of the vertices element
func (m *Mesh) PositionSource() (*Source, bool) {
	for _, in := range m.Vertices.Inputs {
		if in.Semantic == SemanticPosition {
			return m.FindSource(in.Source)
		}
	}
	return nil, false
}

// Source links to other sources where data is present
type Source struct {
	ID       string   `xml:"id,attr"`
	Floats   Floats   `xml:"float_array"`
	Accessor Accessor `xml:"technique_common>accessor"`
}

// Stride returns the number of floats per element, 1 when unspecified
func (s *Source) Stride() int {
	if s.Accessor.Stride > 0 {
		return s.Accessor.Stride
	}
	return 1
}

// Element returns the floats of the n-th element
func (s *Source) Element(n int) ([]float32, error) {
	stride := s.Stride()
	start := n * stride
	if n < 0 || start+stride > len(s.Floats.Data) {
		return nil, fmt.Errorf("collada: source %s has no element %d", s.ID, n)
	}
	return s.Floats.Data[start : start+stride], nil
}

// Accessor describes how a source's array is read
type Accessor struct {
	Source string `xml:"source,attr"`
	Count  int    `xml:"count,attr"`
	Stride int    `xml:"stride,attr"`
}

// Floats is the array of floats
type Floats struct {
	ID   string
	Data []float32
}

// UnmarshalXML unmarshals the array of floats
func (f *Floats) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "id":
			f.ID = attr.Value
		}
	}
	var raw string
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	for _, r := range strings.Fields(raw) {
		num, err := strconv.ParseFloat(r, 32)
		if err != nil {
			return err
		}
		f.Data = append(f.Data, float32(num))
	}
	return nil
}

// Vertices contains the list of vertices
type Vertices struct {
	ID     string  `xml:"id,attr"`
	Inputs []Input `xml:"input"`
}

// Triangles contain the list of triangles
type Triangles struct {
	Count    int     `xml:"count,attr"`
	Material string  `xml:"material,attr"`
	Inputs   []Input `xml:"input"`
	Index    []int
}

// UnmarshalXML parses the index list
func (t *Triangles) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "count":
			num, err := strconv.Atoi(attr.Value)
			if err != nil {
				return err
			}
			t.Count = num
		case "material":
			t.Material = attr.Value
		}
	}

	for {
		token, err := d.Token()
		if err != nil {
			return err
		}

		switch el := token.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "input":
				var input Input
				if err := d.DecodeElement(&input, &el); err != nil {
					return err
				}
				t.Inputs = append(t.Inputs, input)
			case "p":
				ints, err := decodeInts(d, el)
				if err != nil {
					return err
				}
				t.Index = ints
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if el == start.End() {
				return nil
			}
		}
	}
}

// Polylist holds polygons of varying vertex count
type Polylist struct {
	Count    int     `xml:"count,attr"`
	Material string  `xml:"material,attr"`
	Inputs   []Input `xml:"input"`
	VCount   Ints    `xml:"vcount"`
	Index    Ints    `xml:"p"`
}

// Triangulate fans every polygon into triangles
func (p *Polylist) Triangulate() (Triangles, error) {
	stride := InputStride(p.Inputs)
	if stride == 0 {
		return Triangles{}, fmt.Errorf("collada: polylist without inputs")
	}
	tris := Triangles{
		Material: p.Material,
		Inputs:   p.Inputs,
	}

	var cursor int
	for _, n := range p.VCount {
		if n < 0 || cursor+n*stride > len(p.Index) {
			return Triangles{}, fmt.Errorf("collada: polylist index too short for %d vertices", n)
		}
		// Points and lines carry no faces.
		if n < 3 {
			cursor += n * stride
			continue
		}
		corner := func(i int) []int {
			at := cursor + i*stride
			return p.Index[at : at+stride]
		}
		for i := 1; i+1 < n; i++ {
			tris.Index = append(tris.Index, corner(0)...)
			tris.Index = append(tris.Index, corner(i)...)
			tris.Index = append(tris.Index, corner(i+1)...)
			tris.Count++
		}
		cursor += n * stride
	}
	return tris, nil
}

// Ints is a whitespace separated list of integers
type Ints []int

// UnmarshalXML parses the list
func (i *Ints) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	ints, err := decodeInts(d, start)
	if err != nil {
		return err
	}
	*i = ints
	return nil
}

func decodeInts(d *xml.Decoder, start xml.StartElement) ([]int, error) {
	var raw string
	if err := d.DecodeElement(&raw, &start); err != nil {
		return nil, err
	}
	fields := strings.Fields(raw)
	ints := make([]int, 0, len(fields))
	for _, r := range fields {
		num, err := strconv.Atoi(r)
		if err != nil {
			return nil, err
		}
		ints = append(ints, num)
	}
	return ints, nil
}

// Input is Collada'a input type
type Input struct {
	Semantic string `xml:"semantic,attr"`
	Source   string `xml:"source,attr"`
	Offset   uint   `xml:"offset,attr"`
	Set      uint   `xml:"set,attr"`
}

// InputStride is the number of indices making up one vertex of a primitive
func InputStride(inputs []Input) int {
	var stride int
	for _, in := range inputs {
		if int(in.Offset)+1 > stride {
			stride = int(in.Offset) + 1
		}
	}
	return stride
}

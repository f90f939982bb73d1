// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package texture is the texture resource kind: its load properties,
// decoded CPU data and the GPU handle produced by an uploader.
package texture

import (
	"fmt"

	"github.com/devblok/korustream/resource"
)

// Kind names textures in logs and stats
const Kind = "texture"

// Cube faces are stored in this order
const (
	FacePositiveX = iota
	FaceNegativeX
	FacePositiveY
	FaceNegativeY
	FacePositiveZ
	FaceNegativeZ
	FaceCount
)

// Format is the channel layout of decoded pixels
type Format int

// Supported formats, 8 bits per channel
const (
	RGBA Format = iota
	RGB
	Grayscale
)

// Channels returns the number of bytes per pixel
func (f Format) Channels() int {
	switch f {
	case RGB:
		return 3
	case Grayscale:
		return 1
	default:
		return 4
	}
}

func (f Format) String() string {
	switch f {
	case RGBA:
		return "RGBA"
	case RGB:
		return "RGB"
	case Grayscale:
		return "Grayscale"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Properties are the load options of a texture
type Properties struct {
	// FilePath is the image to decode, the identity when empty.
	FilePath string

	Format       Format
	SRGB         bool
	GenerateMips bool

	// Cube textures decode Faces instead of FilePath.
	Cube  bool
	Faces [FaceCount]string
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

// Surface is one mip level of one layer
type Surface struct {
	Width  int
	Height int
	Pixels []byte
}

// CPUData is a decoded texture. Layers holds one entry for plain
// textures and six for cubes, each with its mip chain starting at the
// full size level.
type CPUData struct {
	Format   Format
	Channels int
	Width    int
	Height   int
	Layers   [][]Surface
}

// Mips returns the number of mip levels per layer
func (d *CPUData) Mips() int {
	if len(d.Layers) == 0 {
		return 0
	}
	return len(d.Layers[0])
}

// Size returns the number of pixel bytes over all layers and levels
func (d *CPUData) Size() int {
	var size int
	for _, layer := range d.Layers {
		for _, s := range layer {
			size += len(s.Pixels)
		}
	}
	return size
}

// GPUTexture identifies a texture created by an uploader. ID 0 is the
// empty handle and is ignored on destroy.
type GPUTexture struct {
	ID     uint64
	Width  int
	Height int
	Layers int
	Mips   int
	Format Format
	SRGB   bool
	Cube   bool
}

// Kind aliases
type (
	IO       = resource.IO[Properties, CPUData, GPUTexture]
	Store    = resource.Store[Properties, CPUData, GPUTexture]
	Handle   = resource.Resource[Properties, GPUTexture]
	Decoder  = resource.Decoder[Properties, CPUData]
	Uploader = resource.Uploader[CPUData, Properties, GPUTexture]
)

// StoreFor returns the texture store of m
func StoreFor(m *resource.Manager) *Store {
	return resource.StoreFor[Properties, CPUData, GPUTexture](m)
}

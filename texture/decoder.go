// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package texture

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"path"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/devblok/korustream/source"
)

type codec struct {
	ext    []string
	decode func(io.Reader) (image.Image, error)
}

// codecs is also the probing order for names without a known
// extension. TGA has no magic number and registers an empty one with
// the image package, so image.Decode sniffing is never used and TGA
// is tried last.
var codecs = []codec{
	{[]string{".png"}, png.Decode},
	{[]string{".jpg", ".jpeg"}, jpeg.Decode},
	{[]string{".gif"}, gif.Decode},
	{[]string{".bmp"}, bmp.Decode},
	{[]string{".tif", ".tiff"}, tiff.Decode},
	{[]string{".webp"}, webp.Decode},
	{[]string{".tga"}, tga.Decode},
}

func codecFor(name string) (codec, bool) {
	ext := strings.ToLower(path.Ext(name))
	for _, c := range codecs {
		for _, e := range c.ext {
			if e == ext {
				return c, true
			}
		}
	}
	return codec{}, false
}

// HasImageExtension reports whether name ends in an extension of a
// format ImageDecoder reads.
func HasImageExtension(name string) bool {
	_, ok := codecFor(name)
	return ok
}

func decodeImage(name string, raw []byte) (image.Image, error) {
	if c, ok := codecFor(name); ok {
		return c.decode(bytes.NewReader(raw))
	}
	for _, c := range codecs {
		if img, err := c.decode(bytes.NewReader(raw)); err == nil {
			return img, nil
		}
	}
	return nil, image.ErrFormat
}

// NewImageDecoder creates a decoder reading images from src
func NewImageDecoder(src source.Source) *ImageDecoder {
	return &ImageDecoder{src: src}
}

// ImageDecoder decodes PNG, JPEG, GIF, TGA, BMP, TIFF and WebP images,
// picking the codec by extension. Names without a known extension are
// tried against each codec in turn.
// Safe for concurrent use.
type ImageDecoder struct {
	src source.Source
}

// Decode implements resource.Decoder
func (d *ImageDecoder) Decode(props Properties, path string) (CPUData, error) {
	names := []string{path}
	if props.Cube {
		names = props.Faces[:]
	}

	data := CPUData{
		Format:   props.Format,
		Channels: props.Format.Channels(),
	}
	for i, name := range names {
		img, err := d.load(name)
		if err != nil {
			return CPUData{}, err
		}

		size := img.Bounds().Size()
		if props.Cube {
			if size.X != size.Y {
				return CPUData{}, fmt.Errorf("%s: cube face is %dx%d, not square", name, size.X, size.Y)
			}
			if i > 0 && (size.X != data.Width || size.Y != data.Height) {
				return CPUData{}, fmt.Errorf("%s: cube face is %dx%d, expected %dx%d", name, size.X, size.Y, data.Width, data.Height)
			}
		}
		data.Width, data.Height = size.X, size.Y

		levels := []image.Image{img}
		if props.GenerateMips {
			levels = MipChain(img)
		}
		layer := make([]Surface, 0, len(levels))
		for _, level := range levels {
			b := level.Bounds()
			layer = append(layer, Surface{
				Width:  b.Dx(),
				Height: b.Dy(),
				Pixels: Pixels(level, props.Format),
			})
		}
		data.Layers = append(data.Layers, layer)
	}
	return data, nil
}

func (d *ImageDecoder) load(name string) (image.Image, error) {
	if name == "" {
		return nil, fmt.Errorf("no image path given")
	}
	raw, err := d.src.ReadFile(name)
	if err != nil {
		return nil, err
	}
	img, err := decodeImage(name, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%s: empty image", name)
	}
	return img, nil
}

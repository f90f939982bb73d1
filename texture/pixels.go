// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package texture

import (
	"image"

	"golang.org/x/image/draw"
)

// Pixels transforms a given image into tightly packed rows of format,
// drawing the decoded image onto a controlled canvas first
func Pixels(img image.Image, format Format) []byte {
	b := img.Bounds()
	switch format {
	case Grayscale:
		gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
		return gray.Pix
	case RGB:
		rgba := toNRGBA(img)
		pix := make([]byte, 0, b.Dx()*b.Dy()*3)
		for i := 0; i < len(rgba.Pix); i += 4 {
			pix = append(pix, rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2])
		}
		return pix
	default:
		return toNRGBA(img).Pix
	}
}

func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) && n.Stride == 4*b.Dx() {
		return n
	}
	canvas := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, b.Min, draw.Src)
	return canvas
}

// MipLevels returns the length of a full mip chain for a width x height image
func MipLevels(width, height int) int {
	levels := 1
	for width > 1 || height > 1 {
		width, height = max(width/2, 1), max(height/2, 1)
		levels++
	}
	return levels
}

// MipChain returns img followed by successively halved copies down to 1x1
func MipChain(img image.Image) []image.Image {
	b := img.Bounds()
	levels := MipLevels(b.Dx(), b.Dy())
	chain := make([]image.Image, 0, levels)
	chain = append(chain, img)

	prev := img
	w, h := b.Dx(), b.Dy()
	for i := 1; i < levels; i++ {
		w, h = max(w/2, 1), max(h/2, 1)
		next := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(next, next.Bounds(), prev, prev.Bounds(), draw.Src, nil)
		chain = append(chain, next)
		prev = next
	}
	return chain
}

// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"

	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/korustream/texture"
)

// imageFormat picks the Vulkan format a texture is stored in, and the
// number of bytes per texel in the staging buffer. RGB data is widened
// to RGBA, three channel formats are rarely sampleable.
func imageFormat(format texture.Format, srgb bool) (vk.Format, int) {
	switch format {
	case texture.Grayscale:
		if srgb {
			return vk.FormatR8Srgb, 1
		}
		return vk.FormatR8Unorm, 1
	default:
		if srgb {
			return vk.FormatR8g8b8a8Srgb, 4
		}
		return vk.FormatR8g8b8a8Unorm, 4
	}
}

// stage lays out every surface of cpu back to back, layer major, and
// returns the bytes together with one copy region per surface.
func stage(cpu *texture.CPUData, texel int) ([]byte, []vk.BufferImageCopy, error) {
	var size int
	for _, layer := range cpu.Layers {
		for _, s := range layer {
			size += align4(s.Width * s.Height * texel)
		}
	}

	data := make([]byte, size)
	regions := make([]vk.BufferImageCopy, 0, len(cpu.Layers)*cpu.Mips())
	var offset int
	for li, layer := range cpu.Layers {
		if len(layer) != cpu.Mips() {
			return nil, nil, fmt.Errorf("layer %d has %d mips, expected %d", li, len(layer), cpu.Mips())
		}
		for mip, s := range layer {
			n, err := widen(data[offset:], s, cpu.Channels, texel)
			if err != nil {
				return nil, nil, fmt.Errorf("layer %d mip %d: %w", li, mip, err)
			}
			regions = append(regions, vk.BufferImageCopy{
				BufferOffset: vk.DeviceSize(offset),
				ImageSubresource: vk.ImageSubresourceLayers{
					AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
					MipLevel:       uint32(mip),
					BaseArrayLayer: uint32(li),
					LayerCount:     1,
				},
				ImageOffset: vk.Offset3D{},
				ImageExtent: vk.Extent3D{
					Width:  uint32(s.Width),
					Height: uint32(s.Height),
					Depth:  1,
				},
			})
			offset += align4(n)
		}
	}
	return data, regions, nil
}

// widen copies s into dst, going from channels to texel bytes per pixel.
func widen(dst []byte, s texture.Surface, channels, texel int) (int, error) {
	pixels := s.Width * s.Height
	if len(s.Pixels) != pixels*channels {
		return 0, fmt.Errorf("%d bytes for %dx%d with %d channels", len(s.Pixels), s.Width, s.Height, channels)
	}
	if channels == texel {
		return copy(dst, s.Pixels), nil
	}
	if channels != 3 || texel != 4 {
		return 0, fmt.Errorf("cannot store %d channels in %d bytes", channels, texel)
	}
	for p := 0; p < pixels; p++ {
		copy(dst[p*4:p*4+3], s.Pixels[p*3:p*3+3])
		dst[p*4+3] = 0xff
	}
	return pixels * 4, nil
}

func align4(n int) int {
	return (n + 3) &^ 3
}

// TextureUploader implements texture.Uploader on a Vulkan device
type TextureUploader struct {
	uploader *Uploader
}

// CreateAndUpload implements resource.Uploader
func (t *TextureUploader) CreateAndUpload(cpu texture.CPUData, props texture.Properties) (texture.GPUTexture, error) {
	u := t.uploader
	if len(cpu.Layers) == 0 || cpu.Width == 0 || cpu.Height == 0 {
		return texture.GPUTexture{}, fmt.Errorf("%s: no pixel data", props.FilePath)
	}
	if props.Cube && len(cpu.Layers) != texture.FaceCount {
		return texture.GPUTexture{}, fmt.Errorf("%s: cube texture with %d layers", props.FilePath, len(cpu.Layers))
	}

	format, texel := imageFormat(cpu.Format, props.SRGB)
	data, regions, err := stage(&cpu, texel)
	if err != nil {
		return texture.GPUTexture{}, fmt.Errorf("%s: %w", props.FilePath, err)
	}

	staging, err := NewBuffer(u.device, uint(len(data)), vk.BufferUsageTransferSrcBit, hostVisible, u.allocator)
	if err != nil {
		return texture.GPUTexture{}, err
	}
	defer staging.Release()
	if err := staging.Mem().Write(data); err != nil {
		return texture.GPUTexture{}, err
	}

	img, err := NewImage(u.device, ImageSpec{
		Width:  uint32(cpu.Width),
		Height: uint32(cpu.Height),
		Mips:   uint32(cpu.Mips()),
		Layers: uint32(len(cpu.Layers)),
		Format: format,
		Cube:   props.Cube,
	}, u.allocator)
	if err != nil {
		return texture.GPUTexture{}, err
	}

	err = u.commands.run(func(cmd vk.CommandBuffer) error {
		if err := transitionLayout(cmd, &img, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); err != nil {
			return err
		}
		copyBufferToImage(cmd, &staging, &img, regions)
		return transitionLayout(cmd, &img, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	})
	if err != nil {
		img.Release()
		return texture.GPUTexture{}, err
	}

	u.mutex.Lock()
	id := u.id()
	u.images[id] = &img
	u.mutex.Unlock()

	u.log.WithFields(log.Fields{
		"name":   props.FilePath,
		"id":     id,
		"width":  cpu.Width,
		"height": cpu.Height,
		"layers": len(cpu.Layers),
		"mips":   cpu.Mips(),
	}).Debug("texture uploaded")

	return texture.GPUTexture{
		ID:     id,
		Width:  cpu.Width,
		Height: cpu.Height,
		Layers: len(cpu.Layers),
		Mips:   cpu.Mips(),
		Format: cpu.Format,
		SRGB:   props.SRGB,
		Cube:   props.Cube,
	}, nil
}

// Destroy implements resource.Uploader
func (t *TextureUploader) Destroy(gpu texture.GPUTexture) {
	u := t.uploader
	if gpu.ID == 0 {
		return
	}
	u.mutex.Lock()
	img, ok := u.images[gpu.ID]
	delete(u.images, gpu.ID)
	u.mutex.Unlock()
	if !ok {
		u.log.WithField("id", gpu.ID).Warn("destroy of unknown texture")
		return
	}
	img.Release()
}

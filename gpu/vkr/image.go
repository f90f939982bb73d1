// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"

	vk "github.com/devblok/vulkan"
)

// ImageSpec describes a sampled image filled by transfer.
type ImageSpec struct {
	Width, Height uint32
	Mips          uint32
	Layers        uint32
	Format        vk.Format
	Cube          bool
}

// NewImage creates a device local image with a view covering
// all of its layers and mip levels.
func NewImage(dev vk.Device, spec ImageSpec, ma *MemoryAllocator) (Image, error) {
	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  spec.Width,
			Height: spec.Height,
			Depth:  1,
		},
		MipLevels:     spec.Mips,
		ArrayLayers:   spec.Layers,
		Format:        spec.Format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit),
		SharingMode:   vk.SharingModeExclusive,
		Samples:       vk.SampleCount1Bit,
	}
	if spec.Cube {
		createInfo.Flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}

	img := Image{device: dev, spec: spec}
	if err := vk.Error(vk.CreateImage(dev, &createInfo, nil, &img.image)); err != nil {
		return Image{}, fmt.Errorf("vk.CreateImage(): %s", err.Error())
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(dev, img.image, &req)
	req.Deref()

	memory, err := ma.Malloc(req, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		img.Release()
		return Image{}, err
	}
	img.memory = memory

	if err := vk.Error(vk.BindImageMemory(dev, img.image, memory.Get(), vk.DeviceSize(memory.Offset()))); err != nil {
		img.Release()
		return Image{}, fmt.Errorf("vk.BindImageMemory(): %s", err.Error())
	}

	viewType := vk.ImageViewType2d
	if spec.Cube {
		viewType = vk.ImageViewTypeCube
	}
	ivci := vk.ImageViewCreateInfo{
		SType:            vk.StructureTypeImageViewCreateInfo,
		Image:            img.image,
		ViewType:         viewType,
		Format:           spec.Format,
		SubresourceRange: img.subresources(),
	}
	if err := vk.Error(vk.CreateImageView(dev, &ivci, nil, &img.view)); err != nil {
		img.Release()
		return Image{}, fmt.Errorf("vk.CreateImageView(): %s", err.Error())
	}

	return img, nil
}

// Image implements and abstracts vulkan image primitive.
type Image struct {
	device vk.Device
	spec   ImageSpec
	image  vk.Image
	view   vk.ImageView
	memory Memory
}

// Mem returns the underlying memory of the Image.
func (i *Image) Mem() *Memory {
	return &i.memory
}

// Get returns the vulkan image handle
func (i *Image) Get() vk.Image {
	return i.image
}

// View returns the view created with the image
func (i *Image) View() vk.ImageView {
	return i.view
}

func (i *Image) subresources() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		BaseMipLevel:   0,
		LevelCount:     i.spec.Mips,
		BaseArrayLayer: 0,
		LayerCount:     i.spec.Layers,
	}
}

// Release destroys the view, the image and its memory
func (i *Image) Release() {
	if i.view != nil {
		vk.DestroyImageView(i.device, i.view, nil)
		i.view = nil
	}
	if i.image != nil {
		vk.DestroyImage(i.device, i.image, nil)
		i.image = nil
	}
	i.memory.Release()
}

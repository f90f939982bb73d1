// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"

	vk "github.com/devblok/vulkan"
)

// commands records one time command buffers and waits for them
// on the queue they are submitted to.
type commands struct {
	device vk.Device
	pool   vk.CommandPool
	queue  vk.Queue
}

// run records with record into a fresh command buffer, submits it
// and blocks until the queue is idle.
func (c commands) run(record func(cmd vk.CommandBuffer) error) error {
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		Level:              vk.CommandBufferLevelPrimary,
		CommandPool:        c.pool,
		CommandBufferCount: 1,
	}

	commandBuffers := make([]vk.CommandBuffer, 1)
	if err := vk.Error(vk.AllocateCommandBuffers(c.device, &cbai, commandBuffers)); err != nil {
		return fmt.Errorf("vk.AllocateCommandBuffers(): %s", err.Error())
	}
	defer vk.FreeCommandBuffers(c.device, c.pool, 1, commandBuffers)
	cmd := commandBuffers[0]

	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := vk.Error(vk.BeginCommandBuffer(cmd, &cbbi)); err != nil {
		return fmt.Errorf("vk.BeginCommandBuffer(): %s", err.Error())
	}

	if err := record(cmd); err != nil {
		vk.EndCommandBuffer(cmd)
		return err
	}

	if err := vk.Error(vk.EndCommandBuffer(cmd)); err != nil {
		return fmt.Errorf("vk.EndCommandBuffer(): %s", err.Error())
	}

	si := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    commandBuffers,
	}
	if err := vk.Error(vk.QueueSubmit(c.queue, 1, []vk.SubmitInfo{si}, vk.NullFence)); err != nil {
		return fmt.Errorf("vk.QueueSubmit(): %s", err.Error())
	}
	if err := vk.Error(vk.QueueWaitIdle(c.queue)); err != nil {
		return fmt.Errorf("vk.QueueWaitIdle(): %s", err.Error())
	}
	return nil
}

type barrierMasks struct {
	srcAccess, dstAccess vk.AccessFlags
	srcStage, dstStage   vk.PipelineStageFlags
}

// layoutBarrier returns the access masks and stages for the two
// transitions an uploaded image goes through.
func layoutBarrier(old, new vk.ImageLayout) (barrierMasks, error) {
	switch {
	case old == vk.ImageLayoutUndefined && new == vk.ImageLayoutTransferDstOptimal:
		return barrierMasks{
			srcAccess: 0,
			dstAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
			srcStage:  vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
			dstStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		}, nil
	case old == vk.ImageLayoutTransferDstOptimal && new == vk.ImageLayoutShaderReadOnlyOptimal:
		return barrierMasks{
			srcAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
			dstAccess: vk.AccessFlags(vk.AccessShaderReadBit),
			srcStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			dstStage:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		}, nil
	}
	return barrierMasks{}, fmt.Errorf("unsupported layout transition %d -> %d", old, new)
}

// transitionLayout records a barrier moving every subresource of img
// from old to new.
func transitionLayout(cmd vk.CommandBuffer, img *Image, old, new vk.ImageLayout) error {
	masks, err := layoutBarrier(old, new)
	if err != nil {
		return err
	}

	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       masks.srcAccess,
		DstAccessMask:       masks.dstAccess,
		OldLayout:           old,
		NewLayout:           new,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img.Get(),
		SubresourceRange:    img.subresources(),
	}
	vk.CmdPipelineBarrier(cmd, masks.srcStage, masks.dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	return nil
}

// copyBufferToImage records one copy per region, the image must be in
// transfer destination layout.
func copyBufferToImage(cmd vk.CommandBuffer, buf *Buffer, img *Image, regions []vk.BufferImageCopy) {
	if len(regions) == 0 {
		return
	}
	vk.CmdCopyBufferToImage(cmd, buf.Get(), img.Get(), vk.ImageLayoutTransferDstOptimal, uint32(len(regions)), regions)
}

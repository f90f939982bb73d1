// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"errors"
	"fmt"

	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/korustream/core"
)

// DefaultVulkanApplicationInfo application info describes a Vulkan application
var DefaultVulkanApplicationInfo = &vk.ApplicationInfo{
	SType:              vk.StructureTypeApplicationInfo,
	ApiVersion:         vk.MakeVersion(1, 0, 0),
	ApplicationVersion: vk.MakeVersion(1, 0, 0),
	PApplicationName:   "Koru stream\x00",
	PEngineName:        "Koru3D\x00",
}

const (
	validationLayer = "VK_LAYER_KHRONOS_validation"
	debugExtension  = "VK_EXT_debug_report"
)

// NewVulkan creates an instance, picks a physical device and opens a
// logical device with one graphics queue and a transient command pool.
func NewVulkan(appInfo *vk.ApplicationInfo, cfg core.DeviceConfiguration, logger log.FieldLogger) (*Vulkan, error) {
	logger = core.OrDiscard(logger).WithField("component", "device")

	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		return nil, errors.New("vk.SetDefaultGetInstanceProcAddr(): " + err.Error())
	}
	if err := vk.Init(); err != nil {
		return nil, errors.New("vk.Init(): " + err.Error())
	}

	var layers, extensions []string
	if cfg.Debug {
		layers = append(layers, validationLayer)
		extensions = append(extensions, debugExtension)
	}
	layers, extensions = safeStrings(layers), safeStrings(extensions)

	instanceInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}

	v := &Vulkan{log: logger}
	if err := vk.Error(vk.CreateInstance(&instanceInfo, nil, &v.instance)); err != nil {
		return nil, errors.New("vk.CreateInstance(): " + err.Error())
	}
	vk.InitInstance(v.instance)

	if err := v.enumerateDevices(); err != nil {
		v.Destroy()
		return nil, err
	}

	infos := v.PhysicalDevices()
	idx, err := pickDevice(infos, cfg.Name)
	if err != nil {
		v.Destroy()
		return nil, err
	}
	v.info = infos[idx]
	v.physical = v.availableDevices[idx]
	v.queueFamily = uint32(v.info.GraphicsQueue)

	if err := v.createLogicalDevice(); err != nil {
		v.Destroy()
		return nil, err
	}
	if err := v.createCommandPool(); err != nil {
		v.Destroy()
		return nil, err
	}

	logger.WithFields(log.Fields{
		"name":   v.info.Name,
		"memory": v.info.Memory,
		"queue":  v.queueFamily,
	}).Info("device opened")
	return v, nil
}

// Vulkan owns a Vulkan instance and one logical device on it
type Vulkan struct {
	log log.FieldLogger

	availableDevices []vk.PhysicalDevice

	instance    vk.Instance
	physical    vk.PhysicalDevice
	info        PhysicalDeviceInfo
	device      vk.Device
	queue       vk.Queue
	queueFamily uint32
	commandPool vk.CommandPool
}

func (v *Vulkan) enumerateDevices() error {
	var deviceCount uint32
	if err := vk.Error(vk.EnumeratePhysicalDevices(v.instance, &deviceCount, nil)); err != nil {
		return fmt.Errorf("vulkan physical device enumeration failed: %s", err)
	}
	v.availableDevices = make([]vk.PhysicalDevice, deviceCount)
	if err := vk.Error(vk.EnumeratePhysicalDevices(v.instance, &deviceCount, v.availableDevices)); err != nil {
		return fmt.Errorf("vulkan physical device enumeration failed: %s", err)
	}
	return nil
}

// PhysicalDevices describes every physical device of the instance
func (v *Vulkan) PhysicalDevices() []PhysicalDeviceInfo {
	pdi := make([]PhysicalDeviceInfo, len(v.availableDevices))

	for i, dev := range v.availableDevices {
		var numDeviceExtensions uint32
		if err := vk.Error(vk.EnumerateDeviceExtensionProperties(dev, "", &numDeviceExtensions, nil)); err != nil {
			pdi[i].Invalid = true
		}
		deviceExt := make([]vk.ExtensionProperties, numDeviceExtensions)
		if err := vk.Error(vk.EnumerateDeviceExtensionProperties(dev, "", &numDeviceExtensions, deviceExt)); err != nil {
			pdi[i].Invalid = true
		}
		for _, ext := range deviceExt {
			ext.Deref()
			pdi[i].Extensions = append(pdi[i].Extensions, vk.ToString(ext.ExtensionName[:]))
		}

		var numDeviceLayers uint32
		if err := vk.Error(vk.EnumerateDeviceLayerProperties(dev, &numDeviceLayers, nil)); err != nil {
			pdi[i].Invalid = true
		}
		deviceLayers := make([]vk.LayerProperties, numDeviceLayers)
		if err := vk.Error(vk.EnumerateDeviceLayerProperties(dev, &numDeviceLayers, deviceLayers)); err != nil {
			pdi[i].Invalid = true
		}
		for _, layer := range deviceLayers {
			layer.Deref()
			pdi[i].Layers = append(pdi[i].Layers, vk.ToString(layer.LayerName[:]))
		}

		var memoryProperties vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(dev, &memoryProperties)
		memoryProperties.Deref()
		for iMem := uint32(0); iMem < memoryProperties.MemoryHeapCount; iMem++ {
			memoryProperties.MemoryHeaps[iMem].Deref()
			pdi[i].Memory += memoryProperties.MemoryHeaps[iMem].Size
		}

		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(dev, &properties)
		properties.Deref()
		pdi[i].ID = int(properties.DeviceID)
		pdi[i].VendorID = int(properties.VendorID)
		pdi[i].Name = vk.ToString(properties.DeviceName[:])
		pdi[i].DriverVersion = int(properties.DriverVersion)

		pdi[i].GraphicsQueue = graphicsQueueFamily(dev)
	}
	return pdi
}

func graphicsQueueFamily(dev vk.PhysicalDevice) int {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(dev, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(dev, &count, families)

	for i := range families {
		families[i].Deref()
		if families[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			return i
		}
	}
	return -1
}

func (v *Vulkan) createLogicalDevice() error {
	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: v.queueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{1},
	}}

	dci := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: uint32(len(queueInfos)),
		PQueueCreateInfos:    queueInfos,
	}
	if err := vk.Error(vk.CreateDevice(v.physical, &dci, nil, &v.device)); err != nil {
		return errors.New("vk.CreateDevice(): " + err.Error())
	}

	vk.GetDeviceQueue(v.device, v.queueFamily, 0, &v.queue)
	return nil
}

func (v *Vulkan) createCommandPool() error {
	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
		QueueFamilyIndex: v.queueFamily,
	}
	if err := vk.Error(vk.CreateCommandPool(v.device, &cpci, nil, &v.commandPool)); err != nil {
		return errors.New("vk.CreateCommandPool(): " + err.Error())
	}
	return nil
}

// Info describes the physical device that was opened
func (v *Vulkan) Info() PhysicalDeviceInfo {
	return v.info
}

// Physical returns the picked physical device
func (v *Vulkan) Physical() vk.PhysicalDevice {
	return v.physical
}

// Logical returns the logical device
func (v *Vulkan) Logical() vk.Device {
	return v.device
}

// Queue returns the graphics queue uploads are submitted to
func (v *Vulkan) Queue() vk.Queue {
	return v.queue
}

// CommandPool returns a transient pool for one time command buffers
func (v *Vulkan) CommandPool() vk.CommandPool {
	return v.commandPool
}

// Destroy waits for the device to go idle and releases everything
// created by NewVulkan.
func (v *Vulkan) Destroy() {
	if v == nil {
		return
	}
	if v.device != nil {
		vk.DeviceWaitIdle(v.device)
		if v.commandPool != nil {
			vk.DestroyCommandPool(v.device, v.commandPool, nil)
		}
		vk.DestroyDevice(v.device, nil)
		v.device = nil
	}
	v.availableDevices = nil
	if v.instance != nil {
		vk.DestroyInstance(v.instance, nil)
		v.instance = nil
	}
}

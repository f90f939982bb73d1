// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package device opens a Vulkan instance and logical device without a
// window. The result is enough to create buffers and images and to run
// transfer commands on a graphics capable queue.
package device

import (
	"errors"
	"fmt"
	"strings"

	vk "github.com/devblok/vulkan"
)

// ErrNoDevice is returned when no physical device has a graphics queue
var ErrNoDevice = errors.New("no physical device with a graphics queue")

// PhysicalDeviceInfo describes available physical properties of a rendering device
type PhysicalDeviceInfo struct {
	ID            int
	VendorID      int
	DriverVersion int
	Name          string
	Invalid       bool
	Extensions    []string
	Layers        []string
	Memory        vk.DeviceSize

	// GraphicsQueue is the first queue family supporting graphics,
	// or -1 when there is none.
	GraphicsQueue int
}

// pickDevice returns the index of the device to open. Devices matching
// name win, then the one with the most memory. Invalid devices and
// devices without a graphics queue are never picked.
func pickDevice(infos []PhysicalDeviceInfo, name string) (int, error) {
	best := -1
	bestNamed := false
	for i, info := range infos {
		if info.Invalid || info.GraphicsQueue < 0 {
			continue
		}
		named := name != "" && strings.Contains(info.Name, name)
		switch {
		case best < 0:
		case named && !bestNamed:
		case named == bestNamed && info.Memory > infos[best].Memory:
		default:
			continue
		}
		best, bestNamed = i, named
	}
	if best < 0 {
		return 0, ErrNoDevice
	}
	return best, nil
}

func safeString(s string) string {
	return fmt.Sprintf("%s\x00", s)
}

func safeStrings(sgs []string) []string {
	safe := make([]string, 0, len(sgs))
	for _, s := range sgs {
		safe = append(safe, safeString(s))
	}
	return safe
}

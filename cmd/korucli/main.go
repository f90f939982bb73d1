// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/devblok/korustream/core"
	"github.com/devblok/korustream/device"
)

var envFile = flag.String("env", ".env", "Dotenv file with configuration overrides")

// korucli prints the physical devices the uploaders can run on,
// and the one koru would pick, as JSON.
func main() {
	flag.Parse()

	cfg, err := core.LoadConfiguration(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := core.NewLogger(cfg.Log)

	vulkan, err := device.NewVulkan(device.DefaultVulkanApplicationInfo, cfg.Device, logger)
	if err != nil {
		logger.WithError(err).Fatal("no usable device")
	}
	defer vulkan.Destroy()

	out := struct {
		Picked  device.PhysicalDeviceInfo
		Devices []device.PhysicalDeviceInfo
	}{vulkan.Info(), vulkan.PhysicalDevices()}

	bytes, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		logger.WithError(err).Fatal("encoding device info")
	}
	fmt.Printf("%s\n", bytes)
}

// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import "runtime"

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time      TimeConfiguration
	Streaming StreamingConfiguration
	Assets    AssetConfiguration
	Device    DeviceConfiguration
	Log       LogConfiguration
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int
}

// StreamingConfiguration bounds the per frame GPU work
// and the decode parallelism of the asset pipeline.
type StreamingConfiguration struct {
	// Workers is the number of decode jobs allowed to run at once.
	// Zero means GOMAXPROCS.
	Workers int

	TextureUploads  int
	TextureDestroys int
	MeshUploads     int
	MeshDestroys    int
}

// AssetConfiguration tells where assets are looked up.
type AssetConfiguration struct {
	// Root is a directory on disk, searched first.
	Root string

	// Archive is an optional kar archive searched after Root.
	Archive string
}

// DeviceConfiguration selects the GPU the uploaders run against
type DeviceConfiguration struct {
	// Headless skips Vulkan entirely and counts uploads instead.
	Headless bool

	// Debug enables the validation layer and debug report extension.
	Debug bool

	// Name, when set, prefers the first physical device whose name
	// contains it.
	Name string
}

// LogConfiguration configures the logger built by NewLogger.
type LogConfiguration struct {
	// Level is a logrus level name, e.g. "info" or "debug".
	Level string

	// Format is either "text" or "json".
	Format string
}

// DefaultConfiguration returns the configuration the engine runs with
// when nothing is overridden.
func DefaultConfiguration() Configuration {
	return Configuration{
		Time: TimeConfiguration{
			FramesPerSecond: 60,
		},
		Streaming: StreamingConfiguration{
			Workers:         runtime.GOMAXPROCS(0),
			TextureUploads:  8,
			TextureDestroys: 32,
			MeshUploads:     2,
			MeshDestroys:    32,
		},
		Assets: AssetConfiguration{
			Root: "./assets",
		},
		Log: LogConfiguration{
			Level:  "info",
			Format: "text",
		},
	}
}

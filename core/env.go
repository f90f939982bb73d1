// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"
	"os"
	"strconv"

	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
)

// Environment variables read by LoadConfiguration.
const (
	EnvFramesPerSecond = "KORU_FPS"
	EnvWorkers         = "KORU_WORKERS"
	EnvTexUploads      = "KORU_TEX_UPLOADS"
	EnvTexDestroys     = "KORU_TEX_DESTROYS"
	EnvMeshUploads     = "KORU_MESH_UPLOADS"
	EnvMeshDestroys    = "KORU_MESH_DESTROYS"
	EnvAssetRoot       = "KORU_ASSET_ROOT"
	EnvAssetArchive    = "KORU_ASSET_ARCHIVE"
	EnvHeadless        = "KORU_HEADLESS"
	EnvDeviceDebug     = "KORU_VK_DEBUG"
	EnvDeviceName      = "KORU_DEVICE"
	EnvLogLevel        = "KORU_LOG_LEVEL"
	EnvLogFormat       = "KORU_LOG_FORMAT"
)

// LoadConfiguration starts from DefaultConfiguration and applies overrides
// from the environment. If envFile is not empty and exists it is loaded
// first; variables already set in the process environment win over it.
func LoadConfiguration(envFile string) (Configuration, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Configuration{}, fmt.Errorf("godotenv.Load(): %s", err.Error())
			}
		}
	}
	envy.Reload()

	cfg := DefaultConfiguration()

	ints := []struct {
		key string
		dst *int
	}{
		{EnvFramesPerSecond, &cfg.Time.FramesPerSecond},
		{EnvWorkers, &cfg.Streaming.Workers},
		{EnvTexUploads, &cfg.Streaming.TextureUploads},
		{EnvTexDestroys, &cfg.Streaming.TextureDestroys},
		{EnvMeshUploads, &cfg.Streaming.MeshUploads},
		{EnvMeshDestroys, &cfg.Streaming.MeshDestroys},
	}
	for _, i := range ints {
		raw := envy.Get(i.key, "")
		if raw == "" {
			continue
		}
		num, err := strconv.Atoi(raw)
		if err != nil || num < 0 {
			return Configuration{}, fmt.Errorf("%s: expected a non-negative integer, got %q", i.key, raw)
		}
		*i.dst = num
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{EnvHeadless, &cfg.Device.Headless},
		{EnvDeviceDebug, &cfg.Device.Debug},
	}
	for _, b := range bools {
		raw := envy.Get(b.key, "")
		if raw == "" {
			continue
		}
		on, err := strconv.ParseBool(raw)
		if err != nil {
			return Configuration{}, fmt.Errorf("%s: expected a boolean, got %q", b.key, raw)
		}
		*b.dst = on
	}

	cfg.Device.Name = envy.Get(EnvDeviceName, cfg.Device.Name)
	cfg.Assets.Root = envy.Get(EnvAssetRoot, cfg.Assets.Root)
	cfg.Assets.Archive = envy.Get(EnvAssetArchive, cfg.Assets.Archive)
	cfg.Log.Level = envy.Get(EnvLogLevel, cfg.Log.Level)
	cfg.Log.Format = envy.Get(EnvLogFormat, cfg.Log.Format)

	return cfg, nil
}

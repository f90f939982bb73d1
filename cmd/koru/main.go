// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/korustream/asset"
	"github.com/devblok/korustream/core"
	"github.com/devblok/korustream/device"
	"github.com/devblok/korustream/gpu/headless"
	"github.com/devblok/korustream/gpu/vkr"
	"github.com/devblok/korustream/mesh"
	"github.com/devblok/korustream/resource"
	"github.com/devblok/korustream/texture"
)

func init() {
	runtime.LockOSThread()
}

var (
	envFile  = flag.String("env", ".env", "Dotenv file with configuration overrides")
	noDevice = flag.Bool("headless", false, "Count uploads instead of opening a Vulkan device")
	frames   = flag.Int("frames", 0, "Frames to run, 0 runs until every request settled")
	boxDir   = flag.String("box", "", "Directory of fallback assets searched last")
	textures = flag.String("textures", "", "Comma separated textures to load")
	meshes   = flag.String("meshes", "", "Comma separated meshes to load")
	cubes    = flag.String("cubes", "", "Comma separated cubemap directories or base paths to load")
)

func main() {
	flag.Parse()

	cfg, err := core.LoadConfiguration(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *noDevice {
		cfg.Device.Headless = true
	}

	logger := core.NewLogger(cfg.Log)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("koru stopped")
	}
}

// gpu holds the uploaders of one backend and its teardown.
type gpu struct {
	textures texture.Uploader
	meshes   mesh.Uploader
	close    func() error
}

func openGPU(cfg core.DeviceConfiguration, logger log.FieldLogger) (gpu, error) {
	if cfg.Headless {
		dev := headless.NewDevice(logger)
		return gpu{
			textures: dev.Textures(),
			meshes:   dev.Meshes(),
			close: func() error {
				logger.WithField("stats", fmt.Sprintf("%+v", dev.Stats())).Info("headless device closed")
				return dev.Verify()
			},
		}, nil
	}

	vulkan, err := device.NewVulkan(device.DefaultVulkanApplicationInfo, cfg, logger)
	if err != nil {
		return gpu{}, err
	}
	up := vkr.NewUploader(vulkan, logger)
	return gpu{
		textures: up.Textures(),
		meshes:   up.Meshes(),
		close: func() error {
			textures, meshes := up.Live()
			up.Release()
			vulkan.Destroy()
			if textures+meshes > 0 {
				return fmt.Errorf("%d textures and %d meshes were never destroyed", textures, meshes)
			}
			return nil
		},
	}, nil
}

func run(cfg core.Configuration, logger *log.Logger) (err error) {
	src, err := openSource(cfg.Assets, *boxDir)
	if err != nil {
		return err
	}
	defer src.Close()

	backend, err := openGPU(cfg.Device, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := backend.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	jobs := core.NewJobPool(cfg.Streaming.Workers, logger)
	defer jobs.Close()
	render := core.NewFrameQueue()

	assets := asset.NewManager(resource.NewManager(logger), src,
		texture.IO{
			Decoder:  texture.NewImageDecoder(src),
			Uploader: backend.textures,
			Jobs:     jobs,
			Render:   render,
		},
		mesh.IO{
			Decoder:  mesh.NewColladaDecoder(src),
			Uploader: backend.meshes,
			Jobs:     jobs,
			Render:   render,
		},
		logger)

	reqs, err := request(assets, split(*textures), split(*meshes), split(*cubes))
	if err != nil {
		return err
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	clock := core.NewTime(cfg.Time)
	defer clock.Stop()
	budget := asset.BudgetFrom(cfg.Streaming)

FrameLoop:
	for {
		select {
		case <-interrupt:
			logger.Info("interrupted")
			break FrameLoop
		case <-clock.FpsTicker().C:
		}

		frame := clock.Frame()
		scheduled := assets.ProcessUploads(budget)
		ran := render.Flush()
		if scheduled || ran > 0 {
			logger.WithFields(log.Fields{
				"frame": frame,
				"jobs":  ran,
			}).Debug("frame")
		}

		if *frames > 0 && frame >= uint64(*frames) {
			break
		}
		if *frames == 0 && reqs.settled(assets) && !assets.Pending() && jobs.Pending() == 0 {
			break
		}
	}

	reqs.report(assets, logger)
	logger.WithFields(log.Fields{
		"frames":  clock.Frames(),
		"elapsed": clock.Elapsed(),
	}).Info("streaming finished")

	reqs.release()
	assets.ClearAll()
	drain(assets, jobs, render)
	return nil
}

// drain runs frames with unbounded budget until nothing is queued.
func drain(assets *asset.Manager, jobs core.JobRunner, render core.Flusher) {
	unbounded := asset.Budget{
		TextureUploads:  1 << 30,
		TextureDestroys: 1 << 30,
		MeshUploads:     1 << 30,
		MeshDestroys:    1 << 30,
	}
	for {
		jobs.WaitIdle()
		worked := assets.ProcessUploads(unbounded)
		if render.Flush() > 0 {
			worked = true
		}
		if !worked {
			return
		}
	}
}

func split(list string) []string {
	var out []string
	for _, s := range strings.Split(list, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var errNothingRequested = errors.New("nothing to load, use -textures, -meshes or -cubes")

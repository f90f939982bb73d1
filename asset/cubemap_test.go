// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package asset_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/korustream/asset"
	"github.com/devblok/korustream/source"
	"github.com/devblok/korustream/texture"
)

func touch(c *qt.C, names ...string) source.Source {
	root := c.TempDir()
	for _, name := range names {
		p := filepath.Join(root, filepath.FromSlash(name))
		c.Assert(os.MkdirAll(filepath.Dir(p), 0755), qt.IsNil)
		c.Assert(os.WriteFile(p, nil, 0644), qt.IsNil)
	}
	return source.NewDir(root)
}

func faceSet(prefix, ext string, scheme int) []string {
	var names []string
	for _, s := range asset.FaceSchemes[scheme] {
		names = append(names, prefix+"_"+s+ext)
	}
	return names
}

func TestResolveDirectory(t *testing.T) {
	c := qt.New(t)
	src := touch(c, faceSet("sky/sky", ".png", 1)...)

	faces, err := asset.ResolveCubemapFaces(src, "sky", "")
	c.Assert(err, qt.IsNil)
	c.Assert(faces, qt.Equals, [texture.FaceCount]string{
		"sky/sky_px.png", "sky/sky_nx.png",
		"sky/sky_py.png", "sky/sky_ny.png",
		"sky/sky_pz.png", "sky/sky_nz.png",
	})
}

func TestResolveDirectoryIncomplete(t *testing.T) {
	c := qt.New(t)
	src := touch(c, faceSet("sky/sky", ".png", 1)[:5]...)

	_, err := asset.ResolveCubemapFaces(src, "sky", "sky")
	c.Assert(err, qt.ErrorIs, asset.ErrCubemapIncomplete)
	c.Assert(err, qt.Not(qt.ErrorIs), asset.ErrCubemapAmbiguous)
}

func TestResolveDirectoryPreferredBase(t *testing.T) {
	c := qt.New(t)
	names := append(faceSet("env/alpha", ".png", 0), faceSet("env/beta", ".jpg", 2)...)
	src := touch(c, names...)

	faces, err := asset.ResolveCubemapFaces(src, "env", "beta")
	c.Assert(err, qt.IsNil)
	c.Assert(faces[texture.FaceNegativeY], qt.Equals, "env/beta_down.jpg")

	faces, err = asset.ResolveCubemapFaces(src, "env", "")
	c.Assert(err, qt.IsNil)
	c.Assert(faces[texture.FacePositiveZ], qt.Equals, "env/alpha_ft.png")

	// An incomplete preferred base falls back to the first complete one.
	faces, err = asset.ResolveCubemapFaces(src, "env", "gamma")
	c.Assert(err, qt.IsNil)
	c.Assert(faces[texture.FacePositiveX], qt.Equals, "env/alpha_rt.png")
}

func TestResolveDirectoryAmbiguous(t *testing.T) {
	c := qt.New(t)
	names := append(faceSet("sky/sky", ".png", 1), "sky/sky_rt.png", "sky/readme.txt")
	src := touch(c, names...)

	_, err := asset.ResolveCubemapFaces(src, "sky", "sky")
	c.Assert(err, qt.ErrorIs, asset.ErrCubemapIncomplete)
	c.Assert(err, qt.ErrorIs, asset.ErrCubemapAmbiguous)

	// A complete unambiguous group next to it is still found.
	src = touch(c, append(names, faceSet("sky/night", ".png", 0)...)...)
	faces, err := asset.ResolveCubemapFaces(src, "sky", "sky")
	c.Assert(err, qt.IsNil)
	c.Assert(faces[texture.FacePositiveX], qt.Equals, "sky/night_rt.png")
}

func TestResolveBasePath(t *testing.T) {
	c := qt.New(t)
	names := append(faceSet("env/desert", ".tga", 0), faceSet("env/lake", ".jpeg", 2)...)
	names = append(names, faceSet("env/lake", ".png", 1)[:3]...)
	names = append(names, faceSet("env/night.v2", ".png", 0)...)
	src := touch(c, names...)

	faces, err := asset.ResolveCubemapFaces(src, "env/desert", "")
	c.Assert(err, qt.IsNil)
	c.Assert(faces[texture.FaceNegativeX], qt.Equals, "env/desert_lf.tga")

	faces, err = asset.ResolveCubemapFaces(src, "env/lake", "")
	c.Assert(err, qt.IsNil)
	c.Assert(faces[texture.FaceNegativeZ], qt.Equals, "env/lake_back.jpeg")

	// An explicit extension restricts probing.
	_, err = asset.ResolveCubemapFaces(src, "env/lake.png", "")
	c.Assert(err, qt.ErrorIs, asset.ErrCubemapIncomplete)

	faces, err = asset.ResolveCubemapFaces(src, "env/desert.tga", "")
	c.Assert(err, qt.IsNil)
	c.Assert(faces[texture.FacePositiveY], qt.Equals, "env/desert_up.tga")

	// A dotted base that is not an image extension still probes all.
	faces, err = asset.ResolveCubemapFaces(src, "env/night.v2", "")
	c.Assert(err, qt.IsNil)
	c.Assert(faces[texture.FacePositiveX], qt.Equals, "env/night.v2_rt.png")

	_, err = asset.ResolveCubemapFaces(src, "env/nothing", "")
	c.Assert(err, qt.ErrorIs, asset.ErrCubemapIncomplete)
}

// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/korustream/core"
)

func TestCompressListExtract(t *testing.T) {
	c := qt.New(t)
	logger := core.DiscardLogger()

	src := c.TempDir()
	c.Assert(os.MkdirAll(filepath.Join(src, "textures", "sky"), 0755), qt.IsNil)
	c.Assert(os.WriteFile(filepath.Join(src, "textures", "stone.png"), []byte("stone"), 0644), qt.IsNil)
	c.Assert(os.WriteFile(filepath.Join(src, "textures", "sky", "px.png"), []byte("px"), 0644), qt.IsNil)

	archive := filepath.Join(c.TempDir(), "assets.kar")
	c.Assert(compressFiles(src, archive, logger), qt.IsNil)
	c.Assert(compressFiles(src, archive, logger), qt.ErrorMatches, "destination file exists.*")

	var listing bytes.Buffer
	c.Assert(listFiles(archive, &listing), qt.IsNil)
	c.Assert(listing.String(), qt.Matches, `(?s)author: .*\n\s+2 textures/sky/px.png\n\s+5 textures/stone.png\n`)

	out := c.TempDir()
	c.Assert(extractFiles(archive, out, logger), qt.IsNil)
	data, err := os.ReadFile(filepath.Join(out, "textures", "stone.png"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "stone")
	data, err = os.ReadFile(filepath.Join(out, "textures", "sky", "px.png"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "px")
}

func TestIsInside(t *testing.T) {
	c := qt.New(t)
	c.Assert(isInside("out", filepath.Join("out", "a", "b")), qt.IsTrue)
	c.Assert(isInside("out", filepath.Join("out", "..", "etc")), qt.IsFalse)
	c.Assert(isInside("out", filepath.Join("out", "..foo")), qt.IsTrue)
}

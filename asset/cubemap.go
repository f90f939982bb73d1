// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package asset

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/devblok/korustream/source"
	"github.com/devblok/korustream/texture"
)

// Cubemap resolution errors
var (
	ErrCubemapIncomplete = errors.New("no complete set of six cubemap faces")
	ErrCubemapAmbiguous  = errors.New("more than one file for a cubemap face")
)

// FaceSchemes are the recognized face suffixes in texture face order
var FaceSchemes = [][texture.FaceCount]string{
	{"rt", "lf", "up", "dn", "ft", "bk"},
	{"px", "nx", "py", "ny", "pz", "nz"},
	{"right", "left", "up", "down", "front", "back"},
}

// FaceExtensions are probed when a base path has no extension
var FaceExtensions = []string{".tga", ".png", ".jpg", ".jpeg"}

// ResolveCubemapFaces finds six face files for baseOrDir in src, in
// texture face order.
//
// A directory is scanned for files named <base>_<suffix>.<ext>. Files
// are grouped by base and the group of preferBase is used when it is
// complete, otherwise the first complete group in name order. Groups
// with two files for one face are never used.
//
// Anything else is a base path: every scheme is tried with every
// extension in FaceExtensions, or only the extension of baseOrDir when
// it ends in an image extension, and the first combination of six
// existing files wins. Other dotted suffixes are part of the base.
func ResolveCubemapFaces(src source.Source, baseOrDir, preferBase string) ([texture.FaceCount]string, error) {
	if src.IsDir(baseOrDir) {
		return resolveDir(src, baseOrDir, preferBase)
	}
	return resolveBase(src, baseOrDir)
}

func faceOf(suffix string) (int, bool) {
	for _, scheme := range FaceSchemes {
		for face, s := range scheme {
			if s == suffix {
				return face, true
			}
		}
	}
	return 0, false
}

type faceGroup struct {
	faces     [texture.FaceCount][]string
	ambiguous bool
}

func (g *faceGroup) complete() bool {
	for _, f := range g.faces {
		if len(f) != 1 {
			return false
		}
	}
	return true
}

func resolveDir(src source.Source, dir, preferBase string) ([texture.FaceCount]string, error) {
	var faces [texture.FaceCount]string

	files, err := src.List(dir)
	if err != nil {
		return faces, err
	}

	groups := make(map[string]*faceGroup)
	for _, name := range files {
		stem := strings.TrimSuffix(name, path.Ext(name))
		cut := strings.LastIndex(stem, "_")
		if cut < 0 {
			continue
		}
		face, ok := faceOf(strings.ToLower(stem[cut+1:]))
		if !ok {
			continue
		}
		base := stem[:cut]
		g, ok := groups[base]
		if !ok {
			g = &faceGroup{}
			groups[base] = g
		}
		g.faces[face] = append(g.faces[face], name)
		if len(g.faces[face]) > 1 {
			g.ambiguous = true
		}
	}

	bases := make([]string, 0, len(groups))
	for base := range groups {
		bases = append(bases, base)
	}
	sort.Strings(bases)
	if g, ok := groups[preferBase]; ok && g.complete() {
		bases = append([]string{preferBase}, bases...)
	}

	var ambiguous []string
	for _, base := range bases {
		g := groups[base]
		if g.ambiguous {
			ambiguous = append(ambiguous, base)
			continue
		}
		if !g.complete() {
			continue
		}
		for face, names := range g.faces {
			faces[face] = path.Join(dir, names[0])
		}
		return faces, nil
	}

	if len(ambiguous) > 0 {
		return faces, fmt.Errorf("%w: %w: %s (%s)", ErrCubemapIncomplete, ErrCubemapAmbiguous, dir, strings.Join(ambiguous, ", "))
	}
	return faces, fmt.Errorf("%w: %s", ErrCubemapIncomplete, dir)
}

func resolveBase(src source.Source, base string) ([texture.FaceCount]string, error) {
	var faces [texture.FaceCount]string

	exts := FaceExtensions
	if ext := path.Ext(base); texture.HasImageExtension(base) {
		exts = []string{ext}
		base = strings.TrimSuffix(base, ext)
	}

	for _, scheme := range FaceSchemes {
		for _, ext := range exts {
			found := true
			for face, suffix := range scheme {
				name := base + "_" + suffix + ext
				if !src.Exists(name) || src.IsDir(name) {
					found = false
					break
				}
				faces[face] = name
			}
			if found {
				return faces, nil
			}
		}
	}
	return [texture.FaceCount]string{}, fmt.Errorf("%w: %s", ErrCubemapIncomplete, base)
}

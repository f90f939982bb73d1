// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package source

import (
	"github.com/gobuffalo/packr"
)

// NewBox creates a Source over a packr box. Boxes read from disk during
// development and from the binary once packed, which makes them suitable
// for fallback assets shipped with the executable.
func NewBox(box packr.Box) *Box {
	b := &Box{box: box}
	var all []string
	// A box without a directory on disk and without packed data is empty.
	_ = box.Walk(func(name string, _ packr.File) error {
		all = append(all, name)
		return nil
	})
	b.names = newNames(all)
	return b
}

// Box is a Source backed by a packr box
type Box struct {
	box   packr.Box
	names names
}

// ReadFile implements Source
func (b *Box) ReadFile(name string) ([]byte, error) {
	name = Clean(name)
	if b.names.isDir(name) || !b.box.Has(name) {
		return nil, notFound(name)
	}
	return b.box.Find(name)
}

// Exists implements Source
func (b *Box) Exists(name string) bool {
	return b.names.isDir(name) || b.box.Has(Clean(name))
}

// IsDir implements Source
func (b *Box) IsDir(name string) bool {
	return b.names.isDir(name)
}

// List implements Source
func (b *Box) List(dir string) ([]string, error) {
	if !b.names.isDir(dir) {
		return nil, notFound(dir)
	}
	return b.names.list(dir), nil
}

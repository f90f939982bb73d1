// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package source

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// NewDir creates a Source reading from the directory root
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Dir is a Source backed by the operating system's file system
type Dir struct {
	root string
}

// Root returns the directory names are resolved against
func (d *Dir) Root() string {
	return d.root
}

func (d *Dir) path(name string) string {
	return filepath.Join(d.root, filepath.FromSlash(Clean(name)))
}

// ReadFile implements Source
func (d *Dir) ReadFile(name string) ([]byte, error) {
	data, err := os.ReadFile(d.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(name)
	}
	return data, err
}

// Exists implements Source
func (d *Dir) Exists(name string) bool {
	_, err := os.Stat(d.path(name))
	return err == nil
}

// IsDir implements Source
func (d *Dir) IsDir(name string) bool {
	info, err := os.Stat(d.path(name))
	return err == nil && info.IsDir()
}

// List implements Source
func (d *Dir) List(dir string) ([]string, error) {
	if !d.IsDir(dir) {
		return nil, notFound(dir)
	}
	entries, err := os.ReadDir(d.path(dir))
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

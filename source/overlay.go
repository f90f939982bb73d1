// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package source

import (
	"errors"
	"sort"
)

// NewOverlay stacks sources, earlier ones shadow later ones
func NewOverlay(sources ...Source) *Overlay {
	return &Overlay{sources: sources}
}

// Overlay is a Source resolving every name against a list of sources
// in order. The first source that has a name wins.
type Overlay struct {
	sources []Source
}

// ReadFile implements Source
func (o *Overlay) ReadFile(name string) ([]byte, error) {
	for _, s := range o.sources {
		if !s.Exists(name) || s.IsDir(name) {
			continue
		}
		return s.ReadFile(name)
	}
	return nil, notFound(name)
}

// Exists implements Source
func (o *Overlay) Exists(name string) bool {
	for _, s := range o.sources {
		if s.Exists(name) {
			return true
		}
	}
	return false
}

// IsDir implements Source
func (o *Overlay) IsDir(name string) bool {
	for _, s := range o.sources {
		if s.IsDir(name) {
			return true
		}
	}
	return false
}

// List merges the listings of every source holding dir
func (o *Overlay) List(dir string) ([]string, error) {
	seen := make(map[string]bool)
	var (
		files []string
		found bool
	)
	for _, s := range o.sources {
		list, err := s.List(dir)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		found = true
		for _, f := range list {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	if !found {
		return nil, notFound(dir)
	}
	sort.Strings(files)
	return files, nil
}

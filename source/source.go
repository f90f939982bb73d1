// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package source resolves asset names against an asset root. Names are
// slash separated and relative to the root of a Source.
package source

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
)

// ErrNotFound is returned when a name does not exist in a Source
var ErrNotFound = errors.New("asset not found")

// Source is a read only tree of asset files
type Source interface {
	// ReadFile returns the whole contents of a file.
	ReadFile(name string) ([]byte, error)

	// Exists reports whether name is a file or a directory.
	Exists(name string) bool

	// IsDir reports whether name is a directory.
	IsDir(name string) bool

	// List returns the names of the regular files directly inside dir,
	// sorted. The names are base names, not paths.
	List(dir string) ([]string, error)
}

// Clean normalizes an asset name: slash separated, no leading slash,
// no dot elements. The root is "".
func Clean(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	return name
}

func notFound(name string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, name)
}

// names is a flat file listing shared by sources that only know full
// file paths.
type names []string

func newNames(all []string) names {
	n := make(names, 0, len(all))
	for _, name := range all {
		n = append(n, Clean(name))
	}
	sort.Strings(n)
	return n
}

func (n names) isDir(dir string) bool {
	dir = Clean(dir)
	if dir == "" {
		return true
	}
	prefix := dir + "/"
	i := sort.SearchStrings(n, prefix)
	return i < len(n) && strings.HasPrefix(n[i], prefix)
}

func (n names) list(dir string) []string {
	dir = Clean(dir)
	var files []string
	for _, name := range n {
		if path.Dir(name) == dir || (dir == "" && !strings.Contains(name, "/")) {
			files = append(files, path.Base(name))
		}
	}
	sort.Strings(files)
	return files
}

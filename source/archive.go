// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package source

import (
	"errors"

	"github.com/devblok/korustream/utility/kar"
)

// OpenArchive memory maps the kar archive at path
func OpenArchive(path string) (*Archive, error) {
	ar, err := kar.OpenFile(path)
	if err != nil {
		return nil, err
	}
	return &Archive{
		archive: ar.Archive,
		closer:  ar.Close,
		names:   newNames(ar.Names()),
	}, nil
}

// NewArchive wraps an already opened kar archive
func NewArchive(ar *kar.Archive) *Archive {
	return &Archive{
		archive: ar,
		names:   newNames(ar.Names()),
	}
}

// Archive is a Source backed by a kar archive. Files are decompressed
// on every read.
type Archive struct {
	archive *kar.Archive
	closer  func() error
	names   names
}

// ReadFile implements Source
func (a *Archive) ReadFile(name string) ([]byte, error) {
	data, err := a.archive.ReadAll(Clean(name))
	if errors.Is(err, kar.ErrNotFound) {
		return nil, notFound(name)
	}
	return data, err
}

// Exists implements Source
func (a *Archive) Exists(name string) bool {
	return a.archive.Has(Clean(name)) || a.names.isDir(name)
}

// IsDir implements Source
func (a *Archive) IsDir(name string) bool {
	return a.names.isDir(name)
}

// List implements Source
func (a *Archive) List(dir string) ([]string, error) {
	if !a.names.isDir(dir) {
		return nil, notFound(dir)
	}
	return a.names.list(dir), nil
}

// Close releases the mapping of an archive opened with OpenArchive
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer()
}

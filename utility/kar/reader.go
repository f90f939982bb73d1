// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/pierrec/lz4"
)

// Open opens the kar archived from r. It will also check
// if the file is actually a kar archive, will return an error
// when file incorrect.
func Open(r io.ReaderAt) (*Archive, error) {
	magic := make([]byte, MagicLength)
	if num, err := r.ReadAt(magic, 0); num < MagicLength {
		if err != nil && err != io.EOF {
			return nil, err
		}
		return nil, ErrFileFormat
	} else if !bytes.Equal(magic, Magic[:]) {
		return nil, ErrFileFormat
	}

	headerSizeBytes := make([]byte, HeaderSizeNumberLength)
	if num, _ := r.ReadAt(headerSizeBytes, MagicLength); num < HeaderSizeNumberLength {
		return nil, ErrFileFormat
	}

	headerSize, err := binaryToint64(headerSizeBytes)
	if err != nil || headerSize <= 0 {
		return nil, ErrFileFormat
	}

	headerBytes := make([]byte, headerSize)
	if num, _ := r.ReadAt(headerBytes, MagicLength+HeaderSizeNumberLength); int64(num) < headerSize {
		return nil, ErrFileFormat
	}

	var header Header
	if err := gobDecode(&header, headerBytes); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileFormat, err.Error())
	}

	ar := Archive{
		reader:    r,
		header:    header,
		dataStart: MagicLength + HeaderSizeNumberLength + headerSize,
		index:     make(map[string]IndexEntry, len(header.Index)),
	}
	for _, e := range header.Index {
		if e.Offset < 0 || e.CompressedSize < 0 {
			return nil, ErrFileFormat
		}
		ar.index[e.Name] = e
	}

	return &ar, nil
}

// Archive provides concurrent io for a kar file, and can provide
// an io.Reader for each file separately to perform actions on.
type Archive struct {
	reader    io.ReaderAt
	header    Header
	dataStart int64
	index     map[string]IndexEntry
}

// Header returns the archive header, index included
func (a *Archive) Header() Header {
	return a.header
}

// Names returns the names of all files, sorted
func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.index))
	for name := range a.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether the archive contains name
func (a *Archive) Has(name string) bool {
	_, ok := a.index[name]
	return ok
}

// Stat returns the index entry of name
func (a *Archive) Stat(name string) (IndexEntry, error) {
	e, ok := a.index[name]
	if !ok {
		return IndexEntry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e, nil
}

// ReadAll returns the entire contents of a file with a given name
func (a *Archive) ReadAll(name string) ([]byte, error) {
	r, err := a.Open(name)
	if err != nil {
		return nil, err
	}

	data := make([]byte, r.entry.Size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrFileFormat, name, err.Error())
	}
	return data, nil
}

// Open returns a Reader for a file in the Archive
func (a *Archive) Open(name string) (*Reader, error) {
	e, err := a.Stat(name)
	if err != nil {
		return nil, err
	}
	section := io.NewSectionReader(a.reader, a.dataStart+e.Offset, e.CompressedSize)
	return &Reader{
		entry:        e,
		decompressor: lz4.NewReader(section),
	}, nil
}

// Reader is a reader for a single file in an Archive.
// Abstracts away the location that needs to be known.
type Reader struct {
	entry        IndexEntry
	decompressor io.Reader
}

// Size returns the decompressed size of the file
func (r *Reader) Size() int64 {
	return r.entry.Size
}

// Read reads already decompressed data
func (r *Reader) Read(p []byte) (n int, err error) {
	return r.decompressor.Read(p)
}

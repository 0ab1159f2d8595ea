// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"io/fs"
	"sort"
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// MaxEntrySize bounds the bytes read from one nested entry.
const MaxEntrySize int64 = 256 << 20

// Aggregate is the host aggregate archive: a zip whose entries are plugin
// bundles (themselves zips) and shared libraries.
type Aggregate struct {
	name   string
	closer io.Closer

	mu      sync.RWMutex
	entries map[string]*zip.File
	closed  bool
}

// OpenAggregate opens the aggregate archive at path.
func OpenAggregate(path string) (*Aggregate, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, oops.In("archive").With("aggregate", path).Hint("failed to open aggregate archive").Wrap(err)
	}
	return newAggregate(path, &rc.Reader, rc), nil
}

// NewAggregate reads an aggregate archive of size bytes from r.
func NewAggregate(name string, r io.ReaderAt, size int64) (*Aggregate, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, oops.In("archive").With("aggregate", name).Hint("failed to read aggregate archive").Wrap(err)
	}
	return newAggregate(name, zr, nil), nil
}

func newAggregate(name string, zr *zip.Reader, closer io.Closer) *Aggregate {
	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[f.Name] = f
	}
	return &Aggregate{name: name, closer: closer, entries: entries}
}

// Name is the path or label the aggregate was opened from.
func (a *Aggregate) Name() string { return a.name }

// Resolve finds the entry a nested location refers to.
func (a *Aggregate) Resolve(loc Location) (*Entry, error) {
	if !loc.IsNested() {
		return nil, oops.Code("INVALID_LOCATION").In("archive").
			With("location", loc.String()).
			Wrapf(ErrInvalidLocation, "not a nested location")
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil, oops.In("archive").With("aggregate", a.name).Wrap(ErrAggregateClosed)
	}

	f, ok := a.entries[loc.Path()]
	if !ok || f.FileInfo().IsDir() {
		return nil, oops.Code("BUNDLE_ENTRY_NOT_FOUND").In("archive").
			With("aggregate", a.name).
			With("entry", loc.Path()).
			Wrapf(ErrBundleEntryNotFound, "resolve %s", loc)
	}
	return &Entry{Path: f.Name, Size: int64(f.UncompressedSize64), loc: loc, file: f}, nil
}

// Entries returns the names of file entries matching pattern, sorted.
// Patterns use glob syntax with '/' as separator, so "plugins/*.zip"
// matches direct children of plugins only.
func (a *Aggregate) Entries(pattern string) ([]string, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, oops.In("archive").With("aggregate", a.name).With("pattern", pattern).Wrap(err)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil, oops.In("archive").With("aggregate", a.name).Wrap(ErrAggregateClosed)
	}

	var names []string
	for name, f := range a.entries {
		if !f.FileInfo().IsDir() && g.Match(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Close releases the aggregate's file handle. Sources already produced from
// its entries stay usable.
func (a *Aggregate) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// Entry is one resolved entry of the aggregate archive.
type Entry struct {
	Path string
	Size int64

	loc  Location
	file *zip.File
}

// Location returns the location the entry was resolved from.
func (e *Entry) Location() Location { return e.loc }

// Open returns the entry's raw byte stream.
func (e *Entry) Open() (io.ReadCloser, error) {
	rc, err := e.file.Open()
	if err != nil {
		return nil, oops.In("archive").With("entry", e.Path).Wrap(err)
	}
	return rc, nil
}

// Source reads the entry into memory and returns it as a search-path
// source rooted at the location's root directory.
func (e *Entry) Source() (Source, error) {
	if e.file.UncompressedSize64 > uint64(MaxEntrySize) {
		return nil, e.tooLarge()
	}

	rc, err := e.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxEntrySize+1))
	if err != nil {
		return nil, oops.In("archive").With("entry", e.Path).Hint("failed to read entry").Wrap(err)
	}
	if int64(len(data)) > MaxEntrySize {
		return nil, e.tooLarge()
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, oops.In("archive").With("entry", e.Path).Hint("entry is not a zip archive").Wrap(err)
	}

	var fsys fs.FS = zr
	if root := e.loc.Root(); root != "" {
		if fsys, err = subdir(zr, root); err != nil {
			return nil, oops.Code("BUNDLE_ENTRY_NOT_FOUND").In("archive").
				With("entry", e.Path).
				With("root", root).
				Wrapf(ErrBundleEntryNotFound, "resolve %s", e.loc)
		}
	}
	return NewSource(fsys, KindNested, e.loc, nil), nil
}

func (e *Entry) tooLarge() error {
	return oops.Code("ENTRY_TOO_LARGE").In("archive").
		With("entry", e.Path).
		With("size", e.file.UncompressedSize64).
		With("limit", MaxEntrySize).
		Wrapf(ErrEntryTooLarge, "resolve %s", e.loc)
}

func subdir(fsys fs.FS, root string) (fs.FS, error) {
	info, err := fs.Stat(fsys, root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fs.ErrNotExist
	}
	return fs.Sub(fsys, root)
}

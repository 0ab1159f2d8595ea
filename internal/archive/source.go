// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package archive

import (
	"io"
	"io/fs"
)

// Source is one entry of a realm search path: a read-only file system plus
// where it came from.
type Source interface {
	fs.FS
	// Kind classifies the entry.
	Kind() Kind
	// Location is where the entry was resolved from.
	Location() Location
	// Close releases any file handle held by the source.
	Close() error
}

type fsSource struct {
	fs.FS
	kind   Kind
	loc    Location
	closer io.Closer
}

// NewSource wraps fsys as a search-path source. closer may be nil.
func NewSource(fsys fs.FS, kind Kind, loc Location, closer io.Closer) Source {
	return &fsSource{FS: fsys, kind: kind, loc: loc, closer: closer}
}

func (s *fsSource) Kind() Kind         { return s.kind }
func (s *fsSource) Location() Location { return s.loc }

func (s *fsSource) Close() error {
	if s.closer == nil {
		return nil
	}
	c := s.closer
	s.closer = nil
	return c.Close()
}

// WithKind returns a view of src reporting kind instead of its own.
func WithKind(src Source, kind Kind) Source {
	if src.Kind() == kind {
		return src
	}
	return &kindView{Source: src, kind: kind}
}

type kindView struct {
	Source
	kind Kind
}

func (v *kindView) Kind() Kind { return v.kind }

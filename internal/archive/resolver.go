// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/oops"
)

// Resolver turns locations into search-path sources.
type Resolver struct {
	aggregate *Aggregate
}

// NewResolver creates a resolver. aggregate may be nil when the host has no
// aggregate archive; nested locations then fail with ErrNoAggregate.
func NewResolver(aggregate *Aggregate) *Resolver {
	return &Resolver{aggregate: aggregate}
}

// Aggregate returns the aggregate archive, or nil.
func (r *Resolver) Aggregate() *Aggregate { return r.aggregate }

// Resolve opens loc. Nested locations always report KindNested. File
// locations report kind, which callers set to KindBundle for a realm's own
// bundle and KindFile for dependencies.
func (r *Resolver) Resolve(loc Location, kind Kind) (Source, error) {
	if loc.IsZero() {
		return nil, oops.Code("INVALID_LOCATION").In("archive").Wrapf(ErrInvalidLocation, "location is empty")
	}
	if loc.IsNested() {
		return r.resolveNested(loc)
	}
	return resolveFile(loc, kind)
}

func (r *Resolver) resolveNested(loc Location) (Source, error) {
	if r.aggregate == nil {
		return nil, oops.Code("BUNDLE_ENTRY_NOT_FOUND").In("archive").
			With("location", loc.String()).
			Wrap(ErrNoAggregate)
	}
	entry, err := r.aggregate.Resolve(loc)
	if err != nil {
		return nil, err
	}
	return entry.Source()
}

func resolveFile(loc Location, kind Kind) (Source, error) {
	p := loc.Path()
	info, err := os.Stat(p)
	if err != nil {
		return nil, oops.In("archive").With("location", loc.String()).Hint("bundle path is not accessible").Wrap(err)
	}

	if info.IsDir() {
		return NewSource(os.DirFS(p), kind, loc, nil), nil
	}

	if !strings.EqualFold(filepath.Ext(p), ".zip") {
		return nil, oops.Code("INVALID_LOCATION").In("archive").
			With("location", loc.String()).
			Wrapf(ErrInvalidLocation, "file bundle must be a directory or a .zip archive")
	}

	rc, err := zip.OpenReader(p)
	if err != nil {
		return nil, oops.In("archive").With("location", loc.String()).Hint("failed to open bundle archive").Wrap(err)
	}
	return NewSource(&rc.Reader, kind, loc, rc), nil
}

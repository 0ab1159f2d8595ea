// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package plugin

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/oops"

	"github.com/tollgate/tollgate/internal/archive"
)

// Bundle is a discovered plugin bundle.
type Bundle struct {
	Location     archive.Location
	Dependencies []archive.Location
	Manifest     *Manifest
}

// Name is the manifest name, used as the realm name.
func (b Bundle) Name() string {
	if b.Manifest != nil {
		return b.Manifest.Name
	}
	return b.Location.String()
}

// Source discovers plugin bundles. Discovery order is load order.
type Source interface {
	Discover(ctx context.Context) ([]Bundle, error)
}

// Bundles is a fixed list of bundles.
type Bundles []Bundle

// Discover returns a copy of b.
func (b Bundles) Discover(context.Context) ([]Bundle, error) {
	return slices.Clone(b), nil
}

// Sources discovers from each source in turn.
type Sources []Source

// Discover concatenates the bundles of every source.
func (s Sources) Discover(ctx context.Context) ([]Bundle, error) {
	var out []Bundle
	for _, src := range s {
		bundles, err := src.Discover(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, bundles...)
	}
	return out, nil
}

// ReadBundle reads the manifest of the bundle at loc. Relative file
// dependencies resolve against baseDir.
func ReadBundle(resolver *archive.Resolver, loc archive.Location, baseDir string) (Bundle, error) {
	errb := oops.In("plugin").With("location", loc.String())

	src, err := resolver.Resolve(loc, archive.KindBundle)
	if err != nil {
		return Bundle{}, errb.Wrap(err)
	}
	defer func() { _ = src.Close() }()

	data, err := fs.ReadFile(src, ManifestFile)
	if err != nil {
		return Bundle{}, errb.Hint("bundle has no " + ManifestFile).Wrap(err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return Bundle{}, errb.Wrap(err)
	}
	deps, err := m.DependencyLocations(baseDir)
	if err != nil {
		return Bundle{}, errb.Wrap(err)
	}
	return Bundle{Location: loc, Dependencies: deps, Manifest: m}, nil
}

// DirectorySource discovers bundles in a plugins directory: every
// subdirectory and every .zip file is a bundle. Bundles without a valid
// manifest are logged and skipped.
type DirectorySource struct {
	dir      string
	resolver *archive.Resolver
	logger   *slog.Logger
}

// NewDirectorySource creates a source scanning dir.
func NewDirectorySource(dir string, logger *slog.Logger) *DirectorySource {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectorySource{dir: dir, resolver: archive.NewResolver(nil), logger: logger}
}

// Discover scans the directory. A missing directory yields no bundles.
func (s *DirectorySource) Discover(ctx context.Context) ([]Bundle, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, oops.Code("DISCOVERY_FAILED").In("plugin").With("dir", s.dir).
			Wrap(fmt.Errorf("%w: %w", ErrDiscovery, err))
	}

	var bundles []Bundle
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !entry.IsDir() && !strings.EqualFold(filepath.Ext(name), ".zip") {
			continue
		}

		loc := archive.File(filepath.Join(s.dir, name))
		b, err := ReadBundle(s.resolver, loc, s.dir)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping plugin bundle",
				"location", loc.String(),
				"error", err)
			continue
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}

// DefaultAggregatePattern selects the bundles of an aggregate archive.
const DefaultAggregatePattern = "plugins/*.zip"

// AggregateSource discovers bundles stored as entries of the host
// aggregate archive.
type AggregateSource struct {
	resolver *archive.Resolver
	pattern  string
	logger   *slog.Logger
}

// NewAggregateSource creates a source over the entries of agg matching
// pattern, or DefaultAggregatePattern when pattern is empty.
func NewAggregateSource(agg *archive.Aggregate, pattern string, logger *slog.Logger) *AggregateSource {
	if pattern == "" {
		pattern = DefaultAggregatePattern
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AggregateSource{resolver: archive.NewResolver(agg), pattern: pattern, logger: logger}
}

// Discover lists matching entries in name order.
func (s *AggregateSource) Discover(ctx context.Context) ([]Bundle, error) {
	agg := s.resolver.Aggregate()
	if agg == nil {
		return nil, oops.Code("DISCOVERY_FAILED").In("plugin").Wrap(fmt.Errorf("%w: %w", ErrDiscovery, archive.ErrNoAggregate))
	}
	names, err := agg.Entries(s.pattern)
	if err != nil {
		return nil, oops.Code("DISCOVERY_FAILED").In("plugin").With("aggregate", agg.Name()).
			Wrap(fmt.Errorf("%w: %w", ErrDiscovery, err))
	}

	var bundles []Bundle
	for _, name := range names {
		loc := archive.Nested(name)
		b, err := ReadBundle(s.resolver, loc, "")
		if err != nil {
			s.logger.WarnContext(ctx, "skipping plugin bundle",
				"location", loc.String(),
				"error", err)
			continue
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}

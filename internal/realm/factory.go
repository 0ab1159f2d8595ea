// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package realm

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/tollgate/tollgate/internal/archive"
)

// Sentinel errors for programmatic error checking.
var (
	// ErrSymbolDenied is returned when the policy hides a module name.
	ErrSymbolDenied = errors.New("symbol is not visible")
	// ErrSymbolNotFound is returned when no source provides a module name.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrRealmClosed is returned when entering a closed realm.
	ErrRealmClosed = errors.New("realm is closed")
)

// Factory builds realms that share one parent namespace.
type Factory struct {
	resolver  *archive.Resolver
	namespace *Namespace
	policy    *Policy
	states    *StateFactory
	logger    *slog.Logger
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithPolicy overrides the default visibility policy.
func WithPolicy(p *Policy) FactoryOption {
	return func(f *Factory) { f.policy = p }
}

// WithStateFactory overrides how realm VMs are created.
func WithStateFactory(sf *StateFactory) FactoryOption {
	return func(f *Factory) { f.states = sf }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) FactoryOption {
	return func(f *Factory) { f.logger = l }
}

// NewFactory creates a realm factory. resolver may be nil when realms are
// only assembled from ready sources.
func NewFactory(resolver *archive.Resolver, namespace *Namespace, opts ...FactoryOption) *Factory {
	f := &Factory{
		resolver:  resolver,
		namespace: namespace,
		states:    NewStateFactory(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.policy == nil {
		f.policy = mustDefaultPolicy()
	}
	if f.namespace == nil {
		f.namespace = NewNamespace()
	}
	return f
}

// Namespace returns the parent namespace of every realm the factory builds.
func (f *Factory) Namespace() *Namespace { return f.namespace }

// Build creates a realm for the bundle at location. The search path is the
// bundle itself followed by deps in declaration order. Every location is
// resolved now, so a missing nested entry fails here rather than on first
// use. No module is loaded.
func (f *Factory) Build(ctx context.Context, name string, location archive.Location, deps []archive.Location) (*Realm, error) {
	if f.resolver == nil {
		return nil, oops.In("realm").With("realm", name).Errorf("factory has no archive resolver")
	}

	sources := make([]archive.Source, 0, 1+len(deps))
	closeAll := func() {
		for _, src := range sources {
			_ = src.Close()
		}
	}

	own, err := f.resolver.Resolve(location, archive.KindBundle)
	if err != nil {
		return nil, oops.In("realm").With("realm", name).With("location", location.String()).Wrap(err)
	}
	sources = append(sources, own)

	for _, dep := range deps {
		if err := ctx.Err(); err != nil {
			closeAll()
			return nil, oops.In("realm").With("realm", name).Wrap(err)
		}
		src, err := f.resolver.Resolve(dep, archive.KindFile)
		if err != nil {
			closeAll()
			return nil, oops.In("realm").
				With("realm", name).
				With("location", location.String()).
				With("dependency", dep.String()).
				Wrap(err)
		}
		sources = append(sources, src)
	}

	r := f.Assemble(name, sources...)
	f.logger.DebugContext(ctx, "realm built",
		"realm", name,
		"realm_id", r.id,
		"location", location.String(),
		"search_path", len(sources))
	return r, nil
}

// Assemble creates a realm over ready sources. The first source, if any, is
// the realm's own bundle.
func (f *Factory) Assemble(name string, sources ...archive.Source) *Realm {
	var loc archive.Location
	if len(sources) > 0 {
		loc = sources[0].Location()
	}
	return &Realm{
		id:       ulid.Make().String(),
		name:     name,
		location: loc,
		sources:  append([]archive.Source(nil), sources...),
		policy:   f.policy,
		parent:   f.namespace,
		states:   f.states,
		logger:   f.logger,
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"

	"github.com/tollgate/tollgate/internal/archive"
	"github.com/tollgate/tollgate/internal/plugin/proxy"
	"github.com/tollgate/tollgate/internal/realm"
	"github.com/tollgate/tollgate/pkg/contract"
	"github.com/tollgate/tollgate/pkg/errutil"
)

// DefaultLoadConcurrency bounds how many bundles load at once.
const DefaultLoadConcurrency = 4

// Record is one loaded plugin.
type Record struct {
	ID       string
	Realm    *realm.Realm
	Manifest *Manifest
	Location archive.Location
	// Proxy is what host callers get.
	Proxy contract.Plugin
	// Instance is the realm-resident object. It is never handed to host
	// callers.
	Instance contract.Plugin
}

// Failure is a bundle that did not load.
type Failure struct {
	Bundle Bundle
	Reason string
	Err    error
}

// Loaded is the result of loading every discovered bundle. It is immutable.
type Loaded struct {
	plugins  map[string]contract.Plugin
	records  map[string]*Record
	order    []string
	failures []Failure
}

// Plugins returns the proxied plugins by id. Every call returns the same
// map; callers must not modify it.
func (l *Loaded) Plugins() map[string]contract.Plugin { return l.plugins }

// Record returns the record of plugin id.
func (l *Loaded) Record(id string) (*Record, bool) {
	rec, ok := l.records[id]
	return rec, ok
}

// IDs returns the plugin ids in discovery order.
func (l *Loaded) IDs() []string { return append([]string(nil), l.order...) }

// Failures returns the bundles that failed to load, in discovery order.
func (l *Loaded) Failures() []Failure { return append([]Failure(nil), l.failures...) }

// Registry loads plugins once and caches them.
//
// Each discovered bundle gets its own realm. The runtime runs the bundle
// inside it and must yield exactly one contract implementation; bundles
// that do not are recorded as failures and skipped. Two bundles reporting
// the same id fail the whole load.
type Registry struct {
	source      Source
	factory     *realm.Factory
	runtime     Runtime
	logger      *slog.Logger
	concurrency int

	once   sync.Once
	loaded *Loaded
	err    error

	mu     sync.Mutex
	closed bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLoadConcurrency bounds concurrent bundle loading. Values below one
// select DefaultLoadConcurrency.
func WithLoadConcurrency(n int) RegistryOption {
	return func(r *Registry) { r.concurrency = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates a registry loading bundles from source.
func NewRegistry(source Source, factory *realm.Factory, runtime Runtime, opts ...RegistryOption) *Registry {
	r := &Registry{
		source:  source,
		factory: factory,
		runtime: runtime,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.concurrency < 1 {
		r.concurrency = DefaultLoadConcurrency
	}
	return r
}

// Load loads every bundle on the first call. Concurrent callers wait for
// it; later callers get the identical result, including a fatal error.
// The load is detached from the first caller's cancellation so its result
// holds for every caller.
func (r *Registry) Load(ctx context.Context) (*Loaded, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, oops.In("plugin").Wrap(ErrRegistryClosed)
	}

	r.once.Do(func() {
		r.loaded, r.err = r.load(context.WithoutCancel(ctx))
	})
	return r.loaded, r.err
}

// Plugins returns the loaded plugins keyed by id.
func (r *Registry) Plugins(ctx context.Context) (map[string]contract.Plugin, error) {
	loaded, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	return loaded.Plugins(), nil
}

type result struct {
	record *Record
	reason string
	err    error
}

func (r *Registry) load(ctx context.Context) (*Loaded, error) {
	bundles, err := r.source.Discover(ctx)
	if err != nil {
		return nil, oops.Code("DISCOVERY_FAILED").In("plugin").Wrap(err)
	}

	results := make([]result, len(bundles))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, b := range bundles {
		g.Go(func() error {
			results[i] = r.instantiate(ctx, b)
			return nil
		})
	}
	_ = g.Wait()

	loaded := &Loaded{
		plugins: make(map[string]contract.Plugin, len(bundles)),
		records: make(map[string]*Record, len(bundles)),
	}
	for i, res := range results {
		b := bundles[i]
		if res.err != nil {
			LoadFailures.WithLabelValues(res.reason).Inc()
			errutil.Log(ctx, r.logger, slog.LevelWarn, "plugin bundle failed to load", res.err,
				"bundle", b.Name(),
				"location", b.Location.String(),
				"reason", res.reason)
			loaded.failures = append(loaded.failures, Failure{Bundle: b, Reason: res.reason, Err: res.err})
			continue
		}

		rec := res.record
		if prev, dup := loaded.records[rec.ID]; dup {
			LoadFailures.WithLabelValues(ReasonConflict).Inc()
			closeResults(results)
			return nil, oops.Code("PLUGIN_ID_CONFLICT").In("plugin").
				With("plugin", rec.ID).
				With("location", rec.Location.String()).
				With("first_location", prev.Location.String()).
				Wrapf(ErrPluginIDConflict, "plugin id %q", rec.ID)
		}
		loaded.records[rec.ID] = rec
		loaded.plugins[rec.ID] = rec.Proxy
		loaded.order = append(loaded.order, rec.ID)

		r.logger.InfoContext(ctx, "plugin loaded",
			"plugin", rec.ID,
			"bundle", b.Name(),
			"version", rec.Manifest.Version,
			"realm_id", rec.Realm.ID(),
			"location", rec.Location.String())
	}

	PluginsLoaded.Set(float64(len(loaded.plugins)))
	return loaded, nil
}

// instantiate builds the realm of b and obtains its single implementation.
func (r *Registry) instantiate(ctx context.Context, b Bundle) result {
	fail := func(reason string, err error) result {
		return result{reason: reason, err: oops.Code("PLUGIN_LOAD_ERROR").In("plugin").
			With("bundle", b.Name()).
			With("location", b.Location.String()).
			Wrap(fmt.Errorf("%w: %w", ErrPluginLoad, err))}
	}

	if b.Manifest == nil {
		return fail(ReasonManifest, fmt.Errorf("bundle has no manifest"))
	}

	rlm, err := r.factory.Build(ctx, b.Name(), b.Location, b.Dependencies)
	if err != nil {
		return fail(ReasonRealm, err)
	}

	impls, err := r.runtime.Instantiate(ctx, rlm, b.Manifest)
	if err != nil {
		_ = rlm.Close()
		return fail(ReasonEntry, err)
	}
	if len(impls) != 1 {
		_ = rlm.Close()
		return fail(ReasonRegistration, fmt.Errorf("bundle registered %d contract implementations, want exactly 1", len(impls)))
	}

	instance := impls[0]
	proxied := proxy.Plugin(instance, rlm)
	id, err := proxied.ID(ctx)
	if err != nil {
		_ = rlm.Close()
		return fail(ReasonID, err)
	}
	if id == "" {
		_ = rlm.Close()
		return fail(ReasonID, fmt.Errorf("plugin reported an empty id"))
	}

	return result{record: &Record{
		ID:       id,
		Realm:    rlm,
		Manifest: b.Manifest,
		Location: b.Location,
		Proxy:    proxied,
		Instance: instance,
	}}
}

func closeResults(results []result) {
	for _, res := range results {
		if res.record != nil {
			_ = res.record.Realm.Close()
		}
	}
}

// Close releases every realm. A closed registry cannot load again.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	// Wait for an in-flight load, and keep a later Load from starting one.
	r.once.Do(func() { r.err = oops.In("plugin").Wrap(ErrRegistryClosed) })

	if r.loaded == nil {
		return nil
	}
	var errs []error
	for _, id := range r.loaded.order {
		if err := r.loaded.records[id].Realm.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return oops.In("plugin").Join(errs...)
	}
	return nil
}

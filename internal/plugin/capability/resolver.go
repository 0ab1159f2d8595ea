// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package capability

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/oops"

	"github.com/tollgate/tollgate/internal/plugin/proxy"
	"github.com/tollgate/tollgate/internal/realm"
	"github.com/tollgate/tollgate/pkg/contract"
)

// Resolver looks up optional capabilities of plugins by name.
//
// A capability resolves only when its name is part of the shared contract
// surface, the plugin is granted it, and the plugin declares it. The
// returned handle is proxied. Results, including absent ones, are cached
// per plugin and name; errors are not.
type Resolver struct {
	enforcer *Enforcer
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu     sync.Mutex
	done   bool
	handle any
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// AllCapabilities grants every capability of the shared contract surface.
const AllCapabilities = "tollgate.capability.**"

// NewResolver creates a resolver that checks grants with enforcer. A nil
// enforcer grants AllCapabilities to every plugin.
func NewResolver(enforcer *Enforcer, opts ...ResolverOption) *Resolver {
	if enforcer == nil {
		enforcer = NewEnforcer()
		//nolint:errcheck // constant pattern
		enforcer.SetDefaultGrants([]string{AllCapabilities})
	}
	r := &Resolver{
		enforcer: enforcer,
		logger:   slog.Default(),
		entries:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func cacheKey(pluginID, name string) string {
	return pluginID + "\x00" + name
}

// Resolve returns the proxied handle of capability name of p. ok is false
// when the capability is not supported, which is not an error.
func (r *Resolver) Resolve(ctx context.Context, p contract.Plugin, name string) (handle any, ok bool, err error) {
	if _, known := contract.LookupCapability(name); !known {
		return nil, false, nil
	}

	pluginID, err := p.ID(ctx)
	if err != nil {
		return nil, false, oops.In("capability").With("capability", name).Wrap(err)
	}

	if !r.enforcer.Check(pluginID, name) {
		r.logger.DebugContext(ctx, "capability not granted",
			"plugin", pluginID,
			"capability", name)
		return nil, false, nil
	}

	e := r.entry(cacheKey(pluginID, name))
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return e.handle, e.handle != nil, nil
	}

	handle, err = r.lookup(ctx, p, pluginID, name)
	if err != nil {
		return nil, false, err
	}
	e.handle, e.done = handle, true
	return handle, handle != nil, nil
}

func (r *Resolver) entry(key string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry{}
		r.entries[key] = e
	}
	return e
}

func (r *Resolver) lookup(ctx context.Context, p contract.Plugin, pluginID, name string) (any, error) {
	errb := oops.In("capability").With("plugin", pluginID).With("capability", name)

	declared, err := p.Capabilities(ctx)
	if err != nil {
		return nil, errb.Wrap(err)
	}
	if !slices.Contains(declared, name) {
		return nil, nil
	}

	handle, err := p.Capability(ctx, name)
	if err != nil {
		return nil, errb.Wrap(err)
	}
	if handle == nil {
		return nil, nil
	}

	home, ok := p.Realm().(*realm.Realm)
	if !ok {
		return nil, errb.Errorf("plugin is not bound to a realm")
	}
	proxied, err := proxy.Capability(name, handle, home, pluginID)
	if err != nil {
		return nil, err
	}

	r.logger.DebugContext(ctx, "capability resolved",
		"plugin", pluginID,
		"capability", name,
		"realm", home.Name())
	return proxied, nil
}

// Forget drops the cached results of a plugin.
func (r *Resolver) Forget(pluginID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range contract.CapabilityNames() {
		delete(r.entries, cacheKey(pluginID, name))
	}
}

// As resolves capability name of p as T.
//
//	charge, ok, err := capability.As[contract.ChargeCapability](ctx, resolver, p, contract.CapabilityCharge)
func As[T any](ctx context.Context, r *Resolver, p contract.Plugin, name string) (T, bool, error) {
	var zero T
	handle, ok, err := r.Resolve(ctx, p, name)
	if err != nil || !ok {
		return zero, false, err
	}
	typed, ok := handle.(T)
	if !ok {
		return zero, false, oops.Code("CAPABILITY_MISMATCH").In("capability").
			With("capability", name).
			Errorf("capability %s has unexpected handle type %T", name, handle)
	}
	return typed, true, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package plugin

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/samber/oops"

	"github.com/tollgate/tollgate/internal/plugin/capability"
	"github.com/tollgate/tollgate/pkg/contract"
)

// Manager is the host-facing entry point: it loads plugins through the
// registry and resolves their capabilities.
type Manager struct {
	registry *Registry
	resolver *capability.Resolver
	ready    atomic.Bool
}

// NewManager creates a plugin manager. A nil resolver grants every
// capability plugins declare.
func NewManager(registry *Registry, resolver *capability.Resolver) *Manager {
	if resolver == nil {
		resolver = capability.NewResolver(nil)
	}
	return &Manager{registry: registry, resolver: resolver}
}

// LoadPlugins loads every plugin once and returns them keyed by id.
func (m *Manager) LoadPlugins(ctx context.Context) (map[string]contract.Plugin, error) {
	plugins, err := m.registry.Plugins(ctx)
	if err != nil {
		return nil, err
	}
	m.ready.Store(true)
	return plugins, nil
}

// Loaded returns the full load result, loading first if needed.
func (m *Manager) Loaded(ctx context.Context) (*Loaded, error) {
	return m.registry.Load(ctx)
}

// Plugin returns the plugin with id.
func (m *Manager) Plugin(ctx context.Context, id string) (contract.Plugin, error) {
	plugins, err := m.LoadPlugins(ctx)
	if err != nil {
		return nil, err
	}
	p, ok := plugins[id]
	if !ok {
		return nil, oops.Code("PLUGIN_NOT_FOUND").In("plugin").With("plugin", id).Errorf("no plugin with id %q", id)
	}
	return p, nil
}

// ListPlugins returns the ids of all loaded plugins, sorted.
func (m *Manager) ListPlugins(ctx context.Context) ([]string, error) {
	plugins, err := m.LoadPlugins(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(plugins))
	for id := range plugins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ResolveCapability returns the proxied capability name of p. ok is false
// when p does not support it.
func (m *Manager) ResolveCapability(ctx context.Context, p contract.Plugin, name string) (handle any, ok bool, err error) {
	return m.resolver.Resolve(ctx, p, name)
}

// Ready reports whether plugins loaded successfully.
func (m *Manager) Ready() bool { return m.ready.Load() }

// Close shuts down the registry and all plugin realms.
func (m *Manager) Close() error {
	m.ready.Store(false)
	return m.registry.Close()
}

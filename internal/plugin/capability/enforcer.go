// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Package capability grants plugins access to capabilities and resolves the
// capabilities a plugin implements.
//
// Pattern matching uses gobwas/glob with '.' as the segment separator:
//   - '*' matches a single segment (does not cross '.')
//   - '**' matches zero or more segments (crosses '.')
//
// Examples:
//   - "tollgate.capability.*" matches "tollgate.capability.charge"
//   - "host.kv.**" matches "host.kv.read" and "host.kv.write"
//   - "**" matches anything
package capability

import (
	"sort"
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// compiledGrant holds a pattern and its compiled glob for efficient matching.
type compiledGrant struct {
	pattern string
	glob    glob.Glob
}

// Enforcer checks plugin grants at runtime.
//
// Plugins registered with SetGrants are checked against their own grants
// only. Every other plugin is checked against the default grants, which
// are empty unless SetDefaultGrants is called.
//
// Enforcer is safe for concurrent use. The zero value is ready to use
// without calling NewEnforcer.
type Enforcer struct {
	grants   map[string][]compiledGrant // plugin id -> compiled grants
	defaults []compiledGrant
	mu       sync.RWMutex
}

// NewEnforcer creates a grant enforcer.
func NewEnforcer() *Enforcer {
	return &Enforcer{
		grants: make(map[string][]compiledGrant),
	}
}

func compileGrants(patterns []string) ([]compiledGrant, error) {
	compiled := make([]compiledGrant, len(patterns))
	for i, pattern := range patterns {
		if pattern == "" {
			return nil, oops.In("capability").With("index", i).Errorf("empty grant pattern")
		}
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, oops.In("capability").With("index", i).With("pattern", pattern).Wrap(err)
		}
		compiled[i] = compiledGrant{pattern: pattern, glob: g}
	}
	return compiled, nil
}

// SetGrants configures the grants of a plugin, replacing previous ones.
// If any pattern is invalid no changes are made.
func (e *Enforcer) SetGrants(plugin string, patterns []string) error {
	if plugin == "" {
		return oops.In("capability").Errorf("plugin id cannot be empty")
	}

	compiled, err := compileGrants(patterns)
	if err != nil {
		return oops.With("plugin", plugin).Wrap(err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.grants == nil {
		e.grants = make(map[string][]compiledGrant)
	}
	e.grants[plugin] = compiled
	return nil
}

// SetDefaultGrants configures the grants of plugins without their own.
func (e *Enforcer) SetDefaultGrants(patterns []string) error {
	compiled, err := compileGrants(patterns)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.defaults = compiled
	return nil
}

// IsRegistered reports whether the plugin has its own grants.
func (e *Enforcer) IsRegistered(plugin string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	_, ok := e.grants[plugin]
	return ok
}

// RemoveGrants drops a plugin's own grants so the defaults apply again.
func (e *Enforcer) RemoveGrants(plugin string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.grants, plugin)
}

// GetGrants returns a copy of the patterns in effect for a plugin.
func (e *Enforcer) GetGrants(plugin string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	grants, ok := e.grants[plugin]
	if !ok {
		grants = e.defaults
	}
	patterns := make([]string, len(grants))
	for i, g := range grants {
		patterns[i] = g.pattern
	}
	return patterns
}

// ListPlugins returns the ids of plugins with their own grants, sorted.
func (e *Enforcer) ListPlugins() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	plugins := make([]string, 0, len(e.grants))
	for id := range e.grants {
		plugins = append(plugins, id)
	}
	sort.Strings(plugins)
	return plugins
}

// Check reports whether the plugin is granted name. It denies empty plugin
// ids and empty names.
func (e *Enforcer) Check(plugin, name string) bool {
	if plugin == "" || name == "" {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	grants, ok := e.grants[plugin]
	if !ok {
		grants = e.defaults
	}
	for _, grant := range grants {
		if grant.glob.Match(name) {
			return true
		}
	}
	return false
}

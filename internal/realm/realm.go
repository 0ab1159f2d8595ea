// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Package realm builds isolation realms for plugin bundles.
//
// A realm is a sandboxed Lua VM with its own module search path and its own
// require. Module names are classified by a Policy: shared names come from
// the host Namespace, denied names are never resolved, and everything else
// is looked up on the realm's search path first and then in the Namespace.
// Two realms that bundle different versions of the same library each see
// their own copy.
package realm

import (
	"io/fs"
	"log/slog"
	"strings"
	"sync"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/tollgate/tollgate/internal/archive"
	"github.com/tollgate/tollgate/pkg/ambient"
)

// Entry describes one search-path element.
type Entry struct {
	Kind     archive.Kind
	Location archive.Location
}

// Realm is an isolated loading realm.
//
// Identity, search path, and policy never change after construction. The
// VM is created on first use and guarded by the realm lock, which a Scope
// holds for the duration of a call.
type Realm struct {
	id       string
	name     string
	location archive.Location
	sources  []archive.Source
	policy   *Policy
	parent   *Namespace
	states   *StateFactory
	logger   *slog.Logger

	local sync.Map // module name -> *Symbol

	mu     sync.Mutex
	state  *lua.LState
	closed bool
}

var _ ambient.Realm = (*Realm)(nil)

// ID returns the realm's unique identifier.
func (r *Realm) ID() string { return r.id }

// Name returns the realm's human-readable name.
func (r *Realm) Name() string { return r.name }

// Location returns the location of the realm's own bundle.
func (r *Realm) Location() archive.Location { return r.location }

// Policy returns the realm's visibility policy.
func (r *Realm) Policy() *Policy { return r.policy }

// Source returns the realm's own bundle source, or nil for a realm without
// one.
func (r *Realm) Source() archive.Source {
	if len(r.sources) == 0 {
		return nil
	}
	return r.sources[0]
}

// SearchPath enumerates the search path in lookup order.
func (r *Realm) SearchPath() []Entry {
	entries := make([]Entry, len(r.sources))
	for i, src := range r.sources {
		entries[i] = Entry{Kind: src.Kind(), Location: src.Location()}
	}
	return entries
}

// String implements fmt.Stringer.
func (r *Realm) String() string { return r.name + "#" + r.id }

// Resolve finds the module visible to this realm under name.
func (r *Realm) Resolve(name string) (*Symbol, error) {
	switch r.policy.Classify(name) {
	case VisibilityDenied:
		return nil, oops.Code("SYMBOL_DENIED").In("realm").
			With("realm", r.name).
			With("symbol", name).
			Wrapf(ErrSymbolDenied, "resolve %s", name)
	case VisibilityShared:
		if sym, ok := r.parent.Lookup(name); ok {
			return sym, nil
		}
	default:
		if sym := r.findLocal(name); sym != nil {
			return sym, nil
		}
		if sym, ok := r.parent.Lookup(name); ok {
			return sym, nil
		}
	}
	return nil, oops.Code("SYMBOL_NOT_FOUND").In("realm").
		With("realm", r.name).
		With("symbol", name).
		Wrapf(ErrSymbolNotFound, "resolve %s", name)
}

func (r *Realm) findLocal(name string) *Symbol {
	if cached, ok := r.local.Load(name); ok {
		return cached.(*Symbol)
	}
	candidates, ok := modulePaths(name)
	if !ok {
		return nil
	}
	for _, src := range r.sources {
		for _, p := range candidates {
			info, err := fs.Stat(src, p)
			if err != nil || info.IsDir() {
				continue
			}
			sym, _ := r.local.LoadOrStore(name, &Symbol{Name: name, Source: src, Path: p})
			return sym.(*Symbol)
		}
	}
	return nil
}

// modulePaths maps a.b to a/b.lua and a/b/init.lua.
func modulePaths(name string) ([]string, bool) {
	if name == "" || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") || strings.Contains(name, "..") {
		return nil, false
	}
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-', c == '.':
		default:
			return nil, false
		}
	}
	base := strings.ReplaceAll(name, ".", "/")
	return []string{base + ".lua", base + "/init.lua"}, true
}

// Close releases the VM and the search-path sources. Close waits for an
// active scope to exit.
func (r *Realm) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.state != nil {
		r.state.Close()
		r.state = nil
	}
	var errs []error
	for _, src := range r.sources {
		if err := src.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return oops.In("realm").With("realm", r.name).Join(errs...)
	}
	return nil
}

// newState creates the VM and installs the realm's require. Callers hold
// r.mu.
func (r *Realm) newState(scope *Scope) (*lua.LState, error) {
	L, err := r.states.NewState(scope.ctx)
	if err != nil {
		return nil, oops.In("realm").With("realm", r.name).Wrap(err)
	}
	L.SetGlobal("require", L.NewFunction(r.require))
	r.logger.Debug("realm VM created", "realm", r.name, "realm_id", r.id)
	return L, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package realm

import (
	"path"
	"sort"
	"sync"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/tollgate/tollgate/internal/archive"
)

// Symbol is a resolvable module.
//
// Host symbols carry a Loader and live in a Namespace; every realm that
// resolves a host symbol gets the same *Symbol. Realm-local symbols carry
// the search-path source and file they were found in.
type Symbol struct {
	Name string

	// Loader builds the module value inside a realm VM. It receives the
	// module name as its only argument and returns one value.
	Loader lua.LGFunction

	// Source and Path locate a realm-local Lua module.
	Source archive.Source
	Path   string
}

// Local reports whether the symbol was found on a realm's search path.
func (s *Symbol) Local() bool { return s.Source != nil }

// Origin describes where the symbol comes from.
func (s *Symbol) Origin() string {
	if s.Source == nil {
		return "host"
	}
	return path.Join(s.Source.Location().String(), s.Path)
}

// Namespace is the host's shared namespace, the parent of every realm.
//
// Namespace is safe for concurrent use.
type Namespace struct {
	mu      sync.RWMutex
	symbols map[string]*Symbol
}

// NewNamespace creates an empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{symbols: make(map[string]*Symbol)}
}

// Define adds a host symbol. Names must be unique.
func (n *Namespace) Define(name string, loader lua.LGFunction) (*Symbol, error) {
	if name == "" || loader == nil {
		return nil, oops.In("realm").With("symbol", name).Errorf("symbol needs a name and a loader")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.symbols[name]; exists {
		return nil, oops.In("realm").With("symbol", name).Errorf("symbol already defined")
	}
	sym := &Symbol{Name: name, Loader: loader}
	n.symbols[name] = sym
	return sym, nil
}

// Lookup returns the symbol defined under name.
func (n *Namespace) Lookup(name string) (*Symbol, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	sym, ok := n.symbols[name]
	return sym, ok
}

// Names returns every defined name, sorted.
func (n *Namespace) Names() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	names := make([]string, 0, len(n.symbols))
	for name := range n.symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GlobalLoader returns a loader yielding the global named name, for
// exposing libraries the VM opens itself, such as string or math.
func GlobalLoader(name string) lua.LGFunction {
	return func(L *lua.LState) int {
		L.Push(L.GetGlobal(name))
		return 1
	}
}

// ValueLoader returns a loader yielding a fresh table built by build.
func ValueLoader(build func(L *lua.LState) lua.LValue) lua.LGFunction {
	return func(L *lua.LState) int {
		L.Push(build(L))
		return 1
	}
}

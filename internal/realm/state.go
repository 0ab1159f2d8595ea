// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package realm

import (
	"context"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
)

// library is a Lua library a realm VM opens itself.
type library struct {
	name string
	fn   lua.LGFunction
}

// Safe: base, table, string, math.
// Never opened: os, io, debug, package, channel, coroutine.
func defaultLibraries() []library {
	return []library{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
}

// unsafeGlobals can reach the file system or bypass the realm's require.
var unsafeGlobals = []string{"dofile", "loadfile", "loadstring", "load", "module", "require"}

// StateFactory creates sandboxed Lua VMs for realms.
type StateFactory struct {
	libraries     []library
	callStackSize int
	registrySize  int
}

// StateOption configures a StateFactory.
type StateOption func(*StateFactory)

// WithCallStackSize bounds the VM call stack.
func WithCallStackSize(n int) StateOption {
	return func(f *StateFactory) { f.callStackSize = n }
}

// WithRegistrySize sets the initial VM registry size.
func WithRegistrySize(n int) StateOption {
	return func(f *StateFactory) { f.registrySize = n }
}

// NewStateFactory creates a state factory.
func NewStateFactory(opts ...StateOption) *StateFactory {
	f := &StateFactory{libraries: defaultLibraries()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewState creates a VM with only the safe libraries open and without
// dofile, loadfile, loadstring, load, module, or require. The realm installs
// its own require.
//
// The ctx parameter is reserved for future cancellation support.
func (f *StateFactory) NewState(_ context.Context) (*lua.LState, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:  true,
		CallStackSize: f.callStackSize,
		RegistrySize:  f.registrySize,
	})

	for _, lib := range f.libraries {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, oops.In("realm").With("library", lib.name).Hint("failed to open library").Wrap(err)
		}
	}

	for _, name := range unsafeGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	return L, nil
}

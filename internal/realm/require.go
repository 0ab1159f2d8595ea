// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package realm

import (
	"bytes"
	"errors"
	"io/fs"

	lua "github.com/yuin/gopher-lua"
)

// loadedKey is the VM registry slot holding modules already required.
const loadedKey = "_TOLLGATE_LOADED"

// require is the realm's replacement for the Lua require global. Modules
// are resolved through Resolve and cached per VM.
func (r *Realm) require(L *lua.LState) int {
	name := L.CheckString(1)
	loaded := loadedTable(L)

	switch v := loaded.RawGetString(name); {
	case v == loading:
		L.RaiseError("loop while loading module %q", name)
	case v != lua.LNil:
		L.Push(v)
		return 1
	}

	sym, err := r.Resolve(name)
	if err != nil {
		switch {
		case errors.Is(err, ErrSymbolDenied):
			L.RaiseError("module %q is not visible to plugins", name)
		default:
			L.RaiseError("module %q not found", name)
		}
		return 0
	}

	loaded.RawSetString(name, loading)
	var fn *lua.LFunction
	if sym.Loader != nil {
		fn = L.NewFunction(sym.Loader)
	} else {
		fn = r.compile(L, sym)
	}

	L.Push(fn)
	L.Push(lua.LString(name))
	if err := L.PCall(1, 1, nil); err != nil {
		loaded.RawSetString(name, lua.LNil)
		L.Error(errorValue(err), 0)
		return 0
	}

	value := L.Get(-1)
	L.Pop(1)
	if value == lua.LNil {
		value = lua.LTrue
	}
	loaded.RawSetString(name, value)
	L.Push(value)
	return 1
}

func (r *Realm) compile(L *lua.LState, sym *Symbol) *lua.LFunction {
	data, err := fs.ReadFile(sym.Source, sym.Path)
	if err != nil {
		L.RaiseError("module %q: %s", sym.Name, err)
		return nil
	}
	fn, err := L.Load(bytes.NewReader(data), sym.Path)
	if err != nil {
		L.RaiseError("module %q: %s", sym.Name, err)
		return nil
	}
	return fn
}

// Compile loads the Lua chunk at p in the realm's own bundle.
func (s *Scope) Compile(p string) (*lua.LFunction, error) {
	L, err := s.State()
	if err != nil {
		return nil, err
	}
	src := s.realm.Source()
	if src == nil {
		return nil, fs.ErrNotExist
	}
	data, err := fs.ReadFile(src, p)
	if err != nil {
		return nil, err
	}
	return L.Load(bytes.NewReader(data), p)
}

// loading marks a module whose loader is running.
var loading = lua.LString("\x00loading")

func loadedTable(L *lua.LState) *lua.LTable {
	if t, ok := L.G.Registry.RawGetString(loadedKey).(*lua.LTable); ok {
		return t
	}
	t := L.NewTable()
	L.G.Registry.RawSetString(loadedKey, t)
	return t
}

// errorValue recovers the raised Lua value so errors keep their identity
// when rethrown.
func errorValue(err error) lua.LValue {
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		return apiErr.Object
	}
	return lua.LString(err.Error())
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package lua

import (
	"encoding/json"
	"sort"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/tollgate/tollgate/internal/plugin/hostfunc"
	"github.com/tollgate/tollgate/internal/realm"
	"github.com/tollgate/tollgate/pkg/ambient"
	"github.com/tollgate/tollgate/pkg/contract"
)

// Module names defined by NewNamespace besides the capability modules.
const (
	ModuleContract    = "tollgate.contract"
	ModuleCollections = "tollgate.util.collections"
	ModuleJSON        = "json"
	ModuleRealm       = "tollgate.internal.realm"
)

// NewNamespace builds the shared namespace every plugin realm resolves
// host modules from. hf provides tollgate.host.
func NewNamespace(hf *hostfunc.Functions) (*realm.Namespace, error) {
	if hf == nil {
		return nil, oops.In("lua").Errorf("host functions are required")
	}

	ns := realm.NewNamespace()
	loaders := map[string]lua.LGFunction{
		lua.StringLibName:   realm.GlobalLoader(lua.StringLibName),
		lua.TabLibName:      realm.GlobalLoader(lua.TabLibName),
		lua.MathLibName:     realm.GlobalLoader(lua.MathLibName),
		ModuleContract:      contractLoader,
		hostfunc.ModuleName: hf.Loader,
		ModuleCollections:   collectionsLoader,
		ModuleJSON:          jsonLoader,
		ModuleRealm:         realmLoader,
	}
	for _, name := range contract.CapabilityNames() {
		desc, _ := contract.LookupCapability(name)
		loaders[name] = capabilityLoader(desc)
	}

	names := make([]string, 0, len(loaders))
	for name := range loaders {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := ns.Define(name, loaders[name]); err != nil {
			return nil, err
		}
	}
	return ns, nil
}

// capabilityLoader builds tollgate.capability.<name>, which describes the
// capability so plugins need not spell names or methods themselves.
func capabilityLoader(desc *contract.Descriptor) lua.LGFunction {
	return func(L *lua.LState) int {
		mod := L.NewTable()
		L.SetField(mod, "name", lua.LString(desc.Name))
		methods := L.NewTable()
		for _, m := range desc.Methods {
			methods.Append(lua.LString(m))
		}
		L.SetField(mod, "methods", methods)
		L.Push(mod)
		return 1
	}
}

func collectionsLoader(L *lua.LState) int {
	L.Push(L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"keys":     collectionsKeys,
		"map":      collectionsMap,
		"filter":   collectionsFilter,
		"contains": collectionsContains,
	}))
	return 1
}

// keys returns the string keys of a table, sorted.
func collectionsKeys(L *lua.LState) int {
	t := L.CheckTable(1)
	var keys []string
	t.ForEach(func(k, _ lua.LValue) {
		if s, ok := k.(lua.LString); ok {
			keys = append(keys, string(s))
		}
	})
	sort.Strings(keys)
	out := L.CreateTable(len(keys), 0)
	for _, k := range keys {
		out.Append(lua.LString(k))
	}
	L.Push(out)
	return 1
}

func collectionsMap(L *lua.LState) int {
	t := L.CheckTable(1)
	fn := L.CheckFunction(2)
	out := L.CreateTable(t.Len(), 0)
	for i := 1; i <= t.Len(); i++ {
		L.Push(fn)
		L.Push(t.RawGetInt(i))
		L.Call(1, 1)
		out.Append(L.Get(-1))
		L.Pop(1)
	}
	L.Push(out)
	return 1
}

func collectionsFilter(L *lua.LState) int {
	t := L.CheckTable(1)
	fn := L.CheckFunction(2)
	out := L.NewTable()
	for i := 1; i <= t.Len(); i++ {
		v := t.RawGetInt(i)
		L.Push(fn)
		L.Push(v)
		L.Call(1, 1)
		if lua.LVAsBool(L.Get(-1)) {
			out.Append(v)
		}
		L.Pop(1)
	}
	L.Push(out)
	return 1
}

func collectionsContains(L *lua.LState) int {
	t := L.CheckTable(1)
	needle := L.CheckAny(2)
	for i := 1; i <= t.Len(); i++ {
		if L.Equal(t.RawGetInt(i), needle) {
			L.Push(lua.LTrue)
			return 1
		}
	}
	L.Push(lua.LFalse)
	return 1
}

// jsonLoader builds the host json module. Plugins may bundle their own
// json module, which takes precedence inside their realm.
func jsonLoader(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"encode": jsonEncode,
		"decode": jsonDecode,
	})
	L.SetField(mod, "provider", lua.LString("host"))
	L.Push(mod)
	return 1
}

func jsonEncode(L *lua.LState) int {
	data, err := json.Marshal(toGo(L.CheckAny(1)))
	if err != nil {
		L.RaiseError("json.encode: %s", err)
		return 0
	}
	L.Push(lua.LString(data))
	return 1
}

func jsonDecode(L *lua.LState) int {
	var v any
	if err := json.Unmarshal([]byte(L.CheckString(1)), &v); err != nil {
		L.RaiseError("json.decode: %s", err)
		return 0
	}
	lv, err := toLua(L, v)
	if err != nil {
		L.RaiseError("json.decode: %s", err)
		return 0
	}
	L.Push(lv)
	return 1
}

// realmLoader exposes realm internals to host-side Lua. The default policy
// never lets a plugin resolve it.
func realmLoader(L *lua.LState) int {
	mod := L.NewTable()
	ctx := L.Context()
	r := ambient.RealmFrom(ctx)
	L.SetField(mod, "id", lua.LString(r.ID()))
	L.SetField(mod, "name", lua.LString(r.Name()))
	path := L.NewTable()
	if scope, ok := realm.ScopeFrom(ctx); ok {
		for _, e := range scope.Realm().SearchPath() {
			entry := L.NewTable()
			L.SetField(entry, "kind", lua.LString(e.Kind))
			L.SetField(entry, "location", lua.LString(e.Location.String()))
			path.Append(entry)
		}
	}
	L.SetField(mod, "search_path", path)
	L.Push(mod)
	return 1
}

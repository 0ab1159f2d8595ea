// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package lua

import (
	"context"
	"sort"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/tollgate/tollgate/internal/realm"
	"github.com/tollgate/tollgate/pkg/ambient"
	"github.com/tollgate/tollgate/pkg/contract"
)

// luaPlugin is a contract.Plugin backed by a registration table living in
// a realm VM. Every method enters the realm; when the caller already did,
// the entry nests.
type luaPlugin struct {
	realm *realm.Realm
	def   *lua.LTable
	id    string
}

var _ contract.Plugin = (*luaPlugin)(nil)

func (p *luaPlugin) ID(context.Context) (string, error) { return p.id, nil }

func (p *luaPlugin) Realm() ambient.Realm { return p.realm }

func (p *luaPlugin) PaymentVendorID(ctx context.Context) (string, error) {
	return p.stringField(ctx, "vendor_id")
}

func (p *luaPlugin) PaymentMethodID(ctx context.Context) (string, error) {
	return p.stringField(ctx, "method_id")
}

func (p *luaPlugin) ConfigurationKeys(ctx context.Context) ([]contract.ConfigurationKey, error) {
	var keys []contract.ConfigurationKey
	err := p.with(ctx, func(L *lua.LState) error {
		v, err := p.field(L, "configuration_keys")
		if err != nil {
			return err
		}
		tbl, ok := v.(*lua.LTable)
		if !ok {
			return nil
		}
		keys = make([]contract.ConfigurationKey, 0, tbl.Len())
		for i := 1; i <= tbl.Len(); i++ {
			switch item := tbl.RawGetInt(i).(type) {
			case lua.LString:
				keys = append(keys, contract.ConfigurationKey{Key: string(item)})
			case *lua.LTable:
				var key contract.ConfigurationKey
				if err := decode(item, &key); err != nil {
					return oops.In("lua").With("plugin", p.id).With("index", i).Wrap(err)
				}
				keys = append(keys, key)
			}
		}
		return nil
	})
	return keys, err
}

func (p *luaPlugin) Capabilities(ctx context.Context) ([]string, error) {
	var names []string
	err := p.with(ctx, func(*lua.LState) error {
		caps, ok := p.def.RawGetString("capabilities").(*lua.LTable)
		if !ok {
			return nil
		}
		caps.ForEach(func(k, v lua.LValue) {
			name, ok := k.(lua.LString)
			if ok && v.Type() == lua.LTTable {
				names = append(names, string(name))
			}
		})
		return nil
	})
	sort.Strings(names)
	return names, err
}

func (p *luaPlugin) Capability(ctx context.Context, name string) (any, error) {
	desc, known := contract.LookupCapability(name)
	if !known {
		return nil, nil
	}

	var handle any
	err := p.with(ctx, func(*lua.LState) error {
		caps, ok := p.def.RawGetString("capabilities").(*lua.LTable)
		if !ok {
			return nil
		}
		tbl, ok := caps.RawGetString(name).(*lua.LTable)
		if !ok {
			return nil
		}
		for _, method := range desc.Methods {
			if tbl.RawGetString(method).Type() != lua.LTFunction {
				return oops.Code("CAPABILITY_MISMATCH").In("lua").
					With("plugin", p.id).
					With("capability", name).
					With("method", method).
					Errorf("capability %s declares no function %q", name, method)
			}
		}
		handle = adapters[name](&luaCapability{plugin: p, name: name, table: tbl})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// with runs fn inside the plugin's realm.
func (p *luaPlugin) with(ctx context.Context, fn func(L *lua.LState) error) error {
	scope, err := p.realm.Enter(ctx)
	if err != nil {
		return err
	}
	defer scope.Exit()

	L, err := scope.State()
	if err != nil {
		return err
	}
	return fn(L)
}

// field reads a registration field. Functions are called without
// arguments so plugins can compute values lazily.
func (p *luaPlugin) field(L *lua.LState, name string) (lua.LValue, error) {
	v := p.def.RawGetString(name)
	if v.Type() != lua.LTFunction {
		return v, nil
	}
	return p.call(L, v, name)
}

func (p *luaPlugin) stringField(ctx context.Context, name string) (string, error) {
	var out string
	err := p.with(ctx, func(L *lua.LState) error {
		v, err := p.field(L, name)
		if err != nil {
			return err
		}
		out = lua.LVAsString(v)
		return nil
	})
	return out, err
}

// call invokes fn with a protected call and translates what it raises.
func (p *luaPlugin) call(L *lua.LState, fn lua.LValue, op string, args ...lua.LValue) (lua.LValue, error) {
	if fn.Type() != lua.LTFunction {
		return nil, oops.In("lua").With("plugin", p.id).With("operation", op).Wrap(ErrNotCallable)
	}
	if err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		return nil, translate(L, err, "plugin", p.id, "operation", op)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}

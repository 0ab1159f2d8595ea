// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package lua

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/tollgate/tollgate/internal/plugin/hostfunc"
	"github.com/tollgate/tollgate/pkg/contract"
)

// VM registry slots.
const (
	registrationsKey = "_TOLLGATE_REGISTRATIONS"
	failureMetaKey   = "_TOLLGATE_FAILURE_MT"
)

// contractLoader builds the tollgate.contract module.
//
//	local contract = require("tollgate.contract")
//	contract.register{ id = "stripe", vendor_id = "stripe", method_id = "card",
//	    capabilities = { ["tollgate.capability.charge"] = { charge = function(req) ... end } } }
//	contract.raise{ internal = "card declined by issuer", external = "Payment declined" }
func contractLoader(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"register": contractRegister,
		"failure":  contractFailure,
		"raise":    contractRaise,
	})
	names := L.NewTable()
	for _, name := range contract.CapabilityNames() {
		names.Append(lua.LString(name))
	}
	L.SetField(mod, "capabilities", names)
	L.SetField(mod, "VERSION", lua.LString(contract.Version))
	L.Push(mod)
	return 1
}

func contractRegister(L *lua.LState) int {
	def := L.CheckTable(1)

	id, ok := def.RawGetString("id").(lua.LString)
	if !ok || id == "" {
		L.ArgError(1, "registration needs a non-empty string id")
		return 0
	}
	if caps := def.RawGetString("capabilities"); caps != lua.LNil {
		if _, ok := caps.(*lua.LTable); !ok {
			L.ArgError(1, "capabilities must be a table")
			return 0
		}
	}

	regs := registrations(L)
	regs.Append(def)
	if regs.Len() == 1 {
		hostfunc.SetPluginID(L, string(id))
	}
	L.Push(def)
	return 1
}

func registrations(L *lua.LState) *lua.LTable {
	if t, ok := L.G.Registry.RawGetString(registrationsKey).(*lua.LTable); ok {
		return t
	}
	t := L.NewTable()
	L.G.Registry.RawSetString(registrationsKey, t)
	return t
}

func failureMeta(L *lua.LState) *lua.LTable {
	if mt, ok := L.G.Registry.RawGetString(failureMetaKey).(*lua.LTable); ok {
		return mt
	}
	mt := L.NewTable()
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		t := L.CheckTable(1)
		L.Push(t.RawGetString("internal"))
		return 1
	}))
	L.G.Registry.RawSetString(failureMetaKey, mt)
	return mt
}

// newFailure builds a failure table from {internal=, external=, temporary=}.
func newFailure(L *lua.LState, def *lua.LTable) *lua.LTable {
	f := L.NewTable()
	internal := lua.LVAsString(def.RawGetString("internal"))
	external := lua.LVAsString(def.RawGetString("external"))
	if external == "" {
		external = internal
	}
	f.RawSetString("internal", lua.LString(internal))
	f.RawSetString("external", lua.LString(external))
	f.RawSetString("temporary", lua.LBool(lua.LVAsBool(def.RawGetString("temporary"))))
	L.SetMetatable(f, failureMeta(L))
	return f
}

func contractFailure(L *lua.LState) int {
	L.Push(newFailure(L, L.CheckTable(1)))
	return 1
}

func contractRaise(L *lua.LState) int {
	L.Error(newFailure(L, L.CheckTable(1)), 0)
	return 0
}

// asFailure reports whether v is a failure table and converts it.
func asFailure(L *lua.LState, v lua.LValue) (*contract.CapabilityFailure, bool) {
	t, ok := v.(*lua.LTable)
	if !ok {
		return nil, false
	}
	mt, ok := L.GetMetatable(t).(*lua.LTable)
	if !ok || mt != failureMeta(L) {
		return nil, false
	}
	var f contract.CapabilityFailure
	if err := decode(t, &f); err != nil {
		return nil, false
	}
	return &f, true
}

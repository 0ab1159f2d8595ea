// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

//nolint:gocritic // captLocal: L is the idiomatic name for lua.LState
package hostfunc

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	lua "github.com/yuin/gopher-lua"

	"github.com/tollgate/tollgate/pkg/ambient"
)

// pluginIDKey is the VM registry slot holding the id the realm's plugin
// registered with.
const pluginIDKey = "_TOLLGATE_PLUGIN_ID"

// SetPluginID records the id of the plugin living in L's realm.
func SetPluginID(L *lua.LState, id string) {
	L.G.Registry.RawSetString(pluginIDKey, lua.LString(id))
}

// PluginID returns the id recorded by SetPluginID, or "" before the plugin
// registered.
func PluginID(L *lua.LState) string {
	if id, ok := L.G.Registry.RawGetString(pluginIDKey).(lua.LString); ok {
		return string(id)
	}
	return ""
}

func pluginLabel(L *lua.LState, pluginID string) string {
	if pluginID != "" {
		return pluginID
	}
	return "realm " + ambient.RealmFrom(luaContext(L)).Name()
}

// pushError pushes nil followed by an error string to the Lua stack and returns 2.
// This is the standard pattern for returning errors from host functions.
func pushError(L *lua.LState, errMsg string) int {
	L.Push(lua.LNil)
	L.Push(lua.LString(errMsg))
	return 2
}

// pushSuccess pushes a value followed by nil (no error) to the Lua stack and returns 2.
func pushSuccess(L *lua.LState, value lua.LValue) int {
	L.Push(value)
	L.Push(lua.LNil)
	return 2
}

func luaContext(L *lua.LState) context.Context {
	if ctx := L.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// withCallContext derives a timeout context from the VM context.
func (f *Functions) withCallContext(L *lua.LState, fn func(ctx context.Context) int) int {
	ctx, cancel := context.WithTimeout(luaContext(L), f.timeout)
	defer cancel()
	return fn(ctx)
}

// sanitizeKVError turns a store error into a message safe to hand to plugin
// code. Unexpected errors are logged with a correlation id the plugin sees
// instead of the cause.
func sanitizeKVError(ctx context.Context, logger *slog.Logger, pluginID, op string, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		logger.WarnContext(ctx, "host call timed out", "plugin", pluginID, "operation", op)
		return "operation timed out"
	case errors.Is(err, ErrValueTooLarge):
		return err.Error()
	default:
		ref := ulid.Make().String()
		logger.ErrorContext(ctx, "host call failed",
			"plugin", pluginID,
			"operation", op,
			"reference", ref,
			"error", err)
		return "internal error (reference " + ref + ")"
	}
}

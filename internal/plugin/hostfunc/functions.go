// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Package hostfunc provides the tollgate.host module to plugin realms.
//
// Host functions expose host services to plugins in a controlled way. The
// calling plugin is identified from the realm VM, and functions that touch
// host state require a grant.
package hostfunc

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	lua "github.com/yuin/gopher-lua"

	"github.com/tollgate/tollgate/internal/plugin/capability"
	"github.com/tollgate/tollgate/pkg/ambient"
)

// Grants checked by host functions.
const (
	GrantKVRead  = "host.kv.read"
	GrantKVWrite = "host.kv.write"
)

// ModuleName is the name plugins require the host functions by.
const ModuleName = "tollgate.host"

const defaultCallTimeout = 5 * time.Second

// KVStore provides namespaced key-value storage.
type KVStore interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Set(ctx context.Context, namespace, key string, value []byte) error
	Delete(ctx context.Context, namespace, key string) error
}

// Functions provides host functions to plugin realms.
type Functions struct {
	kvStore  KVStore
	enforcer *capability.Enforcer
	logger   *slog.Logger
	timeout  time.Duration
}

// Option configures Functions.
type Option func(*Functions)

// WithLogger sets the logger plugin log calls are written to.
func WithLogger(l *slog.Logger) Option {
	return func(f *Functions) { f.logger = l }
}

// WithCallTimeout bounds each KV call.
func WithCallTimeout(d time.Duration) Option {
	return func(f *Functions) { f.timeout = d }
}

// New creates host functions. kv may be nil; enforcer must not be.
func New(kv KVStore, enforcer *capability.Enforcer, opts ...Option) *Functions {
	if enforcer == nil {
		panic("hostfunc: enforcer is required")
	}
	f := &Functions{
		kvStore:  kv,
		enforcer: enforcer,
		logger:   slog.Default(),
		timeout:  defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Loader builds the tollgate.host module inside a realm VM.
func (f *Functions) Loader(L *lua.LState) int {
	mod := L.NewTable()

	// No grant required.
	L.SetField(mod, "log", L.NewFunction(f.logFn))
	L.SetField(mod, "new_request_id", L.NewFunction(newRequestIDFn))
	L.SetField(mod, "current_realm", L.NewFunction(currentRealmFn))

	L.SetField(mod, "kv_get", L.NewFunction(f.wrap(GrantKVRead, f.kvGetFn)))
	L.SetField(mod, "kv_set", L.NewFunction(f.wrap(GrantKVWrite, f.kvSetFn)))
	L.SetField(mod, "kv_delete", L.NewFunction(f.wrap(GrantKVWrite, f.kvDeleteFn)))

	L.Push(mod)
	return 1
}

// Register exposes the module as a global, for VMs without a realm require.
func (f *Functions) Register(L *lua.LState) {
	L.Push(L.NewFunction(f.Loader))
	L.Call(0, 1)
	L.SetGlobal("tollgate_host", L.Get(-1))
	L.Pop(1)
}

func (f *Functions) wrap(grant string, fn func(L *lua.LState, pluginID string) int) lua.LGFunction {
	return func(L *lua.LState) int {
		pluginID := PluginID(L)
		if !f.enforcer.Check(pluginID, grant) {
			L.RaiseError("grant denied: %s requires %s", pluginLabel(L, pluginID), grant)
			return 0
		}
		return fn(L, pluginID)
	}
}

func (f *Functions) logFn(L *lua.LState) int {
	level := L.CheckString(1)
	message := L.CheckString(2)

	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		L.ArgError(1, "log level must be one of debug, info, warn, error")
		return 0
	}

	ctx := luaContext(L)
	f.logger.Log(ctx, lvl, message,
		"plugin", PluginID(L),
		"realm", ambient.RealmFrom(ctx).Name())
	return 0
}

func newRequestIDFn(L *lua.LState) int {
	L.Push(lua.LString(ulid.Make().String()))
	return 1
}

// currentRealmFn returns the name and id of the ambient realm.
func currentRealmFn(L *lua.LState) int {
	r := ambient.RealmFrom(luaContext(L))
	L.Push(lua.LString(r.Name()))
	L.Push(lua.LString(r.ID()))
	return 2
}

func (f *Functions) kvGetFn(L *lua.LState, pluginID string) int {
	key := L.CheckString(1)
	if f.kvStore == nil {
		return pushError(L, "kv store not available")
	}

	return f.withCallContext(L, func(ctx context.Context) int {
		value, err := f.kvStore.Get(ctx, pluginID, key)
		if err != nil {
			return pushError(L, sanitizeKVError(ctx, f.logger, pluginID, "kv_get", err))
		}
		if value == nil {
			return pushSuccess(L, lua.LNil)
		}
		return pushSuccess(L, lua.LString(string(value)))
	})
}

func (f *Functions) kvSetFn(L *lua.LState, pluginID string) int {
	key := L.CheckString(1)
	value := L.CheckString(2)
	if f.kvStore == nil {
		L.Push(lua.LString("kv store not available"))
		return 1
	}

	return f.withCallContext(L, func(ctx context.Context) int {
		if err := f.kvStore.Set(ctx, pluginID, key, []byte(value)); err != nil {
			L.Push(lua.LString(sanitizeKVError(ctx, f.logger, pluginID, "kv_set", err)))
			return 1
		}
		return 0
	})
}

func (f *Functions) kvDeleteFn(L *lua.LState, pluginID string) int {
	key := L.CheckString(1)
	if f.kvStore == nil {
		L.Push(lua.LString("kv store not available"))
		return 1
	}

	return f.withCallContext(L, func(ctx context.Context) int {
		if err := f.kvStore.Delete(ctx, pluginID, key); err != nil {
			L.Push(lua.LString(sanitizeKVError(ctx, f.logger, pluginID, "kv_delete", err)))
			return 1
		}
		return 0
	})
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Package lua runs payment-provider bundles written in Lua.
//
// A bundle's entry chunk runs once inside its realm and registers its
// contract implementation through the shared tollgate.contract module:
//
//	local contract = require("tollgate.contract")
//	contract.register{
//	    id = "stripe-card",
//	    vendor_id = "stripe",
//	    method_id = "card",
//	    capabilities = {
//	        ["tollgate.capability.charge"] = {
//	            charge = function(req) return { data = { id = "ch_1" } } end,
//	        },
//	    },
//	}
//
// The registration table stays in the realm VM. Host code reaches it only
// through contract.Plugin values, whose methods enter the realm first.
package lua

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	plugins "github.com/tollgate/tollgate/internal/plugin"
	"github.com/tollgate/tollgate/internal/realm"
	"github.com/tollgate/tollgate/pkg/contract"
)

// Compile-time interface check.
var _ plugins.Runtime = (*Host)(nil)

// Host instantiates Lua bundles.
type Host struct {
	logger *slog.Logger
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) HostOption {
	return func(h *Host) { h.logger = l }
}

// NewHost creates a Lua runtime.
func NewHost(opts ...HostOption) *Host {
	h := &Host{logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Instantiate runs the manifest's entry chunk inside r and returns one
// plugin per contract.register call, in call order.
func (h *Host) Instantiate(ctx context.Context, r *realm.Realm, m *plugins.Manifest) ([]contract.Plugin, error) {
	errb := oops.In("lua").With("plugin", m.Name).With("realm", r.Name()).With("entry", m.Entry)

	scope, err := r.Enter(ctx)
	if err != nil {
		return nil, errb.Wrap(err)
	}
	defer scope.Exit()

	L, err := scope.State()
	if err != nil {
		return nil, errb.Wrap(err)
	}

	fn, err := scope.Compile(m.Entry)
	if err != nil {
		return nil, errb.Wrap(fmt.Errorf("%w: %w", ErrEntryFailed, err))
	}

	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		cause := translate(L, err, "plugin", m.Name, "operation", "entry")
		return nil, errb.Wrap(fmt.Errorf("%w: %w", ErrEntryFailed, cause))
	}
	L.SetTop(0)

	regs := registrations(L)
	out := make([]contract.Plugin, 0, regs.Len())
	for i := 1; i <= regs.Len(); i++ {
		def, ok := regs.RawGetInt(i).(*lua.LTable)
		if !ok {
			continue
		}
		out = append(out, &luaPlugin{
			realm: r,
			def:   def,
			id:    lua.LVAsString(def.RawGetString("id")),
		})
	}

	h.logger.DebugContext(ctx, "bundle instantiated",
		"plugin", m.Name,
		"realm", r.Name(),
		"realm_id", r.ID(),
		"registrations", len(out))
	return out, nil
}

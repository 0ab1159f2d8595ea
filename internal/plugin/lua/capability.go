// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package lua

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/tollgate/tollgate/pkg/contract"
)

// luaCapability is a capability table declared by a Lua plugin. Requests
// are converted to Lua tables and responses decoded from the returned table.
type luaCapability struct {
	plugin *luaPlugin
	name   string
	table  *lua.LTable
}

func invoke[T any](ctx context.Context, c *luaCapability, method string, req any) (*T, error) {
	var out T
	err := c.plugin.with(ctx, func(L *lua.LState) error {
		arg, err := toLua(L, req)
		if err != nil {
			return err
		}
		ret, err := c.plugin.call(L, c.table.RawGetString(method), c.name+"."+method, arg)
		if err != nil {
			return err
		}
		return decode(ret, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

var adapters = map[string]func(c *luaCapability) any{
	contract.CapabilityReserve:       func(c *luaCapability) any { return reserveAdapter{c} },
	contract.CapabilityModify:        func(c *luaCapability) any { return modifyAdapter{c} },
	contract.CapabilityCancel:        func(c *luaCapability) any { return cancelAdapter{c} },
	contract.CapabilityCharge:        func(c *luaCapability) any { return chargeAdapter{c} },
	contract.CapabilityReverseCharge: func(c *luaCapability) any { return reverseChargeAdapter{c} },
	contract.CapabilityCredit:        func(c *luaCapability) any { return creditAdapter{c} },
	contract.CapabilityPIC:           func(c *luaCapability) any { return picAdapter{c} },

	contract.CapabilityPICInstructions: func(c *luaCapability) any { return picInstructionsAdapter{c} },
}

type reserveAdapter struct{ c *luaCapability }

func (a reserveAdapter) Reserve(ctx context.Context, req contract.ReserveRequest) (*contract.CapabilityResponse, error) {
	return invoke[contract.CapabilityResponse](ctx, a.c, "reserve", req)
}

type modifyAdapter struct{ c *luaCapability }

func (a modifyAdapter) Modify(ctx context.Context, req contract.ModifyRequest) (*contract.CapabilityResponse, error) {
	return invoke[contract.CapabilityResponse](ctx, a.c, "modify", req)
}

type cancelAdapter struct{ c *luaCapability }

func (a cancelAdapter) Cancel(ctx context.Context, req contract.CancelRequest) (*contract.CapabilityResponse, error) {
	return invoke[contract.CapabilityResponse](ctx, a.c, "cancel", req)
}

type chargeAdapter struct{ c *luaCapability }

func (a chargeAdapter) Charge(ctx context.Context, req contract.ChargeRequest) (*contract.CapabilityResponse, error) {
	return invoke[contract.CapabilityResponse](ctx, a.c, "charge", req)
}

type reverseChargeAdapter struct{ c *luaCapability }

func (a reverseChargeAdapter) ReverseCharge(ctx context.Context, req contract.ReverseChargeRequest) (*contract.CapabilityResponse, error) {
	return invoke[contract.CapabilityResponse](ctx, a.c, "reverse_charge", req)
}

type creditAdapter struct{ c *luaCapability }

func (a creditAdapter) Credit(ctx context.Context, req contract.CreditRequest) (*contract.CapabilityResponse, error) {
	return invoke[contract.CapabilityResponse](ctx, a.c, "credit", req)
}

type picAdapter struct{ c *luaCapability }

func (a picAdapter) PaymentInstrumentCreationFields(ctx context.Context, req contract.PICFieldsRequest) (*contract.PICFields, error) {
	return invoke[contract.PICFields](ctx, a.c, "fields", req)
}

func (a picAdapter) CreatePaymentInstrument(ctx context.Context, req contract.PICRequest) (*contract.PICResponse, error) {
	return invoke[contract.PICResponse](ctx, a.c, "create", req)
}

type picInstructionsAdapter struct{ c *luaCapability }

func (a picInstructionsAdapter) PaymentInstrumentCreationInstructionsFields(ctx context.Context, req contract.PICFieldsRequest) (*contract.PICInstructionsFields, error) {
	return invoke[contract.PICInstructionsFields](ctx, a.c, "instructions_fields", req)
}

func (a picInstructionsAdapter) PaymentInstrumentCreationInstructions(ctx context.Context, req contract.PICInstructionsRequest) (*contract.PICInstructions, error) {
	return invoke[contract.PICInstructions](ctx, a.c, "instructions", req)
}

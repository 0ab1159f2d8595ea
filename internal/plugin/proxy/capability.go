// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package proxy

import (
	"context"

	"github.com/samber/oops"

	"github.com/tollgate/tollgate/internal/realm"
	"github.com/tollgate/tollgate/pkg/contract"
)

// Capability wraps handle, the implementation of capability name living in
// r. The result implements exactly the capability interface of name.
func Capability(name string, handle any, r *realm.Realm, pluginID string) (any, error) {
	return wrap(name, handle, site{
		realm:      r,
		plugin:     func() string { return pluginID },
		capability: name,
	})
}

func wrap(name string, handle any, s site) (any, error) {
	if p, ok := handle.(proxied); ok && p.proxiedBy() == name {
		return handle, nil
	}
	desc, ok := contract.LookupCapability(name)
	if !ok {
		return nil, oops.Code("CAPABILITY_MISMATCH").In("proxy").
			With("plugin", s.plugin()).
			With("capability", name).
			Errorf("capability %s is not part of the contract", name)
	}
	if !desc.Implements(handle) {
		return nil, oops.Code("CAPABILITY_MISMATCH").In("proxy").
			With("plugin", s.plugin()).
			With("capability", name).
			Errorf("handle %T does not implement %s", handle, name)
	}
	return wrappers[name](s, handle), nil
}

type proxied interface{ proxiedBy() string }

func (s site) proxiedBy() string { return s.capability }

var wrappers = map[string]func(s site, handle any) any{
	contract.CapabilityReserve: func(s site, h any) any {
		return &reserveProxy{s, h.(contract.ReserveCapability)}
	},
	contract.CapabilityModify: func(s site, h any) any {
		return &modifyProxy{s, h.(contract.ModifyCapability)}
	},
	contract.CapabilityCancel: func(s site, h any) any {
		return &cancelProxy{s, h.(contract.CancelCapability)}
	},
	contract.CapabilityCharge: func(s site, h any) any {
		return &chargeProxy{s, h.(contract.ChargeCapability)}
	},
	contract.CapabilityReverseCharge: func(s site, h any) any {
		return &reverseChargeProxy{s, h.(contract.ReverseChargeCapability)}
	},
	contract.CapabilityCredit: func(s site, h any) any {
		return &creditProxy{s, h.(contract.CreditCapability)}
	},
	contract.CapabilityPIC: func(s site, h any) any {
		return &picProxy{s, h.(contract.PICCapability)}
	},
	contract.CapabilityPICInstructions: func(s site, h any) any {
		return &picInstructionsProxy{s, h.(contract.PICInstructionsCapability)}
	},
}

type reserveProxy struct {
	site
	target contract.ReserveCapability
}

func (p reserveProxy) Reserve(ctx context.Context, req contract.ReserveRequest) (*contract.CapabilityResponse, error) {
	return call(ctx, p.site, "reserve", func(ctx context.Context) (*contract.CapabilityResponse, error) {
		return p.target.Reserve(ctx, req)
	})
}

type modifyProxy struct {
	site
	target contract.ModifyCapability
}

func (p modifyProxy) Modify(ctx context.Context, req contract.ModifyRequest) (*contract.CapabilityResponse, error) {
	return call(ctx, p.site, "modify", func(ctx context.Context) (*contract.CapabilityResponse, error) {
		return p.target.Modify(ctx, req)
	})
}

type cancelProxy struct {
	site
	target contract.CancelCapability
}

func (p cancelProxy) Cancel(ctx context.Context, req contract.CancelRequest) (*contract.CapabilityResponse, error) {
	return call(ctx, p.site, "cancel", func(ctx context.Context) (*contract.CapabilityResponse, error) {
		return p.target.Cancel(ctx, req)
	})
}

type chargeProxy struct {
	site
	target contract.ChargeCapability
}

func (p chargeProxy) Charge(ctx context.Context, req contract.ChargeRequest) (*contract.CapabilityResponse, error) {
	return call(ctx, p.site, "charge", func(ctx context.Context) (*contract.CapabilityResponse, error) {
		return p.target.Charge(ctx, req)
	})
}

type reverseChargeProxy struct {
	site
	target contract.ReverseChargeCapability
}

func (p reverseChargeProxy) ReverseCharge(ctx context.Context, req contract.ReverseChargeRequest) (*contract.CapabilityResponse, error) {
	return call(ctx, p.site, "reverse_charge", func(ctx context.Context) (*contract.CapabilityResponse, error) {
		return p.target.ReverseCharge(ctx, req)
	})
}

type creditProxy struct {
	site
	target contract.CreditCapability
}

func (p creditProxy) Credit(ctx context.Context, req contract.CreditRequest) (*contract.CapabilityResponse, error) {
	return call(ctx, p.site, "credit", func(ctx context.Context) (*contract.CapabilityResponse, error) {
		return p.target.Credit(ctx, req)
	})
}

type picProxy struct {
	site
	target contract.PICCapability
}

func (p picProxy) PaymentInstrumentCreationFields(ctx context.Context, req contract.PICFieldsRequest) (*contract.PICFields, error) {
	return call(ctx, p.site, "fields", func(ctx context.Context) (*contract.PICFields, error) {
		return p.target.PaymentInstrumentCreationFields(ctx, req)
	})
}

func (p picProxy) CreatePaymentInstrument(ctx context.Context, req contract.PICRequest) (*contract.PICResponse, error) {
	return call(ctx, p.site, "create", func(ctx context.Context) (*contract.PICResponse, error) {
		return p.target.CreatePaymentInstrument(ctx, req)
	})
}

type picInstructionsProxy struct {
	site
	target contract.PICInstructionsCapability
}

func (p picInstructionsProxy) PaymentInstrumentCreationInstructionsFields(ctx context.Context, req contract.PICFieldsRequest) (*contract.PICInstructionsFields, error) {
	return call(ctx, p.site, "instructions_fields", func(ctx context.Context) (*contract.PICInstructionsFields, error) {
		return p.target.PaymentInstrumentCreationInstructionsFields(ctx, req)
	})
}

func (p picInstructionsProxy) PaymentInstrumentCreationInstructions(ctx context.Context, req contract.PICInstructionsRequest) (*contract.PICInstructions, error) {
	return call(ctx, p.site, "instructions", func(ctx context.Context) (*contract.PICInstructions, error) {
		return p.target.PaymentInstrumentCreationInstructions(ctx, req)
	})
}

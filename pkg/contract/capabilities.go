// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package contract

import "context"

// Capability names. A capability is looked up by name on both sides of the
// boundary.
const (
	CapabilityReserve       = "tollgate.capability.reserve"
	CapabilityModify        = "tollgate.capability.modify"
	CapabilityCancel        = "tollgate.capability.cancel"
	CapabilityCharge        = "tollgate.capability.charge"
	CapabilityReverseCharge = "tollgate.capability.reverse_charge"
	CapabilityCredit        = "tollgate.capability.credit"
	CapabilityPIC           = "tollgate.capability.pic"

	CapabilityPICInstructions = "tollgate.capability.pic_instructions"
)

// ReserveCapability reserves funds on a payment instrument.
type ReserveCapability interface {
	Reserve(ctx context.Context, req ReserveRequest) (*CapabilityResponse, error)
}

// ModifyCapability changes the amount of an existing reservation.
type ModifyCapability interface {
	Modify(ctx context.Context, req ModifyRequest) (*CapabilityResponse, error)
}

// CancelCapability releases a reservation.
type CancelCapability interface {
	Cancel(ctx context.Context, req CancelRequest) (*CapabilityResponse, error)
}

// ChargeCapability captures reserved funds.
type ChargeCapability interface {
	Charge(ctx context.Context, req ChargeRequest) (*CapabilityResponse, error)
}

// ReverseChargeCapability undoes a charge before settlement.
type ReverseChargeCapability interface {
	ReverseCharge(ctx context.Context, req ReverseChargeRequest) (*CapabilityResponse, error)
}

// CreditCapability refunds a settled charge.
type CreditCapability interface {
	Credit(ctx context.Context, req CreditRequest) (*CapabilityResponse, error)
}

// PICCapability creates payment instruments.
type PICCapability interface {
	PaymentInstrumentCreationFields(ctx context.Context, req PICFieldsRequest) (*PICFields, error)
	CreatePaymentInstrument(ctx context.Context, req PICRequest) (*PICResponse, error)
}

// PICInstructionsCapability asks the customer's client to interact with the
// provider, e.g. a hosted form or redirect, before an instrument is created.
type PICInstructionsCapability interface {
	PaymentInstrumentCreationInstructionsFields(ctx context.Context, req PICFieldsRequest) (*PICInstructionsFields, error)
	PaymentInstrumentCreationInstructions(ctx context.Context, req PICInstructionsRequest) (*PICInstructions, error)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package contract

import "sort"

// Descriptor describes one capability interface of the shared surface.
type Descriptor struct {
	// Name is the capability name, e.g. CapabilityCharge.
	Name string
	// Methods lists the operations, as named on the Lua side.
	Methods []string

	implements func(v any) bool
}

// Implements reports whether v implements the capability interface.
func (d *Descriptor) Implements(v any) bool {
	if d == nil || v == nil {
		return false
	}
	return d.implements(v)
}

func describe[T any](name string, methods ...string) *Descriptor {
	return &Descriptor{
		Name:    name,
		Methods: methods,
		implements: func(v any) bool {
			_, ok := v.(T)
			return ok
		},
	}
}

var descriptors = map[string]*Descriptor{
	CapabilityReserve:       describe[ReserveCapability](CapabilityReserve, "reserve"),
	CapabilityModify:        describe[ModifyCapability](CapabilityModify, "modify"),
	CapabilityCancel:        describe[CancelCapability](CapabilityCancel, "cancel"),
	CapabilityCharge:        describe[ChargeCapability](CapabilityCharge, "charge"),
	CapabilityReverseCharge: describe[ReverseChargeCapability](CapabilityReverseCharge, "reverse_charge"),
	CapabilityCredit:        describe[CreditCapability](CapabilityCredit, "credit"),
	CapabilityPIC:           describe[PICCapability](CapabilityPIC, "fields", "create"),

	CapabilityPICInstructions: describe[PICInstructionsCapability](CapabilityPICInstructions,
		"instructions_fields", "instructions"),
}

// LookupCapability returns the descriptor registered under name.
func LookupCapability(name string) (*Descriptor, bool) {
	d, ok := descriptors[name]
	return d, ok
}

// CapabilityNames returns every capability name, sorted.
func CapabilityNames() []string {
	names := make([]string, 0, len(descriptors))
	for name := range descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

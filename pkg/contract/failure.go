// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package contract

// CapabilityFailure is raised by a capability when the payment provider
// rejected or could not process a request.
//
// It is part of the shared surface, so it crosses the plugin boundary
// unchanged: InternalMessage is what the plugin author wrote for operators,
// ExternalMessage is safe to show to shoppers.
type CapabilityFailure struct {
	InternalMessage  string `mapstructure:"internal" json:"internal_message"`
	ExternalMessage  string `mapstructure:"external" json:"external_message"`
	TemporaryFailure bool   `mapstructure:"temporary" json:"temporary_failure,omitempty"`
}

// NewCapabilityFailure creates a failure with both messages.
func NewCapabilityFailure(internal, external string, temporary bool) *CapabilityFailure {
	return &CapabilityFailure{
		InternalMessage:  internal,
		ExternalMessage:  external,
		TemporaryFailure: temporary,
	}
}

// Error returns the internal message.
func (f *CapabilityFailure) Error() string {
	return f.InternalMessage
}

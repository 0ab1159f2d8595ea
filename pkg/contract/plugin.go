// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Package contract is the shared surface between the host and payment
// provider plugins.
//
// Everything in this package is resolvable from inside every plugin realm
// and is identical on both sides of the boundary: the Plugin contract, the
// capability interfaces, their request and response types, and
// CapabilityFailure. Capabilities are identified by name (see the
// Capability* constants), never by comparing types loaded in different
// realms.
package contract

import (
	"context"

	"github.com/tollgate/tollgate/pkg/ambient"
)

// Plugin is the contract every payment provider plugin implements.
//
// Host code only ever holds proxied Plugin values: every method call is
// executed with the plugin's realm as the ambient realm.
type Plugin interface {
	// ID returns the globally unique plugin identifier.
	ID(ctx context.Context) (string, error)

	// Realm returns the isolation realm the plugin was loaded into.
	Realm() ambient.Realm

	// PaymentVendorID returns the identifier of the payment vendor.
	PaymentVendorID(ctx context.Context) (string, error)

	// PaymentMethodID returns the identifier of the payment method.
	PaymentMethodID(ctx context.Context) (string, error)

	// ConfigurationKeys describes the configuration the plugin expects.
	ConfigurationKeys(ctx context.Context) ([]ConfigurationKey, error)

	// Capabilities returns the names of the capabilities the plugin
	// declared when it registered.
	Capabilities(ctx context.Context) ([]string, error)

	// Capability returns the handle implementing the named capability, or
	// nil when the plugin does not support it.
	Capability(ctx context.Context, name string) (any, error)
}

// ConfigurationKey describes one plugin configuration entry.
type ConfigurationKey struct {
	Key         string `mapstructure:"key" json:"key"`
	Description string `mapstructure:"description" json:"description,omitempty"`
	Required    bool   `mapstructure:"required" json:"required,omitempty"`
}

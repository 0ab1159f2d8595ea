// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package plugin

import "errors"

// Sentinel errors for programmatic error checking.
var (
	// ErrPluginLoad is recorded for a bundle that did not yield exactly one
	// contract implementation.
	ErrPluginLoad = errors.New("plugin failed to load")
	// ErrPluginIDConflict is returned when two bundles report the same id.
	ErrPluginIDConflict = errors.New("plugin id reported by more than one bundle")
	// ErrDiscovery is returned when bundle discovery fails as a whole.
	ErrDiscovery = errors.New("plugin discovery failed")
	// ErrRegistryClosed is returned by a registry after Close.
	ErrRegistryClosed = errors.New("plugin registry is closed")
)

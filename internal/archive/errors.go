// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package archive

import "errors"

// Sentinel errors for programmatic error checking.
var (
	// ErrBundleEntryNotFound is returned when a nested location names an
	// entry the aggregate archive does not contain.
	ErrBundleEntryNotFound = errors.New("bundle entry not found")
	// ErrInvalidLocation is returned for malformed bundle references.
	ErrInvalidLocation = errors.New("invalid bundle location")
	// ErrNoAggregate is returned when a nested location is resolved without
	// an aggregate archive.
	ErrNoAggregate = errors.New("no aggregate archive configured")
	// ErrEntryTooLarge is returned for nested entries larger than
	// MaxEntrySize, as declared or as read.
	ErrEntryTooLarge = errors.New("bundle entry too large")
	// ErrAggregateClosed is returned after Close.
	ErrAggregateClosed = errors.New("aggregate archive is closed")
)

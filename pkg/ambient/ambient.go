// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Package ambient carries the "currently executing realm" marker on a
// context.Context.
//
// Code that runs inside a plugin realm observes that realm through
// RealmFrom. Code that has never crossed the plugin boundary observes Host.
// The marker travels with the context value, so two goroutines calling two
// different plugins never see each other's realm.
package ambient

import "context"

// Realm identifies an isolation realm.
type Realm interface {
	// ID returns the unique realm identifier.
	ID() string
	// Name returns a human-readable realm name.
	Name() string
}

type hostRealm struct{}

func (hostRealm) ID() string   { return "host" }
func (hostRealm) Name() string { return "host" }

// Host is the ambient realm of code that is not running inside a plugin.
var Host Realm = hostRealm{}

type realmKey struct{}

// WithRealm returns a copy of ctx whose ambient realm is r.
func WithRealm(ctx context.Context, r Realm) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, realmKey{}, r)
}

// RealmFrom returns the ambient realm carried by ctx, or Host when ctx
// carries none.
func RealmFrom(ctx context.Context) Realm {
	if ctx == nil {
		return Host
	}
	if r, ok := ctx.Value(realmKey{}).(Realm); ok && r != nil {
		return r
	}
	return Host
}

// IsHost reports whether the ambient realm of ctx is the host.
func IsHost(ctx context.Context) bool {
	return RealmFrom(ctx) == Host
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package plugin

import (
	"context"

	"github.com/tollgate/tollgate/internal/realm"
	"github.com/tollgate/tollgate/pkg/contract"
)

// Runtime executes a bundle inside its realm and returns the contract
// implementations the bundle registered. The registry requires exactly one.
type Runtime interface {
	Instantiate(ctx context.Context, r *realm.Realm, m *Manifest) ([]contract.Plugin, error)
}

// RuntimeFunc adapts a function to Runtime.
type RuntimeFunc func(ctx context.Context, r *realm.Realm, m *Manifest) ([]contract.Plugin, error)

// Instantiate calls f.
func (f RuntimeFunc) Instantiate(ctx context.Context, r *realm.Realm, m *Manifest) ([]contract.Plugin, error) {
	return f(ctx, r, m)
}

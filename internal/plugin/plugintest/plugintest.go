// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Package plugintest provides Go-implemented plugins for tests.
package plugintest

import (
	"context"
	"sort"
	"sync"

	"github.com/tollgate/tollgate/internal/realm"
	"github.com/tollgate/tollgate/pkg/ambient"
	"github.com/tollgate/tollgate/pkg/contract"
)

// Realm returns an empty realm named name, closed when the test ends.
func Realm(t interface{ Cleanup(func()) }, name string) *realm.Realm {
	r := realm.NewFactory(nil, nil).Assemble(name)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// Plugin is a contract.Plugin whose answers are fixed by its fields. It
// records the ambient realm of every call.
type Plugin struct {
	PluginID string
	Vendor   string
	Method   string
	Keys     []contract.ConfigurationKey
	Handles  map[string]any
	Home     *realm.Realm

	// Err, when set, is returned by every contract method.
	Err error

	mu       sync.Mutex
	observed []ambient.Realm
}

var _ contract.Plugin = (*Plugin)(nil)

func (p *Plugin) observe(ctx context.Context) {
	p.mu.Lock()
	p.observed = append(p.observed, ambient.RealmFrom(ctx))
	p.mu.Unlock()
}

// Observed returns the ambient realm seen by each call, in call order.
func (p *Plugin) Observed() []ambient.Realm {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ambient.Realm(nil), p.observed...)
}

func (p *Plugin) ID(ctx context.Context) (string, error) {
	p.observe(ctx)
	return p.PluginID, p.Err
}

func (p *Plugin) Realm() ambient.Realm {
	if p.Home == nil {
		return nil
	}
	return p.Home
}

func (p *Plugin) PaymentVendorID(ctx context.Context) (string, error) {
	p.observe(ctx)
	return p.Vendor, p.Err
}

func (p *Plugin) PaymentMethodID(ctx context.Context) (string, error) {
	p.observe(ctx)
	return p.Method, p.Err
}

func (p *Plugin) ConfigurationKeys(ctx context.Context) ([]contract.ConfigurationKey, error) {
	p.observe(ctx)
	return p.Keys, p.Err
}

func (p *Plugin) Capabilities(ctx context.Context) ([]string, error) {
	p.observe(ctx)
	names := make([]string, 0, len(p.Handles))
	for name := range p.Handles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, p.Err
}

func (p *Plugin) Capability(ctx context.Context, name string) (any, error) {
	p.observe(ctx)
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Handles[name], nil
}

// ChargeFunc implements contract.ChargeCapability.
type ChargeFunc func(ctx context.Context, req contract.ChargeRequest) (*contract.CapabilityResponse, error)

// Charge calls f.
func (f ChargeFunc) Charge(ctx context.Context, req contract.ChargeRequest) (*contract.CapabilityResponse, error) {
	return f(ctx, req)
}

// CreditFunc implements contract.CreditCapability.
type CreditFunc func(ctx context.Context, req contract.CreditRequest) (*contract.CapabilityResponse, error)

// Credit calls f.
func (f CreditFunc) Credit(ctx context.Context, req contract.CreditRequest) (*contract.CapabilityResponse, error) {
	return f(ctx, req)
}

// ReserveFunc implements contract.ReserveCapability.
type ReserveFunc func(ctx context.Context, req contract.ReserveRequest) (*contract.CapabilityResponse, error)

// Reserve calls f.
func (f ReserveFunc) Reserve(ctx context.Context, req contract.ReserveRequest) (*contract.CapabilityResponse, error) {
	return f(ctx, req)
}

// RealmEcho is a charge capability whose response names the ambient realm.
var RealmEcho = ChargeFunc(func(ctx context.Context, _ contract.ChargeRequest) (*contract.CapabilityResponse, error) {
	return &contract.CapabilityResponse{Data: map[string]string{"realm": ambient.RealmFrom(ctx).Name()}}, nil
})

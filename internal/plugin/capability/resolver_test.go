// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package capability_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tollgate/tollgate/internal/plugin/capability"
	"github.com/tollgate/tollgate/internal/plugin/plugintest"
	"github.com/tollgate/tollgate/internal/plugin/proxy"
	"github.com/tollgate/tollgate/pkg/contract"
	"github.com/tollgate/tollgate/pkg/errutil"
)

// countingPlugin counts Capability calls.
type countingPlugin struct {
	*plugintest.Plugin
	calls atomic.Int32
}

func (c *countingPlugin) Capability(ctx context.Context, name string) (any, error) {
	c.calls.Add(1)
	return c.Plugin.Capability(ctx, name)
}

func newResolver(t *testing.T, grants ...string) *capability.Resolver {
	t.Helper()
	e := capability.NewEnforcer()
	require.NoError(t, e.SetDefaultGrants(grants))
	return capability.NewResolver(e)
}

func newPlugin(t *testing.T, id string, handles map[string]any) (*countingPlugin, contract.Plugin) {
	t.Helper()
	r := plugintest.Realm(t, id)
	target := &countingPlugin{Plugin: &plugintest.Plugin{PluginID: id, Handles: handles, Home: r}}
	return target, proxy.Plugin(target, r)
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	res := newResolver(t, "tollgate.capability.**")
	_, p := newPlugin(t, "stripe", map[string]any{contract.CapabilityCharge: plugintest.RealmEcho})

	handle, ok, err := res.Resolve(ctx, p, contract.CapabilityCharge)
	require.NoError(t, err)
	require.True(t, ok)

	resp, err := handle.(contract.ChargeCapability).Charge(ctx, contract.ChargeRequest{})
	require.NoError(t, err)
	assert.Equal(t, "stripe", resp.Data["realm"], "handle runs in the plugin realm")
}

func TestResolver_NilEnforcerGrantsDeclaredCapabilities(t *testing.T) {
	ctx := context.Background()
	res := capability.NewResolver(nil)
	_, p := newPlugin(t, "stripe", map[string]any{contract.CapabilityCharge: plugintest.RealmEcho})

	handle, ok, err := res.Resolve(ctx, p, contract.CapabilityCharge)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Implements(t, (*contract.ChargeCapability)(nil), handle)

	_, ok, err = res.Resolve(ctx, p, contract.CapabilityCredit)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolver_Absent(t *testing.T) {
	ctx := context.Background()
	_, p := newPlugin(t, "stripe", map[string]any{contract.CapabilityCharge: plugintest.RealmEcho})

	tests := []struct {
		name       string
		grants     []string
		capability string
	}{
		{"not declared", []string{"**"}, contract.CapabilityCredit},
		{"unknown to the contract", []string{"**"}, "tollgate.capability.teleport"},
		{"not granted", []string{"tollgate.capability.credit"}, contract.CapabilityCharge},
		{"no grants", nil, contract.CapabilityCharge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handle, ok, err := newResolver(t, tt.grants...).Resolve(ctx, p, tt.capability)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, handle)
		})
	}
}

func TestResolver_PerPluginGrants(t *testing.T) {
	ctx := context.Background()
	e := capability.NewEnforcer()
	require.NoError(t, e.SetDefaultGrants([]string{"tollgate.capability.**"}))
	require.NoError(t, e.SetGrants("restricted", []string{"tollgate.capability.credit"}))
	res := capability.NewResolver(e)

	handles := map[string]any{contract.CapabilityCharge: plugintest.RealmEcho}
	_, open := newPlugin(t, "open", handles)
	_, restricted := newPlugin(t, "restricted", handles)

	_, ok, err := res.Resolve(ctx, open, contract.CapabilityCharge)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = res.Resolve(ctx, restricted, contract.CapabilityCharge)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolver_CachesOncePerPluginAndName(t *testing.T) {
	ctx := context.Background()
	res := newResolver(t, "**")
	target, p := newPlugin(t, "stripe", map[string]any{contract.CapabilityCharge: plugintest.RealmEcho})

	first, ok, err := res.Resolve(ctx, p, contract.CapabilityCharge)
	require.NoError(t, err)
	require.True(t, ok)
	second, ok, err := res.Resolve(ctx, p, contract.CapabilityCharge)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), target.calls.Load())

	res.Forget("stripe")
	_, _, err = res.Resolve(ctx, p, contract.CapabilityCharge)
	require.NoError(t, err)
	assert.Equal(t, int32(2), target.calls.Load())
}

func TestResolver_Mismatch(t *testing.T) {
	_, p := newPlugin(t, "stripe", map[string]any{contract.CapabilityCredit: plugintest.RealmEcho})

	_, _, err := newResolver(t, "**").Resolve(context.Background(), p, contract.CapabilityCredit)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CAPABILITY_MISMATCH")
}

func TestResolver_PluginErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	res := newResolver(t, "**")
	target, p := newPlugin(t, "stripe", map[string]any{contract.CapabilityCharge: plugintest.RealmEcho})

	target.Err = errors.New("registry offline")
	_, _, err := res.Resolve(ctx, p, contract.CapabilityCharge)
	require.Error(t, err)

	target.Err = nil
	_, ok, err := res.Resolve(ctx, p, contract.CapabilityCharge)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAs(t *testing.T) {
	ctx := context.Background()
	res := newResolver(t, "**")
	_, p := newPlugin(t, "stripe", map[string]any{contract.CapabilityCharge: plugintest.RealmEcho})

	charge, ok, err := capability.As[contract.ChargeCapability](ctx, res, p, contract.CapabilityCharge)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, charge)

	credit, ok, err := capability.As[contract.CreditCapability](ctx, res, p, contract.CapabilityCredit)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, credit)

	_, ok, err = capability.As[contract.CreditCapability](ctx, res, p, contract.CapabilityCharge)
	assert.False(t, ok)
	errutil.AssertErrorCode(t, err, "CAPABILITY_MISMATCH")
}

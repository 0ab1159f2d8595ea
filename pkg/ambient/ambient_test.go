// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package ambient_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tollgate/tollgate/pkg/ambient"
)

type fakeRealm string

func (f fakeRealm) ID() string   { return string(f) }
func (f fakeRealm) Name() string { return string(f) }

func TestRealmFrom_DefaultsToHost(t *testing.T) {
	assert.Equal(t, ambient.Host, ambient.RealmFrom(context.Background()))
	assert.True(t, ambient.IsHost(context.Background()))
	//nolint:staticcheck // nil context is tolerated on purpose
	assert.Equal(t, ambient.Host, ambient.RealmFrom(nil))
}

func TestWithRealm_DoesNotLeakToParent(t *testing.T) {
	parent := context.Background()
	child := ambient.WithRealm(parent, fakeRealm("r1"))

	assert.Equal(t, "r1", ambient.RealmFrom(child).ID())
	assert.False(t, ambient.IsHost(child))
	assert.True(t, ambient.IsHost(parent))
}

func TestWithRealm_InnermostWins(t *testing.T) {
	ctx := ambient.WithRealm(context.Background(), fakeRealm("outer"))
	ctx = ambient.WithRealm(ctx, fakeRealm("inner"))

	assert.Equal(t, "inner", ambient.RealmFrom(ctx).Name())
}

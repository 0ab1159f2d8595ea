// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package plugin_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tollgate/tollgate/internal/archive"
	"github.com/tollgate/tollgate/internal/plugin"
	"github.com/tollgate/tollgate/pkg/errutil"
)

func TestParseManifest(t *testing.T) {
	yaml := `
name: stripe-card
version: 1.4.2
description: Card payments through Stripe
entry: lua/main.lua
contract: ^1.0
dependencies:
  - nested:lib/money.zip
  - vendor/json
`
	m, err := plugin.ParseManifest([]byte(yaml))
	require.NoError(t, err)

	assert.Equal(t, "stripe-card", m.Name)
	assert.Equal(t, "1.4.2", m.Version)
	assert.Equal(t, "Card payments through Stripe", m.Description)
	assert.Equal(t, "lua/main.lua", m.Entry)
	assert.Equal(t, []string{"nested:lib/money.zip", "vendor/json"}, m.Dependencies)
	require.NotNil(t, m.SemVer())
	assert.Equal(t, uint64(4), m.SemVer().Minor())
}

func TestParseManifest_DefaultEntry(t *testing.T) {
	m, err := plugin.ParseManifest([]byte("name: adyen\nversion: 0.1.0\n"))
	require.NoError(t, err)
	assert.Equal(t, plugin.DefaultEntry, m.Entry)
	assert.Empty(t, m.Dependencies)
}

func TestParseManifest_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"empty", "", "empty"},
		{"malformed yaml", "name: [unterminated", "invalid YAML"},
		{"uppercase name", "name: Stripe\nversion: 1.0.0", "name"},
		{"underscore name", "name: stripe_card\nversion: 1.0.0", "name"},
		{"trailing hyphen", "name: stripe-\nversion: 1.0.0", "name"},
		{"leading digit", "name: 1stripe\nversion: 1.0.0", "name"},
		{"name too long", "name: " + strings.Repeat("a", 65) + "\nversion: 1.0.0", "64 characters"},
		{"missing version", "name: stripe", "version is required"},
		{"bad version", "name: stripe\nversion: one", "semantic version"},
		{"absolute entry", "name: stripe\nversion: 1.0.0\nentry: /etc/main.lua", "entry"},
		{"escaping entry", "name: stripe\nversion: 1.0.0\nentry: ../main.lua", "entry"},
		{"bad constraint", "name: stripe\nversion: 1.0.0\ncontract: not-a-range", "constraint"},
		{"unsupported contract", "name: stripe\nversion: 1.0.0\ncontract: '>= 9.0'", "host provides"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := plugin.ParseManifest([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			errutil.AssertErrorCode(t, err, "INVALID_MANIFEST")
		})
	}
}

func TestParseManifest_InvalidDependency(t *testing.T) {
	tests := []struct {
		name    string
		deps    string
		wantErr string
	}{
		{"unknown scheme", "['jar:lib.zip']", "dependencies/0: unknown scheme jar"},
		{"escaping entry", "['vendor/json', 'nested:../x.zip']", "dependencies/1: nested location escapes"},
		{"nested without entry", "['nested:']", "dependencies/0: nested location has no entry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := plugin.ParseManifest([]byte("name: stripe\nversion: 1.0.0\ndependencies: " + tt.deps))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			errutil.AssertFailure(t, err, archive.ErrInvalidLocation, "INVALID_LOCATION")
			errutil.AssertErrorContext(t, err, "plugin", "stripe")
		})
	}
}

func TestParseManifest_DuplicateDependency(t *testing.T) {
	_, err := plugin.ParseManifest([]byte("name: stripe\nversion: 1.0.0\ndependencies: ['nested:lib/money.zip', 'nested:/lib/money.zip']"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependencies/1 repeats dependencies/0 (nested:lib/money.zip)")
	errutil.AssertErrorCode(t, err, "INVALID_MANIFEST")
}

func TestParseManifest_SingleCharacterName(t *testing.T) {
	m, err := plugin.ParseManifest([]byte("name: x\nversion: 1.0.0"))
	require.NoError(t, err)
	assert.Equal(t, "x", m.Name)
}

func TestManifest_DependencyLocations(t *testing.T) {
	dir := t.TempDir()
	m := &plugin.Manifest{
		Name:         "stripe",
		Version:      "1.0.0",
		Dependencies: []string{"nested:lib/money.zip!/lua", "vendor/json", "/opt/shared/util.zip"},
	}

	locs, err := m.DependencyLocations(dir)
	require.NoError(t, err)
	require.Len(t, locs, 3)

	assert.Equal(t, archive.MustParseLocation("nested:lib/money.zip!/lua"), locs[0])
	assert.Equal(t, archive.File(filepath.Join(dir, "vendor/json")), locs[1])
	assert.Equal(t, archive.File("/opt/shared/util.zip"), locs[2])
}

func TestManifest_DependencyLocations_Invalid(t *testing.T) {
	m := &plugin.Manifest{Name: "stripe", Version: "1.0.0", Dependencies: []string{"ftp:lib.zip"}}
	_, err := m.DependencyLocations(t.TempDir())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "INVALID_LOCATION")
}

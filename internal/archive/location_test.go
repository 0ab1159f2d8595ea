// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package archive_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tollgate/tollgate/internal/archive"
	"github.com/tollgate/tollgate/pkg/errutil"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		nested bool
		path   string
		root   string
		canon  string
	}{
		{name: "nested entry", input: "nested:lib/money.zip", nested: true, path: "lib/money.zip", canon: "nested:lib/money.zip"},
		{name: "nested with root", input: "nested:lib/money.zip!/lua/", nested: true, path: "lib/money.zip", root: "lua", canon: "nested:lib/money.zip!/lua"},
		{name: "nested leading slash", input: "nested:/lib/a.zip", nested: true, path: "lib/a.zip", canon: "nested:lib/a.zip"},
		{name: "file scheme", input: "file:/opt/plugins/stripe", path: "/opt/plugins/stripe", canon: "file:/opt/plugins/stripe"},
		{name: "bare path", input: "/opt/plugins/stripe.zip", path: "/opt/plugins/stripe.zip", canon: "file:/opt/plugins/stripe.zip"},
		{name: "relative path", input: "libs/../deps/fx", path: "deps/fx", canon: "file:deps/fx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := archive.ParseLocation(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.nested, loc.IsNested())
			assert.Equal(t, filepath.FromSlash(tt.path), filepath.FromSlash(loc.Path()))
			assert.Equal(t, tt.root, loc.Root())
			assert.Equal(t, tt.canon, filepath.ToSlash(loc.String()))
		})
	}
}

func TestParseLocation_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: "  "},
		{name: "unknown scheme", input: "http://example.com/p.zip"},
		{name: "nested without entry", input: "nested:"},
		{name: "nested escaping", input: "nested:../outside.zip"},
		{name: "nested root escaping", input: "nested:a.zip!/../b"},
		{name: "file without path", input: "file:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := archive.ParseLocation(tt.input)
			require.ErrorIs(t, err, archive.ErrInvalidLocation)
			errutil.AssertErrorCode(t, err, "INVALID_LOCATION")
		})
	}
}

func TestLocation_Relative(t *testing.T) {
	dir := t.TempDir()

	rel := archive.File("deps/fx")
	assert.Equal(t, archive.File(filepath.Join(dir, "deps/fx")), rel.Relative(dir))

	abs := archive.File(filepath.Join(dir, "x"))
	assert.Equal(t, abs, abs.Relative("/elsewhere"))

	nested := archive.Nested("lib/a.zip")
	assert.Equal(t, nested, nested.Relative(dir))
}

func TestLocation_TextRoundTrip(t *testing.T) {
	loc := archive.MustParseLocation("nested:lib/money.zip!/lua")
	text, err := loc.MarshalText()
	require.NoError(t, err)

	var parsed archive.Location
	require.NoError(t, parsed.UnmarshalText(text))
	assert.Equal(t, loc, parsed)
}

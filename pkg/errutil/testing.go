// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package errutil

import (
	"errors"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TB is the subset of testing.TB the assertions need. GinkgoT satisfies it.
type TB interface {
	require.TestingT
	Helper()
}

// Code returns the oops code carried by err, or "" when it carries none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}

// AssertErrorCode asserts that err is an oops error with the given code.
func AssertErrorCode(t TB, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, oopsErr.Code())
}

// AssertErrorContext asserts that err is an oops error with the given context key/value.
func AssertErrorContext(t TB, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	ctx := oopsErr.Context()
	assert.Contains(t, ctx, key)
	assert.Equal(t, value, ctx[key])
}

// AssertFailure asserts that err wraps sentinel and carries code.
func AssertFailure(t TB, err error, sentinel error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel), "expected %v in chain of %v", sentinel, err)
	AssertErrorCode(t, err, code)
}

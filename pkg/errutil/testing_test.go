// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package errutil_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	"github.com/tollgate/tollgate/pkg/errutil"
)

var errEntry = errors.New("entry missing")

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"oops error", oops.Code("BUNDLE_ENTRY_NOT_FOUND").Errorf("gone"), "BUNDLE_ENTRY_NOT_FOUND"},
		{"wrapped by fmt", fmt.Errorf("realm: %w", oops.Code("SYMBOL_DENIED").Errorf("no")), "SYMBOL_DENIED"},
		{"plain error", errors.New("plain"), ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errutil.Code(tt.err))
		})
	}
}

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("PLUGIN_LOAD_ERROR").Errorf("test error")
	errutil.AssertErrorCode(t, err, "PLUGIN_LOAD_ERROR")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("plugin", "stripe").Errorf("test error")
	errutil.AssertErrorContext(t, err, "plugin", "stripe")
}

func TestAssertFailure_WrappedSentinel(t *testing.T) {
	err := oops.Code("BUNDLE_ENTRY_NOT_FOUND").With("entry", "lib/a.zip").Wrap(errEntry)
	errutil.AssertFailure(t, err, errEntry, "BUNDLE_ENTRY_NOT_FOUND")
}

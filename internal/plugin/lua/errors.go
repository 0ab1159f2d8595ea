// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package lua

import (
	"errors"
	"regexp"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
)

// Sentinel errors for programmatic error checking.
var (
	// ErrEntryFailed is returned when a bundle's entry chunk fails to load or
	// raises an error.
	ErrEntryFailed = errors.New("plugin entry failed")
	// ErrNotCallable is returned when a declared operation is not a function.
	ErrNotCallable = errors.New("plugin operation is not callable")
)

// positionPrefix matches the "chunk:line: " prefix Lua adds to string errors.
var positionPrefix = regexp.MustCompile(`^[^\s:]+:\d+: `)

// translate turns an error from a protected Lua call into the error host
// code sees. Failure tables become *contract.CapabilityFailure; anything
// else keeps the message the plugin raised, without position or traceback.
func translate(L *lua.LState, err error, attrs ...any) error {
	var apiErr *lua.ApiError
	if !errors.As(err, &apiErr) {
		return oops.In("lua").With(attrs...).Wrap(err)
	}

	if failure, ok := asFailure(L, apiErr.Object); ok {
		return failure
	}

	msg := errorMessage(apiErr)
	return oops.In("lua").With(attrs...).With("stacktrace", apiErr.StackTrace).Errorf("%s", msg)
}

func errorMessage(apiErr *lua.ApiError) string {
	switch obj := apiErr.Object.(type) {
	case lua.LString:
		return positionPrefix.ReplaceAllString(string(obj), "")
	case nil:
		if apiErr.Cause != nil {
			return apiErr.Cause.Error()
		}
		return "unknown Lua error"
	default:
		if t, ok := obj.(*lua.LTable); ok {
			if m, ok := t.RawGetString("message").(lua.LString); ok {
				return string(m)
			}
		}
		return obj.String()
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package proxy

import (
	"errors"
	"fmt"

	"github.com/tollgate/tollgate/pkg/contract"
)

// InvocationFailure is an error raised inside a plugin realm that is not a
// capability failure. Error returns the message exactly as the plugin
// raised it.
type InvocationFailure struct {
	Plugin     string
	Capability string
	Method     string
	Message    string
	Panicked   bool

	cause error
}

func (f *InvocationFailure) Error() string { return f.Message }

// Cause returns the error as the plugin runtime reported it, including
// any host-side context. It is meant for logs.
func (f *InvocationFailure) Cause() error { return f.cause }

// translate maps an error crossing the boundary to what host callers see.
func translate(err error, pluginID, capability, method string) error {
	if err == nil {
		return nil
	}

	var failure *contract.CapabilityFailure
	if errors.As(err, &failure) {
		return failure
	}
	var invocation *InvocationFailure
	if errors.As(err, &invocation) {
		return invocation
	}
	return &InvocationFailure{
		Plugin:     pluginID,
		Capability: capability,
		Method:     method,
		Message:    err.Error(),
		cause:      err,
	}
}

// recovered converts a recovered panic value into an invocation failure.
func recovered(v any, pluginID, capability, method string) *InvocationFailure {
	var msg string
	var cause error
	switch val := v.(type) {
	case error:
		msg, cause = val.Error(), val
	case string:
		msg = val
	default:
		msg = fmt.Sprint(val)
	}
	if cause == nil {
		cause = errors.New(msg)
	}
	return &InvocationFailure{
		Plugin:     pluginID,
		Capability: capability,
		Method:     method,
		Message:    msg,
		Panicked:   true,
		cause:      cause,
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Package proxy wraps plugin objects so every call crosses the realm
// boundary the same way.
//
// A proxied call moves through
//
//	IDLE -> CONTEXT_SWAPPED -> EXECUTING -> RETURNED | FAILED -> CONTEXT_RESTORED -> IDLE
//
// Entering the realm swaps the ambient context; the deferred Exit restores
// it on every path, including panics. Errors are translated after the
// context is restored: capability failures pass through unchanged, anything
// else becomes an *InvocationFailure carrying the original message.
package proxy

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tollgate/tollgate/internal/realm"
	"github.com/tollgate/tollgate/pkg/ambient"
	"github.com/tollgate/tollgate/pkg/contract"
)

var tracer = otel.Tracer("tollgate/plugin/proxy")

// site identifies where a proxied call goes.
type site struct {
	realm      *realm.Realm
	plugin     func() string
	capability string
}

// invoke runs fn inside the realm of s.
func (s site) invoke(ctx context.Context, method string, fn func(ctx context.Context) error) (err error) {
	pluginID := s.plugin()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "plugin.invoke",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("plugin.id", pluginID),
			attribute.String("plugin.capability", s.capability),
			attribute.String("plugin.method", method),
			attribute.String("realm.id", s.realm.ID()),
			attribute.String("realm.name", s.realm.Name()),
		))
	defer func() {
		status := statusOf(err)
		record(pluginID, s.capability, method, status, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("plugin.status", status))
		span.End()
	}()

	scope, err := s.realm.Enter(ctx)
	if err != nil {
		return err
	}
	defer scope.Exit()

	return translate(guard(scope.Context(), fn, pluginID, s.capability, method), pluginID, s.capability, method)
}

func guard(ctx context.Context, fn func(ctx context.Context) error, pluginID, capability, method string) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = recovered(v, pluginID, capability, method)
		}
	}()
	return fn(ctx)
}

func statusOf(err error) string {
	if err == nil {
		return StatusSuccess
	}
	var failure *contract.CapabilityFailure
	if errors.As(err, &failure) {
		return StatusCapabilityFailure
	}
	var invocation *InvocationFailure
	if errors.As(err, &invocation) && invocation.Panicked {
		return StatusPanic
	}
	return StatusError
}

// call runs fn through s and returns its result.
func call[T any](ctx context.Context, s site, method string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := s.invoke(ctx, method, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// pluginProxy is the host-facing view of a realm-resident plugin.
type pluginProxy struct {
	target contract.Plugin
	site   site
	id     atomic.Pointer[string]
}

var _ contract.Plugin = (*pluginProxy)(nil)

// Plugin wraps target, which lives in r. Wrapping a proxied plugin returns
// it unchanged.
func Plugin(target contract.Plugin, r *realm.Realm) contract.Plugin {
	if p, ok := target.(*pluginProxy); ok {
		return p
	}
	p := &pluginProxy{target: target}
	p.site = site{realm: r, plugin: p.label, capability: contractLabel}
	return p
}

// IsProxied reports whether p was returned by Plugin.
func IsProxied(p contract.Plugin) bool {
	_, ok := p.(*pluginProxy)
	return ok
}

// label is the plugin id once known, the realm name before.
func (p *pluginProxy) label() string {
	if id := p.id.Load(); id != nil {
		return *id
	}
	return p.site.realm.Name()
}

func (p *pluginProxy) ID(ctx context.Context) (string, error) {
	id, err := call(ctx, p.site, "id", p.target.ID)
	if err != nil {
		return "", err
	}
	p.id.CompareAndSwap(nil, &id)
	return id, nil
}

// Realm returns the realm the plugin lives in. It does not enter it.
func (p *pluginProxy) Realm() ambient.Realm { return p.site.realm }

func (p *pluginProxy) PaymentVendorID(ctx context.Context) (string, error) {
	return call(ctx, p.site, "payment_vendor_id", p.target.PaymentVendorID)
}

func (p *pluginProxy) PaymentMethodID(ctx context.Context) (string, error) {
	return call(ctx, p.site, "payment_method_id", p.target.PaymentMethodID)
}

func (p *pluginProxy) ConfigurationKeys(ctx context.Context) ([]contract.ConfigurationKey, error) {
	return call(ctx, p.site, "configuration_keys", p.target.ConfigurationKeys)
}

func (p *pluginProxy) Capabilities(ctx context.Context) ([]string, error) {
	return call(ctx, p.site, "capabilities", p.target.Capabilities)
}

// Capability returns the proxied handle for name, or nil when the plugin
// does not support it.
func (p *pluginProxy) Capability(ctx context.Context, name string) (any, error) {
	handle, err := call(ctx, p.site, "capability", func(ctx context.Context) (any, error) {
		return p.target.Capability(ctx, name)
	})
	if err != nil || handle == nil {
		return nil, err
	}
	return wrap(name, handle, site{realm: p.site.realm, plugin: p.label, capability: name})
}

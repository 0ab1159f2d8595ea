// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tollgate/tollgate/internal/plugin"
	"github.com/tollgate/tollgate/internal/plugin/proxy"
)

func startServer(t *testing.T, ready ReadinessChecker, opts ...Option) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", ready, opts...)
	_, err := server.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	require.NotEmpty(t, server.Addr())
	return server
}

func get(t *testing.T, server *Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get("http://" + server.Addr() + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Metrics(t *testing.T) {
	server := startServer(t, nil, WithRegistrations(plugin.RegisterMetrics, proxy.RegisterMetrics))

	plugin.LoadFailures.WithLabelValues(plugin.ReasonRealm).Inc()

	status, body := get(t, server, "/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "# TYPE")
	assert.Contains(t, body, "go_")
	assert.Contains(t, body, "process_")
	assert.Contains(t, body, "tollgate_plugins_loaded")
	assert.Contains(t, body, `tollgate_plugin_load_failures_total{reason="realm"}`)
}

func TestServer_RegistriesAreIndependent(t *testing.T) {
	a := NewServer("127.0.0.1:0", nil, WithRegistrations(plugin.RegisterMetrics))
	b := NewServer("127.0.0.1:0", nil, WithRegistrations(plugin.RegisterMetrics))
	assert.NotSame(t, a.Registry(), b.Registry())

	err := a.Registry().Register(plugin.PluginsLoaded)
	var already prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, err, &already)
}

func TestServer_HealthEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		ready      ReadinessChecker
		path       string
		wantStatus int
		wantBody   string
	}{
		{"liveness", nil, "/healthz/liveness", http.StatusOK, "ok"},
		{"liveness while loading", func() bool { return false }, "/healthz/liveness", http.StatusOK, "ok"},
		{"ready", func() bool { return true }, "/healthz/readiness", http.StatusOK, "ok"},
		{"not ready", func() bool { return false }, "/healthz/readiness", http.StatusServiceUnavailable, "not ready"},
		{"nil checker", nil, "/healthz/readiness", http.StatusOK, "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := get(t, startServer(t, tt.ready), tt.path)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantBody, strings.TrimSpace(body))
		})
	}
}

func TestServer_ReadinessFollowsChecker(t *testing.T) {
	var ready atomic.Bool
	server := startServer(t, ready.Load)

	status, _ := get(t, server, "/healthz/readiness")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	ready.Store(true)
	status, _ = get(t, server, "/healthz/readiness")
	assert.Equal(t, http.StatusOK, status)
}

func TestServer_Status(t *testing.T) {
	type doc struct {
		Plugins []string `json:"plugins"`
	}
	var loaded atomic.Bool
	report := func(context.Context) (any, error) {
		if !loaded.Load() {
			return nil, errors.New("plugins not loaded")
		}
		return doc{Plugins: []string{"paypal-wallet", "stripe-card"}}, nil
	}
	server := startServer(t, loaded.Load, WithStatus(report))

	status, body := get(t, server, "/status")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.JSONEq(t, `{"error": "plugins not loaded"}`, body)

	loaded.Store(true)
	status, body = get(t, server, "/status")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"plugins": ["paypal-wallet", "stripe-card"]}`, body)
}

func TestServer_StatusNotServedWithoutReporter(t *testing.T) {
	status, _ := get(t, startServer(t, nil), "/status")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startServer(t, nil)
	_, err := server.Start()
	assert.Error(t, err)
}

func TestServer_StopWithoutStart(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	assert.NoError(t, server.Stop(context.Background()))
	assert.Empty(t, server.Addr())
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	errCh, err := server.Start()
	require.NoError(t, err)
	defer func() { _ = server.Stop(context.Background()) }()

	require.NotNil(t, server.listener)
	_ = server.listener.Close()

	select {
	case serveErr := <-errCh:
		assert.Error(t, serveErr)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for serve error")
	}
}

func TestServer_ErrorChannelClosesOnShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	errCh, err := server.Start()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))

	select {
	case err, ok := <-errCh:
		if ok {
			assert.NoError(t, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error channel to close")
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tollgate/tollgate/internal/logging"
	"github.com/tollgate/tollgate/internal/observability"
	"github.com/tollgate/tollgate/internal/plugin"
	"github.com/tollgate/tollgate/internal/plugin/proxy"
	"github.com/tollgate/tollgate/pkg/errutil"
)

const shutdownTimeout = 5 * time.Second

// ObservabilityServer is the part of observability.Server serve uses.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer with plugin and proxy metrics
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, status observability.StatusReporter) ObservabilityServer

	// Signals delivers shutdown signals.
	// Default: SIGINT and SIGTERM
	Signals func() (<-chan os.Signal, func())
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load plugins and serve metrics and health checks",
		Long: `Load every configured plugin bundle into its own realm, then serve
Prometheus metrics and health checks until interrupted. Readiness turns
healthy once plugins are loaded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, nil)
		},
	}
}

func runServe(cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, status observability.StatusReporter) ObservabilityServer {
			return observability.NewServer(addr, ready,
				observability.WithRegistrations(plugin.RegisterMetrics, proxy.RegisterMetrics),
				observability.WithStatus(status),
				observability.WithLogger(slog.Default()))
		}
	}
	if deps.Signals == nil {
		deps.Signals = func() (<-chan os.Signal, func()) {
			ch := make(chan os.Signal, 1)
			signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
			return ch, func() { signal.Stop(ch) }
		}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return oops.In("serve").Wrapf(err, "invalid configuration")
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.SetDefault("tollgate", version, cfg.LogFormat, level)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h, err := newPluginHost(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := h.Close(); closeErr != nil {
			errutil.LogError(logger, "error closing plugin host", closeErr)
		}
	}()

	var obsServer ObservabilityServer
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, h.manager.Ready, h.status)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.In("serve").With("addr", cfg.MetricsAddr).Wrapf(err, "start observability server")
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	sigChan, stopSignals := deps.Signals()
	defer stopSignals()

	if _, err := h.manager.LoadPlugins(ctx); err != nil {
		stopObservability(logger, obsServer)
		return err
	}
	loaded, err := h.manager.Loaded(ctx)
	if err != nil {
		stopObservability(logger, obsServer)
		return err
	}

	cmd.Println("Plugin host started")
	logger.Info("plugin host ready",
		"plugins", len(loaded.Plugins()),
		"failures", len(loaded.Failures()))

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	stopObservability(logger, obsServer)
	logger.Info("shutdown complete")
	return nil
}

func stopObservability(logger *slog.Logger, s ObservabilityServer) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		errutil.LogError(logger, "error stopping observability server", err)
	}
}

// monitorServerErrors cancels ctx when a background server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			slog.Error("server failed", "server", name, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/tollgate/tollgate/internal/archive"
	"github.com/tollgate/tollgate/internal/config"
	"github.com/tollgate/tollgate/internal/plugin"
	"github.com/tollgate/tollgate/internal/plugin/capability"
	"github.com/tollgate/tollgate/internal/plugin/hostfunc"
	pluginlua "github.com/tollgate/tollgate/internal/plugin/lua"
	"github.com/tollgate/tollgate/internal/realm"
)

// pluginHost is everything a command needs to load and call plugins.
type pluginHost struct {
	manager   *plugin.Manager
	aggregate *archive.Aggregate
}

// newPluginHost wires discovery, realms, the Lua runtime and capability
// grants from cfg.
func newPluginHost(cfg *config.Config, logger *slog.Logger) (*pluginHost, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	enforcer, err := cfg.Enforcer()
	if err != nil {
		return nil, err
	}

	var agg *archive.Aggregate
	if cfg.AggregateArchive != "" {
		agg, err = archive.OpenAggregate(cfg.AggregateArchive)
		if err != nil {
			return nil, oops.In("cli").With("aggregate", cfg.AggregateArchive).Wrap(err)
		}
	}

	var sources plugin.Sources
	if cfg.PluginsDir != "" {
		sources = append(sources, plugin.NewDirectorySource(cfg.PluginsDir, logger))
	}
	if agg != nil {
		sources = append(sources, plugin.NewAggregateSource(agg, cfg.AggregatePattern, logger))
	}

	ns, err := pluginlua.NewNamespace(hostfunc.New(hostfunc.NewMemoryKV(), enforcer, hostfunc.WithLogger(logger)))
	if err != nil {
		closeAggregate(agg)
		return nil, err
	}

	factory := realm.NewFactory(archive.NewResolver(agg), ns,
		realm.WithPolicy(policy),
		realm.WithStateFactory(cfg.StateFactory()),
		realm.WithLogger(logger))
	registry := plugin.NewRegistry(sources, factory, pluginlua.NewHost(pluginlua.WithLogger(logger)),
		plugin.WithLoadConcurrency(cfg.LoadConcurrency),
		plugin.WithLogger(logger))

	return &pluginHost{
		manager:   plugin.NewManager(registry, capability.NewResolver(enforcer, capability.WithLogger(logger))),
		aggregate: agg,
	}, nil
}

// Close releases every realm, then the aggregate archive.
func (h *pluginHost) Close() error {
	err := h.manager.Close()
	if h.aggregate != nil {
		if aggErr := h.aggregate.Close(); aggErr != nil && err == nil {
			err = aggErr
		}
	}
	return err
}

func closeAggregate(agg *archive.Aggregate) {
	if agg != nil {
		_ = agg.Close()
	}
}

// status reports the loaded plugins once loading finished.
func (h *pluginHost) status(ctx context.Context) (any, error) {
	if !h.manager.Ready() {
		return nil, oops.In("cli").Errorf("plugins not loaded")
	}
	loaded, err := h.manager.Loaded(ctx)
	if err != nil {
		return nil, err
	}
	return describe(ctx, loaded)
}

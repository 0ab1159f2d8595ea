// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tollgate/tollgate/internal/config"
	"github.com/tollgate/tollgate/internal/logging"
	"github.com/tollgate/tollgate/internal/plugin"
)

// PluginInfo describes a loaded plugin.
type PluginInfo struct {
	ID           string   `json:"id"`
	Bundle       string   `json:"bundle"`
	Version      string   `json:"version"`
	Vendor       string   `json:"vendor"`
	Method       string   `json:"method"`
	Capabilities []string `json:"capabilities"`
	RealmID      string   `json:"realm_id"`
	Location     string   `json:"location"`
}

// FailureInfo describes a bundle that did not load.
type FailureInfo struct {
	Bundle   string `json:"bundle"`
	Location string `json:"location"`
	Reason   string `json:"reason"`
	Error    string `json:"error"`
}

// PluginList is the output of plugins list.
type PluginList struct {
	Plugins  []PluginInfo  `json:"plugins"`
	Failures []FailureInfo `json:"failures,omitempty"`
}

// NewPluginsCmd creates the plugins command group.
func NewPluginsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect plugin bundles",
		Long:  `Load the configured plugin bundles and report what they provide.`,
	}
	cmd.AddCommand(newPluginsListCmd())
	cmd.AddCommand(newPluginsInspectCmd())
	cmd.AddCommand(newPluginsResolveCmd())
	return cmd
}

// withHost loads the configuration, builds the plugin host, loads plugins
// and runs fn. CLI logs go to stderr.
func withHost(cmd *cobra.Command, fn func(ctx context.Context, h *pluginHost, loaded *plugin.Loaded) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := cliLogger(cmd, cfg)
	if err != nil {
		return err
	}

	h, err := newPluginHost(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	loaded, err := h.manager.Loaded(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, h, loaded)
}

func cliLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.Setup("tollgate", version, cfg.LogFormat, level, cmd.ErrOrStderr()), nil
}

func newPluginsListCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List loaded plugins and bundles that failed to load",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withHost(cmd, func(ctx context.Context, _ *pluginHost, loaded *plugin.Loaded) error {
				list, err := describe(ctx, loaded)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), list)
				}
				writeListTable(cmd.OutOrStdout(), list)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

// describe queries every loaded plugin through its proxy.
func describe(ctx context.Context, loaded *plugin.Loaded) (*PluginList, error) {
	list := &PluginList{Plugins: []PluginInfo{}}
	for _, id := range loaded.IDs() {
		info, err := describePlugin(ctx, loaded, id)
		if err != nil {
			return nil, err
		}
		list.Plugins = append(list.Plugins, info)
	}
	for _, f := range loaded.Failures() {
		list.Failures = append(list.Failures, FailureInfo{
			Bundle:   f.Bundle.Name(),
			Location: f.Bundle.Location.String(),
			Reason:   f.Reason,
			Error:    f.Err.Error(),
		})
	}
	return list, nil
}

func describePlugin(ctx context.Context, loaded *plugin.Loaded, id string) (PluginInfo, error) {
	rec, ok := loaded.Record(id)
	if !ok {
		return PluginInfo{}, oops.Code("PLUGIN_NOT_FOUND").In("cli").With("plugin", id).Errorf("no plugin with id %q", id)
	}
	errb := oops.In("cli").With("plugin", id)

	vendor, err := rec.Proxy.PaymentVendorID(ctx)
	if err != nil {
		return PluginInfo{}, errb.Wrap(err)
	}
	method, err := rec.Proxy.PaymentMethodID(ctx)
	if err != nil {
		return PluginInfo{}, errb.Wrap(err)
	}
	caps, err := rec.Proxy.Capabilities(ctx)
	if err != nil {
		return PluginInfo{}, errb.Wrap(err)
	}
	if caps == nil {
		caps = []string{}
	}
	return PluginInfo{
		ID:           id,
		Bundle:       rec.Manifest.Name,
		Version:      rec.Manifest.Version,
		Vendor:       vendor,
		Method:       method,
		Capabilities: caps,
		RealmID:      rec.Realm.ID(),
		Location:     rec.Location.String(),
	}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return oops.In("cli").Wrapf(err, "encode JSON")
	}
	return nil
}

func writeListTable(w io.Writer, list *PluginList) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tVERSION\tVENDOR\tMETHOD\tCAPABILITIES")
	for _, p := range list.Plugins {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Version, p.Vendor, p.Method, shortCapabilities(p.Capabilities))
	}
	_ = tw.Flush()

	if len(list.Failures) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "FAILED BUNDLE\tREASON\tERROR")
	for _, f := range list.Failures {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Bundle, f.Reason, f.Error)
	}
	_ = tw.Flush()
}

func shortCapabilities(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	short := make([]string, len(names))
	for i, name := range names {
		short[i] = name[strings.LastIndex(name, ".")+1:]
	}
	return strings.Join(short, ",")
}

func newPluginsInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <id>",
		Short: "Show a plugin's realm, configuration keys and capabilities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHost(cmd, func(ctx context.Context, h *pluginHost, loaded *plugin.Loaded) error {
				return inspect(ctx, cmd.OutOrStdout(), h.manager, loaded, args[0])
			})
		},
	}
}

func inspect(ctx context.Context, w io.Writer, m *plugin.Manager, loaded *plugin.Loaded, id string) error {
	info, err := describePlugin(ctx, loaded, id)
	if err != nil {
		return err
	}
	rec, _ := loaded.Record(id)
	keys, err := rec.Proxy.ConfigurationKeys(ctx)
	if err != nil {
		return oops.In("cli").With("plugin", id).Wrap(err)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "ID:\t%s\n", info.ID)
	_, _ = fmt.Fprintf(tw, "Bundle:\t%s %s\n", info.Bundle, info.Version)
	if rec.Manifest.Description != "" {
		_, _ = fmt.Fprintf(tw, "Description:\t%s\n", rec.Manifest.Description)
	}
	_, _ = fmt.Fprintf(tw, "Vendor:\t%s\n", info.Vendor)
	_, _ = fmt.Fprintf(tw, "Method:\t%s\n", info.Method)
	_, _ = fmt.Fprintf(tw, "Realm:\t%s\n", rec.Realm)
	_ = tw.Flush()

	_, _ = fmt.Fprintln(w, "\nSearch path:")
	for i, e := range rec.Realm.SearchPath() {
		_, _ = fmt.Fprintf(w, "  %d. [%s] %s\n", i+1, e.Kind, e.Location)
	}

	_, _ = fmt.Fprintln(w, "\nConfiguration keys:")
	for _, k := range keys {
		required := ""
		if k.Required {
			required = " (required)"
		}
		_, _ = fmt.Fprintf(w, "  %s%s\n", k.Key, required)
	}

	_, _ = fmt.Fprintln(w, "\nCapabilities:")
	for _, name := range info.Capabilities {
		_, granted, err := m.ResolveCapability(ctx, rec.Proxy, name)
		status := "granted"
		switch {
		case err != nil:
			status = "error: " + err.Error()
		case !granted:
			status = "not granted"
		}
		_, _ = fmt.Fprintf(w, "  %s\t%s\n", name, status)
	}
	return nil
}

func newPluginsResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <id> <symbol>",
		Short: "Show which module a plugin's realm resolves for a name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHost(cmd, func(_ context.Context, _ *pluginHost, loaded *plugin.Loaded) error {
				rec, ok := loaded.Record(args[0])
				if !ok {
					return oops.Code("PLUGIN_NOT_FOUND").In("cli").With("plugin", args[0]).Errorf("no plugin with id %q", args[0])
				}
				sym, err := rec.Realm.Resolve(args[1])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n",
					sym.Name, rec.Realm.Policy().Classify(args[1]), sym.Origin())
				return nil
			})
		},
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/tollgate/tollgate/internal/config"
)

// NewRootCmd creates the root command for the Tollgate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tollgate",
		Short: "Tollgate - isolated payment provider plugins",
		Long: `Tollgate loads payment provider plugins into isolated realms and
exposes their capabilities to the host through invocation proxies.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path (default: XDG_CONFIG_HOME/tollgate/config.yaml)")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewPluginsCmd())
	cmd.AddCommand(NewServeCmd())

	return cmd
}

// loadConfig reads and validates the configuration for cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

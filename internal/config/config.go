// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Package config loads the plugin host configuration.
//
// Values come from three layers, later ones winning: flag defaults, the
// YAML config file, and flags set on the command line.
//
//	plugins-dir: /srv/tollgate/plugins
//	aggregate-archive: /srv/tollgate/host.zip
//	log-format: json
//	realm:
//	  shared: [tollgate.money]
//	  deny: [tollgate.admin.*]
//	  call-stack-size: 512
//	default-grants: [tollgate.capability.*]
//	grants:
//	  stripe-card: [tollgate.capability.*, host.kv.**]
package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/tollgate/tollgate/internal/logging"
	"github.com/tollgate/tollgate/internal/plugin"
	"github.com/tollgate/tollgate/internal/plugin/capability"
	"github.com/tollgate/tollgate/internal/realm"
	"github.com/tollgate/tollgate/internal/xdg"
)

// Default values.
const (
	DefaultLogFormat   = logging.FormatJSON
	DefaultLogLevel    = "info"
	DefaultMetricsAddr = "127.0.0.1:9100"
)

// Config is the plugin host configuration.
type Config struct {
	PluginsDir       string              `koanf:"plugins-dir"`
	AggregateArchive string              `koanf:"aggregate-archive"`
	AggregatePattern string              `koanf:"aggregate-pattern"`
	LogFormat        string              `koanf:"log-format"`
	LogLevel         string              `koanf:"log-level"`
	MetricsAddr      string              `koanf:"metrics-addr"`
	LoadConcurrency  int                 `koanf:"load-concurrency"`
	Realm            Realm               `koanf:"realm"`
	DefaultGrants    []string            `koanf:"default-grants"`
	Grants           map[string][]string `koanf:"grants"`
}

// Realm extends the visibility policy every realm shares and sizes realm
// VMs. Zero sizes keep the Lua defaults.
type Realm struct {
	Shared        []string `koanf:"shared"`
	Deny          []string `koanf:"deny"`
	CallStackSize int      `koanf:"call-stack-size"`
	RegistrySize  int      `koanf:"registry-size"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	pluginsDir, _ := xdg.PluginsDir()
	return &Config{
		PluginsDir:       pluginsDir,
		AggregatePattern: plugin.DefaultAggregatePattern,
		LogFormat:        DefaultLogFormat,
		LogLevel:         DefaultLogLevel,
		MetricsAddr:      DefaultMetricsAddr,
		LoadConcurrency:  plugin.DefaultLoadConcurrency,
		DefaultGrants:    []string{capability.AllCapabilities},
	}
}

// flagKeys maps flag names to config keys where they differ.
var flagKeys = map[string]string{
	"shared-module": "realm.shared",
	"deny-module":   "realm.deny",
	"default-grant": "default-grants",
}

// configKeys lists every config key a flag may set.
var configKeys = map[string]bool{
	"plugins-dir":       true,
	"aggregate-archive": true,
	"aggregate-pattern": true,
	"log-format":        true,
	"log-level":         true,
	"metrics-addr":      true,
	"load-concurrency":  true,
	"realm.shared":      true,
	"realm.deny":        true,
	"default-grants":    true,
}

// BindFlags registers the config flags on flags.
func BindFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("plugins-dir", d.PluginsDir, "directory of plugin bundles")
	flags.String("aggregate-archive", "", "host aggregate archive holding nested bundles")
	flags.String("aggregate-pattern", d.AggregatePattern, "glob selecting plugin bundles in the aggregate archive")
	flags.String("log-format", d.LogFormat, "log format (json or text)")
	flags.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	flags.String("metrics-addr", d.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	flags.Int("load-concurrency", d.LoadConcurrency, "bundles loaded concurrently")
	flags.StringSlice("shared-module", nil, "extra module pattern shared from the host namespace")
	flags.StringSlice("deny-module", nil, "extra module pattern hidden from plugins")
	flags.StringSlice("default-grant", d.DefaultGrants, "capability pattern granted to plugins without their own grants")
}

// Load reads the config file at path, then applies flags. An empty path
// reads the default config file when it exists. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path, _ = xdg.ConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, oops.Code("CONFIG_LOAD_FAILED").In("config").With("path", path).Wrap(err)
			}
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key := f.Name
			if mapped, ok := flagKeys[key]; ok {
				key = mapped
			}
			if !configKeys[key] {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").In("config").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("INVALID_CONFIG").In("config").With("path", path).Wrap(err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	errb := oops.Code("INVALID_CONFIG").In("config")

	if c.PluginsDir == "" && c.AggregateArchive == "" {
		return errb.Errorf("plugins-dir or aggregate-archive is required")
	}
	if strings.TrimSpace(c.AggregatePattern) == "" {
		return errb.Errorf("aggregate-pattern cannot be empty")
	}
	if c.LoadConcurrency < 1 {
		return errb.With("load_concurrency", c.LoadConcurrency).Errorf("load-concurrency must be at least 1")
	}
	if err := logging.ValidateFormat(c.LogFormat); err != nil {
		return errb.Errorf("%s", err)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return errb.Errorf("invalid log-level %q", c.LogLevel)
	}
	if c.Realm.CallStackSize < 0 || c.Realm.RegistrySize < 0 {
		return errb.Errorf("realm VM sizes cannot be negative")
	}
	if _, err := c.Policy(); err != nil {
		return errb.Errorf("invalid realm policy: %s", err)
	}
	if _, err := c.Enforcer(); err != nil {
		return errb.Errorf("invalid grants: %s", err)
	}
	return nil
}

// Policy builds the visibility policy: the defaults plus the configured
// extra patterns.
func (c *Config) Policy() (*realm.Policy, error) {
	return realm.DefaultPolicy(c.Realm.Shared, c.Realm.Deny)
}

// StateFactory builds the factory realm VMs are created with.
func (c *Config) StateFactory() *realm.StateFactory {
	var opts []realm.StateOption
	if c.Realm.CallStackSize > 0 {
		opts = append(opts, realm.WithCallStackSize(c.Realm.CallStackSize))
	}
	if c.Realm.RegistrySize > 0 {
		opts = append(opts, realm.WithRegistrySize(c.Realm.RegistrySize))
	}
	return realm.NewStateFactory(opts...)
}

// Enforcer builds the capability grant enforcer.
func (c *Config) Enforcer() (*capability.Enforcer, error) {
	e := capability.NewEnforcer()
	if err := e.SetDefaultGrants(c.DefaultGrants); err != nil {
		return nil, err
	}
	for id, patterns := range c.Grants {
		if err := e.SetGrants(id, patterns); err != nil {
			return nil, err
		}
	}
	return e, nil
}

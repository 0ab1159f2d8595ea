// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Package plugin discovers payment-provider bundles, loads each into its own
// realm and hands out proxied contract implementations.
package plugin

import (
	"path"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/tollgate/tollgate/internal/archive"
	"github.com/tollgate/tollgate/pkg/contract"
)

// ManifestFile is the manifest file name at the root of every bundle.
const ManifestFile = "plugin.yaml"

// DefaultEntry is the chunk executed when a manifest names no entry.
const DefaultEntry = "main.lua"

// Manifest represents a plugin.yaml file.
type Manifest struct {
	Name         string   `yaml:"name" json:"name" jsonschema:"required,pattern=^[a-z]([a-z0-9-]*[a-z0-9])?$,maxLength=64"`
	Version      string   `yaml:"version" json:"version" jsonschema:"required"`
	Description  string   `yaml:"description,omitempty" json:"description,omitempty"`
	Entry        string   `yaml:"entry,omitempty" json:"entry,omitempty"`
	Contract     string   `yaml:"contract,omitempty" json:"contract,omitempty"`
	Dependencies []string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
}

// maxNameLength is the maximum allowed length for plugin names.
const maxNameLength = 64

// namePattern validates plugin names: must start with lowercase letter,
// followed by lowercase letters, digits, or hyphens.
// Cannot end with a hyphen. Single character names are allowed.
var namePattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// ParseManifest parses and validates a plugin.yaml file.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, oops.Code("INVALID_MANIFEST").In("plugin").Errorf("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, oops.Code("INVALID_MANIFEST").In("plugin").Wrapf(err, "invalid YAML")
	}
	if m.Entry == "" {
		m.Entry = DefaultEntry
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	errb := oops.Code("INVALID_MANIFEST").In("plugin").With("plugin", m.Name)

	if m.Name == "" || !namePattern.MatchString(m.Name) {
		return errb.Errorf("name %q must start with a-z, contain only a-z, 0-9, hyphens, and not end with a hyphen", m.Name)
	}
	if len(m.Name) > maxNameLength {
		return errb.Errorf("name must be %d characters or less, got %d", maxNameLength, len(m.Name))
	}

	if m.Version == "" {
		return errb.Errorf("version is required")
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return errb.With("version", m.Version).Wrapf(err, "version is not a semantic version")
	}

	if m.Entry != "" && !validEntry(m.Entry) {
		return errb.With("entry", m.Entry).Errorf("entry must be a clean path inside the bundle")
	}

	if m.Contract != "" {
		c, err := semver.NewConstraint(m.Contract)
		if err != nil {
			return errb.With("contract", m.Contract).Wrapf(err, "contract is not a version constraint")
		}
		if !c.Check(semver.MustParse(contract.Version)) {
			return errb.
				With("contract", m.Contract).
				With("host_contract", contract.Version).
				Errorf("bundle requires contract %s, host provides %s", m.Contract, contract.Version)
		}
	}

	if _, err := checkDependencies(m.Name, m.Dependencies); err != nil {
		return err
	}

	return nil
}

func validEntry(p string) bool {
	if path.IsAbs(p) || path.Clean(p) != p {
		return false
	}
	return p != ".." && !strings.HasPrefix(p, "../")
}

// SemVer returns the parsed manifest version.
func (m *Manifest) SemVer() *semver.Version {
	v, err := semver.NewVersion(m.Version)
	if err != nil {
		return nil
	}
	return v
}

// DependencyLocations parses the declared dependencies in declaration order.
// Relative file dependencies resolve against dir, the bundle's directory.
func (m *Manifest) DependencyLocations(dir string) ([]archive.Location, error) {
	locs, err := checkDependencies(m.Name, m.Dependencies)
	if err != nil {
		return nil, err
	}
	for i, loc := range locs {
		locs[i] = loc.Relative(dir)
	}
	return locs, nil
}

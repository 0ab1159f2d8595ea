// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package plugin

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/tollgate/tollgate/internal/archive"
)

// SchemaID is the $id of the plugin manifest schema.
const SchemaID = "https://tollgate.dev/schemas/plugin.schema.json"

// Prefixes FormatSchemaError strips from validation errors.
const (
	schemaFailurePrefix     = "schema validation failed: "
	dependencyFailurePrefix = "dependency validation failed: "
)

// manifestSchema compiles the generated schema on first use.
type manifestSchema struct {
	mu       sync.Mutex
	compiled *jschema.Schema
}

var bundleSchema manifestSchema

func (s *manifestSchema) get() (*jschema.Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.compiled != nil {
		return s.compiled, nil
	}

	raw, err := GenerateSchema()
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, oops.In("plugin").Wrapf(err, "failed to parse schema JSON")
	}

	c := jschema.NewCompiler()
	if err := c.AddResource(SchemaID, doc); err != nil {
		return nil, oops.In("plugin").Wrapf(err, "failed to add schema resource")
	}
	compiled, err := c.Compile(SchemaID)
	if err != nil {
		return nil, oops.In("plugin").Wrapf(err, "failed to compile schema")
	}
	s.compiled = compiled
	return compiled, nil
}

func (s *manifestSchema) reset() {
	s.mu.Lock()
	s.compiled = nil
	s.mu.Unlock()
}

// GenerateSchema reflects the Manifest struct into a JSON Schema and
// annotates the bundle-specific fields.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{DoNotReference: true}
	schema := r.Reflect(&Manifest{})

	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Tollgate Plugin Manifest"
	schema.Description = "Schema for plugin.yaml manifest files of payment-provider bundles"

	if entry, ok := schema.Properties.Get("entry"); ok {
		entry.Description = "Lua entry script inside the bundle, " + DefaultEntry + " when omitted"
		entry.Default = DefaultEntry
	}
	if deps, ok := schema.Properties.Get("dependencies"); ok {
		deps.Description = "Bundles loaded into the same realm before the entry script, in order"
		deps.UniqueItems = true
		if deps.Items != nil {
			minLen := uint64(1)
			deps.Items.MinLength = &minLen
			deps.Items.Description = "Bundle location: a file path or nested:<entry>[!/<root>]"
			deps.Items.Examples = []any{"nested:lib/money.zip", "nested:lib/money.zip!/lua", "vendor/json"}
		}
	}

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.In("plugin").Wrapf(err, "failed to marshal schema")
	}
	return data, nil
}

// ValidateSchema validates plugin.yaml data against the manifest schema,
// then checks every dependency resolves as a bundle location. Location
// failures keep the archive error in the chain.
func ValidateSchema(data []byte) error {
	if len(data) == 0 {
		return oops.Code("INVALID_MANIFEST").In("plugin").Errorf("manifest data is empty")
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code("INVALID_MANIFEST").In("plugin").Wrapf(err, "invalid YAML")
	}
	doc = jsonCompatible(doc)

	sch, err := bundleSchema.get()
	if err != nil {
		return err
	}
	if err := sch.Validate(doc); err != nil {
		return oops.Code("INVALID_MANIFEST").In("plugin").Wrapf(err, "schema validation failed")
	}

	fields, _ := doc.(map[string]any)
	name, _ := fields["name"].(string)
	var deps []string
	if list, ok := fields["dependencies"].([]any); ok {
		deps = make([]string, 0, len(list))
		for _, d := range list {
			s, _ := d.(string)
			deps = append(deps, s)
		}
	}
	if _, err := checkDependencies(name, deps); err != nil {
		return oops.In("plugin").Wrapf(err, "dependency validation failed")
	}
	return nil
}

// checkDependencies parses each dependency and rejects two entries naming
// the same bundle.
func checkDependencies(name string, deps []string) ([]archive.Location, error) {
	locs := make([]archive.Location, 0, len(deps))
	seen := make(map[string]int, len(deps))
	for i, dep := range deps {
		errb := oops.Code("INVALID_MANIFEST").
			In("plugin").
			With("plugin", name).
			With("dependency", dep).
			With("index", i)

		loc, err := archive.ParseLocation(dep)
		if err != nil {
			return nil, errb.Wrapf(err, "dependencies/%d", i)
		}
		key := loc.String()
		if first, dup := seen[key]; dup {
			return nil, errb.Errorf("dependencies/%d repeats dependencies/%d (%s)", i, first, key)
		}
		seen[key] = i
		locs = append(locs, loc)
	}
	return locs, nil
}

// jsonCompatible rewrites yaml-decoded values into the types the schema
// validator accepts. Anything else goes through a JSON round-trip.
func jsonCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = jsonCompatible(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = jsonCompatible(item)
		}
		return out
	case string, int, int64, float64, bool, nil:
		return val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return val
		}
		var out any
		if err := json.Unmarshal(b, &out); err != nil {
			return val
		}
		return out
	}
}

// ResetSchemaCache drops the compiled schema.
func ResetSchemaCache() { bundleSchema.reset() }

// GetSchemaID returns the schema $id for use in plugin.yaml files.
func GetSchemaID() string { return SchemaID }

// FormatSchemaError strips the validation stage prefix for display.
func FormatSchemaError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, prefix := range []string{schemaFailurePrefix, dependencyFailurePrefix} {
		if trimmed, ok := strings.CutPrefix(msg, prefix); ok {
			return trimmed
		}
	}
	return msg
}

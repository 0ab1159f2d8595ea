// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Command gen-schema generates the plugin manifest JSON Schema, or checks
// manifests against it.
//
//	gen-schema --out schemas/plugin.schema.json
//	gen-schema --check plugins/stripe-card/plugin.yaml
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/tollgate/tollgate/internal/plugin"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	flags := pflag.NewFlagSet("gen-schema", pflag.ContinueOnError)
	outPath := flags.String("out", filepath.Join("schemas", "plugin.schema.json"), "schema output path")
	check := flags.StringSlice("check", nil, "manifest files to validate instead of generating")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if len(*check) > 0 {
		return checkManifests(*check, out)
	}

	schema, err := plugin.GenerateSchema()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(*outPath), 0o750); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(*outPath, schema, 0o600); err != nil {
		return fmt.Errorf("write schema: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Generated %s\n", *outPath)
	return nil
}

func checkManifests(paths []string, out io.Writer) error {
	failed := 0
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read manifest: %w", err)
		}
		if err := plugin.ValidateSchema(data); err != nil {
			failed++
			_, _ = fmt.Fprintf(out, "%s: %s\n", p, plugin.FormatSchemaError(err))
			continue
		}
		if _, err := plugin.ParseManifest(data); err != nil {
			failed++
			_, _ = fmt.Fprintf(out, "%s: %v\n", p, err)
			continue
		}
		_, _ = fmt.Fprintf(out, "%s: ok\n", p)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d manifests invalid", failed, len(paths))
	}
	return nil
}

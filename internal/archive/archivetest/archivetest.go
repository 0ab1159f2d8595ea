// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Package archivetest builds zip fixtures for tests.
package archivetest

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"sort"

	"github.com/stretchr/testify/require"
)

// T is the part of testing.TB the helpers need. GinkgoT satisfies it.
type T interface {
	require.TestingT
	Helper()
}

// Files maps slash-separated paths to contents.
type Files map[string]string

// Zip returns an in-memory zip archive holding files.
func Zip(t T, files Files) []byte {
	t.Helper()
	entries := make(map[string][]byte, len(files))
	for name, content := range files {
		entries[name] = []byte(content)
	}
	return ZipBytes(t, entries)
}

// ZipBytes is Zip for binary entries, such as nested archives.
func ZipBytes(t T, entries map[string][]byte) []byte {
	t.Helper()

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(entries[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// WriteZip writes a zip of files to dir/name and returns its path.
func WriteZip(t T, dir, name string, files Files) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, Zip(t, files), 0o600))
	return p
}

// WriteAggregate writes an aggregate archive whose entries are themselves
// zips built from bundles, and returns its path.
func WriteAggregate(t T, dir string, bundles map[string]Files) string {
	t.Helper()
	entries := make(map[string][]byte, len(bundles))
	for name, files := range bundles {
		entries[name] = Zip(t, files)
	}
	p := filepath.Join(dir, "aggregate.zip")
	require.NoError(t, os.WriteFile(p, ZipBytes(t, entries), 0o600))
	return p
}

// WriteDir writes files under dir, creating it.
func WriteDir(t T, dir string, files Files) string {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
	return dir
}

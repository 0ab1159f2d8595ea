// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Package archive locates plugin bundles and exposes them as read-only
// file systems.
//
// A bundle lives either on disk (a directory or a .zip file) or as an entry
// inside the host aggregate archive. Entries of the aggregate are read
// straight from the aggregate into memory; nothing is extracted to disk.
package archive

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/samber/oops"
)

// Kind classifies a search-path entry.
type Kind string

// Search-path entry kinds.
const (
	// KindBundle is the realm's own plugin bundle.
	KindBundle Kind = "bundle"
	// KindNested is an entry inside the host aggregate archive.
	KindNested Kind = "nested"
	// KindFile is a dependency on the local file system.
	KindFile Kind = "file"
)

const (
	schemeNested = "nested"
	schemeFile   = "file"

	// rootSeparator splits an archive path from a directory inside it.
	rootSeparator = "!/"
)

// Location is a parsed bundle reference. The zero value is invalid.
//
// Accepted forms:
//
//	nested:lib/money.zip        entry of the aggregate archive
//	nested:lib/money.zip!/lua   directory inside that entry
//	file:/opt/plugins/stripe    file system path
//	/opt/plugins/stripe.zip     bare path, same as file:
type Location struct {
	scheme string
	path   string
	root   string
}

// ParseLocation parses a bundle reference.
func ParseLocation(s string) (Location, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Location{}, invalidLocation(s, "location is empty")
	}

	scheme := schemeFile
	rest := raw
	if before, after, ok := strings.Cut(raw, ":"); ok && isScheme(before) {
		scheme = before
		rest = after
	}

	switch scheme {
	case schemeNested:
		entry, root, _ := strings.Cut(rest, rootSeparator)
		entry = strings.TrimPrefix(entry, "/")
		if entry == "" {
			return Location{}, invalidLocation(s, "nested location has no entry")
		}
		clean := path.Clean(entry)
		if clean == ".." || strings.HasPrefix(clean, "../") {
			return Location{}, invalidLocation(s, "nested location escapes the aggregate")
		}
		root = strings.Trim(root, "/")
		if root != "" {
			root = path.Clean(root)
			if !validRoot(root) {
				return Location{}, invalidLocation(s, "nested root escapes the entry")
			}
		}
		return Location{scheme: schemeNested, path: clean, root: root}, nil
	case schemeFile:
		if rest == "" {
			return Location{}, invalidLocation(s, "file location has no path")
		}
		return Location{scheme: schemeFile, path: filepath.Clean(rest)}, nil
	default:
		return Location{}, invalidLocation(s, "unknown scheme "+scheme)
	}
}

// MustParseLocation is ParseLocation for constants. It panics on error.
func MustParseLocation(s string) Location {
	loc, err := ParseLocation(s)
	if err != nil {
		panic(err)
	}
	return loc
}

// Nested returns the location of an aggregate entry.
func Nested(entry string) Location {
	return Location{scheme: schemeNested, path: path.Clean(strings.TrimPrefix(entry, "/"))}
}

// File returns a file system location.
func File(p string) Location {
	return Location{scheme: schemeFile, path: filepath.Clean(p)}
}

// IsNested reports whether the location refers into the aggregate archive.
func (l Location) IsNested() bool { return l.scheme == schemeNested }

// IsZero reports whether l is the zero Location.
func (l Location) IsZero() bool { return l.scheme == "" }

// Path is the entry name for nested locations and the file path otherwise.
func (l Location) Path() string { return l.path }

// Root is the directory inside a nested entry that acts as its root.
func (l Location) Root() string { return l.root }

// Relative resolves a relative file location against dir. Nested and
// absolute locations are returned unchanged.
func (l Location) Relative(dir string) Location {
	if l.scheme != schemeFile || filepath.IsAbs(l.path) || dir == "" {
		return l
	}
	return File(filepath.Join(dir, l.path))
}

// String formats the location in its canonical form.
func (l Location) String() string {
	switch l.scheme {
	case schemeNested:
		if l.root != "" {
			return schemeNested + ":" + l.path + rootSeparator + l.root
		}
		return schemeNested + ":" + l.path
	case schemeFile:
		return schemeFile + ":" + l.path
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Location) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Location) UnmarshalText(b []byte) error {
	parsed, err := ParseLocation(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// isScheme rejects Windows drive letters and anything that is not a
// lowercase word.
func isScheme(s string) bool {
	if len(s) < 2 {
		return false
	}
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

func validRoot(root string) bool {
	return root != ".." && !strings.HasPrefix(root, "../") && !path.IsAbs(root)
}

func invalidLocation(s, reason string) error {
	return oops.Code("INVALID_LOCATION").
		In("archive").
		With("location", s).
		Wrapf(ErrInvalidLocation, "%s", reason)
}

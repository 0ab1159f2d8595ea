// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package realm

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Visibility is how a realm treats a module name.
type Visibility int

// Visibility classes, in precedence order.
const (
	// VisibilityLocal names are looked up in the realm's search path first
	// and fall back to the shared namespace.
	VisibilityLocal Visibility = iota
	// VisibilityShared names always come from the shared namespace, so every
	// realm sees the host's symbol.
	VisibilityShared
	// VisibilityDenied names are never resolved.
	VisibilityDenied
)

func (v Visibility) String() string {
	switch v {
	case VisibilityShared:
		return "shared"
	case VisibilityDenied:
		return "denied"
	default:
		return "local"
	}
}

// DefaultShared is the shared contract surface.
var DefaultShared = []string{
	"tollgate.contract",
	"tollgate.capability.**",
	"tollgate.host",
	"tollgate.util.**",
	"string",
	"table",
	"math",
}

// DefaultDeny hides host internals and unsafe runtime libraries.
var DefaultDeny = []string{
	"tollgate.internal.**",
	"os",
	"io",
	"debug",
	"package",
	"channel",
	"coroutine",
}

type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// Policy decides which module names a realm may resolve and where from.
//
// Patterns use gobwas/glob with '.' as the segment separator: '*' matches
// one segment and '**' matches any number of segments. Deny wins over
// shared. A Policy is immutable and safe for concurrent use.
type Policy struct {
	shared []compiledPattern
	deny   []compiledPattern
}

// NewPolicy compiles a policy from shared and deny patterns.
func NewPolicy(shared, deny []string) (*Policy, error) {
	s, err := compilePatterns("shared", shared)
	if err != nil {
		return nil, err
	}
	d, err := compilePatterns("deny", deny)
	if err != nil {
		return nil, err
	}
	return &Policy{shared: s, deny: d}, nil
}

// DefaultPolicy returns the default policy extended by extraShared and
// extraDeny.
func DefaultPolicy(extraShared, extraDeny []string) (*Policy, error) {
	shared := append(append([]string(nil), DefaultShared...), extraShared...)
	deny := append(append([]string(nil), DefaultDeny...), extraDeny...)
	return NewPolicy(shared, deny)
}

func mustDefaultPolicy() *Policy {
	p, err := DefaultPolicy(nil, nil)
	if err != nil {
		panic(err)
	}
	return p
}

func compilePatterns(list string, patterns []string) ([]compiledPattern, error) {
	out := make([]compiledPattern, 0, len(patterns))
	for i, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			return nil, oops.Code("INVALID_POLICY").In("realm").
				With("list", list).With("index", i).
				Errorf("empty visibility pattern")
		}
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, oops.Code("INVALID_POLICY").In("realm").
				With("list", list).With("pattern", pattern).
				Wrap(err)
		}
		out = append(out, compiledPattern{pattern: pattern, glob: g})
	}
	return out, nil
}

// Classify returns the visibility of name.
func (p *Policy) Classify(name string) Visibility {
	if matchAny(p.deny, name) {
		return VisibilityDenied
	}
	if matchAny(p.shared, name) {
		return VisibilityShared
	}
	return VisibilityLocal
}

// Shared returns the shared patterns.
func (p *Policy) Shared() []string { return patterns(p.shared) }

// Deny returns the deny patterns.
func (p *Policy) Deny() []string { return patterns(p.deny) }

func matchAny(list []compiledPattern, name string) bool {
	for _, c := range list {
		if c.glob.Match(name) {
			return true
		}
	}
	return false
}

func patterns(list []compiledPattern) []string {
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.pattern
	}
	return out
}

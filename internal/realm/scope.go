// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package realm

import (
	"context"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/tollgate/tollgate/pkg/ambient"
)

type scopeKey struct{}

// Scope is an active entry into a realm. While a scope is open the realm
// is the ambient realm of Context and of the realm VM; Exit restores the
// VM's previous context and releases the realm.
//
// Always pair Enter with a deferred Exit:
//
//	scope, err := r.Enter(ctx)
//	if err != nil {
//		return err
//	}
//	defer scope.Exit()
type Scope struct {
	realm *Realm
	ctx   context.Context
	outer *Scope // non-nil for a nested entry

	swapped bool
	prev    context.Context
	exited  bool
}

// Enter makes r the ambient realm. Entering a realm from a context that is
// already inside the same realm nests without blocking.
func (r *Realm) Enter(ctx context.Context) (*Scope, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if outer, ok := ctx.Value(scopeKey{}).(*Scope); ok && outer.realm == r && !outer.exited {
		return &Scope{realm: r, ctx: ctx, outer: outer}, nil
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, oops.In("realm").With("realm", r.name).Wrap(ErrRealmClosed)
	}

	s := &Scope{realm: r}
	s.ctx = context.WithValue(ambient.WithRealm(ctx, r), scopeKey{}, s)
	if r.state != nil {
		s.swap(r.state)
	}
	return s, nil
}

// ScopeFrom returns the innermost open scope carried by ctx.
func ScopeFrom(ctx context.Context) (*Scope, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	if !ok || s.exited {
		return nil, false
	}
	return s, true
}

// Realm returns the entered realm.
func (s *Scope) Realm() *Realm { return s.realm }

// Context returns the context carrying the realm as ambient.
func (s *Scope) Context() context.Context { return s.ctx }

// State returns the realm VM, creating it on first use. The VM may only be
// used until Exit.
func (s *Scope) State() (*lua.LState, error) {
	if s.outer != nil {
		return s.outer.State()
	}
	if s.exited {
		return nil, oops.In("realm").With("realm", s.realm.name).Errorf("scope already exited")
	}
	r := s.realm
	if r.state == nil {
		L, err := r.newState(s)
		if err != nil {
			return nil, err
		}
		r.state = L
	}
	if !s.swapped {
		s.swap(r.state)
	}
	return r.state, nil
}

func (s *Scope) swap(L *lua.LState) {
	s.prev = L.Context()
	L.SetContext(s.ctx)
	s.swapped = true
}

// Exit restores the VM's previous context and releases the realm. Exit is
// idempotent.
func (s *Scope) Exit() {
	if s.exited {
		return
	}
	s.exited = true
	if s.outer != nil {
		return
	}
	if s.swapped && s.realm.state != nil {
		if s.prev == nil {
			s.realm.state.RemoveContext()
		} else {
			s.realm.state.SetContext(s.prev)
		}
	}
	s.realm.mu.Unlock()
}

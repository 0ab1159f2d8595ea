// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package realm_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/tollgate/tollgate/internal/archive"
	"github.com/tollgate/tollgate/internal/archive/archivetest"
	"github.com/tollgate/tollgate/internal/realm"
	"github.com/tollgate/tollgate/pkg/errutil"
)

type fixture struct {
	dir       string
	namespace *realm.Namespace
	factory   *realm.Factory
}

func newFixture(t *testing.T, aggregate map[string]archivetest.Files) *fixture {
	t.Helper()
	dir := t.TempDir()

	var agg *archive.Aggregate
	if aggregate != nil {
		var err error
		agg, err = archive.OpenAggregate(archivetest.WriteAggregate(t, dir, aggregate))
		require.NoError(t, err)
		t.Cleanup(func() { _ = agg.Close() })
	}

	ns := realm.NewNamespace()
	for _, lib := range []string{"string", "table", "math"} {
		_, err := ns.Define(lib, realm.GlobalLoader(lib))
		require.NoError(t, err)
	}
	_, err := ns.Define("tollgate.contract", realm.ValueLoader(func(L *lua.LState) lua.LValue {
		tbl := L.NewTable()
		tbl.RawSetString("version", lua.LString("1"))
		return tbl
	}))
	require.NoError(t, err)
	_, err = ns.Define("tollgate.internal.realm", realm.ValueLoader(func(L *lua.LState) lua.LValue {
		return lua.LString("secret")
	}))
	require.NoError(t, err)
	_, err = ns.Define("json", realm.ValueLoader(func(L *lua.LState) lua.LValue {
		return lua.LString("host-json")
	}))
	require.NoError(t, err)

	return &fixture{
		dir:       dir,
		namespace: ns,
		factory:   realm.NewFactory(archive.NewResolver(agg), ns),
	}
}

func (f *fixture) build(t *testing.T, name string, files archivetest.Files, deps ...archive.Location) *realm.Realm {
	t.Helper()
	bundle := archivetest.WriteDir(t, filepath.Join(f.dir, name), files)
	r, err := f.factory.Build(context.Background(), name, archive.File(bundle), deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// run executes code in r and returns its single result.
func run(t *testing.T, r *realm.Realm, code string) lua.LValue {
	t.Helper()
	scope, err := r.Enter(context.Background())
	require.NoError(t, err)
	defer scope.Exit()

	L, err := scope.State()
	require.NoError(t, err)
	fn, err := L.LoadString(code)
	require.NoError(t, err)
	L.Push(fn)
	require.NoError(t, L.PCall(0, 1, nil))
	v := L.Get(-1)
	L.Pop(1)
	return v
}

func runErr(t *testing.T, r *realm.Realm, code string) error {
	t.Helper()
	scope, err := r.Enter(context.Background())
	require.NoError(t, err)
	defer scope.Exit()

	L, err := scope.State()
	require.NoError(t, err)
	return L.DoString(code)
}

func TestRealm_SharedSymbolsAreIdentical(t *testing.T) {
	f := newFixture(t, nil)
	a := f.build(t, "alpha", archivetest.Files{"main.lua": ""})
	b := f.build(t, "beta", archivetest.Files{"main.lua": ""})

	host, ok := f.namespace.Lookup("tollgate.contract")
	require.True(t, ok)

	for _, r := range []*realm.Realm{a, b} {
		sym, err := r.Resolve("tollgate.contract")
		require.NoError(t, err)
		assert.Same(t, host, sym)
		assert.False(t, sym.Local())
		assert.Equal(t, "host", sym.Origin())
	}
}

func TestRealm_SharedSymbolCannotBeShadowed(t *testing.T) {
	f := newFixture(t, nil)
	r := f.build(t, "shadow", archivetest.Files{
		"tollgate/contract.lua": "return 'fake contract'",
	})

	sym, err := r.Resolve("tollgate.contract")
	require.NoError(t, err)
	assert.False(t, sym.Local())

	got := run(t, r, `return require("tollgate.contract").version`)
	assert.Equal(t, lua.LString("1"), got)
}

func TestRealm_DeniedSymbols(t *testing.T) {
	f := newFixture(t, nil)
	realms := []*realm.Realm{
		f.build(t, "alpha", archivetest.Files{"main.lua": ""}),
		f.build(t, "beta", archivetest.Files{"os.lua": "return {}", "tollgate/internal/realm.lua": "return {}"}),
	}

	for _, r := range realms {
		for _, name := range []string{"tollgate.internal.realm", "tollgate.internal.anything", "os", "io", "debug", "package"} {
			t.Run(r.Name()+"/"+name, func(t *testing.T) {
				_, err := r.Resolve(name)
				require.ErrorIs(t, err, realm.ErrSymbolDenied)
				errutil.AssertErrorCode(t, err, "SYMBOL_DENIED")

				err = runErr(t, r, `require("`+name+`")`)
				require.Error(t, err)
				assert.Contains(t, err.Error(), "not visible")
			})
		}
	}
}

func TestRealm_RealmFirstResolution(t *testing.T) {
	f := newFixture(t, nil)
	bundled := f.build(t, "bundled", archivetest.Files{"json.lua": "return 'plugin-json'"})
	plain := f.build(t, "plain", archivetest.Files{"main.lua": ""})

	sym, err := bundled.Resolve("json")
	require.NoError(t, err)
	assert.True(t, sym.Local())
	assert.Equal(t, "json.lua", sym.Path)

	hostJSON, _ := f.namespace.Lookup("json")
	sym, err = plain.Resolve("json")
	require.NoError(t, err)
	assert.Same(t, hostJSON, sym)

	assert.Equal(t, lua.LString("plugin-json"), run(t, bundled, `return require("json")`))
	assert.Equal(t, lua.LString("host-json"), run(t, plain, `return require("json")`))
}

func TestRealm_ConflictingLibraryVersions(t *testing.T) {
	f := newFixture(t, nil)
	v1 := f.build(t, "v1", archivetest.Files{"money/init.lua": "return { version = '1.4.0' }"})
	v2 := f.build(t, "v2", archivetest.Files{"money/init.lua": "return { version = '2.0.1' }"})

	assert.Equal(t, lua.LString("1.4.0"), run(t, v1, `return require("money").version`))
	assert.Equal(t, lua.LString("2.0.1"), run(t, v2, `return require("money").version`))
}

func TestRealm_SearchPathOrder(t *testing.T) {
	f := newFixture(t, map[string]archivetest.Files{
		"lib/money.zip": {"money.lua": "return 'nested-money'", "fmt.lua": "return 'nested-fmt'"},
	})
	depDir := archivetest.WriteDir(t, filepath.Join(f.dir, "deps", "fmt"), archivetest.Files{
		"fmt.lua":   "return 'file-fmt'",
		"extra.lua": "return 'file-extra'",
	})
	r := f.build(t, "ordered",
		archivetest.Files{"money.lua": "return 'own-money'"},
		archive.Nested("lib/money.zip"),
		archive.File(depDir),
	)

	path := r.SearchPath()
	require.Len(t, path, 3)
	assert.Equal(t, archive.KindBundle, path[0].Kind)
	assert.Equal(t, archive.KindNested, path[1].Kind)
	assert.Equal(t, "nested:lib/money.zip", path[1].Location.String())
	assert.Equal(t, archive.KindFile, path[2].Kind)
	assert.Equal(t, depDir, path[2].Location.Path())

	assert.Equal(t, lua.LString("own-money"), run(t, r, `return require("money")`))
	assert.Equal(t, lua.LString("nested-fmt"), run(t, r, `return require("fmt")`))
	assert.Equal(t, lua.LString("file-extra"), run(t, r, `return require("extra")`))
}

func TestFactory_BuildMissingNestedEntry(t *testing.T) {
	f := newFixture(t, map[string]archivetest.Files{
		"lib/money.zip": {"money.lua": "return 1"},
	})
	bundle := archivetest.WriteDir(t, filepath.Join(f.dir, "broken"), archivetest.Files{"main.lua": ""})

	_, err := f.factory.Build(context.Background(), "broken", archive.File(bundle), []archive.Location{
		archive.Nested("lib/money.zip"),
		archive.Nested("lib/absent.zip"),
	})
	require.ErrorIs(t, err, archive.ErrBundleEntryNotFound)
	errutil.AssertErrorCode(t, err, "BUNDLE_ENTRY_NOT_FOUND")
}

func TestFactory_BuildNestedBundle(t *testing.T) {
	f := newFixture(t, map[string]archivetest.Files{
		"plugins/stripe.zip": {"main.lua": "return 'from-aggregate'"},
	})

	r, err := f.factory.Build(context.Background(), "stripe", archive.Nested("plugins/stripe.zip"), nil)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, archive.KindNested, r.SearchPath()[0].Kind)
	assert.Equal(t, lua.LString("from-aggregate"), run(t, r, `return require("main")`))
}

func TestRealm_RequireCachesModules(t *testing.T) {
	f := newFixture(t, nil)
	r := f.build(t, "cache", archivetest.Files{
		"counter.lua": "count = (count or 0) + 1\nreturn {}",
	})

	got := run(t, r, `
		local a = require("counter")
		local b = require("counter")
		return a == b and count == 1
	`)
	assert.Equal(t, lua.LTrue, got)
}

func TestRealm_RequireErrors(t *testing.T) {
	f := newFixture(t, nil)
	r := f.build(t, "errors", archivetest.Files{
		"loop_a.lua": "return require('loop_b')",
		"loop_b.lua": "return require('loop_a')",
		"bad.lua":    "this is not lua",
		"raises.lua": "error('module failed')",
	})

	tests := []struct {
		name string
		code string
		want string
	}{
		{name: "missing", code: `require("nope")`, want: "not found"},
		{name: "invalid name", code: `require("../etc/passwd")`, want: "not found"},
		{name: "loop", code: `require("loop_a")`, want: "loop"},
		{name: "syntax", code: `require("bad")`, want: "bad.lua"},
		{name: "raises", code: `require("raises")`, want: "module failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runErr(t, r, tt.code)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	// A failed load is not cached.
	err := runErr(t, r, `require("raises")`)
	assert.ErrorContains(t, err, "module failed")
}

func TestRealm_UnsafeGlobalsRemoved(t *testing.T) {
	f := newFixture(t, nil)
	r := f.build(t, "sandbox", archivetest.Files{"main.lua": ""})

	got := run(t, r, `return dofile == nil and loadfile == nil and loadstring == nil and load == nil and os == nil and io == nil`)
	assert.Equal(t, lua.LTrue, got)
}

func TestRealm_Close(t *testing.T) {
	f := newFixture(t, nil)
	bundle := archivetest.WriteDir(t, filepath.Join(f.dir, "closing"), archivetest.Files{"main.lua": ""})
	r, err := f.factory.Build(context.Background(), "closing", archive.File(bundle), nil)
	require.NoError(t, err)

	run(t, r, `return 1`)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.Enter(context.Background())
	require.ErrorIs(t, err, realm.ErrRealmClosed)
}

func TestRealm_Identity(t *testing.T) {
	f := newFixture(t, nil)
	a := f.build(t, "alpha", archivetest.Files{"main.lua": ""})
	b := f.build(t, "alpha2", archivetest.Files{"main.lua": ""})

	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, "alpha", a.Name())
	assert.Contains(t, a.String(), a.ID())
}

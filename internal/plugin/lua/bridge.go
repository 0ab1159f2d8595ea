// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package lua

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
)

// toGo converts a Lua value to plain Go values: tables become
// map[string]any or []any, empty tables become nil.
func toGo(lv lua.LValue) any {
	return toGoVisited(lv, make(map[*lua.LTable]bool))
}

func toGoVisited(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case nil, *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		defer delete(visited, v)
		return tableToGo(v, visited)
	case *lua.LUserData:
		return v.Value
	default:
		return nil
	}
}

func tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	isArray := true
	maxN, count := 0, 0
	t.ForEach(func(k, _ lua.LValue) {
		count++
		if kn, ok := k.(lua.LNumber); ok {
			n := int(kn)
			if float64(n) == float64(kn) && n > 0 {
				maxN = max(maxN, n)
				return
			}
		}
		isArray = false
	})

	if count == 0 {
		return nil
	}

	if isArray && count == maxN {
		arr := make([]any, maxN)
		for i := 1; i <= maxN; i++ {
			arr[i-1] = toGoVisited(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = kv.String()
		default:
			return
		}
		m[key] = toGoVisited(v, visited)
	})
	return m
}

// toLua converts plain Go values, maps, slices, and structs to Lua.
// Structs are flattened through their mapstructure tags first.
func toLua(L *lua.LState, v any) (lua.LValue, error) {
	if v == nil {
		return lua.LNil, nil
	}
	switch val := v.(type) {
	case lua.LValue:
		return val, nil
	case bool:
		return lua.LBool(val), nil
	case string:
		return lua.LString(val), nil
	case int:
		return lua.LNumber(val), nil
	case int64:
		return lua.LNumber(val), nil
	case float64:
		return lua.LNumber(val), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return lua.LNil, nil
		}
		return toLua(L, rv.Elem().Interface())
	case reflect.Bool:
		return lua.LBool(rv.Bool()), nil
	case reflect.String:
		return lua.LString(rv.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return lua.LNumber(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return lua.LNumber(rv.Float()), nil
	case reflect.Slice, reflect.Array:
		tbl := L.CreateTable(rv.Len(), 0)
		for i := range rv.Len() {
			item, err := toLua(L, rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			tbl.Append(item)
		}
		return tbl, nil
	case reflect.Map:
		tbl := L.CreateTable(0, rv.Len())
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j]) })
		for _, k := range keys {
			item, err := toLua(L, rv.MapIndex(k).Interface())
			if err != nil {
				return nil, err
			}
			tbl.RawSetString(fmt.Sprint(k.Interface()), item)
		}
		return tbl, nil
	case reflect.Struct:
		var flat map[string]any
		if err := mapstructure.Decode(v, &flat); err != nil {
			return nil, oops.In("lua").With("type", rv.Type().String()).Wrap(err)
		}
		return toLua(L, flat)
	default:
		return nil, oops.In("lua").With("type", rv.Type().String()).Errorf("cannot convert value to Lua")
	}
}

// decode converts a Lua value into out, a pointer to a struct tagged for
// mapstructure. Numbers and strings convert into each other.
func decode(lv lua.LValue, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "mapstructure",
		Squash:           true,
	})
	if err != nil {
		return oops.In("lua").Wrap(err)
	}
	if err := dec.Decode(toGo(lv)); err != nil {
		return oops.In("lua").With("type", fmt.Sprintf("%T", out)).Hint("plugin returned a malformed value").Wrap(err)
	}
	return nil
}

package script

import (
	"fmt"
	"strconv"

	lua "github.com/yuin/gopher-lua"
)

// maxDepth bounds conversion of self-referencing tables.
const maxDepth = 64

// toLua converts a Go value into a Lua value. Maps become hash tables and
// slices become 1-based arrays.
func toLua(L *lua.LState, v any) lua.LValue {
	switch t := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return t
	case string:
		return lua.LString(t)
	case []byte:
		return lua.LString(string(t))
	case bool:
		return lua.LBool(t)
	case float64:
		return lua.LNumber(t)
	case float32:
		return lua.LNumber(t)
	case int:
		return lua.LNumber(t)
	case int64:
		return lua.LNumber(t)
	case int32:
		return lua.LNumber(t)
	case uint64:
		return lua.LNumber(t)
	case map[string]any:
		tbl := L.CreateTable(0, len(t))
		for k, val := range t {
			tbl.RawSetString(k, toLua(L, val))
		}
		return tbl
	case map[string]string:
		tbl := L.CreateTable(0, len(t))
		for k, val := range t {
			tbl.RawSetString(k, lua.LString(val))
		}
		return tbl
	case map[string][]string:
		tbl := L.CreateTable(0, len(t))
		for k, vals := range t {
			tbl.RawSetString(k, toLua(L, vals))
		}
		return tbl
	case []any:
		tbl := L.CreateTable(len(t), 0)
		for i, val := range t {
			tbl.RawSetInt(i+1, toLua(L, val))
		}
		return tbl
	case []string:
		tbl := L.CreateTable(len(t), 0)
		for i, val := range t {
			tbl.RawSetInt(i+1, lua.LString(val))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprint(v))
	}
}

// fromLua converts a Lua value into plain Go values: nil, bool, float64,
// string, []any for sequences and map[string]any for other tables.
func fromLua(v lua.LValue, depth int) any {
	if depth > maxDepth {
		return nil
	}
	switch t := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(t)
	case lua.LNumber:
		return float64(t)
	case lua.LString:
		return string(t)
	case *lua.LTable:
		return tableFromLua(t, depth)
	default:
		return v.String()
	}
}

func tableFromLua(t *lua.LTable, depth int) any {
	n := t.MaxN()
	count := 0
	t.ForEach(func(lua.LValue, lua.LValue) { count++ })

	if n > 0 && n == count {
		list := make([]any, n)
		for i := 1; i <= n; i++ {
			list[i-1] = fromLua(t.RawGetInt(i), depth+1)
		}
		return list
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, val lua.LValue) {
		var key string
		switch kk := k.(type) {
		case lua.LString:
			key = string(kk)
		case lua.LNumber:
			key = strconv.FormatFloat(float64(kk), 'f', -1, 64)
		default:
			key = k.String()
		}
		m[key] = fromLua(val, depth+1)
	})
	return m
}

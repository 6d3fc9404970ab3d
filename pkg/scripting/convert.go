package scripting

import (
	"fmt"
	"sort"

	lua "github.com/yuin/gopher-lua"
)

// convertGoToLua converts a Go value into a Lua value. Maps and slices become
// tables; unsupported types are passed as their string form.
func convertGoToLua(L *lua.LState, value interface{}) lua.LValue {
	switch v := value.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return v
	case bool:
		return lua.LBool(v)
	case string:
		return lua.LString(v)
	case int:
		return lua.LNumber(v)
	case int32:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case float32:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case []string:
		t := L.NewTable()
		for _, s := range v {
			t.Append(lua.LString(s))
		}
		return t
	case []float32:
		t := L.NewTable()
		for _, f := range v {
			t.Append(lua.LNumber(f))
		}
		return t
	case []interface{}:
		t := L.NewTable()
		for _, item := range v {
			t.Append(convertGoToLua(L, item))
		}
		return t
	case map[string]string:
		t := L.NewTable()
		for k, s := range v {
			t.RawSetString(k, lua.LString(s))
		}
		return t
	case map[string]interface{}:
		t := L.NewTable()
		for k, item := range v {
			t.RawSetString(k, convertGoToLua(L, item))
		}
		return t
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}

// convertLuaToGo converts a Lua value into plain Go values. Numbers become
// float64; tables with only consecutive integer keys starting at 1 become
// []interface{}, other tables map[string]interface{}.
func convertLuaToGo(value lua.LValue) interface{} {
	switch v := value.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LString:
		return string(v)
	case lua.LNumber:
		return float64(v)
	case *lua.LTable:
		return convertTable(v)
	default:
		return v.String()
	}
}

func convertTable(t *lua.LTable) interface{} {
	n := t.Len()
	count := 0
	t.ForEach(func(lua.LValue, lua.LValue) { count++ })

	if n > 0 && n == count {
		list := make([]interface{}, 0, n)
		for i := 1; i <= n; i++ {
			list = append(list, convertLuaToGo(t.RawGetInt(i)))
		}
		return list
	}

	m := make(map[string]interface{}, count)
	t.ForEach(func(k, val lua.LValue) {
		m[k.String()] = convertLuaToGo(val)
	})
	return m
}

// sortedKeys returns the keys of m in lexical order.
func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

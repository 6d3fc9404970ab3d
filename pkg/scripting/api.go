package scripting

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lexlapax/recall/pkg/log"
	lua "github.com/yuin/gopher-lua"
)

// registerAPIFunctions exposes Go helpers to Lua scripts in the "recall" table.
func registerAPIFunctions(L *lua.LState) {
	recall := L.NewTable()

	L.SetField(recall, "log", L.NewFunction(apiLog))
	L.SetField(recall, "now", L.NewFunction(apiNow))
	L.SetField(recall, "format_time", L.NewFunction(apiFormatTime))
	L.SetField(recall, "uuid", L.NewFunction(apiUUID))
	L.SetField(recall, "json_encode", L.NewFunction(apiJSONEncode))
	L.SetField(recall, "json_decode", L.NewFunction(apiJSONDecode))
	L.SetField(recall, "trim", L.NewFunction(apiTrim))
	L.SetField(recall, "normalize_key", L.NewFunction(apiNormalizeKey))

	L.SetGlobal("recall", recall)
}

// apiLog logs a message from Lua: recall.log(level, message [, fields]).
func apiLog(L *lua.LState) int {
	level := L.CheckString(1)
	message := L.CheckString(2)

	var attrs []any
	if fields, ok := L.Get(3).(*lua.LTable); ok {
		if m, ok := convertTable(fields).(map[string]interface{}); ok {
			for _, k := range sortedKeys(m) {
				attrs = append(attrs, k, m[k])
			}
		}
	}
	attrs = append([]any{"message", message}, attrs...)

	switch level {
	case "debug":
		log.Debug("Lua script message", attrs...)
	case "warn", "warning":
		log.Warn("Lua script message", attrs...)
	case "error":
		log.Error("Lua script message", attrs...)
	default:
		log.Info("Lua script message", attrs...)
	}

	return 0
}

// apiNow returns the current time as a Unix timestamp.
func apiNow(L *lua.LState) int {
	L.Push(lua.LNumber(time.Now().Unix()))
	return 1
}

// apiFormatTime formats a Unix timestamp as a string.
func apiFormatTime(L *lua.LState) int {
	timestamp := L.CheckNumber(1)
	format := L.OptString(2, time.RFC3339)

	t := time.Unix(int64(timestamp), 0).UTC()
	L.Push(lua.LString(t.Format(format)))
	return 1
}

// apiUUID generates a random UUID string.
func apiUUID(L *lua.LState) int {
	L.Push(lua.LString(uuid.NewString()))
	return 1
}

// apiJSONEncode encodes a Lua value as JSON. On failure it returns nil and
// the error message.
func apiJSONEncode(L *lua.LState) int {
	value := L.CheckAny(1)

	data, err := json.Marshal(convertLuaToGo(value))
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	L.Push(lua.LString(data))
	return 1
}

// apiJSONDecode decodes a JSON string into a Lua value. On failure it returns
// nil and the error message.
func apiJSONDecode(L *lua.LState) int {
	jsonStr := L.CheckString(1)

	var value interface{}
	if err := json.Unmarshal([]byte(jsonStr), &value); err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	L.Push(convertGoToLua(L, value))
	return 1
}

// apiTrim removes surrounding whitespace.
func apiTrim(L *lua.LState) int {
	L.Push(lua.LString(strings.TrimSpace(L.CheckString(1))))
	return 1
}

// apiNormalizeKey lowercases a key and joins its words with underscores, so
// "Favorite Color" becomes "favorite_color".
func apiNormalizeKey(L *lua.LState) int {
	words := strings.FieldsFunc(strings.ToLower(L.CheckString(1)), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	})
	L.Push(lua.LString(strings.Join(words, "_")))
	return 1
}

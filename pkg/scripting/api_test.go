package scripting

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadAPIScript(t *testing.T, script string) *LuaEngine {
	t.Helper()

	engine, err := NewLuaEngine(DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	require.NoError(t, engine.LoadScript("api_test", []byte(script)))
	return engine
}

func TestLuaAPI_Log(t *testing.T) {
	engine := loadAPIScript(t, `
		function test_log()
			recall.log("info", "This is a test log message")
			recall.log("error", "This is an error message", {key = "favorite_color"})
			recall.log("debug", "This is a debug message")
			print("printed", 1)
			return "log messages sent"
		end
	`)

	result, err := engine.ExecuteFunction(context.Background(), "test_log")
	assert.NoError(t, err)
	assert.Equal(t, "log messages sent", result)
}

func TestLuaAPI_Now(t *testing.T) {
	engine := loadAPIScript(t, `
		function test_now()
			return recall.now()
		end
	`)

	result, err := engine.ExecuteFunction(context.Background(), "test_now")
	require.NoError(t, err)

	ts, ok := result.(float64)
	require.True(t, ok, "Expected timestamp to be a number")
	assert.InDelta(t, time.Now().Unix(), ts, 60)
}

func TestLuaAPI_FormatTime(t *testing.T) {
	engine := loadAPIScript(t, `
		function test_format_time()
			return recall.format_time(1609459200)
		end

		function test_format_time_custom()
			return recall.format_time(1609459200, "2006-01-02")
		end
	`)

	result, err := engine.ExecuteFunction(context.Background(), "test_format_time")
	assert.NoError(t, err)
	assert.Equal(t, "2021-01-01T00:00:00Z", result)

	result, err = engine.ExecuteFunction(context.Background(), "test_format_time_custom")
	assert.NoError(t, err)
	assert.Equal(t, "2021-01-01", result)
}

func TestLuaAPI_UUID(t *testing.T) {
	engine := loadAPIScript(t, `
		function test_uuid()
			local id1 = recall.uuid()
			local id2 = recall.uuid()
			if id1 == id2 then
				return "duplicate"
			end
			return id1
		end
	`)

	result, err := engine.ExecuteFunction(context.Background(), "test_uuid")
	require.NoError(t, err)

	_, err = uuid.Parse(result.(string))
	assert.NoError(t, err)
}

func TestLuaAPI_JSON(t *testing.T) {
	engine := loadAPIScript(t, `
		function test_encode()
			return recall.json_encode({name = "test", value = 123, tags = {"a", "b"}})
		end

		function test_decode(raw)
			local decoded = recall.json_decode(raw)
			return decoded.facts[1].key .. "=" .. decoded.facts[1].value
		end

		function test_decode_invalid()
			local value, err = recall.json_decode("{not json")
			if value == nil and err ~= nil then
				return "error reported"
			end
			return "no error"
		end
	`)
	ctx := context.Background()

	result, err := engine.ExecuteFunction(ctx, "test_encode")
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(result.(string)), &decoded))
	assert.Equal(t, "test", decoded["name"])
	assert.Equal(t, float64(123), decoded["value"])
	assert.Equal(t, []interface{}{"a", "b"}, decoded["tags"])

	result, err = engine.ExecuteFunction(ctx, "test_decode", `{"facts": [{"key": "favorite_color", "value": "blue"}]}`)
	require.NoError(t, err)
	assert.Equal(t, "favorite_color=blue", result)

	result, err = engine.ExecuteFunction(ctx, "test_decode_invalid")
	require.NoError(t, err)
	assert.Equal(t, "error reported", result)
}

func TestLuaAPI_StringHelpers(t *testing.T) {
	engine := loadAPIScript(t, `
		function test_trim(s)
			return recall.trim(s)
		end

		function test_normalize(s)
			return recall.normalize_key(s)
		end
	`)
	ctx := context.Background()

	result, err := engine.ExecuteFunction(ctx, "test_trim", "  blue \n")
	require.NoError(t, err)
	assert.Equal(t, "blue", result)

	result, err = engine.ExecuteFunction(ctx, "test_normalize", " Favorite  Color-Name ")
	require.NoError(t, err)
	assert.Equal(t, "favorite_color_name", result)
}

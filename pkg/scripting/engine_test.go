package scripting

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lexlapax/recall/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLuaEngine_LoadScript(t *testing.T) {
	engine, err := NewLuaEngine(DefaultConfig())
	require.NoError(t, err)
	defer engine.Close()

	require.NoError(t, engine.LoadScript("hooks", []byte(`
		function before_encode(fact)
			return fact
		end
	`)))
	assert.True(t, engine.HasFunction("before_encode"))
	assert.False(t, engine.HasFunction("after_encode"))

	err = engine.LoadScript("broken", []byte(`
		function before_encode(fact
			return fact
		end
	`))
	assert.True(t, errors.Is(err, errors.ErrLuaExecution))

	// A failed load leaves earlier definitions in place
	assert.True(t, engine.HasFunction("before_encode"))
}

func TestLuaEngine_ExecuteFunction(t *testing.T) {
	engine, err := NewLuaEngine(DefaultConfig())
	require.NoError(t, err)
	defer engine.Close()

	require.NoError(t, engine.LoadScript("facts", []byte(`
		function describe(fact)
			return fact.key .. " = " .. fact.value .. " (#" .. fact.id .. ")"
		end

		function score(a, b)
			return a * 0.3 + b * 0.7
		end

		function as_record()
			return {key = "pet", value = "cat", meta = {source = "lua"}}
		end

		function categories()
			return {"personal", "preferences", "work"}
		end

		function veto()
			return false
		end

		function nothing()
		end

		function fail()
			error("boom")
		end
	`)))

	ctx := context.Background()

	t.Run("map argument", func(t *testing.T) {
		result, err := engine.ExecuteFunction(ctx, "describe", map[string]interface{}{
			"id": int64(7), "key": "favorite_color", "value": "blue",
		})
		require.NoError(t, err)
		assert.Equal(t, "favorite_color = blue (#7)", result)
	})

	t.Run("numbers", func(t *testing.T) {
		result, err := engine.ExecuteFunction(ctx, "score", 1, 2)
		require.NoError(t, err)
		assert.InDelta(t, 1.7, result, 1e-9)
	})

	t.Run("table return", func(t *testing.T) {
		result, err := engine.ExecuteFunction(ctx, "as_record")
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{
			"key":   "pet",
			"value": "cat",
			"meta":  map[string]interface{}{"source": "lua"},
		}, result)
	})

	t.Run("list return", func(t *testing.T) {
		result, err := engine.ExecuteFunction(ctx, "categories")
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"personal", "preferences", "work"}, result)
	})

	t.Run("boolean return", func(t *testing.T) {
		result, err := engine.ExecuteFunction(ctx, "veto")
		require.NoError(t, err)
		assert.Equal(t, false, result)
	})

	t.Run("no return value", func(t *testing.T) {
		result, err := engine.ExecuteFunction(ctx, "nothing")
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("runtime error", func(t *testing.T) {
		_, err := engine.ExecuteFunction(ctx, "fail")
		assert.True(t, errors.Is(err, errors.ErrLuaExecution))
		assert.ErrorContains(t, err, "boom")
	})

	t.Run("undefined function", func(t *testing.T) {
		_, err := engine.ExecuteFunction(ctx, "after_encode")
		assert.True(t, errors.Is(err, errors.ErrFunctionNotFound))
	})
}

func TestLuaEngine_Timeout(t *testing.T) {
	engine, err := NewLuaEngine(Config{EnableSandboxing: true, ScriptTimeoutMs: 50})
	require.NoError(t, err)
	defer engine.Close()

	require.NoError(t, engine.LoadScript("spin", []byte(`
		function spin()
			while true do end
		end

		function quick()
			return "ok"
		end
	`)))

	start := time.Now()
	_, err = engine.ExecuteFunction(context.Background(), "spin")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrLuaExecution))
	assert.Less(t, time.Since(start), 5*time.Second)

	// The state stays usable after an interrupted call
	result, err := engine.ExecuteFunction(context.Background(), "quick")
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestLuaEngine_Sandboxing(t *testing.T) {
	engine, err := NewLuaEngine(DefaultConfig())
	require.NoError(t, err)
	defer engine.Close()

	err = engine.LoadScript("sandbox_test", []byte(`
		function probe(name)
			if _G[name] == nil then
				return name .. " is nil"
			end
			return name .. " is available"
		end

		function safe_libs()
			return string.upper("ok") .. table.concat({"-", "x"}) .. tostring(math.floor(1.5))
		end
	`))
	require.NoError(t, err)

	for _, name := range []string{"os", "io", "require", "dofile", "loadfile", "load", "package"} {
		result, err := engine.ExecuteFunction(context.Background(), "probe", name)
		assert.NoError(t, err)
		assert.Equal(t, name+" is nil", result)
	}

	result, err := engine.ExecuteFunction(context.Background(), "safe_libs")
	require.NoError(t, err)
	assert.Equal(t, "OK-x1", result)
}

func TestLuaEngine_WithoutSandbox(t *testing.T) {
	engine, err := NewLuaEngine(Config{EnableSandboxing: false})
	require.NoError(t, err)
	defer engine.Close()

	require.NoError(t, engine.LoadScript("os_test", []byte(`
		function has_os()
			return os ~= nil
		end
	`)))

	result, err := engine.ExecuteFunction(context.Background(), "has_os")
	require.NoError(t, err)
	assert.Equal(t, true, result)
}

func TestLuaEngine_LoadScriptFile(t *testing.T) {
	engine, err := NewLuaEngine(DefaultConfig())
	require.NoError(t, err)
	defer engine.Close()

	scriptPath := filepath.Join(t.TempDir(), "test.lua")
	require.NoError(t, os.WriteFile(scriptPath, []byte(`
		function file_test()
			return "File loaded successfully"
		end
	`), 0o600))

	require.NoError(t, engine.LoadScriptFile(scriptPath))

	result, err := engine.ExecuteFunction(context.Background(), "file_test")
	assert.NoError(t, err)
	assert.Equal(t, "File loaded successfully", result)

	assert.Error(t, engine.LoadScriptFile(filepath.Join(t.TempDir(), "missing.lua")))
}

func TestLuaEngine_LoadScriptDir(t *testing.T) {
	engine, err := NewLuaEngine(DefaultConfig())
	require.NoError(t, err)
	defer engine.Close()

	tmpDir := t.TempDir()

	// Later files see globals from earlier ones
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "01_base.lua"), []byte(`
		prefix = "Script"
		function script1_test()
			return prefix .. " 1"
		end
	`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "02_more.lua"), []byte(`
		function script2_test()
			return prefix .. " 2"
		end
	`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "not_a_script.txt"), []byte(`This is not Lua`), 0o600))

	require.NoError(t, engine.LoadScriptDir(tmpDir))

	result1, err := engine.ExecuteFunction(context.Background(), "script1_test")
	assert.NoError(t, err)
	assert.Equal(t, "Script 1", result1)

	result2, err := engine.ExecuteFunction(context.Background(), "script2_test")
	assert.NoError(t, err)
	assert.Equal(t, "Script 2", result2)
}

func TestLuaEngine_Closed(t *testing.T) {
	engine, err := NewLuaEngine(DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, engine.Close())
	require.NoError(t, engine.Close())

	assert.Error(t, engine.LoadScript("x", []byte(`x = 1`)))
	assert.False(t, engine.HasFunction("x"))
	_, err = engine.ExecuteFunction(context.Background(), "x")
	assert.Error(t, err)
}

package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lexlapax/recall/pkg/errors"
	"github.com/lexlapax/recall/pkg/log"
	lua "github.com/yuin/gopher-lua"
)

// LuaEngine implements Engine on top of gopher-lua. A single Lua state is
// shared by all loaded scripts, so they see each other's globals.
type LuaEngine struct {
	config Config

	// mu serializes access to the Lua state, which is not goroutine safe
	mu     sync.Mutex
	state  *lua.LState
	closed bool
}

// NewLuaEngine creates a Lua state configured according to config.
func NewLuaEngine(config Config) (*LuaEngine, error) {
	var L *lua.LState
	if config.EnableSandboxing {
		L = lua.NewState(lua.Options{SkipOpenLibs: true})
		if err := setupSandbox(L); err != nil {
			L.Close()
			return nil, err
		}
	} else {
		L = lua.NewState()
	}

	registerAPIFunctions(L)

	log.Debug("Created Lua scripting engine",
		"sandboxed", config.EnableSandboxing,
		"timeout_ms", config.ScriptTimeoutMs)

	return &LuaEngine{config: config, state: L}, nil
}

// LoadScript implements Engine.
func (e *LuaEngine) LoadScript(name string, content []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("scripting engine is closed")
	}

	fn, err := e.state.Load(strings.NewReader(string(content)), name)
	if err != nil {
		log.Error("Failed to compile Lua script", "script", name, "error", err)
		return errors.Mark(fmt.Errorf("compile %s: %w", name, err), errors.ErrLuaExecution)
	}

	e.state.Push(fn)
	if err := e.state.PCall(0, lua.MultRet, nil); err != nil {
		log.Error("Failed to run Lua script", "script", name, "error", err)
		return errors.Mark(fmt.Errorf("run %s: %w", name, err), errors.ErrLuaExecution)
	}

	log.Debug("Loaded Lua script", "script", name)
	return nil
}

// LoadScriptFile implements Engine.
func (e *LuaEngine) LoadScriptFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script %s: %w", path, err)
	}
	return e.LoadScript(filepath.Base(path), content)
}

// LoadScriptDir implements Engine. Files are loaded in lexical order; files
// without a .lua extension are ignored.
func (e *LuaEngine) LoadScriptDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read script directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := e.LoadScriptFile(p); err != nil {
			return err
		}
	}

	log.Debug("Loaded Lua script directory", "dir", dir, "scripts", len(paths))
	return nil
}

// HasFunction implements Engine.
func (e *LuaEngine) HasFunction(funcName string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false
	}
	_, ok := e.state.GetGlobal(funcName).(*lua.LFunction)
	return ok
}

// ExecuteFunction implements Engine. The call is bounded by ctx and by the
// configured script timeout.
func (e *LuaEngine) ExecuteFunction(ctx context.Context, funcName string, args ...interface{}) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, fmt.Errorf("scripting engine is closed")
	}

	fn, ok := e.state.GetGlobal(funcName).(*lua.LFunction)
	if !ok {
		return nil, errors.Mark(fmt.Errorf("function %q is not defined", funcName), errors.ErrFunctionNotFound)
	}

	if e.config.ScriptTimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.config.ScriptTimeoutMs)*time.Millisecond)
		defer cancel()
	}
	e.state.SetContext(ctx)
	defer e.state.RemoveContext()

	luaArgs := make([]lua.LValue, len(args))
	for i, arg := range args {
		luaArgs[i] = convertGoToLua(e.state, arg)
	}

	err := e.state.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, luaArgs...)
	if err != nil {
		log.ErrorContext(ctx, "Lua function failed", "function", funcName, "error", err)
		return nil, errors.Mark(fmt.Errorf("call %s: %w", funcName, err), errors.ErrLuaExecution)
	}

	ret := e.state.Get(-1)
	e.state.Pop(1)

	return convertLuaToGo(ret), nil
}

// Close implements Engine.
func (e *LuaEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.closed {
		e.state.Close()
		e.closed = true
	}
	return nil
}

package scripting

import (
	"fmt"

	"github.com/lexlapax/recall/pkg/log"
	lua "github.com/yuin/gopher-lua"
)

// sandboxLibs are the only libraries opened in a sandboxed state. The package
// library must be opened first because the others register through it.
var sandboxLibs = []struct {
	name string
	open lua.LGFunction
}{
	{lua.LoadLibName, lua.OpenPackage},
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// unsafeGlobals give scripts access to the filesystem or to arbitrary code
// loading and are removed after the libraries are open.
var unsafeGlobals = []string{
	"dofile", "loadfile", "load", "loadstring", "require", "module", "package", "io", "os",
}

// setupSandbox opens the safe subset of the standard library and removes
// dangerous functions from the globals.
func setupSandbox(L *lua.LState) error {
	for _, lib := range sandboxLibs {
		err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name))
		if err != nil {
			return fmt.Errorf("failed to open Lua library %s: %w", lib.name, err)
		}
	}

	for _, name := range unsafeGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	// print goes to the structured logger instead of stdout
	L.SetGlobal("print", L.NewFunction(safePrint))
	return nil
}

// safePrint redirects Lua's print to our logger.
func safePrint(L *lua.LState) int {
	top := L.GetTop()
	args := make([]interface{}, top)
	for i := 1; i <= top; i++ {
		args[i-1] = convertLuaToGo(L.Get(i))
	}

	log.Info("Lua print", "args", args)
	return 0
}

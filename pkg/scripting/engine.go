// Package scripting embeds a sandboxed Lua interpreter for user hooks. The
// memory layer calls before_encode and after_encode around every insert.
package scripting

import (
	"context"
)

// Engine runs user scripts. Scripts share one global environment, so a
// function defined by one file can be called after another file is loaded.
type Engine interface {
	LoadScript(name string, content []byte) error
	LoadScriptFile(path string) error

	// LoadScriptDir loads every .lua file in dir in lexical order.
	LoadScriptDir(dir string) error

	HasFunction(funcName string) bool

	// ExecuteFunction calls a global function. Arguments and the first
	// return value are converted between Go and Lua values; a missing
	// function yields errors.ErrFunctionNotFound.
	ExecuteFunction(ctx context.Context, funcName string, args ...interface{}) (interface{}, error)

	Close() error
}

// Config controls the interpreter. With sandboxing on, os, io and the module
// loaders are removed before any script runs. ScriptTimeoutMs bounds a single
// function call; zero disables the limit.
type Config struct {
	EnableSandboxing bool
	ScriptTimeoutMs  int
}

// DefaultConfig sandboxes scripts and stops calls after one second.
func DefaultConfig() Config {
	return Config{EnableSandboxing: true, ScriptTimeoutMs: 1000}
}

// Package sandbox implements the restricted code evaluator used by the
// Tier-3 specialist-failure recovery step and by the
// math-generation specialist: a whitelisted, IO-free expression evaluator
// with a wall-clock cutoff.
package sandbox

import (
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/alphacouncil/core/internal/errkind"
)

const (
	wallClock    = 5 * time.Second
	maxOutputLen = 4096
)

// blockedIdentifiers mirrors the original Python sandbox's blacklist
// (import, exec, eval, open, os, sys, subprocess, __import__ equivalents)
// translated to the JS globals goja exposes by default that could reach
// outside the expression. goja's default runtime does provide some of them
// (eval, Function, globalThis), so Eval rejects any expression that
// references one of these names before it runs.
var blockedIdentifiers = map[string]bool{
	"require":   true,
	"process":   true,
	"global":    true,
	"globalThis": true,
	"eval":      true,
	"Function":  true,
	"import":    true,
}

// Result is a Tier-3 recovery expression's outcome.
type Result struct {
	Value  any
	Output string
}

// newRestrictedRuntime returns a fresh goja runtime with console removed.
// Expressions see goja's standard built-ins (RegExp, JSON, Math, Date and the
// rest), which stand in for the original sandbox's allowed-module set (re,
// json, math, datetime, time, decimal, statistics, collections); no Go
// functions or extra helpers are injected.
func newRestrictedRuntime() *goja.Runtime {
	vm := goja.New()
	vm.Set("console", goja.Undefined())
	return vm
}

// Eval runs expr — a single JS expression, not a full program — under the
// restricted runtime and wall-clock cutoff. vars are bound as globals before
// evaluation (e.g. "input", "error_kind", "specialist_name").
func Eval(expr string, vars map[string]any) (Result, error) {
	for ident := range blockedIdentifiers {
		if containsIdentifier(expr, ident) {
			return Result{}, errkind.New(errkind.SandboxDenied, "expression references blocked identifier "+ident)
		}
	}

	vm := newRestrictedRuntime()
	for k, v := range vars {
		vm.Set(k, v)
	}

	done := make(chan struct{})
	timer := time.AfterFunc(wallClock, func() {
		vm.Interrupt("sandbox: wall-clock exceeded")
	})
	defer timer.Stop()

	var value goja.Value
	var runErr error
	go func() {
		defer close(done)
		value, runErr = vm.RunString(expr)
	}()
	<-done

	if runErr != nil {
		return Result{}, errkind.Wrap(errkind.SandboxDenied, "sandboxed expression failed", runErr)
	}

	exported := value.Export()
	out := fmt.Sprintf("%v", exported)
	if len(out) > maxOutputLen {
		return Result{}, errkind.New(errkind.SandboxDenied, "sandboxed expression output exceeds size cap")
	}

	return Result{Value: exported, Output: out}, nil
}

func containsIdentifier(expr, ident string) bool {
	for i := 0; i+len(ident) <= len(expr); i++ {
		if expr[i:i+len(ident)] != ident {
			continue
		}
		before := byte(' ')
		if i > 0 {
			before = expr[i-1]
		}
		after := byte(' ')
		if i+len(ident) < len(expr) {
			after = expr[i+len(ident)]
		}
		if !isIdentChar(before) && !isIdentChar(after) {
			return true
		}
	}
	return false
}

func isIdentChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

//go:build !debugger

// Package debugonly provides breakpoint targets that compile to no-ops
// unless the debugger build tag is set. Drop a BreakHere() call next to a
// suspicious dispatch or transition and run the binary with
// -tags debugger to stop there without touching the scheduling code.
package debugonly

// BreakHere is a no-op stub used as a breakpoint target in non-debugger builds.
func BreakHere() {}

// Enabled reports whether the debugger build tag is active. Always false in
// production builds.
func Enabled() bool { return false }

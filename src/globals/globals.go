/*
 * jacobin2wasm - a type-layout and dispatch-table engine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package globals holds the single long-lived configuration record a
// compilation run carries, ported from the teacher's jacobin/globals
// package (globals.GetGlobalRef(), globals.InitGlobals("test")). Unlike
// the teacher, which keeps one process-wide Global, this engine is meant
// to be embedded in a larger compiler and may run more than once in a
// process (e.g. in tests), so each engine.Engine owns its own Globals
// rather than reaching for a package-level singleton.
package globals

// Globals is the per-compilation-run configuration record.
type Globals struct {
	// Name identifies the compilation run, for log messages.
	Name string

	// IsFinish mirrors spec.md §5's scan-open/scan-close/frozen phase
	// flag: false while producers may still intern types, true once
	// PrepareFinish has run.
	IsFinish bool

	// StrictArrayElements, when true, makes registry.ArrayType fail with
	// UnsupportedArrayElement for any primitive kind it cannot map to a
	// fixed class index, rather than accepting the array with an unmapped
	// (-1) component. Defaults to true; named explicitly as a field
	// (rather than a hardcoded check) the way the teacher's own StrictJDK
	// flag names its toggles instead of hiding them in code.
	StrictArrayElements bool
}

// New returns a freshly initialized Globals for a single compilation run,
// mirroring InitGlobals(name) in the teacher.
func New(name string) *Globals {
	return &Globals{
		Name:                name,
		IsFinish:            false,
		StrictArrayElements: true,
	}
}

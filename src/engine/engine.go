/*
 * jacobin2wasm - a type-layout and dispatch-table engine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package engine assembles C1 through C8 into the single facade an
// embedding compiler drives: intern types and signatures during
// scan-open, call PrepareFinish once every consumer has finished marking
// what it needs, then read back class indices, vtable offsets and field
// layouts from the now-frozen registry. It plays the role the teacher's
// own jvm.JVMrun entry point plays for class loading: one object that
// owns the whole pipeline end to end, grounded on jacobin's own
// "one long-lived run, discarded at the end" lifecycle (globals.go,
// JVMrun.go).
package engine

import (
	"strconv"

	"jacobin2wasm/src/classfile"
	"jacobin2wasm/src/descriptor"
	"jacobin2wasm/src/dispatch"
	"jacobin2wasm/src/funcreg"
	"jacobin2wasm/src/globals"
	"jacobin2wasm/src/hierarchy"
	"jacobin2wasm/src/importemit"
	"jacobin2wasm/src/itable"
	"jacobin2wasm/src/modwriter"
	"jacobin2wasm/src/registry"
	"jacobin2wasm/src/sigresolver"
	"jacobin2wasm/src/toposort"
	"jacobin2wasm/src/trace"
)

// Engine is the facade described above. One instance serves exactly one
// compilation run (spec.md §9, "global mutable state": "one long-lived
// instance created at compile start and discarded at end").
type Engine struct {
	g   *globals.Globals
	reg *registry.Registry
	sig *sigresolver.Resolver

	cf classfile.Provider
	fn funcreg.Registry
	mw modwriter.Writer

	// Order is the emission order C5 computed; nil until PrepareFinish
	// has run.
	Order []*registry.Type
}

// New wires a fresh Engine around the three collaborators spec.md §6
// names. name identifies the run for log messages (mirrors
// globals.InitGlobals(name) in the teacher).
func New(name string, cf classfile.Provider, fn funcreg.Registry, mw modwriter.Writer) *Engine {
	g := globals.New(name)
	reg := registry.New(g)
	e := &Engine{
		g:   g,
		reg: reg,
		sig: sigresolver.New(reg),
		cf:  cf,
		fn:  fn,
		mw:  mw,
	}
	trace.Trace(trace.INFO, "engine: starting compilation run "+name)
	return e
}

// Intern returns the class-index handle for name, interning it on first
// reference. Valid only during scan-open.
func (e *Engine) Intern(name string) (*registry.Type, error) {
	return e.reg.ValueOf(name)
}

// ArrayOf returns the array handle whose component is elem, interning it
// on first reference. Valid only during scan-open.
func (e *Engine) ArrayOf(elem *registry.Type) (*registry.Type, error) {
	return e.reg.ArrayType(elem)
}

// ExternRef returns the opaque-reference pseudo-primitive usable as an
// ArrayOf argument.
func (e *Engine) ExternRef() *registry.Type {
	return e.reg.ExternRef()
}

// ResolveSignature parses one type descriptor into its handle (C2),
// interning any class or array it mentions for the first time.
func (e *Engine) ResolveSignature(desc string) (*registry.Type, error) {
	return e.sig.ValueOfSig(desc)
}

// UseField records that some consumer will need field name in whatever
// class's layout ends up carrying it; the hierarchy scanner only lays
// out fields that were marked this way before PrepareFinish.
func (e *Engine) UseField(name string) {
	e.reg.UseFieldName(name)
}

// Object returns java/lang/Object's handle.
func (e *Engine) Object() *registry.Type {
	return e.reg.Object()
}

// Get looks up an already-interned class or interface by name.
func (e *Engine) Get(name string) *registry.Type {
	return e.reg.Get(name)
}

// Size is the number of distinct types interned so far.
func (e *Engine) Size() int {
	return e.reg.Size()
}

// PrepareFinish closes the scan-open phase and runs C3 through C8 in
// sequence (spec.md §5 scan-close, §4.3-§4.8): hierarchy scan, itable
// build, topological order, descriptor emission, import emission, and
// dispatch stub synthesis. It also registers the pre-declared
// classConstant factory function (spec.md §6) so call sites can
// reference it the moment compilation finishes. Any failure aborts the
// whole run and is returned unwrapped, per spec.md §7 ("not recovered
// locally").
func (e *Engine) PrepareFinish() error {
	e.reg.PrepareFinish()
	trace.Trace(trace.INFO, "engine: scan-close; running C3-C8")

	hs := hierarchy.New(e.reg, e.cf, e.fn)
	if err := hs.ScanAll(); err != nil {
		return err
	}

	ib := itable.New(e.reg, e.cf, e.fn)
	if err := ib.BuildAll(); err != nil {
		return err
	}

	order, err := toposort.New(e.reg).Order()
	if err != nil {
		return err
	}
	e.Order = order

	de := descriptor.New(e.reg, e.mw, e.fn)
	if err := de.EmitAll(order); err != nil {
		return err
	}

	ie := importemit.New(e.reg, e.cf, e.mw)
	if err := ie.EmitAll(order); err != nil {
		return err
	}

	ds := dispatch.New(e.fn, e.mw)
	if err := ds.EmitAll(); err != nil {
		return err
	}

	e.fn.MarkAsNeeded(dispatch.ClassConstantHandle())
	if err := e.mw.ImportFunction(dispatch.ClassConstantHandle()); err != nil {
		return err
	}

	trace.Trace(trace.INFO, "engine: compilation run finished, emitted "+strconv.Itoa(len(order))+" types")
	return nil
}

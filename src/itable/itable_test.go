/*
 * jacobin2wasm - a type-layout and dispatch-table engine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package itable

import (
	"testing"

	"jacobin2wasm/src/classfile"
	"jacobin2wasm/src/funcreg"
	"jacobin2wasm/src/globals"
	"jacobin2wasm/src/hierarchy"
	"jacobin2wasm/src/registry"
)

// Scenario 2 of spec.md §8: C.itable[I] contains one entry C.f, and f's
// itable index is 2 (the two reserved header words of spec.md §4.4/§4.8).
func TestBuildOneResolvesOwnOverride(t *testing.T) {
	cf := classfile.NewMapProvider()
	cf.Add(&classfile.ClassInfo{Name: "java/lang/Object", Kind: classfile.KindClass})
	cf.Add(&classfile.ClassInfo{
		Name: "I", Kind: classfile.KindInterface,
		Methods: []classfile.MethodInfo{
			{Name: "f", Descriptor: "()V", AccessFlags: classfile.AccAbstract, OwningClass: "I"},
		},
	})
	cf.Add(&classfile.ClassInfo{
		Name: "C", Kind: classfile.KindClass, SuperName: "java/lang/Object",
		DirectInterfaces: []string{"I"},
		Methods: []classfile.MethodInfo{
			{Name: "f", Descriptor: "()V", OwningClass: "C"},
		},
	})

	reg := registry.New(globals.New("test"))
	fn := funcreg.NewInMemory()
	fC := funcreg.Handle{Class: "C", Name: "f", Desc: "()V"}
	fI := funcreg.Handle{Class: "I", Name: "f", Desc: "()V"}
	// The itable builder walks each used method of the interface itself
	// (spec.md §4.4: "For each used method m" of I), so usage is marked
	// against I's own handle, not the overriding class's.
	fn.MarkAsNeeded(fI)

	reg.ValueOf("C")
	reg.PrepareFinish()

	if err := hierarchy.New(reg, cf, fn).ScanAll(); err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if err := New(reg, cf, fn).BuildAll(); err != nil {
		t.Fatalf("BuildAll: %v", err)
	}

	c := reg.Get("C")
	if len(c.ITables) != 1 {
		t.Fatalf("C.ITables has %d entries, want 1", len(c.ITables))
	}
	it := c.ITables[0]
	if it.Interface.Name != "I" {
		t.Errorf("itable interface = %q, want I", it.Interface.Name)
	}
	if len(it.Methods) != 1 || it.Methods[0] != fC {
		t.Errorf("itable methods = %+v, want [%+v]", it.Methods, fC)
	}
	if idx, ok := fn.GetITableIndex(fC); !ok || idx != 2 {
		t.Errorf("itable index for C.f = %d (ok=%v), want 2", idx, ok)
	}
}

// Scenario 3: default method resolution. D implements I, does not
// override g; the itable should resolve to I.g itself.
func TestBuildOneResolvesDefault(t *testing.T) {
	cf := classfile.NewMapProvider()
	cf.Add(&classfile.ClassInfo{Name: "java/lang/Object", Kind: classfile.KindClass})
	cf.Add(&classfile.ClassInfo{
		Name: "I", Kind: classfile.KindInterface,
		Methods: []classfile.MethodInfo{
			{Name: "g", Descriptor: "()I", OwningClass: "I"},
		},
	})
	cf.Add(&classfile.ClassInfo{
		Name: "D", Kind: classfile.KindClass, SuperName: "java/lang/Object",
		DirectInterfaces: []string{"I"},
	})

	reg := registry.New(globals.New("test"))
	fn := funcreg.NewInMemory()
	gI := funcreg.Handle{Class: "I", Name: "g", Desc: "()I"}
	fn.MarkAsNeeded(gI)

	reg.ValueOf("D")
	reg.PrepareFinish()

	if err := hierarchy.New(reg, cf, fn).ScanAll(); err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if err := New(reg, cf, fn).BuildAll(); err != nil {
		t.Fatalf("BuildAll: %v", err)
	}

	d := reg.Get("D")
	if len(d.ITables) != 1 || len(d.ITables[0].Methods) != 1 || d.ITables[0].Methods[0] != gI {
		t.Errorf("D.ITables = %+v, want default resolution to I.g", d.ITables)
	}
}

// Scenario 4: E extends D and overrides g; E's itable must resolve to
// E.g, not the inherited default.
func TestBuildOneResolvesOverrideOverDefault(t *testing.T) {
	cf := classfile.NewMapProvider()
	cf.Add(&classfile.ClassInfo{Name: "java/lang/Object", Kind: classfile.KindClass})
	cf.Add(&classfile.ClassInfo{
		Name: "I", Kind: classfile.KindInterface,
		Methods: []classfile.MethodInfo{
			{Name: "g", Descriptor: "()I", OwningClass: "I"},
		},
	})
	cf.Add(&classfile.ClassInfo{
		Name: "D", Kind: classfile.KindClass, SuperName: "java/lang/Object",
		DirectInterfaces: []string{"I"},
	})
	cf.Add(&classfile.ClassInfo{
		Name: "E", Kind: classfile.KindClass, SuperName: "D",
		Methods: []classfile.MethodInfo{
			{Name: "g", Descriptor: "()I", OwningClass: "E"},
		},
	})

	reg := registry.New(globals.New("test"))
	fn := funcreg.NewInMemory()
	gI := funcreg.Handle{Class: "I", Name: "g", Desc: "()I"}
	gE := funcreg.Handle{Class: "E", Name: "g", Desc: "()I"}
	fn.MarkAsNeeded(gI)

	reg.ValueOf("E")
	reg.PrepareFinish()

	if err := hierarchy.New(reg, cf, fn).ScanAll(); err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if err := New(reg, cf, fn).BuildAll(); err != nil {
		t.Fatalf("BuildAll: %v", err)
	}

	e := reg.Get("E")
	if len(e.ITables) != 1 || len(e.ITables[0].Methods) != 1 || e.ITables[0].Methods[0] != gE {
		t.Errorf("E.ITables = %+v, want override resolution to E.g", e.ITables)
	}
}

func TestBuildAllSkipsAbstractClasses(t *testing.T) {
	cf := classfile.NewMapProvider()
	cf.Add(&classfile.ClassInfo{Name: "java/lang/Object", Kind: classfile.KindClass})
	cf.Add(&classfile.ClassInfo{
		Name: "I", Kind: classfile.KindInterface,
		Methods: []classfile.MethodInfo{
			{Name: "f", Descriptor: "()V", AccessFlags: classfile.AccAbstract, OwningClass: "I"},
		},
	})
	cf.Add(&classfile.ClassInfo{
		Name: "A", Kind: classfile.KindClass, SuperName: "java/lang/Object",
		DirectInterfaces: []string{"I"}, Abstract: true,
	})

	reg := registry.New(globals.New("test"))
	fn := funcreg.NewInMemory()

	reg.ValueOf("A")
	reg.PrepareFinish()

	if err := hierarchy.New(reg, cf, fn).ScanAll(); err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if err := New(reg, cf, fn).BuildAll(); err != nil {
		t.Fatalf("BuildAll: %v", err)
	}

	a := reg.Get("A")
	if len(a.ITables) != 0 {
		t.Errorf("abstract class A got %d itables, want 0", len(a.ITables))
	}
}

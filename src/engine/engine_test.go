/*
 * jacobin2wasm - a type-layout and dispatch-table engine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package engine

import (
	"testing"

	"jacobin2wasm/src/classfile"
	"jacobin2wasm/src/funcreg"
	"jacobin2wasm/src/modwriter"
)

// TestEndToEndCompilation exercises the full scan-open -> scan-close
// pipeline (C1-C8) through the facade, covering scenario 1 and 2 of
// spec.md §8 in one pass.
func TestEndToEndCompilation(t *testing.T) {
	cf := classfile.NewMapProvider()
	cf.Add(&classfile.ClassInfo{Name: "java/lang/Object", Kind: classfile.KindClass})
	cf.Add(&classfile.ClassInfo{
		Name: "pkg/I", Kind: classfile.KindInterface,
		Methods: []classfile.MethodInfo{
			{Name: "f", Descriptor: "()V", AccessFlags: classfile.AccAbstract, OwningClass: "pkg/I"},
		},
	})
	cf.Add(&classfile.ClassInfo{
		Name: "pkg/C", Kind: classfile.KindClass, SuperName: "java/lang/Object",
		DirectInterfaces: []string{"pkg/I"},
		Methods: []classfile.MethodInfo{
			{Name: "f", Descriptor: "()V", OwningClass: "pkg/C"},
		},
	})

	fn := funcreg.NewInMemory()
	mw := modwriter.NewInMemory()
	e := New("test-run", cf, fn, mw)

	fn.MarkAsNeeded(funcreg.Handle{Class: "pkg/I", Name: "f", Desc: "()V"})
	fn.MarkAsNeeded(funcreg.Handle{Class: "pkg/C", Name: "f", Desc: "()V"})

	obj, err := e.Intern("java/lang/Object")
	if err != nil {
		t.Fatalf("Intern(Object): %v", err)
	}
	if obj.Index != 9 {
		t.Errorf("Object index = %d, want 9", obj.Index)
	}

	c, err := e.Intern("pkg/C")
	if err != nil {
		t.Fatalf("Intern(C): %v", err)
	}

	if err := e.PrepareFinish(); err != nil {
		t.Fatalf("PrepareFinish: %v", err)
	}

	if _, err := e.Intern("pkg/Late"); err == nil {
		t.Error("expected LateRegistration after PrepareFinish")
	}

	if len(c.ITables) != 1 || c.ITables[0].Interface.Name != "pkg/I" {
		t.Errorf("C.ITables = %+v, want one entry for pkg/I", c.ITables)
	}

	if len(e.Order) == 0 {
		t.Error("engine did not record an emission order")
	}

	if len(mw.TypeImports) == 0 {
		t.Error("import emitter did not emit any type imports")
	}
	foundCommands := map[string]bool{}
	for _, cmd := range mw.CommandImports {
		foundCommands[cmd.Namespace] = true
	}
	for _, want := range []string{"virtual-call", "interface-call", "instanceof", "cast"} {
		if !foundCommands[want] {
			t.Errorf("dispatch stub %q was not registered", want)
		}
	}

	if _, ok := mw.GetFunction(funcreg.Handle{Class: "java/lang/Class", Name: "classConstant", Desc: "(I)Ljava/lang/Class;"}); !ok {
		t.Error("classConstant factory function was not imported")
	}
}

func TestResolveSignatureInternsReferenceTypes(t *testing.T) {
	cf := classfile.NewMapProvider()
	fn := funcreg.NewInMemory()
	mw := modwriter.NewInMemory()
	e := New("test-run", cf, fn, mw)

	ty, err := e.ResolveSignature("[Ljava/lang/String;")
	if err != nil {
		t.Fatalf("ResolveSignature: %v", err)
	}
	if ty.Elem == nil || ty.Elem.Name != "java/lang/String" {
		t.Errorf("got %+v, want array of java/lang/String", ty)
	}
}

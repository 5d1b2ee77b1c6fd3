/*
 * jacobin2wasm - a type-layout and dispatch-table engine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package descriptor

import (
	"encoding/binary"
	"testing"

	"jacobin2wasm/src/classfile"
	"jacobin2wasm/src/funcreg"
	"jacobin2wasm/src/globals"
	"jacobin2wasm/src/hierarchy"
	"jacobin2wasm/src/itable"
	"jacobin2wasm/src/modwriter"
	"jacobin2wasm/src/registry"
	"jacobin2wasm/src/toposort"
)

// P3: reading the i32 at T.vtableOffset+0 yields an offset whose sum
// with T.vtableOffset points at the first i32 of T's itable region;
// symmetrically for offset 4 -> instanceof region.
func TestEmitOneHeaderOffsetsAreSelfRelative(t *testing.T) {
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
	fI := funcreg.Handle{Class: "I", Name: "f", Desc: "()V"}
	fn.MarkAsNeeded(fI)
	fn.MarkAsNeeded(funcreg.Handle{Class: "C", Name: "f", Desc: "()V"})

	reg.ValueOf("C")
	reg.PrepareFinish()

	if err := hierarchy.New(reg, cf, fn).ScanAll(); err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if err := itable.New(reg, cf, fn).BuildAll(); err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	order, err := toposort.New(reg).Order()
	if err != nil {
		t.Fatalf("Order: %v", err)
	}

	mw := modwriter.NewInMemory()
	em := New(reg, mw, fn)
	if err := em.EmitAll(order); err != nil {
		t.Fatalf("EmitAll: %v", err)
	}

	c := reg.Get("C")
	data := mw.Data().Bytes()

	itableRegionOffset := int32(binary.LittleEndian.Uint32(data[c.VTableOffset : c.VTableOffset+4]))
	instanceofRegionOffset := int32(binary.LittleEndian.Uint32(data[c.VTableOffset+4 : c.VTableOffset+8]))

	itableStart := c.VTableOffset + int(itableRegionOffset)
	instanceofStart := c.VTableOffset + int(instanceofRegionOffset)

	// The itable region for C holds one (classIdx, stride, method) record
	// plus the terminating sentinel; its first i32 must be I's class index.
	gotClassIdx := int32(binary.LittleEndian.Uint32(data[itableStart : itableStart+4]))
	iType := reg.Get("I")
	if gotClassIdx != int32(iType.Index) {
		t.Errorf("itable region first i32 = %d, want I's class index %d", gotClassIdx, iType.Index)
	}

	// The instanceof region begins with the element count.
	gotCount := int32(binary.LittleEndian.Uint32(data[instanceofStart : instanceofStart+4]))
	if int(gotCount) != len(c.InstanceOf) {
		t.Errorf("instanceof region count = %d, want %d", gotCount, len(c.InstanceOf))
	}
}

func TestEmitTypeTableCoversEveryType(t *testing.T) {
	reg := registry.New(globals.New("test"))
	fn := funcreg.NewInMemory()
	reg.ValueOf("java/lang/Object")
	reg.PrepareFinish()

	order, err := toposort.New(reg).Order()
	if err != nil {
		t.Fatalf("Order: %v", err)
	}

	mw := modwriter.NewInMemory()
	em := New(reg, mw, fn)
	if err := em.EmitAll(order); err != nil {
		t.Fatalf("EmitAll: %v", err)
	}

	data := mw.Data().Bytes()[em.TypeTableOffset:]
	if len(data) != 4*reg.Size() {
		t.Errorf("type table has %d bytes, want %d (4 per type x %d types)", len(data), 4*reg.Size(), reg.Size())
	}

	if _, ok := mw.GetFunction(funcreg.Handle{Class: "java/lang/Class", Name: "typeTableMemoryOffset", Desc: "()I"}); !ok {
		t.Error("typeTableMemoryOffset accessor was not imported")
	}
}

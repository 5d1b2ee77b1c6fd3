/*
 * jacobin2wasm - a type-layout and dispatch-table engine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package descriptor implements the descriptor emitter (C6): it
// serializes each class or interface's runtime type descriptor into the
// module writer's data section, little-endian throughout, and finally
// the flat type table every registered type (primitives included) gets
// a slot in (spec.md §4.6). It ports the teacher's own bit-level
// constant-pool decoding style in CPutils.go to the write side.
package descriptor

import (
	"encoding/binary"
	"strings"

	"jacobin2wasm/src/funcreg"
	"jacobin2wasm/src/modwriter"
	"jacobin2wasm/src/registry"
)

// headerSize is the four reserved i32 header slots of spec.md §3/§4.6:
// itable-region offset, instanceof-region offset, class-name string id,
// component class index.
const headerSize = 16

// Emitter is C6.
type Emitter struct {
	reg *registry.Registry
	mw  modwriter.Writer
	fn  funcreg.Registry

	stringIDs    map[string]int32
	nextStringID int32

	// TypeTableOffset is the byte offset the flat type table begins at,
	// set once EmitAll has run.
	TypeTableOffset int
}

func New(reg *registry.Registry, mw modwriter.Writer, fn funcreg.Registry) *Emitter {
	return &Emitter{
		reg:       reg,
		mw:        mw,
		fn:        fn,
		stringIDs: make(map[string]int32),
	}
}

// stringID assigns a dense, stable id to each distinct dotted class
// name the data section ever needs, the first time it is requested.
func (e *Emitter) stringID(dotted string) int32 {
	if id, ok := e.stringIDs[dotted]; ok {
		return id
	}
	id := e.nextStringID
	e.nextStringID++
	e.stringIDs[dotted] = id
	return id
}

func dottedName(slashName string) string {
	return strings.ReplaceAll(slashName, "/", ".")
}

func appendI32(buf *[]byte, v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	*buf = append(*buf, b[:]...)
}

// funcID resolves fn to the module writer's function id, importing it
// first if the rest of the compiler hasn't already (spec.md I8
// guarantees fn is at least marked used; this defensively ensures it is
// also registered with the writer before its id is needed).
func (e *Emitter) funcID(fn funcreg.Handle) (int32, error) {
	if id, ok := e.mw.GetFunction(fn); ok {
		return int32(id), nil
	}
	if err := e.mw.ImportFunction(fn); err != nil {
		return 0, err
	}
	id, _ := e.mw.GetFunction(fn)
	return int32(id), nil
}

// EmitAll writes one descriptor per class or interface in emission
// order, then the flat type table. Arrays and primitives never receive
// a descriptor of their own — there is no instance ever built from one,
// so no vtable/itable/instanceof region would ever be read through it —
// but every registered type still gets a slot in the type table.
func (e *Emitter) EmitAll(order []*registry.Type) error {
	for _, t := range order {
		if err := e.emitOne(t); err != nil {
			return err
		}
	}
	return e.emitTypeTable()
}

func (e *Emitter) emitOne(t *registry.Type) error {
	t.VTableOffset = e.mw.Data().Size()

	var vtableBuf, itableBuf, instBuf []byte

	if t.Kind == registry.KindClass {
		for _, entry := range t.VTable {
			id, err := e.funcID(entry.Fn)
			if err != nil {
				return err
			}
			appendI32(&vtableBuf, id)
		}

		for _, it := range t.ITables {
			stride := int32(4 * (2 + len(it.Methods)))
			appendI32(&itableBuf, int32(it.Interface.Index))
			appendI32(&itableBuf, stride)
			for _, m := range it.Methods {
				id, err := e.funcID(m)
				if err != nil {
					return err
				}
				appendI32(&itableBuf, id)
			}
		}
	}
	appendI32(&itableBuf, 0) // sentinel: end of itable region

	appendI32(&instBuf, int32(len(t.InstanceOf)))
	for _, s := range t.InstanceOf {
		appendI32(&instBuf, int32(s.Index))
	}

	// Both header offsets are byte distances from the descriptor's own
	// start: the 16-byte header plus the bytes written after it before the
	// region begins. The C8 dispatch stubs read this.vtable as the
	// descriptor's start address and add these values directly to it.
	itableRegionOffset := int32(headerSize + len(vtableBuf))
	instanceofRegionOffset := int32(headerSize + len(vtableBuf) + len(itableBuf))

	var header []byte
	appendI32(&header, itableRegionOffset)
	appendI32(&header, instanceofRegionOffset)
	appendI32(&header, e.stringID(dottedName(t.Name)))
	appendI32(&header, -1) // component class index: meaningful for arrays only, which never reach here

	full := make([]byte, 0, len(header)+len(vtableBuf)+len(itableBuf)+len(instBuf))
	full = append(full, header...)
	full = append(full, vtableBuf...)
	full = append(full, itableBuf...)
	full = append(full, instBuf...)

	e.mw.Data().Write(full)
	return nil
}

// emitTypeTable writes one i32 per registered type, in registry
// (insertion) order — including primitives and arrays, which get the
// sentinel -1 since they never received a descriptor — and registers
// the synthetic typeTableMemoryOffset accessor the target module
// surface names (spec.md §6).
func (e *Emitter) emitTypeTable() error {
	e.TypeTableOffset = e.mw.Data().Size()

	var buf []byte
	for _, t := range e.reg.AllTypes() {
		offset := int32(-1)
		if t.Kind == registry.KindClass || t.Kind == registry.KindInterface {
			offset = int32(t.VTableOffset)
		}
		appendI32(&buf, offset)
	}
	e.mw.Data().Write(buf)

	fh := funcreg.Handle{Class: "java/lang/Class", Name: "typeTableMemoryOffset", Desc: "()I"}
	e.fn.MarkAsNeeded(fh)
	return e.mw.ImportFunction(fh)
}

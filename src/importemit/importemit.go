/*
 * jacobin2wasm - a type-layout and dispatch-table engine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package importemit implements the import emitter (C7): one
// declaration import per non-primitive type in emission order, followed
// by a definition import for every non-external class and every
// interface (spec.md §4.7). The opcode alphabet
// {DECL_CLASS, DECL_INTERFACE, EXT_CLASS, DEF_CLASS, DEF_INTERFACE} is
// the fixed, bit-exact contract of spec.md §6.
package importemit

import (
	"encoding/binary"

	"jacobin2wasm/src/classfile"
	"jacobin2wasm/src/funcreg"
	"jacobin2wasm/src/modwriter"
	"jacobin2wasm/src/registry"
)

const (
	opDeclClass     byte = 0
	opDeclInterface byte = 1
	opExtClass      byte = 2
	opDefClass      byte = 3
	opDefInterface  byte = 4
)

var opcodeNames = map[byte]string{
	opDeclClass:     "DECL_CLASS",
	opDeclInterface: "DECL_INTERFACE",
	opExtClass:      "EXT_CLASS",
	opDefClass:      "DEF_CLASS",
	opDefInterface:  "DEF_INTERFACE",
}

// Emitter is C7.
type Emitter struct {
	reg *registry.Registry
	cf  classfile.Provider
	mw  modwriter.Writer
}

func New(reg *registry.Registry, cf classfile.Provider, mw modwriter.Writer) *Emitter {
	return &Emitter{reg: reg, cf: cf, mw: mw}
}

func appendU16(buf *[]byte, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	*buf = append(*buf, b[:]...)
}

func appendU32(buf *[]byte, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	*buf = append(*buf, b[:]...)
}

func appendLenPrefixedName(buf *[]byte, name string) {
	appendU32(buf, uint32(len(name)))
	*buf = append(*buf, name...)
}

func indices(ts []*registry.Type) []int {
	out := make([]int, len(ts))
	for i, t := range ts {
		out[i] = t.Index
	}
	return out
}

// EmitAll walks order (the emission order C5 computed) and drives the
// module writer with one declaration, and where applicable one
// definition, import per type.
func (e *Emitter) EmitAll(order []*registry.Type) error {
	for _, t := range order {
		if err := e.emitDeclaration(t); err != nil {
			return err
		}
		if t.Opcode != registry.ExtClass {
			if err := e.emitDefinition(t); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Emitter) emitDeclaration(t *registry.Type) error {
	if t.Opcode == registry.ExtClass {
		var payload []byte
		payload = append(payload, opExtClass)
		appendLenPrefixedName(&payload, t.Name)

		var args []int
		if t.Parent != nil {
			args = append(args, t.Parent.Index)
		}
		return e.mw.ImportType(modwriter.TypeImport{
			Namespace: opcodeNames[opExtClass],
			Payload:   payload,
			Self:      t.Index,
			Args:      args,
		})
	}

	if t.Kind == registry.KindInterface {
		var payload []byte
		payload = append(payload, opDeclInterface)
		appendLenPrefixedName(&payload, t.Name)
		appendU32(&payload, uint32(len(t.DirectInterfaces)))

		return e.mw.ImportType(modwriter.TypeImport{
			Namespace: opcodeNames[opDeclInterface],
			Payload:   payload,
			Self:      t.Index,
			Args:      indices(t.DirectInterfaces),
		})
	}

	var payload []byte
	payload = append(payload, opDeclClass)
	appendLenPrefixedName(&payload, t.Name)
	appendU16(&payload, t.AccessFlags)
	appendU32(&payload, uint32(len(t.DirectInterfaces)))

	var args []int
	if t.Parent != nil {
		args = append(args, t.Parent.Index)
	}
	args = append(args, indices(t.DirectInterfaces)...)

	return e.mw.ImportType(modwriter.TypeImport{
		Namespace: opcodeNames[opDeclClass],
		Payload:   payload,
		Self:      t.Index,
		Args:      args,
	})
}

// emitDefinition emits instance-fields, instance-methods, static-fields,
// static-methods, in that order, each preceded by a 4-byte count
// (spec.md §4.7). Fields are included because they were declared into
// the class's effective layout; methods are included only if used.
func (e *Emitter) emitDefinition(t *registry.Type) error {
	info := e.cf.Get(t.Name)

	instanceFields, staticFields := e.collectFields(t, info)
	instanceMethods, staticMethods := e.collectMethods(t, info)

	op := opDefClass
	ns := opcodeNames[opDefClass]
	if t.Kind == registry.KindInterface {
		op = opDefInterface
		ns = opcodeNames[opDefInterface]
	}

	var payload []byte
	payload = append(payload, op)
	appendU32(&payload, uint32(len(instanceFields)))
	payload = append(payload, instanceFields...)
	appendU32(&payload, uint32(len(instanceMethods)))
	payload = append(payload, instanceMethods...)
	appendU32(&payload, uint32(len(staticFields)))
	payload = append(payload, staticFields...)
	appendU32(&payload, uint32(len(staticMethods)))
	payload = append(payload, staticMethods...)

	var args []int
	for _, f := range t.Fields {
		if typeArgForField(e.reg, f) != nil {
			args = append(args, typeArgForField(e.reg, f).Index)
		}
	}

	return e.mw.ImportType(modwriter.TypeImport{
		Namespace: ns,
		Payload:   payload,
		Self:      t.Index,
		Args:      args,
	})
}

// collectFields renders the already-effective field list (synthetic
// .vtable/.hashcode plus every field the hierarchy scanner decided T
// needs) into instance and static field records: length-prefixed name,
// access-flags, signature.
func (e *Emitter) collectFields(t *registry.Type, info *classfile.ClassInfo) (instance, static []byte) {
	for _, f := range t.Fields {
		var rec []byte
		appendLenPrefixedName(&rec, f.Name)
		appendU16(&rec, accessFlagsOf(info, f.Name))
		rec = append(rec, fieldSignature(f.Desc)...)
		instance = append(instance, rec...)
	}
	if info != nil {
		for _, f := range info.Fields {
			if !f.Static {
				continue
			}
			var rec []byte
			appendLenPrefixedName(&rec, f.Name)
			appendU16(&rec, f.AccessFlags)
			rec = append(rec, fieldSignature(f.Descriptor)...)
			static = append(static, rec...)
		}
	}
	return instance, static
}

func accessFlagsOf(info *classfile.ClassInfo, name string) uint16 {
	if info == nil {
		return 0
	}
	for _, f := range info.Fields {
		if f.Name == name {
			return f.AccessFlags
		}
	}
	return 0 // synthetic .vtable/.hashcode fields carry no declared access flags
}

// fieldSignature renders a descriptor as the 1-character primitive form
// or "L"+type-arg form spec.md §4.7 specifies. The type-arg itself
// travels in TypeImport.Args, not in this payload slice, and only for an
// "L...;" field whose class is registered; an array-typed field is
// written as "L" with no type-arg in Args.
func fieldSignature(desc string) []byte {
	if desc == "" {
		return nil
	}
	if desc[0] == 'L' || desc[0] == '[' {
		return []byte("L")
	}
	return []byte(desc[:1])
}

func typeArgForField(reg *registry.Registry, f registry.FieldEntry) *registry.Type {
	if len(f.Desc) >= 3 && f.Desc[0] == 'L' {
		return reg.Get(f.Desc[1 : len(f.Desc)-1])
	}
	return nil
}

// collectMethods renders every used method of T (from its vtable plus
// any used static methods) into instance and static method records:
// length-prefixed name, access-flags, signature-length-minus-one and
// signature. A record carries no per-parameter type-args and no
// implementing function handle, and none are added to the import's Args;
// the function is identified only through its funcreg.Handle, which the
// descriptor emitter or the engine driver has already imported.
func (e *Emitter) collectMethods(t *registry.Type, info *classfile.ClassInfo) (instance, static []byte) {
	for _, v := range t.VTable {
		var rec []byte
		appendLenPrefixedName(&rec, v.Fn.Name)
		appendU16(&rec, methodAccessFlags(e.cf, v.Fn))
		sig := v.Fn.Desc
		if len(sig) > 0 {
			rec = append(rec, byte(len(sig)-1))
		} else {
			rec = append(rec, 0)
		}
		rec = append(rec, sig...)
		instance = append(instance, rec...)
	}
	if info != nil {
		for _, m := range info.Methods {
			if !m.Static {
				continue
			}
			fh := funcreg.Handle{Class: t.Name, Name: m.Name, Desc: m.Descriptor}
			if !e.funcUsed(fh) {
				continue
			}
			var rec []byte
			appendLenPrefixedName(&rec, m.Name)
			appendU16(&rec, m.AccessFlags)
			sig := m.Descriptor
			if len(sig) > 0 {
				rec = append(rec, byte(len(sig)-1))
			} else {
				rec = append(rec, 0)
			}
			rec = append(rec, sig...)
			static = append(static, rec...)
		}
	}
	return instance, static
}

func (e *Emitter) funcUsed(fh funcreg.Handle) bool {
	_, ok := e.mw.GetFunction(fh)
	return ok
}

func methodAccessFlags(cf classfile.Provider, fn funcreg.Handle) uint16 {
	info := cf.Get(fn.Class)
	if info == nil {
		return 0
	}
	for _, m := range info.Methods {
		if m.Name == fn.Name && m.Descriptor == fn.Desc {
			return m.AccessFlags
		}
	}
	return 0
}

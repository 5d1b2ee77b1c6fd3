/*
 * jacobin2wasm - a type-layout and dispatch-table engine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package dispatch implements the dispatch stub synthesizer (C8): four
// fixed routines (virtual-call, interface-call, instanceof, cast),
// expressed in the target stack machine's own structural operations,
// that every compiled call site relies on to resolve a virtual call, an
// interface call, or an instanceof/cast check against the layout C6
// wrote (spec.md §4.8). These routines are synthesized exactly once per
// compilation and registered as used, importable functions in their own
// namespace (spec.md §2); nothing about them varies per call site beyond
// the arguments passed at the call. cast is expressed as a real call
// into instanceof rather than inlining its body, matching spec.md §4.8's
// "cast(this, classIdx) → this: call instanceof."
package dispatch

import (
	"encoding/binary"
	"errors"

	"jacobin2wasm/src/funcreg"
	"jacobin2wasm/src/modwriter"
)

// errInstanceofNotImported guards a collaborator-contract violation: a
// conforming modwriter.Writer must make a handle retrievable via
// GetFunction immediately after ImportFunction accepts it.
var errInstanceofNotImported = errors.New("dispatch: instanceof routine not importable after registration")

// Stack-machine opcodes these stubs are built from. The exact encoding
// is the embedding compiler's business; this package only needs stable,
// distinct byte values to assemble a linear instruction stream the
// module writer can store as a CommandImport payload.
const (
	opLocalGet byte = iota
	opLocalSet
	opI32Load
	opI32Add
	opI32Eq
	opI32Eqz
	opI32Const
	opStructGetVTable // struct.get on java/lang/Object's .vtable field
	opBr
	opBrIf
	opLoop
	opBlock
	opEnd
	opUnreachable
	opReturn
	opCall // call <funcId:i32>, funcId per the module writer's ImportFunction assignment
)

const (
	virtualCallName   = "virtual-call"
	interfaceCallName = "interface-call"
	instanceofName    = "instanceof"
	castName          = "cast"
)

// Synthesizer is C8.
type Synthesizer struct {
	fn funcreg.Registry
	mw modwriter.Writer
}

func New(fn funcreg.Registry, mw modwriter.Writer) *Synthesizer {
	return &Synthesizer{fn: fn, mw: mw}
}

// VirtualCallHandle, InterfaceCallHandle, InstanceofHandle and CastHandle
// name the four synthesized routines as function handles in their own
// reserved namespace, so the same used/imported-function bookkeeping that
// covers every compiled method also covers the stubs themselves (spec.md
// §2: "C8 is invoked on demand and the synthesized stubs are themselves
// registered as used functions").
func VirtualCallHandle() funcreg.Handle {
	return funcreg.Handle{Class: "jacobin2wasm/dispatch", Name: virtualCallName, Desc: "(II)I"}
}

func InterfaceCallHandle() funcreg.Handle {
	return funcreg.Handle{Class: "jacobin2wasm/dispatch", Name: interfaceCallName, Desc: "(III)I"}
}

func InstanceofHandle() funcreg.Handle {
	return funcreg.Handle{Class: "jacobin2wasm/dispatch", Name: instanceofName, Desc: "(II)I"}
}

func CastHandle() funcreg.Handle {
	return funcreg.Handle{Class: "jacobin2wasm/dispatch", Name: castName, Desc: "(II)I"}
}

func appendI32(buf *[]byte, v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	*buf = append(*buf, b[:]...)
}

// registerRoutine marks h used and imports it as a function, so the
// dispatch stub gets a real function identity a call site (or another
// stub, as cast does for instanceof) can resolve via mw.GetFunction.
func (s *Synthesizer) registerRoutine(h funcreg.Handle) error {
	s.fn.MarkAsNeeded(h)
	return s.mw.ImportFunction(h)
}

// EmitAll registers all four stubs. Each call appends the four command
// imports again; the engine calls it once, right after C7.
func (s *Synthesizer) EmitAll() error {
	if err := s.emitVirtualCall(); err != nil {
		return err
	}
	if err := s.emitInterfaceCall(); err != nil {
		return err
	}
	if err := s.emitInstanceofAndCast(); err != nil {
		return err
	}
	return nil
}

// emitVirtualCall: load this.vtable, add vfIdx, load i32, return.
func (s *Synthesizer) emitVirtualCall() error {
	var body []byte
	body = append(body, opLocalGet, 0)       // this
	body = append(body, opStructGetVTable)   // -> base (i32 byte offset of descriptor)
	body = append(body, opLocalGet, 1)       // vfIdx
	body = append(body, opI32Add)            // base + vfIdx
	body = append(body, opI32Load)           // load funcId
	body = append(body, opReturn, opEnd)

	if err := s.registerRoutine(VirtualCallHandle()); err != nil {
		return err
	}
	return s.mw.ImportCommand(modwriter.CommandImport{
		Namespace: virtualCallName,
		Payload:   body,
	})
}

// emitInterfaceCall implements the three-phase itable walk of spec.md
// §4.8: locate the itable region via the header's offset-0 field, then
// linearly scan (interfaceClassIdx, stride, ...methodFuncIds) records
// until classIdx matches, the sentinel zero is hit (MissingImplementation
// at runtime — traps), or the next record is reached via its stride.
func (s *Synthesizer) emitInterfaceCall() error {
	var body []byte
	body = append(body, opLocalGet, 0)     // this
	body = append(body, opStructGetVTable) // base
	body = append(body, opLocalSet, 3)     // local 3: base (saved)

	body = append(body, opLocalGet, 3)
	body = append(body, opI32Load) // i32 at base+0: itable region offset
	body = append(body, opLocalGet, 3)
	body = append(body, opI32Add)  // base + itableRegionOffset
	body = append(body, opLocalSet, 4) // local 4: itable pointer

	body = append(body, opBlock) // match target: resolution below
	body = append(body, opBlock) // sentinel target: trap below
	body = append(body, opLoop)
	body = append(body, opLocalGet, 4)
	body = append(body, opI32Load) // i32 at current pointer: this record's classIdx

	// if zero: no more records, leave the loop for the trap below
	body = append(body, opI32Eqz)
	body = append(body, opBrIf, 1)

	body = append(body, opLocalGet, 4)
	body = append(body, opI32Load)
	body = append(body, opLocalGet, 2) // classIdx argument
	body = append(body, opI32Eq)
	body = append(body, opBrIf, 2) // match: leave both blocks, to resolution below

	// no match: advance pointer by this record's stride (at current+4)
	body = append(body, opLocalGet, 4)
	body = append(body, opI32Const)
	appendI32(&body, 4)
	body = append(body, opI32Add)
	body = append(body, opI32Load) // stride
	body = append(body, opLocalGet, 4)
	body = append(body, opI32Add)
	body = append(body, opLocalSet, 4)
	body = append(body, opBr, 0)       // repeat loop
	body = append(body, opEnd)         // end loop
	body = append(body, opEnd)         // end sentinel block
	body = append(body, opUnreachable) // sentinel reached: no record for classIdx (MissingImplementation)
	body = append(body, opEnd)         // end match block

	// match: funcId lives at pointer + vfIdx
	body = append(body, opLocalGet, 4)
	body = append(body, opLocalGet, 1) // vfIdx
	body = append(body, opI32Add)
	body = append(body, opI32Load)
	body = append(body, opReturn, opEnd)

	if err := s.registerRoutine(InterfaceCallHandle()); err != nil {
		return err
	}
	return s.mw.ImportCommand(modwriter.CommandImport{
		Namespace: interfaceCallName,
		Payload:   body,
	})
}

// emitInstanceofAndCast builds both remaining stubs together: instanceof
// is registered and imported first so cast, defined directly in terms of
// instanceof (spec.md §4.8), can resolve its function id via
// mw.GetFunction and emit a real call into it. classConstant itself is a
// pre-declared function the engine registers in PrepareFinish (spec.md
// §6), never synthesized here.
func (s *Synthesizer) emitInstanceofAndCast() error {
	var instBody []byte
	instBody = append(instBody, opLocalGet, 0)     // this
	instBody = append(instBody, opStructGetVTable) // base
	instBody = append(instBody, opLocalSet, 2)     // local 2: base

	instBody = append(instBody, opLocalGet, 2)
	instBody = append(instBody, opI32Const)
	appendI32(&instBody, 4)
	instBody = append(instBody, opI32Add)
	instBody = append(instBody, opI32Load) // i32 at base+4: instanceof region offset
	instBody = append(instBody, opLocalGet, 2)
	instBody = append(instBody, opI32Add)
	instBody = append(instBody, opLocalSet, 3) // local 3: instanceof pointer, at count slot

	instBody = append(instBody, opLocalGet, 3)
	instBody = append(instBody, opI32Load)
	instBody = append(instBody, opLocalSet, 4) // local 4: remaining count

	instBody = append(instBody, opLocalGet, 3)
	instBody = append(instBody, opI32Const)
	appendI32(&instBody, 4)
	instBody = append(instBody, opI32Add)
	instBody = append(instBody, opLocalSet, 3) // advance past the count slot itself

	instBody = append(instBody, opBlock) // match target: "return 1" below
	instBody = append(instBody, opBlock) // exhausted target: "return 0" below
	instBody = append(instBody, opLoop)
	instBody = append(instBody, opLocalGet, 4)
	instBody = append(instBody, opI32Eqz)
	instBody = append(instBody, opBrIf, 1) // exhausted: fall through to "return 0"

	instBody = append(instBody, opLocalGet, 3)
	instBody = append(instBody, opI32Load)
	instBody = append(instBody, opLocalGet, 1) // classIdx argument
	instBody = append(instBody, opI32Eq)
	instBody = append(instBody, opBrIf, 2) // match: fall through to "return 1"

	instBody = append(instBody, opLocalGet, 3)
	instBody = append(instBody, opI32Const)
	appendI32(&instBody, 4)
	instBody = append(instBody, opI32Add)
	instBody = append(instBody, opLocalSet, 3)

	instBody = append(instBody, opLocalGet, 4)
	instBody = append(instBody, opI32Const)
	appendI32(&instBody, -1) // decrement remaining count: add -1, keeping the opcode alphabet minimal
	instBody = append(instBody, opI32Add)
	instBody = append(instBody, opLocalSet, 4)

	instBody = append(instBody, opBr, 0)
	instBody = append(instBody, opEnd) // end loop
	instBody = append(instBody, opEnd) // end exhausted block

	instBody = append(instBody, opI32Const)
	appendI32(&instBody, 0)
	instBody = append(instBody, opReturn)
	instBody = append(instBody, opEnd) // end match block

	instBody = append(instBody, opI32Const)
	appendI32(&instBody, 1)
	instBody = append(instBody, opReturn, opEnd)

	if err := s.registerRoutine(InstanceofHandle()); err != nil {
		return err
	}
	if err := s.mw.ImportCommand(modwriter.CommandImport{
		Namespace: instanceofName,
		Payload:   instBody,
	}); err != nil {
		return err
	}

	instFuncID, ok := s.mw.GetFunction(InstanceofHandle())
	if !ok {
		return errInstanceofNotImported
	}

	// cast: call instanceof(this, classIdx); trap if false, else return this.
	var castBody []byte
	castBody = append(castBody, opBlock) // instanceof true: skip the trap
	castBody = append(castBody, opLocalGet, 0)
	castBody = append(castBody, opLocalGet, 1)
	castBody = append(castBody, opCall)
	appendI32(&castBody, int32(instFuncID))
	castBody = append(castBody, opBrIf, 0)
	castBody = append(castBody, opUnreachable)
	castBody = append(castBody, opEnd)
	castBody = append(castBody, opLocalGet, 0)
	castBody = append(castBody, opReturn, opEnd)

	if err := s.registerRoutine(CastHandle()); err != nil {
		return err
	}
	return s.mw.ImportCommand(modwriter.CommandImport{
		Namespace: castName,
		Payload:   castBody,
	})
}

// ClassConstantHandle is the pre-declared factory function spec.md §6
// names: java/lang/Class.classConstant(I)Ljava/lang/Class;. It is
// registered, not synthesized, since the target runtime already defines
// it; the engine marks it used and imports it once, at the end of
// PrepareFinish.
func ClassConstantHandle() funcreg.Handle {
	return funcreg.Handle{Class: "java/lang/Class", Name: "classConstant", Desc: "(I)Ljava/lang/Class;"}
}

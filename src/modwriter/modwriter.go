/*
 * jacobin2wasm - a type-layout and dispatch-table engine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package modwriter defines the module-writer collaborator (spec.md §6):
// the narrow surface the target module's emitter exposes to this engine.
// Linking and file I/O are out of scope (§1 Non-goals) — this package
// only carries bytes and records, it never touches a filesystem. The
// InMemory implementation exists to drive the engine's own tests.
package modwriter

import "jacobin2wasm/src/funcreg"

// TypeImport is one declaration or definition import record handed to
// the module writer by the import emitter (C7): importType(namespace,
// payload, selfHandle, null, [argHandles]) in spec.md §6 — the literal
// null is a placeholder this engine never populates, so it is simply
// absent here. For a class declaration Args is [parent, interface0,
// interface1, ...]; for an interface declaration, [superInterface0, ...]
// with no parent slot.
type TypeImport struct {
	Namespace string
	Payload   []byte
	Self      int
	Args      []int
}

// CommandImport is a free-standing import not tied to a single type
// (used by the dispatch stub synthesizer, C8, to register its four
// routines).
type CommandImport struct {
	Namespace string
	Payload   []byte
	Args      []int
}

// Writer is the collaborator interface consumed by C6, C7 and C8.
type Writer interface {
	ImportType(t TypeImport) error
	ImportCommand(c CommandImport) error
	ImportFunction(fn funcreg.Handle) error
	WriteStructType(typeIndex int) ([]byte, error)
	GetFunction(fn funcreg.Handle) (int, bool)
	Data() *DataStream
}

// DataStream is an append-only byte stream with cursor semantics: Size
// reports the current write offset, matching spec.md §6's
// dataStream.size().
type DataStream struct {
	buf []byte
}

func NewDataStream() *DataStream {
	return &DataStream{}
}

func (d *DataStream) Size() int {
	return len(d.buf)
}

func (d *DataStream) Write(b []byte) {
	d.buf = append(d.buf, b...)
}

func (d *DataStream) Bytes() []byte {
	return d.buf
}

// InMemory is a Writer that just records everything handed to it, for
// tests and for any embedding compiler willing to post-process the
// recorded calls itself.
type InMemory struct {
	TypeImports    []TypeImport
	CommandImports []CommandImport
	importedFns    map[funcreg.Handle]int
	nextFuncID     int
	data           *DataStream
}

func NewInMemory() *InMemory {
	return &InMemory{
		importedFns: make(map[funcreg.Handle]int),
		data:        NewDataStream(),
	}
}

func (w *InMemory) ImportType(t TypeImport) error {
	w.TypeImports = append(w.TypeImports, t)
	return nil
}

func (w *InMemory) ImportCommand(c CommandImport) error {
	w.CommandImports = append(w.CommandImports, c)
	return nil
}

func (w *InMemory) ImportFunction(fn funcreg.Handle) error {
	if _, ok := w.importedFns[fn]; ok {
		return nil
	}
	w.importedFns[fn] = w.nextFuncID
	w.nextFuncID++
	return nil
}

func (w *InMemory) WriteStructType(typeIndex int) ([]byte, error) {
	return []byte{byte(typeIndex)}, nil
}

func (w *InMemory) GetFunction(fn funcreg.Handle) (int, bool) {
	id, ok := w.importedFns[fn]
	return id, ok
}

func (w *InMemory) Data() *DataStream {
	return w.data
}

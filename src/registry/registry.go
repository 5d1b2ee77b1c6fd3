/*
 * jacobin2wasm - a type-layout and dispatch-table engine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package registry implements the type registry (C1): the single source
// of identity for every primitive, class, interface and array type the
// engine ever sees (spec.md §4.1). It ports the teacher's
// classloader.Classes map-of-parsed-classes pattern (an insertion-ordered,
// name-keyed table protected against late mutation) to a type-identity
// table instead of a bytecode table.
package registry

import (
	"jacobin2wasm/src/excnames"
	"jacobin2wasm/src/funcreg"
	"jacobin2wasm/src/globals"
	"jacobin2wasm/src/trace"
	"jacobin2wasm/src/types"
)

// Kind discriminates the four Type variants of spec.md §3.
type Kind int

const (
	KindPrimitive Kind = iota
	KindClass
	KindInterface
	KindArray
)

// Opcode is a class or interface's declaration opcode — EXT_CLASS for
// externally-defined classes, DECL_CLASS/DECL_INTERFACE otherwise
// (spec.md §4.1, §4.7).
type Opcode int

const (
	OpcodeNone Opcode = iota
	DeclClass
	DeclInterface
	ExtClass
)

// extClasses is the EXT_CLASSES set of spec.md §4.1: classes the target
// runtime already knows about and which this engine only ever declares,
// never defines.
var extClasses = map[string]bool{
	"java/lang/Object": true,
	"java/lang/String": true,
}

// FieldEntry is one instance or static field in a class's layout
// (spec.md §3).
type FieldEntry struct {
	Owner  string
	Name   string
	Desc   string
	Static bool
}

// VTableEntry is one slot of a class's virtual dispatch table. FromDefault
// records whether the slot is currently occupied because of an interface
// default method, per the addOrUpdate rule of spec.md §4.3.
type VTableEntry struct {
	Fn          funcreg.Handle
	FromDefault bool
}

// ITableEntry is one implemented interface's dispatch table: the target
// interface plus, in discovery order, the concrete function resolving
// each of its used methods (spec.md §3, §4.4).
type ITableEntry struct {
	Interface *Type
	Methods   []funcreg.Handle
}

// Type is the single representation for all four variants in spec.md §3.
// Cross-references to other types are plain *Type pointers (the arena
// lives in the Registry) rather than copies, per the Design Notes'
// "arena of type records plus integer handles" guidance — class index
// doubles as that handle for anything outside this package.
type Type struct {
	Index int
	Name  string
	Kind  Kind

	// Populated when Kind == KindPrimitive.
	PrimKind types.PrimitiveKind

	// Populated when Kind == KindArray.
	Elem           *Type
	ComponentIndex int

	// Populated when Kind == KindClass or KindInterface.
	Opcode           Opcode
	AccessFlags      uint16
	Abstract         bool
	Parent           *Type
	DirectInterfaces []*Type
	Interfaces       []*Type // transitive closure, populated by the hierarchy scanner
	Fields           []FieldEntry
	VTable           []VTableEntry
	ITables          []ITableEntry
	InstanceOf       []*Type // self first, most-derived outward

	// VTableOffset is the descriptor's byte offset in the data section.
	// Valid only after the descriptor emitter (C6) has run.
	VTableOffset int

	// TypeIndex is the dense 0.. emission index assigned by the
	// topological orderer (C5) to every non-primitive, non-array type.
	// Valid only after C5 has run; -1 until then.
	TypeIndex int

	scanned bool // hierarchy scanner has already processed this type
}

// IsPrimitive reports whether t occupies one of the nine fixed primitive
// class-index slots (spec.md Design Notes: "isPrimitive() predicate
// rather than index arithmetic at call sites").
func (t *Type) IsPrimitive() bool {
	return t.Kind == KindPrimitive && t.Index >= 0 && t.Index < types.NumFixedPrimitives
}

// Scanned reports whether the hierarchy scanner has already populated
// this type's fields/vtable/interfaces.
func (t *Type) Scanned() bool {
	return t.scanned
}

// Registry is C1: an insertion-ordered name-or-element keyed table of
// every interned type, closed to new entries once the scan phase ends.
type Registry struct {
	g *globals.Globals

	byName map[string]*Type
	byElem map[int]*Type // array component -> array Type, keyed by element class index
	order  []*Type

	nextIndex int
	objectRef *Type

	neededFields map[string]bool

	externRef *Type
}

// New creates an empty Registry bound to a single compilation run's
// Globals.
func New(g *globals.Globals) *Registry {
	return &Registry{
		g:            g,
		byName:       make(map[string]*Type),
		byElem:       make(map[int]*Type),
		neededFields: make(map[string]bool),
	}
}

// Size is the number of distinct types interned so far (primitives and
// java/lang/Object included once seeded).
func (r *Registry) Size() int {
	return len(r.order)
}

// IsFinished reports whether the scan phase has closed.
func (r *Registry) IsFinished() bool {
	return r.g.IsFinish
}

func (r *Registry) intern(t *Type) *Type {
	t.Index = r.nextIndex
	t.TypeIndex = -1
	r.nextIndex++
	r.order = append(r.order, t)
	return t
}

// ensureSeeded seeds the nine primitives and java/lang/Object on the very
// first call to ValueOf or ArrayType (spec.md §4.1). Object is seeded
// exactly once here — the Design Notes' "open question" about double
// seeding is resolved by never re-entering this branch once objectRef is
// set.
func (r *Registry) ensureSeeded() {
	if len(r.order) > 0 {
		return
	}
	for _, slot := range types.FixedPrimitiveOrder {
		p := &Type{Name: slot.Name, Kind: KindPrimitive, PrimKind: slot.Kind}
		r.intern(p)
		r.byName[slot.Name] = p
	}
	obj := &Type{
		Name:     "java/lang/Object",
		Kind:     KindClass,
		Opcode:   ExtClass,
		Abstract: false,
	}
	r.intern(obj)
	r.byName[obj.Name] = obj
	r.objectRef = obj
}

// ValueOf returns the existing handle for name, interning it if this is
// the first reference. Fails with LateRegistration once the scan phase
// has closed (I4).
func (r *Registry) ValueOf(name string) (*Type, error) {
	if r.IsFinished() {
		return nil, trace.ErrorAs(excnames.LateRegistration, name, "valueOf called after scan-close")
	}

	r.ensureSeeded()

	if t, ok := r.byName[name]; ok {
		return t, nil
	}

	opcode := DeclClass
	if extClasses[name] {
		opcode = ExtClass
	}

	t := &Type{
		Name:   name,
		Kind:   KindClass, // hierarchy scan may relabel to KindInterface
		Opcode: opcode,
	}
	r.intern(t)
	r.byName[name] = t
	return t, nil
}

// externRefHandle is a singleton pseudo-primitive, never itself
// assigned a class index, used only as an ArrayType element to request
// an opaque-reference array component (spec.md §4.1's "externref
// mapping to Object's index").
func (r *Registry) externRefHandle() *Type {
	if r.externRef == nil {
		r.externRef = &Type{Index: -1, Name: "externref", Kind: KindPrimitive, PrimKind: types.ExternRef}
	}
	return r.externRef
}

// ExternRef returns the externref pseudo-handle.
func (r *Registry) ExternRef() *Type {
	return r.externRefHandle()
}

// ArrayType returns the existing array handle whose component is elem,
// creating it if necessary.
func (r *Registry) ArrayType(elem *Type) (*Type, error) {
	if r.IsFinished() {
		return nil, trace.ErrorAs(excnames.LateRegistration, "[?", "arrayType called after scan-close")
	}

	r.ensureSeeded()

	key := elem.Index
	if elem.Kind == KindPrimitive && elem.PrimKind == types.ExternRef {
		key = -1 // the sentinel's own Index; distinct from any real index
	}
	if t, ok := r.byElem[key]; ok {
		return t, nil
	}

	componentIndex := elem.Index
	if elem.Kind == KindPrimitive {
		if elem.PrimKind == types.ExternRef {
			componentIndex = r.objectRef.Index
		} else if !elem.IsPrimitive() {
			if r.g.StrictArrayElements {
				return nil, trace.ErrorAs(excnames.UnsupportedArrayElement, elem.Name, "primitive kind has no fixed class index")
			}
			// Non-strict mode: accept the array anyway, leaving its
			// component unmapped rather than failing the whole run.
			componentIndex = -1
		}
	}

	t := &Type{
		Name:           "[" + elem.Name,
		Kind:           KindArray,
		Elem:           elem,
		ComponentIndex: componentIndex,
	}
	r.intern(t)
	r.byElem[key] = t
	return t, nil
}

// UseFieldName marks a field name as needed by some consumer. The
// hierarchy scanner only includes a field in a class's layout if its
// name was requested this way before scan-close (spec.md Design Notes,
// "needed fields and lazy layout").
func (r *Registry) UseFieldName(name string) {
	r.neededFields[name] = true
}

// FieldNeeded reports whether name has been requested via UseFieldName.
func (r *Registry) FieldNeeded(name string) bool {
	return r.neededFields[name]
}

// PrepareFinish closes the scan-open phase (spec.md §5). Subsequent
// ValueOf/ArrayType calls fail with LateRegistration.
func (r *Registry) PrepareFinish() {
	r.g.IsFinish = true
}

// Get looks up an already-interned class or interface by name without
// creating it. Returns nil if absent.
func (r *Registry) Get(name string) *Type {
	return r.byName[name]
}

// InternalValueOf is ValueOf without the scan-close guard. It exists for
// the hierarchy scanner (C3), which runs during scan-close itself and
// must still be able to intern a superclass or
// interface name a consumer never happened to reference directly before
// PrepareFinish. It must never be exposed to ordinary consumers — the
// LateRegistration guard in ValueOf/ArrayType is what they are bound by.
func (r *Registry) InternalValueOf(name string) *Type {
	r.ensureSeeded()
	if t, ok := r.byName[name]; ok {
		return t
	}
	opcode := DeclClass
	if extClasses[name] {
		opcode = ExtClass
	}
	t := &Type{Name: name, Kind: KindClass, Opcode: opcode}
	r.intern(t)
	r.byName[name] = t
	return t
}

// Object returns java/lang/Object's handle, seeding the registry first
// if necessary.
func (r *Registry) Object() *Type {
	r.ensureSeeded()
	return r.objectRef
}

// AllTypes returns every interned type in insertion order.
func (r *Registry) AllTypes() []*Type {
	return r.order
}

// ByIndex returns the type with the given class index, or nil.
func (r *Registry) ByIndex(idx int) *Type {
	for _, t := range r.order {
		if t.Index == idx {
			return t
		}
	}
	return nil
}

// MarkScanned flags t as processed by the hierarchy scanner.
func (t *Type) MarkScanned() {
	t.scanned = true
}

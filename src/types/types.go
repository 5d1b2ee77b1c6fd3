/*
 * jacobin2wasm - a type-layout and dispatch-table engine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package types holds the primitive kind vocabulary shared by the type
// registry (C1) and the signature resolver (C2). It ports the role of
// jacobin/types (which defines the JVM's primitive descriptor alphabet)
// to this engine's smaller, stack-machine-facing kind set.
package types

// PrimitiveKind is one of the machine-level kinds a primitive, or an
// array's scalar component, can have. Ten kinds are named in spec.md §3;
// ExternRef is the odd one out: it never occupies one of the nine fixed
// primitive class indices (0..8), it only ever appears as a synthetic
// array-component tag meaning "treat the component as an opaque object
// reference".
type PrimitiveKind int

const (
	Bool PrimitiveKind = iota
	I8
	U16
	I16
	I32
	I64
	F32
	F64
	Void
	ExternRef
)

func (k PrimitiveKind) String() string {
	switch k {
	case Bool:
		return "bool"
	case I8:
		return "i8"
	case U16:
		return "u16"
	case I16:
		return "i16"
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case Void:
		return "void"
	case ExternRef:
		return "externref"
	default:
		return "unknown"
	}
}

// PrimitiveSlot names one of the nine fixed class-index slots 0..8 and
// the machine kind that slot carries. Order here is the external
// contract of spec.md §3/§8 (P2): class indices are assigned in this
// exact order at registry seeding time.
type PrimitiveSlot struct {
	Name string
	Kind PrimitiveKind
}

// FixedPrimitiveOrder is indices 0..8, in the order the source
// language's reflective primitive lookup depends on. Per P2, "char" maps
// to the I8 kind (not U16) at index 2 — the source bytecode's descriptor
// grammar (C, same as B) treats char and byte identically at this level.
var FixedPrimitiveOrder = []PrimitiveSlot{
	{Name: "boolean", Kind: Bool},
	{Name: "byte", Kind: I8},
	{Name: "char", Kind: I8},
	{Name: "double", Kind: F64},
	{Name: "float", Kind: F32},
	{Name: "int", Kind: I32},
	{Name: "long", Kind: I64},
	{Name: "short", Kind: I16},
	{Name: "void", Kind: Void},
}

// NumFixedPrimitives is the width of the reserved class-index range
// (I2): indices 0..8.
const NumFixedPrimitives = 9

// ObjectClassIndex is the class index java/lang/Object is seeded at, the
// first time any non-primitive is interned (I3).
const ObjectClassIndex = 9

/*
 * jacobin2wasm - a type-layout and dispatch-table engine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package sigresolver implements the signature resolver (C2): parsing
// the source bytecode's one-character type-descriptor grammar into type
// handles from the registry (spec.md §4.2). It ports the teacher's own
// descriptor-switch style, visible throughout instantiate.go
// ("case \"L\", \"[\": ... case \"B\", \"C\", \"I\", \"J\", \"S\", \"Z\": ...").
package sigresolver

import (
	"strings"

	"jacobin2wasm/src/excnames"
	"jacobin2wasm/src/registry"
	"jacobin2wasm/src/trace"
)

// Resolver parses descriptors against a single Registry.
type Resolver struct {
	reg *registry.Registry
}

func New(reg *registry.Registry) *Resolver {
	return &Resolver{reg: reg}
}

// ValueOfSig interprets one type descriptor: Z/B/C/S/I/J/F/D/V for
// primitives, L<name>; for a class/interface reference, [<inner> for an
// array. Any other prefix is treated as a bare class name (the legacy
// path spec.md §4.2 calls for). An empty descriptor is BadSignature.
func (s *Resolver) ValueOfSig(desc string) (*registry.Type, error) {
	if desc == "" {
		return nil, trace.ErrorAs(excnames.BadSignature, desc, "empty signature")
	}

	switch desc[0] {
	case 'Z':
		return s.primitive("boolean")
	case 'B':
		return s.primitive("byte")
	case 'C':
		return s.primitive("char")
	case 'S':
		return s.primitive("short")
	case 'I':
		return s.primitive("int")
	case 'J':
		return s.primitive("long")
	case 'F':
		return s.primitive("float")
	case 'D':
		return s.primitive("double")
	case 'V':
		return s.primitive("void")
	case 'L':
		name, ok := referenceName(desc)
		if !ok {
			return nil, trace.ErrorAs(excnames.BadSignature, desc, "missing terminating ';' in reference signature")
		}
		return s.reg.ValueOf(name)
	case '[':
		inner, err := s.ValueOfSig(desc[1:])
		if err != nil {
			return nil, err
		}
		return s.reg.ArrayType(inner)
	default:
		// legacy path: bare class name rather than a 'L...;' reference
		if isBareClassName(desc) {
			return s.reg.ValueOf(desc)
		}
		return nil, trace.ErrorAs(excnames.BadSignature, desc, "unrecognized descriptor prefix")
	}
}

func (s *Resolver) primitive(name string) (*registry.Type, error) {
	return s.reg.ValueOf(name)
}

// referenceName strips the leading 'L' and trailing ';' from a reference
// descriptor, e.g. "Ljava/lang/Object;" -> "java/lang/Object".
func referenceName(desc string) (string, bool) {
	if len(desc) < 3 || desc[0] != 'L' || desc[len(desc)-1] != ';' {
		return "", false
	}
	return desc[1 : len(desc)-1], true
}

// isBareClassName accepts the legacy form: a slash-separated identifier
// with no JVM descriptor punctuation, so a caller that already stripped
// the 'L'/';' wrapper (or never had it) still resolves.
func isBareClassName(desc string) bool {
	if desc == "" {
		return false
	}
	if strings.ContainsAny(desc, ";[") {
		return false
	}
	return true
}

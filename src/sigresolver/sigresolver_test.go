/*
 * jacobin2wasm - a type-layout and dispatch-table engine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package sigresolver

import (
	"testing"

	"jacobin2wasm/src/globals"
	"jacobin2wasm/src/registry"
)

func newTestResolver() (*registry.Registry, *Resolver) {
	r := registry.New(globals.New("test"))
	return r, New(r)
}

func TestValueOfSigPrimitives(t *testing.T) {
	_, s := newTestResolver()
	cases := map[string]string{
		"Z": "boolean", "B": "byte", "C": "char", "S": "short",
		"I": "int", "J": "long", "F": "float", "D": "double", "V": "void",
	}
	for desc, name := range cases {
		got, err := s.ValueOfSig(desc)
		if err != nil {
			t.Fatalf("ValueOfSig(%q): %v", desc, err)
		}
		if got.Name != name {
			t.Errorf("ValueOfSig(%q).Name = %q, want %q", desc, got.Name, name)
		}
	}
}

func TestValueOfSigReference(t *testing.T) {
	_, s := newTestResolver()
	got, err := s.ValueOfSig("Ljava/lang/String;")
	if err != nil {
		t.Fatalf("ValueOfSig: %v", err)
	}
	if got.Name != "java/lang/String" {
		t.Errorf("got %q, want java/lang/String", got.Name)
	}
}

func TestValueOfSigArray(t *testing.T) {
	_, s := newTestResolver()
	got, err := s.ValueOfSig("[I")
	if err != nil {
		t.Fatalf("ValueOfSig: %v", err)
	}
	if got.Kind != registry.KindArray {
		t.Errorf("got Kind = %v, want KindArray", got.Kind)
	}
	if got.Elem.Name != "int" {
		t.Errorf("array Elem.Name = %q, want int", got.Elem.Name)
	}
}

func TestValueOfSigBadSignature(t *testing.T) {
	_, s := newTestResolver()
	if _, err := s.ValueOfSig(""); err == nil {
		t.Error("expected BadSignature for empty descriptor")
	}
	if _, err := s.ValueOfSig("Lmissing/terminator"); err == nil {
		t.Error("expected BadSignature for reference missing trailing ';'")
	}
}

func TestValueOfSigLegacyBareClassName(t *testing.T) {
	_, s := newTestResolver()
	got, err := s.ValueOfSig("com/example/Bare")
	if err != nil {
		t.Fatalf("ValueOfSig: %v", err)
	}
	if got.Name != "com/example/Bare" {
		t.Errorf("got %q", got.Name)
	}
}

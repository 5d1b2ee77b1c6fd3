/*
 * jacobin2wasm - a type-layout and dispatch-table engine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package trace

import (
	"strings"
	"testing"

	"jacobin2wasm/src/excnames"
)

func captureSink(t *testing.T) (*[]string, func()) {
	var got []string
	old := Sink
	Sink = func(level Level, msg string) { got = append(got, msg) }
	return &got, func() { Sink = old }
}

func TestTraceRespectsLevelThreshold(t *testing.T) {
	got, restore := captureSink(t)
	defer restore()

	oldLevel := CurrentLevel
	defer SetLevel(oldLevel)
	SetLevel(WARNING)

	Trace(INFO, "should be suppressed")
	Trace(SEVERE, "should pass through")

	if len(*got) != 1 || (*got)[0] != "should pass through" {
		t.Errorf("got %v, want exactly one message", *got)
	}
}

func TestErrorAlwaysWrites(t *testing.T) {
	got, restore := captureSink(t)
	defer restore()

	oldLevel := CurrentLevel
	defer SetLevel(oldLevel)
	SetLevel(SEVERE + 1) // above every real level

	if err := Error("Component", "went wrong"); err == nil {
		t.Error("Error returned nil")
	}
	if len(*got) != 1 || !strings.Contains((*got)[0], "Component Error: went wrong") {
		t.Errorf("got %v", *got)
	}
}

func TestErrorAsBuildsCompileError(t *testing.T) {
	got, restore := captureSink(t)
	defer restore()

	err := ErrorAs(excnames.MissingClass, "Foo", "not found")
	if err == nil {
		t.Fatal("ErrorAs returned nil")
	}
	if len(*got) != 1 {
		t.Fatalf("expected one sink write, got %d", len(*got))
	}
	if !strings.Contains(err.Error(), "MissingClass") || !strings.Contains(err.Error(), "Foo") {
		t.Errorf("unexpected error text: %s", err.Error())
	}
}

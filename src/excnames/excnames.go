/*
 * jacobin2wasm - a type-layout and dispatch-table engine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package excnames names the fatal error kinds the engine can raise
// (spec.md §7), the way jacobin/excNames centralizes the JVM's named
// exception classes rather than letting callers string-match error text.
package excnames

// Kind identifies one of the six fatal conditions spec.md §7 defines.
type Kind int

const (
	LateRegistration Kind = iota
	MissingClass
	BadSignature
	MissingImplementation
	UnsupportedArrayElement
	CycleInHierarchy
)

func (k Kind) String() string {
	switch k {
	case LateRegistration:
		return "LateRegistration"
	case MissingClass:
		return "MissingClass"
	case BadSignature:
		return "BadSignature"
	case MissingImplementation:
		return "MissingImplementation"
	case UnsupportedArrayElement:
		return "UnsupportedArrayElement"
	case CycleInHierarchy:
		return "CycleInHierarchy"
	default:
		return "UnknownError"
	}
}

// CompileError is the single error type the engine surfaces to its
// caller (spec.md §5: "failure at any step is fatal for the whole
// compilation and produces a CompileError"). It is not recovered locally.
type CompileError struct {
	Kind     Kind
	Subject  string // the offending type or function name
	Location string // "-1" if unknown
	Detail   string
}

func (e *CompileError) Error() string {
	loc := e.Location
	if loc == "" {
		loc = "-1"
	}
	msg := e.Kind.String() + ": " + e.Subject + " (at " + loc + ")"
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// New builds a CompileError with location "-1" (unknown).
func New(kind Kind, subject, detail string) *CompileError {
	return &CompileError{Kind: kind, Subject: subject, Location: "-1", Detail: detail}
}

// NewAt builds a CompileError with an explicit location.
func NewAt(kind Kind, subject, location, detail string) *CompileError {
	return &CompileError{Kind: kind, Subject: subject, Location: location, Detail: detail}
}

/*
 * jacobin2wasm - a type-layout and dispatch-table engine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package trace provides the engine's leveled logging and the
// file:line-tagged error construction used by every fatal condition the
// engine raises. It ports the calling convention visible throughout the
// teacher (jacobin/trace, jacobin/log): a package-level level threshold,
// a Trace() for routine progress, and an Error() that both logs and
// returns the error it logged.
package trace

import (
	"fmt"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strconv"

	"jacobin2wasm/src/excnames"
)

// Level is the severity of a trace message.
type Level int

const (
	FINE Level = iota
	INFO
	WARNING
	SEVERE
)

// CurrentLevel gates which messages Trace actually writes. Error always
// writes regardless of CurrentLevel, matching the teacher's cfe(), which
// is unconditional.
var CurrentLevel = INFO

// Sink receives every message written through this package. Tests swap it
// out to capture output the way errors_test.go redirects os.Stderr.
var Sink func(level Level, msg string) = defaultSink

func defaultSink(level Level, msg string) {
	fmt.Println(msg)
}

func SetLevel(l Level) {
	CurrentLevel = l
}

// Trace writes a routine progress message if level meets CurrentLevel.
func Trace(level Level, msg string) {
	if level < CurrentLevel {
		return
	}
	Sink(level, msg)
}

// Error builds a "<component> Error: <msg>" message tagged with the
// file and line of its caller, writes it via Sink at SEVERE, and returns
// it as an error. Mirrors the teacher's cfe()/CFE() pair in
// classloader.go, generalized to any component prefix instead of being
// hardcoded to "Class Format Error".
func Error(component, msg string) error {
	errMsg := component + " Error: " + msg

	pc, _, _, ok := runtime.Caller(1)
	if ok {
		fn := runtime.FuncForPC(pc)
		fileName, fileLine := fn.FileLine(pc)
		errMsg = errMsg + "\n  detected by file: " + filepath.Base(fileName) +
			", line: " + strconv.Itoa(fileLine)
	}
	Sink(SEVERE, errMsg+"\n"+string(debug.Stack()))
	return fmt.Errorf("%s", errMsg)
}

// ErrorAs builds an excnames.CompileError for kind/subject/detail, tags
// its location with the caller's file:line the same way Error does, logs
// it at SEVERE, and returns it — the typed counterpart to Error, used
// wherever the caller needs a specific excnames.Kind rather than a bare
// string.
func ErrorAs(kind excnames.Kind, subject, detail string) error {
	location := "-1"
	pc, _, _, ok := runtime.Caller(1)
	if ok {
		fn := runtime.FuncForPC(pc)
		fileName, fileLine := fn.FileLine(pc)
		location = filepath.Base(fileName) + ":" + strconv.Itoa(fileLine)
	}
	cerr := excnames.NewAt(kind, subject, location, detail)
	Sink(SEVERE, cerr.Error()+"\n"+string(debug.Stack()))
	return cerr
}

// Package errors wraps errors with the location where they are wrapped.
//
// Messages look like
//
//	@ pkg.Func "file.go" l123 (note) <- cause
//
// so a chain of wrapped errors reads as a trace, from the outermost.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// Traced is an error which remembers where it has been wrapped.
type Traced struct {
	Func string
	File string
	Line int

	// Note is optional context, like the name of the file being read.
	Note string

	cause error
}

func (t *Traced) Error() string {
	at := fmt.Sprintf(`@ %s "%s" l%d`, t.Func, t.File, t.Line)
	if t.Note != "" {
		at += " (" + t.Note + ")"
	}
	return at + " <- " + t.cause.Error()
}

func (t *Traced) Unwrap() error {
	return t.cause
}

// New makes a new error traced at the caller.
func New(text string) error {
	return trace(errors.New(text), "")
}

// Wrap traces err at the caller.
func Wrap(err error) error {
	return trace(err, "")
}

// WrapWithNote traces err at the caller, with a note.
func WrapWithNote(note string, err error) error {
	return trace(err, note)
}

// trace should be called directly from the exported functions.
func trace(err error, note string) *Traced {
	t := &Traced{Func: "(unknown func)", File: "?", Line: -1, Note: note, cause: err}

	pc, file, line, ok := runtime.Caller(2)
	if !ok {
		return t
	}
	t.File, t.Line = file, line
	if fn := runtime.FuncForPC(pc); fn != nil {
		t.Func = fn.Name()
	}
	return t
}

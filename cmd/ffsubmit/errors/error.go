// Package errors defines errors shown to users of ffsubmit.
package errors

import (
	"fmt"
	"strings"
)

// Verbose is implemented by errors having a longer explanation for --verbose.
type Verbose interface {
	Verbose() string
}

// CUIError is an error to be shown to the user of the commandline.
//
// Error() is the summary (with detail, if any). Verbose() adds the chain of causes.
type CUIError interface {
	error
	Verbose
}

type cuiError struct {
	summary string
	hint    string
	detail  func(summary string) (string, error)
	cause   error
}

type CuiErrorOption func(*cuiError)

// NewCuiError makes a CUIError with a one line summary.
func NewCuiError(summary string, options ...CuiErrorOption) CUIError {
	e := &cuiError{summary: summary}
	for _, o := range options {
		o(e)
	}
	return e
}

// WithVerbose adds a hint shown only in the verbose message.
func WithVerbose(hint string) CuiErrorOption {
	return func(e *cuiError) {
		e.hint = hint
	}
}

// WithDetail replaces the message with the one built from the summary.
func WithDetail(build func(summary string) (string, error)) CuiErrorOption {
	return func(e *cuiError) {
		e.detail = build
	}
}

// WithLines appends lines below the summary.
func WithLines(lines ...string) CuiErrorOption {
	return WithDetail(func(summary string) (string, error) {
		if len(lines) == 0 {
			return summary, nil
		}
		return summary + "\n  " + strings.Join(lines, "\n  "), nil
	})
}

func WithCause(err error) CuiErrorOption {
	return func(e *cuiError) {
		e.cause = err
	}
}

func (e *cuiError) Unwrap() error {
	return e.cause
}

func (e *cuiError) Error() string {
	if e.detail == nil {
		return e.summary
	}
	message, err := e.detail(e.summary)
	if err != nil {
		return fmt.Sprintf("%s\n(cannot build the detail: %s)", e.summary, err)
	}
	return message
}

func (e *cuiError) Verbose() string {
	lines := []string{e.Error()}
	if e.hint != "" {
		lines = append(lines, " ("+e.hint+") ")
	}

	if v, ok := e.cause.(Verbose); ok {
		lines = append(lines, "caused by: ", v.Verbose())
	} else if e.cause != nil {
		lines = append(lines, "caused by: ", e.cause.Error())
	}
	return strings.Join(lines, "\n")
}

// Package errors gives every phase of the pipeline (lex, parse, compile,
// link, run) a uniform error shape: a kind, a human-readable message, an
// optional source location, and — via github.com/pkg/errors — a wrapped
// cause and stack trace.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies an error per spec.md §7.
type Kind string

const (
	Lexical       Kind = "SyntaxError"
	Declaration   Kind = "DeclarationError"
	Type          Kind = "TypeError"
	Arity         Kind = "ArityError"
	Control       Kind = "ControlError"
	Link          Kind = "LinkError"
	RuntimeIO     Kind = "RuntimeIOError"
	RuntimeMemory Kind = "RuntimeMemoryError"
	RuntimeArith  Kind = "RuntimeArithError"
)

// Location is a position in source text.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// MMError is the error type returned by every package in this module.
type MMError struct {
	Kind    Kind
	Message string
	Loc     Location
	cause   error
}

func (e *MMError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if loc := e.Loc.String(); loc != "" {
		sb.WriteString(" (at ")
		sb.WriteString(loc)
		sb.WriteString(")")
	}
	return sb.String()
}

// Cause exposes the wrapped error so github.com/pkg/errors.Cause and
// %+v stack formatting keep working through this type.
func (e *MMError) Cause() error { return e.cause }

func (e *MMError) Unwrap() error { return e.cause }

// New builds a fresh MMError with a stack trace attached.
func New(kind Kind, loc Location, format string, args ...interface{}) *MMError {
	msg := fmt.Sprintf(format, args...)
	return &MMError{
		Kind:    kind,
		Message: msg,
		Loc:     loc,
		cause:   errors.New(msg),
	}
}

// Wrap attaches a Kind and Location to an existing error, preserving it
// as the cause for stack-trace purposes.
func Wrap(kind Kind, loc Location, err error, format string, args ...interface{}) *MMError {
	msg := fmt.Sprintf(format, args...)
	return &MMError{
		Kind:    kind,
		Message: msg,
		Loc:     loc,
		cause:   errors.Wrap(err, msg),
	}
}

// StackTrace renders the wrapped cause's stack trace. The CLI does not
// call it: its diagnostics print only the error message.
func StackTrace(err error) string {
	return fmt.Sprintf("%+v", errors.Cause(err))
}

// Package vmvalue holds the runtime-tagged value and the per-activation
// memory frame the virtual machine reads and writes quadruple operands
// against. It mirrors the segment plan in internal/memspace: a Frame is
// just the union of the segments reachable from whatever scope (global
// or a single activation) owns it.
package vmvalue

import (
	"fmt"

	"github.com/pkg/errors"

	"memyself/internal/memspace"
)

// Value is a tagged runtime value: exactly one of the fields is
// meaningful, selected by Kind.
type Value struct {
	Kind  memspace.Kind
	Int   int64
	Float float64
	Char  string
	Bool  bool
}

func Int(v int64) Value     { return Value{Kind: memspace.KindInt, Int: v} }
func Float(v float64) Value { return Value{Kind: memspace.KindFloat, Float: v} }
func Char(v string) Value   { return Value{Kind: memspace.KindChar, Char: v} }
func Bool(v bool) Value     { return Value{Kind: memspace.KindBool, Bool: v} }

// String renders a value the way PRINT emits it.
func (v Value) String() string {
	switch v.Kind {
	case memspace.KindInt:
		return fmt.Sprintf("%d", v.Int)
	case memspace.KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case memspace.KindChar:
		return v.Char
	case memspace.KindBool:
		return fmt.Sprintf("%t", v.Bool)
	default:
		return ""
	}
}

// Zero returns the zero value for a segment's kind, used to
// pre-initialize a freshly allocated frame slot.
func Zero(k memspace.Kind) Value {
	switch k {
	case memspace.KindInt:
		return Int(0)
	case memspace.KindFloat:
		return Float(0)
	case memspace.KindChar:
		return Char("")
	case memspace.KindBool:
		return Bool(false)
	default:
		return Value{}
	}
}

// Sizes is the tuple of per-kind slot counts a frame is built from:
// either (ints, floats, chars) for locals or (ints, floats, chars,
// bools) for temps.
type Sizes struct {
	Int   int
	Float int
	Char  int
	Bool  int
}

// Frame is a segment-bounded address space: a global Memory holds the
// Global* segments, a per-activation Frame holds the Local*/Temp*
// segments for exactly one function activation.
type Frame struct {
	slots map[memspace.Segment][]Value
}

// NewGlobalFrame preallocates the three global segments.
func NewGlobalFrame(ints, floats, chars int) *Frame {
	f := &Frame{slots: make(map[memspace.Segment][]Value)}
	f.alloc(memspace.GlobalInt, ints)
	f.alloc(memspace.GlobalFloat, floats)
	f.alloc(memspace.GlobalChar, chars)
	return f
}

// NewActivationFrame preallocates a callee's local and temp segments
// per the sizes recorded on its function record.
func NewActivationFrame(locals, temps Sizes) *Frame {
	f := &Frame{slots: make(map[memspace.Segment][]Value)}
	f.alloc(memspace.LocalInt, locals.Int)
	f.alloc(memspace.LocalFloat, locals.Float)
	f.alloc(memspace.LocalChar, locals.Char)
	f.alloc(memspace.TempInt, temps.Int)
	f.alloc(memspace.TempFloat, temps.Float)
	f.alloc(memspace.TempChar, temps.Char)
	f.alloc(memspace.TempBool, temps.Bool)
	return f
}

// NewConstantFrame preallocates the constant-table segments the
// object file's `C` records populate.
func NewConstantFrame(ints, floats, chars int) *Frame {
	f := &Frame{slots: make(map[memspace.Segment][]Value)}
	f.alloc(memspace.CteInt, ints)
	f.alloc(memspace.CteFloat, floats)
	f.alloc(memspace.CteChar, chars)
	return f
}

func (f *Frame) alloc(seg memspace.Segment, n int) {
	if n <= 0 {
		return
	}
	vals := make([]Value, n)
	kind := memspace.KindOf[seg]
	for i := range vals {
		vals[i] = Zero(kind)
	}
	f.slots[seg] = vals
}

// Get reads addr from whichever segment owns it.
func (f *Frame) Get(addr int) (Value, error) {
	seg, ok := memspace.Of(addr)
	if !ok {
		return Value{}, errors.Errorf("memory location %d not in any segment", addr)
	}
	vals, ok := f.slots[seg]
	off := addr - memspace.Base[seg]
	if !ok || off < 0 || off >= len(vals) {
		return Value{}, errors.Errorf("memory location %d not initialized", addr)
	}
	return vals[off], nil
}

// Set writes addr in whichever segment owns it.
func (f *Frame) Set(addr int, v Value) error {
	seg, ok := memspace.Of(addr)
	if !ok {
		return errors.Errorf("memory location %d not in any segment", addr)
	}
	vals, ok := f.slots[seg]
	off := addr - memspace.Base[seg]
	if !ok || off < 0 || off >= len(vals) {
		return errors.Errorf("memory location %d not initialized", addr)
	}
	vals[off] = v
	return nil
}

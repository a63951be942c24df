// Package object defines the linked in-memory form of a compiled
// program and the line-oriented textual encoding described in spec.md
// §4.2: one record per line, classified by a leading prefix letter
// (C/G/F/A), order-independent on read.
package object

import (
	"memyself/internal/memspace"
	"memyself/internal/quad"
	"memyself/internal/vmvalue"
)

// Constant is one interned literal, addressed in CteInt or CteFloat.
type Constant struct {
	Value string
	Kind  memspace.Kind
	Addr  int
}

// FunctionInfo is one user function's linked record: its entry point
// and the frozen sizes of its local and temp segments (spec.md §4.2
// `F` record).
type FunctionInfo struct {
	Name   string
	Start  int
	Locals vmvalue.Sizes
	Temps  vmvalue.Sizes
}

// Object is the complete linked program: everything the object writer
// serialises and the VM loader needs to run.
type Object struct {
	Quads                                 []quad.Quadruple
	Constants                              []Constant
	GlobalInts, GlobalFloats, GlobalChars int
	Functions                             []FunctionInfo
}

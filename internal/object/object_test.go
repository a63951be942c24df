package object

import (
	"bytes"
	"testing"

	"memyself/internal/memspace"
	"memyself/internal/quad"
)

func sample() *Object {
	lh := quad.AddrOperand(memspace.Base[memspace.GlobalInt])
	rh := quad.AddrOperand(memspace.Base[memspace.GlobalInt] + 1)
	return &Object{
		Constants: []Constant{
			{Value: "42", Kind: memspace.KindInt, Addr: memspace.Base[memspace.CteInt]},
			{Value: "3.5", Kind: memspace.KindFloat, Addr: memspace.Base[memspace.CteFloat]},
		},
		GlobalInts:   2,
		GlobalFloats: 1,
		GlobalChars:  0,
		Functions: []FunctionInfo{
			{Name: "main", Start: 0},
		},
		Quads: []quad.Quadruple{
			{Op: quad.Sum, Lh: &lh, Rh: &rh, Out: quad.AddrOperand(memspace.Base[memspace.TempInt])},
			{Op: quad.Print, Out: quad.StrOperand("hello, world")},
			{Op: quad.Goto, Out: quad.TargetOperand(5)},
			{Op: quad.Gosub, Out: quad.NameOperand("main")},
			{Op: quad.EndFunc},
		},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	obj := sample()

	var buf bytes.Buffer
	if err := Write(&buf, obj); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if len(got.Constants) != len(obj.Constants) {
		t.Fatalf("constants: got %d, want %d", len(got.Constants), len(obj.Constants))
	}
	for i, c := range obj.Constants {
		if got.Constants[i] != c {
			t.Errorf("constant %d: got %+v, want %+v", i, got.Constants[i], c)
		}
	}

	if got.GlobalInts != obj.GlobalInts || got.GlobalFloats != obj.GlobalFloats || got.GlobalChars != obj.GlobalChars {
		t.Errorf("global sizes: got (%d,%d,%d), want (%d,%d,%d)",
			got.GlobalInts, got.GlobalFloats, got.GlobalChars,
			obj.GlobalInts, obj.GlobalFloats, obj.GlobalChars)
	}

	if len(got.Functions) != 1 || got.Functions[0].Name != "main" {
		t.Fatalf("functions: got %+v", got.Functions)
	}

	if len(got.Quads) != len(obj.Quads) {
		t.Fatalf("quads: got %d, want %d", len(got.Quads), len(obj.Quads))
	}
	if got.Quads[0].Lh.Addr != lhAddr(obj) || got.Quads[0].Rh.Addr != rhAddr(obj) {
		t.Errorf("SUM operands did not round-trip: got %+v", got.Quads[0])
	}
	if got.Quads[1].Out.Str != "hello, world" {
		t.Errorf("PRINT literal did not round-trip: got %q", got.Quads[1].Out.Str)
	}
	if got.Quads[2].Out.Target != 5 {
		t.Errorf("GOTO target did not round-trip: got %d", got.Quads[2].Out.Target)
	}
	if got.Quads[3].Out.Name != "main" {
		t.Errorf("GOSUB name did not round-trip: got %q", got.Quads[3].Out.Name)
	}
}

func lhAddr(o *Object) int { return o.Quads[0].Lh.Addr }
func rhAddr(o *Object) int { return o.Quads[0].Rh.Addr }

func TestReadSkipsNonParticipatingLines(t *testing.T) {
	input := "# a banner comment\n\nG 0 0 0\nF main 0 0 0 0 0 0 0 0\n"
	got, err := Read(bytes.NewBufferString(input))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got.Functions) != 1 || got.Functions[0].Name != "main" {
		t.Fatalf("got %+v", got.Functions)
	}
}

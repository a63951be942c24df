package vmvalue

import (
	"testing"

	"memyself/internal/memspace"
)

func TestGlobalFrameRoundTrip(t *testing.T) {
	f := NewGlobalFrame(2, 2, 2)
	addr := memspace.Base[memspace.GlobalFloat] + 1
	if err := f.Set(addr, Float(3.5)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := f.Get(addr)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Kind != memspace.KindFloat || got.Float != 3.5 {
		t.Fatalf("got %+v, want Float(3.5)", got)
	}
}

func TestFrameRejectsOutOfBounds(t *testing.T) {
	f := NewGlobalFrame(1, 0, 0)
	if _, err := f.Get(memspace.Base[memspace.GlobalInt] + 5); err == nil {
		t.Fatal("expected an error reading past the allocated slot count")
	}
}

func TestFrameRejectsUnknownSegment(t *testing.T) {
	f := NewGlobalFrame(1, 1, 1)
	if _, err := f.Get(999); err == nil {
		t.Fatal("expected an error for an address outside every segment")
	}
}

func TestZeroValuesPerKind(t *testing.T) {
	f := NewActivationFrame(Sizes{Int: 1, Float: 1, Char: 1}, Sizes{Bool: 1})
	checks := []struct {
		seg  memspace.Segment
		want Value
	}{
		{memspace.LocalInt, Int(0)},
		{memspace.LocalFloat, Float(0)},
		{memspace.LocalChar, Char("")},
		{memspace.TempBool, Bool(false)},
	}
	for _, c := range checks {
		v, err := f.Get(memspace.Base[c.seg])
		if err != nil {
			t.Fatalf("Get(%v): %v", c.seg, err)
		}
		if v != c.want {
			t.Errorf("zero value for %v = %+v, want %+v", c.seg, v, c.want)
		}
	}
}

func TestConstantFrameSegmentsAreIndependentOfLocals(t *testing.T) {
	cf := NewConstantFrame(1, 0, 0)
	if err := cf.Set(memspace.Base[memspace.CteInt], Int(42)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := cf.Get(memspace.Base[memspace.LocalInt]); err == nil {
		t.Fatal("constant frame should not have a LocalInt segment allocated")
	}
}

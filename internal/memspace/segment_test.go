package memspace

import "testing"

func TestOfFindsOwningSegment(t *testing.T) {
	seg, ok := Of(5003)
	if !ok || seg != GlobalInt {
		t.Fatalf("Of(5003) = (%v, %v), want (GlobalInt, true)", seg, ok)
	}
	if off := Offset(5003); off != 3 {
		t.Fatalf("Offset(5003) = %d, want 3", off)
	}
}

func TestOfRejectsGapsBetweenSegments(t *testing.T) {
	if _, ok := Of(8000); ok {
		t.Fatalf("Of(8000) should fall in the gap between GlobalChar and LocalInt")
	}
	if _, ok := Of(4999); ok {
		t.Fatalf("Of(4999) should be below the first segment")
	}
}

func TestSegmentClassification(t *testing.T) {
	cases := []struct {
		seg                        Segment
		global, local, temp, cte bool
	}{
		{GlobalInt, true, false, false, false},
		{LocalFloat, false, true, false, false},
		{TempBool, false, false, true, false},
		{CteString, false, false, false, true},
	}
	for _, c := range cases {
		if got := IsGlobal(c.seg); got != c.global {
			t.Errorf("IsGlobal(%v) = %v, want %v", c.seg, got, c.global)
		}
		if got := IsLocal(c.seg); got != c.local {
			t.Errorf("IsLocal(%v) = %v, want %v", c.seg, got, c.local)
		}
		if got := IsTemp(c.seg); got != c.temp {
			t.Errorf("IsTemp(%v) = %v, want %v", c.seg, got, c.temp)
		}
		if got := IsConst(c.seg); got != c.cte {
			t.Errorf("IsConst(%v) = %v, want %v", c.seg, got, c.cte)
		}
	}
}

func TestAddrAllocatesSequentially(t *testing.T) {
	a0, n1 := Addr(LocalFloat, 0)
	a1, n2 := Addr(LocalFloat, n1)
	if a0 != 11000 || a1 != 11001 || n2 != 2 {
		t.Fatalf("got addrs (%d, %d) next %d, want (11000, 11001) next 2", a0, a1, n2)
	}
}

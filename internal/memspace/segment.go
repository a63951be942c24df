// Package memspace defines the partitioned-address memory model shared by
// the compiler and the virtual machine: every variable and constant lives
// at a numeric address inside exactly one segment, and the segment alone
// determines both the storage class (global/local/temp/constant) and the
// primitive type of the value found there.
package memspace

// Kind is the primitive type tag carried by a segment.
type Kind byte

const (
	KindInt Kind = iota
	KindFloat
	KindChar
	KindBool
	KindString
	KindVoid
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindChar:
		return "char"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "void"
	}
}

// Segment identifies one of the fourteen disjoint address ranges.
type Segment byte

const (
	GlobalInt Segment = iota
	GlobalFloat
	GlobalChar
	LocalInt
	LocalFloat
	LocalChar
	TempInt
	TempFloat
	TempChar
	TempBool
	CteInt
	CteFloat
	CteChar
	CteString
)

const span = 1000

// Base is the first address of a segment.
var Base = map[Segment]int{
	GlobalInt:   5000,
	GlobalFloat: 6000,
	GlobalChar:  7000,
	LocalInt:    10000,
	LocalFloat:  11000,
	LocalChar:   12000,
	TempInt:     20000,
	TempFloat:   21000,
	TempChar:    22000,
	TempBool:    23000,
	CteInt:      30000,
	CteFloat:    31000,
	CteChar:     32000,
	CteString:   33000,
}

// KindOf is the type every address in a segment is tagged with.
var KindOf = map[Segment]Kind{
	GlobalInt:   KindInt,
	GlobalFloat: KindFloat,
	GlobalChar:  KindChar,
	LocalInt:    KindInt,
	LocalFloat:  KindFloat,
	LocalChar:   KindChar,
	TempInt:     KindInt,
	TempFloat:   KindFloat,
	TempChar:    KindChar,
	TempBool:    KindBool,
	CteInt:      KindInt,
	CteFloat:    KindFloat,
	CteChar:     KindChar,
	CteString:   KindString,
}

var order = []Segment{
	GlobalInt, GlobalFloat, GlobalChar,
	LocalInt, LocalFloat, LocalChar,
	TempInt, TempFloat, TempChar, TempBool,
	CteInt, CteFloat, CteChar, CteString,
}

// Of returns the segment owning addr, and whether addr lies in any
// known segment's [base, base+1000) range.
func Of(addr int) (Segment, bool) {
	for _, s := range order {
		base := Base[s]
		if addr >= base && addr < base+span {
			return s, true
		}
	}
	return 0, false
}

// Offset returns addr's position within its segment.
func Offset(addr int) int {
	seg, ok := Of(addr)
	if !ok {
		return -1
	}
	return addr - Base[seg]
}

// IsGlobal, IsLocal, IsTemp, IsConst classify a segment by storage class.
func IsGlobal(s Segment) bool { return s == GlobalInt || s == GlobalFloat || s == GlobalChar }
func IsLocal(s Segment) bool  { return s == LocalInt || s == LocalFloat || s == LocalChar }
func IsTemp(s Segment) bool {
	return s == TempInt || s == TempFloat || s == TempChar || s == TempBool
}
func IsConst(s Segment) bool {
	return s == CteInt || s == CteFloat || s == CteChar || s == CteString
}

// Addr allocates the next free address in a segment given its current
// per-function or per-program offset counter, and returns the address
// together with the counter's new value.
func Addr(s Segment, next int) (addr int, newNext int) {
	return Base[s] + next, next + 1
}

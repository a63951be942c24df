package object

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"memyself/internal/memspace"
	"memyself/internal/quad"
)

func kindLabel(k memspace.Kind) string {
	switch k {
	case memspace.KindInt:
		return "Int"
	case memspace.KindFloat:
		return "Float"
	case memspace.KindChar:
		return "Char"
	default:
		panic("object: constant of unsupported kind " + k.String())
	}
}

// Write serialises obj as line-oriented text: constants, then the `G`
// record, then one `F` per function, then one `A` per quadruple — the
// order spec.md §4.2 says the writer uses, though the reader does not
// depend on it.
func Write(w io.Writer, obj *Object) error {
	bw := bufio.NewWriter(w)

	for _, c := range obj.Constants {
		if _, err := fmt.Fprintf(bw, "C %s %d %s\n", c.Value, c.Addr, kindLabel(c.Kind)); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(bw, "G %d %d %d\n", obj.GlobalInts, obj.GlobalFloats, obj.GlobalChars); err != nil {
		return err
	}

	for _, f := range obj.Functions {
		if _, err := fmt.Fprintf(bw, "F %s %d %d %d %d %d %d %d %d\n",
			f.Name, f.Start,
			f.Locals.Int, f.Locals.Float, f.Locals.Char,
			f.Temps.Int, f.Temps.Float, f.Temps.Char, f.Temps.Bool,
		); err != nil {
			return err
		}
	}

	for _, q := range obj.Quads {
		line, err := encodeQuad(q)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// isNameOp reports whether op's `out` field is a bare function name
// rather than an address (ERA/GOSUB and every turtle built-in).
func isNameOp(op quad.Op) bool {
	if op == quad.Era || op == quad.Gosub {
		return true
	}
	_, ok := builtinOps[op]
	return ok
}

var builtinOps = func() map[quad.Op]bool {
	m := make(map[quad.Op]bool, len(quad.Builtins))
	for _, op := range quad.Builtins {
		m[op] = true
	}
	return m
}()

func encodeSideOperand(o *quad.Operand) string {
	if o == nil || !o.HasAddr {
		return "-1"
	}
	return strconv.Itoa(o.Addr)
}

func encodeOut(op quad.Op, o quad.Operand) string {
	switch {
	case op == quad.Print && o.HasString:
		return strconv.Quote(o.Str)
	case isNameOp(op):
		return o.Name
	case op == quad.Goto || op == quad.GotoF:
		return strconv.Itoa(o.Target)
	case o.HasAddr:
		return strconv.Itoa(o.Addr)
	default:
		return "-1"
	}
}

func encodeQuad(q quad.Quadruple) (string, error) {
	lh := encodeSideOperand(q.Lh)
	rh := encodeSideOperand(q.Rh)
	out := encodeOut(q.Op, q.Out)
	return fmt.Sprintf("A %s %s %s %s", q.Op, lh, rh, out), nil
}

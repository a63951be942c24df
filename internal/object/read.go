package object

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"memyself/internal/memspace"
	"memyself/internal/quad"
	"memyself/internal/vmvalue"
)

func vsizes(a, b, c, d int) vmvalue.Sizes {
	return vmvalue.Sizes{Int: a, Float: b, Char: c, Bool: d}
}

func kindFromLabel(label string) (memspace.Kind, error) {
	switch label {
	case "Int":
		return memspace.KindInt, nil
	case "Float":
		return memspace.KindFloat, nil
	case "Char":
		return memspace.KindChar, nil
	}
	return 0, fmt.Errorf("object: unknown constant type %q", label)
}

// Read parses a whole object file. Records may appear in any order;
// any line whose first byte is not C/G/F/A is ignored, which leaves
// room for a non-participating banner comment.
func Read(r io.Reader) (*Object, error) {
	obj := &Object{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		var err error
		switch line[0] {
		case 'C':
			var c Constant
			c, err = decodeConstant(line)
			if err == nil {
				obj.Constants = append(obj.Constants, c)
			}
		case 'G':
			obj.GlobalInts, obj.GlobalFloats, obj.GlobalChars, err = decodeGlobals(line)
		case 'F':
			var f FunctionInfo
			f, err = decodeFunction(line)
			if err == nil {
				obj.Functions = append(obj.Functions, f)
			}
		case 'A':
			var q quad.Quadruple
			q, err = decodeQuad(line)
			if err == nil {
				obj.Quads = append(obj.Quads, q)
			}
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("object: parsing %q: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeConstant(line string) (Constant, error) {
	f := strings.Fields(line)
	if len(f) != 4 {
		return Constant{}, fmt.Errorf("malformed C record")
	}
	addr, err := strconv.Atoi(f[2])
	if err != nil {
		return Constant{}, err
	}
	kind, err := kindFromLabel(f[3])
	if err != nil {
		return Constant{}, err
	}
	return Constant{Value: f[1], Addr: addr, Kind: kind}, nil
}

func decodeGlobals(line string) (gi, gf, gc int, err error) {
	f := strings.Fields(line)
	if len(f) != 4 {
		return 0, 0, 0, fmt.Errorf("malformed G record")
	}
	if gi, err = strconv.Atoi(f[1]); err != nil {
		return
	}
	if gf, err = strconv.Atoi(f[2]); err != nil {
		return
	}
	gc, err = strconv.Atoi(f[3])
	return
}

func decodeFunction(line string) (FunctionInfo, error) {
	f := strings.Fields(line)
	if len(f) != 10 {
		return FunctionInfo{}, fmt.Errorf("malformed F record")
	}
	ints := make([]int, 8)
	for i := 0; i < 8; i++ {
		n, err := strconv.Atoi(f[i+2])
		if err != nil {
			return FunctionInfo{}, err
		}
		ints[i] = n
	}
	return FunctionInfo{
		Name:  f[1],
		Start: ints[0],
		Locals: vsizes(ints[1], ints[2], ints[3], 0),
		Temps:  vsizes(ints[4], ints[5], ints[6], ints[7]),
	}, nil
}

func decodeSideOperand(token string) (*quad.Operand, error) {
	if token == "-1" {
		return nil, nil
	}
	n, err := strconv.Atoi(token)
	if err != nil {
		return nil, err
	}
	o := quad.AddrOperand(n)
	return &o, nil
}

func decodeOut(op quad.Op, token string) (quad.Operand, error) {
	switch {
	case op == quad.Goto || op == quad.GotoF:
		n, err := strconv.Atoi(token)
		if err != nil {
			return quad.Operand{}, err
		}
		return quad.TargetOperand(n), nil
	case isNameOp(op):
		return quad.NameOperand(token), nil
	case op == quad.EndFunc:
		return quad.Operand{}, nil
	case op == quad.Print:
		if strings.HasPrefix(token, `"`) {
			s, err := strconv.Unquote(token)
			if err != nil {
				return quad.Operand{}, err
			}
			return quad.StrOperand(s), nil
		}
		n, err := strconv.Atoi(token)
		if err != nil {
			return quad.Operand{}, err
		}
		return quad.AddrOperand(n), nil
	default:
		if token == "-1" {
			return quad.Operand{}, nil
		}
		n, err := strconv.Atoi(token)
		if err != nil {
			return quad.Operand{}, err
		}
		return quad.AddrOperand(n), nil
	}
}

func decodeQuad(line string) (quad.Quadruple, error) {
	parts := strings.SplitN(line, " ", 5)
	if len(parts) != 5 {
		return quad.Quadruple{}, fmt.Errorf("malformed A record")
	}
	op := quad.Op(parts[1])
	lh, err := decodeSideOperand(parts[2])
	if err != nil {
		return quad.Quadruple{}, err
	}
	rh, err := decodeSideOperand(parts[3])
	if err != nil {
		return quad.Quadruple{}, err
	}
	out, err := decodeOut(op, parts[4])
	if err != nil {
		return quad.Quadruple{}, err
	}
	return quad.Quadruple{Op: op, Lh: lh, Rh: rh, Out: out}, nil
}

// Package vm executes a linked object.Object against the memory model
// of internal/memspace and internal/vmvalue: a Global Memory, a
// Current Frame, a Pending Frame being filled in by PARAM ahead of the
// next call, and the ip_stack/memory_stack pair spec.md §4.3 describes.
package vm

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	mmerrors "memyself/internal/errors"
	"memyself/internal/memspace"
	"memyself/internal/object"
	"memyself/internal/quad"
	"memyself/internal/turtle"
	"memyself/internal/vmvalue"
)

// minPendingLocal is the floor on the Pending Frame's Local segment
// capacity. ERA sizes the Pending Frame exactly to the callee's
// declared locals, but turtle built-ins never go through ERA (spec.md
// §4.1: "no ERA/GOSUB is emitted" for built-in calls) and still write
// their arguments into the Pending.LocalFloat range via PARAM. Keeping
// a floor here means a built-in call works regardless of which user
// function's frame last passed through ERA.
const minPendingLocal = 8

// Machine is one program execution: the object it was loaded from,
// its memory spaces, and the call-stacks spec.md names ip_stack and
// memory_stack.
type Machine struct {
	functions map[string]object.FunctionInfo
	quads     []quad.Quadruple

	global    *vmvalue.Frame
	constants *vmvalue.Frame
	current   *vmvalue.Frame
	pending   *vmvalue.Frame

	ipStack  []int
	memStack []*vmvalue.Frame

	paramInt, paramFloat, paramChar int

	sink turtle.Sink
	in   *bufio.Reader
	out  io.Writer

	ip int
}

// New loads obj and prepares a Machine whose instruction pointer sits
// at the program prologue (instruction 0), ready to Run.
func New(obj *object.Object, sink turtle.Sink, in io.Reader, out io.Writer) (*Machine, error) {
	m := &Machine{
		functions: make(map[string]object.FunctionInfo, len(obj.Functions)),
		quads:     obj.Quads,
		global:    vmvalue.NewGlobalFrame(obj.GlobalInts, obj.GlobalFloats, obj.GlobalChars),
		sink:      sink,
		in:        bufio.NewReader(in),
		out:       out,
	}

	for _, fn := range obj.Functions {
		m.functions[fn.Name] = fn
	}
	mainFn, ok := m.functions["main"]
	if !ok {
		return nil, mmerrors.New(mmerrors.Link, mmerrors.Location{}, "object has no 'main' function record")
	}

	ci, cf, cc := constantCounts(obj.Constants)
	m.constants = vmvalue.NewConstantFrame(ci, cf, cc)
	for _, c := range obj.Constants {
		v, err := parseConstant(c)
		if err != nil {
			return nil, err
		}
		if err := m.constants.Set(c.Addr, v); err != nil {
			return nil, err
		}
	}

	m.current = vmvalue.NewActivationFrame(mainFn.Locals, mainFn.Temps)
	m.pending = newPendingFrame(object.FunctionInfo{})

	m.ip = 0
	return m, nil
}

func newPendingFrame(fn object.FunctionInfo) *vmvalue.Frame {
	locals := fn.Locals
	if locals.Int < minPendingLocal {
		locals.Int = minPendingLocal
	}
	if locals.Float < minPendingLocal {
		locals.Float = minPendingLocal
	}
	if locals.Char < minPendingLocal {
		locals.Char = minPendingLocal
	}
	return vmvalue.NewActivationFrame(locals, fn.Temps)
}

func constantCounts(cs []object.Constant) (ints, floats, chars int) {
	for _, c := range cs {
		off := memspace.Offset(c.Addr) + 1
		switch c.Kind {
		case memspace.KindInt:
			if off > ints {
				ints = off
			}
		case memspace.KindFloat:
			if off > floats {
				floats = off
			}
		case memspace.KindChar:
			if off > chars {
				chars = off
			}
		}
	}
	return
}

func parseConstant(c object.Constant) (vmvalue.Value, error) {
	switch c.Kind {
	case memspace.KindInt:
		n, err := strconv.ParseInt(c.Value, 10, 64)
		if err != nil {
			return vmvalue.Value{}, mmerrors.New(mmerrors.Link, mmerrors.Location{}, "malformed int constant %q", c.Value)
		}
		return vmvalue.Int(n), nil
	case memspace.KindFloat:
		f, err := strconv.ParseFloat(c.Value, 64)
		if err != nil {
			return vmvalue.Value{}, mmerrors.New(mmerrors.Link, mmerrors.Location{}, "malformed float constant %q", c.Value)
		}
		return vmvalue.Float(f), nil
	case memspace.KindChar:
		return vmvalue.Char(c.Value), nil
	}
	return vmvalue.Value{}, mmerrors.New(mmerrors.Link, mmerrors.Location{}, "constant of unsupported kind %s", c.Kind)
}

// Run executes the quadruple stream until ENDFUNC unwinds past the
// last activation, or a fatal runtime error occurs.
func (m *Machine) Run() error {
	for {
		if m.ip < 0 || m.ip >= len(m.quads) {
			return mmerrors.New(mmerrors.RuntimeMemory, mmerrors.Location{}, "instruction pointer %d out of range", m.ip)
		}
		q := m.quads[m.ip]

		if arity, ok := quad.BuiltinArity[q.Op]; ok {
			if err := m.dispatchBuiltin(q.Op, arity); err != nil {
				return err
			}
			m.ip++
			continue
		}

		switch q.Op {
		case quad.Goto:
			m.ip = q.Out.Target

		case quad.GotoF:
			cond, err := m.read(q.Lh.Addr)
			if err != nil {
				return err
			}
			if !cond.Bool {
				m.ip = q.Out.Target
			} else {
				m.ip++
			}

		case quad.Era:
			fn, ok := m.functions[q.Out.Name]
			if !ok {
				return mmerrors.New(mmerrors.RuntimeMemory, mmerrors.Location{}, "ERA of undeclared function %s", q.Out.Name)
			}
			m.pending = newPendingFrame(fn)
			m.paramInt, m.paramFloat, m.paramChar = 0, 0, 0
			m.ip++

		case quad.Param:
			if err := m.execParam(q); err != nil {
				return err
			}
			m.ip++

		case quad.Gosub:
			fn, ok := m.functions[q.Out.Name]
			if !ok {
				return mmerrors.New(mmerrors.RuntimeMemory, mmerrors.Location{}, "GOSUB of undeclared function %s", q.Out.Name)
			}
			m.ipStack = append(m.ipStack, m.ip)
			m.memStack = append(m.memStack, m.current)
			m.current = m.pending
			m.pending = newPendingFrame(object.FunctionInfo{})
			m.paramInt, m.paramFloat, m.paramChar = 0, 0, 0
			m.ip = fn.Start

		case quad.Return:
			v, err := m.read(q.Lh.Addr)
			if err != nil {
				return err
			}
			if err := m.global.Set(q.Out.Addr, v); err != nil {
				return err
			}
			// A return leaves the activation at once, unwinding the same
			// way ENDFUNC does, so statements after it in the body never run.
			if len(m.ipStack) == 0 {
				return nil
			}
			n := len(m.ipStack) - 1
			m.current = m.memStack[n]
			m.ip = m.ipStack[n] + 1
			m.ipStack = m.ipStack[:n]
			m.memStack = m.memStack[:n]

		case quad.EndFunc:
			if len(m.ipStack) == 0 {
				return nil
			}
			n := len(m.ipStack) - 1
			retIP := m.ipStack[n]
			m.ipStack = m.ipStack[:n]
			m.current = m.memStack[n]
			m.memStack = m.memStack[:n]
			m.ip = retIP + 1

		case quad.Assign:
			if err := m.execAssign(q); err != nil {
				return err
			}
			m.ip++

		case quad.Read:
			if err := m.execRead(q); err != nil {
				return err
			}
			m.ip++

		case quad.Print:
			if err := m.execPrint(q); err != nil {
				return err
			}
			m.ip++

		case quad.Sum, quad.Sub, quad.Mult, quad.Div,
			quad.MoreThan, quad.LessThan, quad.MoreOrEqualThan, quad.LessOrEqualThan,
			quad.Equal, quad.NotEqual, quad.And, quad.Or:
			if err := m.execBinary(q); err != nil {
				return err
			}
			m.ip++

		default:
			return mmerrors.New(mmerrors.RuntimeMemory, mmerrors.Location{}, "unknown opcode %s", q.Op)
		}
	}
}

// read resolves addr against whichever memory space owns its segment.
func (m *Machine) read(addr int) (vmvalue.Value, error) {
	seg, ok := memspace.Of(addr)
	if !ok {
		return vmvalue.Value{}, mmerrors.New(mmerrors.RuntimeMemory, mmerrors.Location{}, "address %d is not in any segment", addr)
	}
	switch {
	case memspace.IsGlobal(seg):
		return m.global.Get(addr)
	case memspace.IsConst(seg):
		return m.constants.Get(addr)
	default:
		return m.current.Get(addr)
	}
}

func (m *Machine) write(addr int, v vmvalue.Value) error {
	seg, ok := memspace.Of(addr)
	if !ok {
		return mmerrors.New(mmerrors.RuntimeMemory, mmerrors.Location{}, "address %d is not in any segment", addr)
	}
	switch {
	case memspace.IsConst(seg):
		return mmerrors.New(mmerrors.RuntimeMemory, mmerrors.Location{}, "cannot write to constant address %d", addr)
	case memspace.IsGlobal(seg):
		return m.global.Set(addr, v)
	default:
		return m.current.Set(addr, v)
	}
}

func (m *Machine) execParam(q quad.Quadruple) error {
	v, err := m.read(q.Out.Addr)
	if err != nil {
		return err
	}
	switch v.Kind {
	case memspace.KindInt:
		addr, n := memspace.Addr(memspace.LocalInt, m.paramInt)
		m.paramInt = n
		return m.pending.Set(addr, v)
	case memspace.KindFloat:
		addr, n := memspace.Addr(memspace.LocalFloat, m.paramFloat)
		m.paramFloat = n
		return m.pending.Set(addr, v)
	case memspace.KindChar:
		addr, n := memspace.Addr(memspace.LocalChar, m.paramChar)
		m.paramChar = n
		return m.pending.Set(addr, v)
	}
	return mmerrors.New(mmerrors.RuntimeMemory, mmerrors.Location{}, "PARAM of unsupported value kind %s", v.Kind)
}

func (m *Machine) execAssign(q quad.Quadruple) error {
	v, err := m.read(q.Lh.Addr)
	if err != nil {
		return err
	}
	seg, ok := memspace.Of(q.Out.Addr)
	if !ok {
		return mmerrors.New(mmerrors.RuntimeMemory, mmerrors.Location{}, "address %d is not in any segment", q.Out.Addr)
	}
	coerced, err := coerce(v, memspace.KindOf[seg])
	if err != nil {
		return err
	}
	return m.write(q.Out.Addr, coerced)
}

// coerce implements the assign-with-coercion rules of spec.md §4.3.
func coerce(v vmvalue.Value, target memspace.Kind) (vmvalue.Value, error) {
	switch target {
	case memspace.KindInt:
		switch v.Kind {
		case memspace.KindInt:
			return v, nil
		case memspace.KindFloat:
			return vmvalue.Int(int64(v.Float)), nil
		}
	case memspace.KindFloat:
		switch v.Kind {
		case memspace.KindInt:
			return vmvalue.Float(float64(v.Int)), nil
		case memspace.KindFloat:
			return v, nil
		}
	case memspace.KindChar:
		switch v.Kind {
		case memspace.KindChar:
			return v, nil
		case memspace.KindInt:
			return vmvalue.Char(strconv.FormatInt(v.Int, 10)), nil
		case memspace.KindFloat:
			return vmvalue.Char(strconv.FormatFloat(v.Float, 'g', -1, 64)), nil
		}
	}
	return vmvalue.Value{}, mmerrors.New(mmerrors.RuntimeMemory, mmerrors.Location{}, "cannot assign %s to %s", v.Kind, target)
}

func (m *Machine) execRead(q quad.Quadruple) error {
	line, err := m.in.ReadString('\n')
	if err != nil && line == "" {
		return mmerrors.New(mmerrors.RuntimeIO, mmerrors.Location{}, "read: %v", err)
	}
	line = strings.TrimRight(line, "\r\n")

	seg, ok := memspace.Of(q.Out.Addr)
	if !ok {
		return mmerrors.New(mmerrors.RuntimeMemory, mmerrors.Location{}, "address %d is not in any segment", q.Out.Addr)
	}
	var v vmvalue.Value
	switch memspace.KindOf[seg] {
	case memspace.KindInt:
		n, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
		if err != nil {
			return mmerrors.New(mmerrors.RuntimeIO, mmerrors.Location{}, "read: %q is not a valid int", line)
		}
		v = vmvalue.Int(n)
	case memspace.KindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
		if err != nil {
			return mmerrors.New(mmerrors.RuntimeIO, mmerrors.Location{}, "read: %q is not a valid float", line)
		}
		v = vmvalue.Float(f)
	case memspace.KindChar:
		v = vmvalue.Char(line)
	default:
		return mmerrors.New(mmerrors.RuntimeMemory, mmerrors.Location{}, "READ target has unsupported kind")
	}
	return m.write(q.Out.Addr, v)
}

func (m *Machine) execPrint(q quad.Quadruple) error {
	if q.Out.HasString {
		_, err := io.WriteString(m.out, q.Out.Str+"\n")
		return err
	}
	v, err := m.read(q.Out.Addr)
	if err != nil {
		return err
	}
	_, err = io.WriteString(m.out, v.String()+"\n")
	return err
}

func (m *Machine) dispatchBuiltin(op quad.Op, arity int) error {
	args := make([]float64, arity)
	for i := range args {
		addr, _ := memspace.Addr(memspace.LocalFloat, i)
		v, err := m.pending.Get(addr)
		if err != nil {
			return err
		}
		args[i] = v.Float
	}
	m.paramInt, m.paramFloat, m.paramChar = 0, 0, 0

	switch op {
	case quad.Center:
		m.sink.Center()
	case quad.Forward:
		m.sink.Forward(args[0])
	case quad.Backward:
		m.sink.Backward(args[0])
	case quad.Left:
		m.sink.Left(args[0])
	case quad.Right:
		m.sink.Right(args[0])
	case quad.Size:
		m.sink.Size(args[0])
	case quad.Clear:
		m.sink.Clear()
	case quad.PenUp:
		m.sink.PenUp()
	case quad.PenDown:
		m.sink.PenDown()
	case quad.Color:
		// Stored as (r, b, g); forwarded to the drawing surface as (r, g, b).
		m.sink.Color(args[0], args[2], args[1])
	case quad.Position:
		m.sink.Position(args[0], args[1])
	case quad.BackgroundColor:
		m.sink.BackgroundColor(args[0], args[2], args[1])
	case quad.FillColor:
		m.sink.FillColor(args[0], args[2], args[1])
	case quad.StartFill:
		m.sink.StartFill()
	case quad.EndFill:
		m.sink.EndFill()
	default:
		return mmerrors.New(mmerrors.RuntimeMemory, mmerrors.Location{}, "unknown turtle built-in %s", op)
	}
	return nil
}

func (m *Machine) execBinary(q quad.Quadruple) error {
	lh, err := m.read(q.Lh.Addr)
	if err != nil {
		return err
	}
	rh, err := m.read(q.Rh.Addr)
	if err != nil {
		return err
	}

	var result vmvalue.Value
	switch q.Op {
	case quad.Sum, quad.Sub, quad.Mult, quad.Div:
		result, err = arithmetic(q.Op, lh, rh)
	case quad.MoreThan, quad.LessThan, quad.MoreOrEqualThan, quad.LessOrEqualThan:
		result, err = numericCompare(q.Op, lh, rh)
	case quad.Equal, quad.NotEqual:
		result, err = equality(q.Op, lh, rh)
	case quad.And, quad.Or:
		result, err = logical(q.Op, lh, rh)
	}
	if err != nil {
		return err
	}
	return m.write(q.Out.Addr, result)
}

func arithmetic(op quad.Op, lh, rh vmvalue.Value) (vmvalue.Value, error) {
	if lh.Kind == memspace.KindInt && rh.Kind == memspace.KindInt {
		if op == quad.Div && rh.Int == 0 {
			return vmvalue.Value{}, mmerrors.New(mmerrors.RuntimeArith, mmerrors.Location{}, "division by zero")
		}
		switch op {
		case quad.Sum:
			return vmvalue.Int(lh.Int + rh.Int), nil
		case quad.Sub:
			return vmvalue.Int(lh.Int - rh.Int), nil
		case quad.Mult:
			return vmvalue.Int(lh.Int * rh.Int), nil
		case quad.Div:
			return vmvalue.Int(lh.Int / rh.Int), nil
		}
	}
	a, okA := asFloat(lh)
	b, okB := asFloat(rh)
	if !okA || !okB {
		return vmvalue.Value{}, mmerrors.New(mmerrors.RuntimeMemory, mmerrors.Location{}, "arithmetic on non-numeric operands")
	}
	if op == quad.Div && b == 0 {
		return vmvalue.Value{}, mmerrors.New(mmerrors.RuntimeArith, mmerrors.Location{}, "division by zero")
	}
	switch op {
	case quad.Sum:
		return vmvalue.Float(a + b), nil
	case quad.Sub:
		return vmvalue.Float(a - b), nil
	case quad.Mult:
		return vmvalue.Float(a * b), nil
	case quad.Div:
		return vmvalue.Float(a / b), nil
	}
	return vmvalue.Value{}, mmerrors.New(mmerrors.RuntimeMemory, mmerrors.Location{}, "unreachable arithmetic op %s", op)
}

func asFloat(v vmvalue.Value) (float64, bool) {
	switch v.Kind {
	case memspace.KindInt:
		return float64(v.Int), true
	case memspace.KindFloat:
		return v.Float, true
	}
	return 0, false
}

func numericCompare(op quad.Op, lh, rh vmvalue.Value) (vmvalue.Value, error) {
	a, okA := asFloat(lh)
	b, okB := asFloat(rh)
	if !okA || !okB {
		return vmvalue.Value{}, mmerrors.New(mmerrors.RuntimeMemory, mmerrors.Location{}, "comparison on non-numeric operands")
	}
	var result bool
	switch op {
	case quad.MoreThan:
		result = a > b
	case quad.LessThan:
		result = a < b
	case quad.MoreOrEqualThan:
		result = a >= b
	case quad.LessOrEqualThan:
		result = a <= b
	}
	return vmvalue.Bool(result), nil
}

func equality(op quad.Op, lh, rh vmvalue.Value) (vmvalue.Value, error) {
	var equal bool
	switch {
	case lh.Kind == memspace.KindChar && rh.Kind == memspace.KindChar:
		equal = lh.Char == rh.Char
	default:
		a, okA := asFloat(lh)
		b, okB := asFloat(rh)
		if !okA || !okB {
			return vmvalue.Value{}, mmerrors.New(mmerrors.RuntimeMemory, mmerrors.Location{}, "equality on incomparable operands")
		}
		equal = a == b
	}
	if op == quad.NotEqual {
		equal = !equal
	}
	return vmvalue.Bool(equal), nil
}

func logical(op quad.Op, lh, rh vmvalue.Value) (vmvalue.Value, error) {
	if lh.Kind != memspace.KindBool || rh.Kind != memspace.KindBool {
		return vmvalue.Value{}, mmerrors.New(mmerrors.RuntimeMemory, mmerrors.Location{}, "logical operator on non-bool operands")
	}
	switch op {
	case quad.And:
		return vmvalue.Bool(lh.Bool && rh.Bool), nil
	case quad.Or:
		return vmvalue.Bool(lh.Bool || rh.Bool), nil
	}
	return vmvalue.Value{}, mmerrors.New(mmerrors.RuntimeMemory, mmerrors.Location{}, "unreachable logical op %s", op)
}

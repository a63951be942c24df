// Package compiler implements the semantic analyser and quadruple
// emitter described in spec.md §4.1: a tree-walking pass over the
// parser's AST that maintains an operand stack, an operator stack, a
// jump-backpatch stack, a function table, and the segment counters of
// spec.md §3, and lowers each statement into the quadruple list a
// Program carries.
package compiler

import (
	"fmt"

	mmerrors "memyself/internal/errors"
	"memyself/internal/memspace"
	"memyself/internal/object"
	"memyself/internal/parser"
	"memyself/internal/quad"
	"memyself/internal/vmvalue"
)

// operand is a compile-time reference to a typed memory location.
type operand struct {
	Addr int
	Kind memspace.Kind
}

// function is the compiler's record for one declared function.
type function struct {
	Name       string
	RetKind    memspace.Kind
	Params     []memspace.Kind
	Entry      int
	Vars       map[string]operand
	ReturnSlot int // valid iff RetKind != memspace.KindVoid
	locals     counters // int, float, char
	temps      counters // int, float, char, bool
}

type counters struct{ Int, Float, Char, Bool int }

// Compiler holds all compile-time state for one source file.
type Compiler struct {
	file string

	operandStack  []operand
	operatorStack []string // binary operators, plus "(" as the sentinel
	jumpStack     []int

	quads []quad.Quadruple

	globals  map[string]operand
	funcDecl map[string]*function // function order of declaration preserved via funcOrder
	funcOrder []string

	constants []object.Constant

	currentFunc string

	globalCounters counters
	cteCounters    counters
}

const parenSentinel = "("

func New(file string) *Compiler {
	return &Compiler{
		file:     file,
		globals:  make(map[string]operand),
		funcDecl: make(map[string]*function),
	}
}

// Compile runs the whole pipeline over a parsed program and returns the
// linked Object, or the first semantic error encountered.
func (c *Compiler) Compile(prog *parser.Program) (*object.Object, error) {
	if c.file == "" {
		c.file = prog.Name
	}

	// Program prologue: instruction 0 always jumps to main (spec.md §4.1).
	c.emit(quad.Goto, nil, nil, quad.TargetOperand(0))

	for _, g := range prog.Globals {
		if err := c.declareGlobals(g); err != nil {
			return nil, err
		}
	}

	for _, fn := range prog.Functions {
		if err := c.compileFunction(fn); err != nil {
			return nil, err
		}
	}

	if err := c.compileMain(prog.Main); err != nil {
		return nil, err
	}

	mainFn, ok := c.funcDecl["main"]
	if !ok {
		return nil, mmerrors.New(mmerrors.Link, mmerrors.Location{File: c.file}, "no 'main' function declared")
	}
	c.quads[0].Out = quad.TargetOperand(mainFn.Entry)

	return c.link(), nil
}

func (c *Compiler) link() *object.Object {
	obj := &object.Object{
		Quads:        c.quads,
		Constants:    c.constants,
		GlobalInts:   c.globalCounters.Int,
		GlobalFloats: c.globalCounters.Float,
		GlobalChars:  c.globalCounters.Char,
	}
	for _, name := range c.funcOrder {
		fn := c.funcDecl[name]
		obj.Functions = append(obj.Functions, object.FunctionInfo{
			Name:  fn.Name,
			Start: fn.Entry,
			Locals: vmvalue.Sizes{Int: fn.locals.Int, Float: fn.locals.Float, Char: fn.locals.Char},
			Temps:  vmvalue.Sizes{Int: fn.temps.Int, Float: fn.temps.Float, Char: fn.temps.Char, Bool: fn.temps.Bool},
		})
	}
	return obj
}

func (c *Compiler) emit(op quad.Op, lh, rh *quad.Operand, out quad.Operand) int {
	c.quads = append(c.quads, quad.Quadruple{Op: op, Lh: lh, Rh: rh, Out: out})
	return len(c.quads) - 1
}

func kindFromType(t parser.Type) memspace.Kind {
	switch t {
	case parser.TInt:
		return memspace.KindInt
	case parser.TFloat:
		return memspace.KindFloat
	case parser.TChar:
		return memspace.KindChar
	default:
		return memspace.KindVoid
	}
}

func (c *Compiler) loc(line int) mmerrors.Location {
	return mmerrors.Location{File: c.file, Line: line}
}

// declareGlobals allocates a global variable declaration group.
func (c *Compiler) declareGlobals(d parser.VarDecl) error {
	kind := kindFromType(d.Type)
	for _, name := range d.Names {
		if _, exists := c.globals[name]; exists {
			return mmerrors.New(mmerrors.Declaration, c.loc(d.Line), "variable %s has already been declared", name)
		}
		addr := c.allocGlobal(kind)
		c.globals[name] = operand{Addr: addr, Kind: kind}
	}
	return nil
}

func (c *Compiler) allocGlobal(kind memspace.Kind) int {
	switch kind {
	case memspace.KindInt:
		a, n := memspace.Addr(memspace.GlobalInt, c.globalCounters.Int)
		c.globalCounters.Int = n
		return a
	case memspace.KindFloat:
		a, n := memspace.Addr(memspace.GlobalFloat, c.globalCounters.Float)
		c.globalCounters.Float = n
		return a
	case memspace.KindChar:
		a, n := memspace.Addr(memspace.GlobalChar, c.globalCounters.Char)
		c.globalCounters.Char = n
		return a
	}
	panic("allocGlobal: unsupported kind")
}

func (c *Compiler) allocConst(kind memspace.Kind, text string) int {
	var addr int
	switch kind {
	case memspace.KindInt:
		a, n := memspace.Addr(memspace.CteInt, c.cteCounters.Int)
		c.cteCounters.Int = n
		addr = a
	case memspace.KindFloat:
		a, n := memspace.Addr(memspace.CteFloat, c.cteCounters.Float)
		c.cteCounters.Float = n
		addr = a
	default:
		panic("allocConst: unsupported kind")
	}
	c.constants = append(c.constants, object.Constant{Value: text, Kind: kind, Addr: addr})
	return addr
}

func (c *Compiler) allocTemp(kind memspace.Kind) int {
	fn := c.funcDecl[c.currentFunc]
	switch kind {
	case memspace.KindInt:
		addr, n := memspace.Addr(memspace.TempInt, fn.temps.Int)
		fn.temps.Int = n
		return addr
	case memspace.KindFloat:
		addr, n := memspace.Addr(memspace.TempFloat, fn.temps.Float)
		fn.temps.Float = n
		return addr
	case memspace.KindChar:
		addr, n := memspace.Addr(memspace.TempChar, fn.temps.Char)
		fn.temps.Char = n
		return addr
	case memspace.KindBool:
		addr, n := memspace.Addr(memspace.TempBool, fn.temps.Bool)
		fn.temps.Bool = n
		return addr
	}
	panic("allocTemp: unsupported kind")
}

func (c *Compiler) allocLocal(kind memspace.Kind) int {
	fn := c.funcDecl[c.currentFunc]
	switch kind {
	case memspace.KindInt:
		addr, n := memspace.Addr(memspace.LocalInt, fn.locals.Int)
		fn.locals.Int = n
		return addr
	case memspace.KindFloat:
		addr, n := memspace.Addr(memspace.LocalFloat, fn.locals.Float)
		fn.locals.Float = n
		return addr
	case memspace.KindChar:
		addr, n := memspace.Addr(memspace.LocalChar, fn.locals.Char)
		fn.locals.Char = n
		return addr
	}
	panic("allocLocal: unsupported kind")
}

// findVar resolves an identifier against the current function's
// parameters/locals, falling back to globals.
func (c *Compiler) findVar(name string, line int) (operand, error) {
	if fn, ok := c.funcDecl[c.currentFunc]; ok {
		if v, ok := fn.Vars[name]; ok {
			return v, nil
		}
	}
	if v, ok := c.globals[name]; ok {
		return v, nil
	}
	return operand{}, mmerrors.New(mmerrors.Declaration, c.loc(line), "variable %s not declared", name)
}

// cube is the semantic cube of spec.md §4.1: the total type-combination
// table for every binary operator.
func cube(op string, lt, rt memspace.Kind) (memspace.Kind, error) {
	numeric := func(k memspace.Kind) bool { return k == memspace.KindInt || k == memspace.KindFloat }
	switch op {
	case "+", "-", "*", "/":
		if lt == memspace.KindInt && rt == memspace.KindInt {
			return memspace.KindInt, nil
		}
		if numeric(lt) && numeric(rt) {
			return memspace.KindFloat, nil
		}
	case ">", "<", ">=", "<=":
		if numeric(lt) && numeric(rt) {
			return memspace.KindBool, nil
		}
	case "==", "<>":
		if numeric(lt) && numeric(rt) {
			return memspace.KindBool, nil
		}
		if lt == memspace.KindChar && rt == memspace.KindChar {
			return memspace.KindBool, nil
		}
	case "&", "||":
		if lt == memspace.KindBool && rt == memspace.KindBool {
			return memspace.KindBool, nil
		}
	}
	return 0, fmt.Errorf("incompatible types %s and %s for operator %s", lt, rt, op)
}

// cubeAssign is the assignment row of the semantic cube.
func cubeAssign(target, value memspace.Kind) (memspace.Kind, error) {
	switch {
	case target == memspace.KindInt && value == memspace.KindInt:
		return memspace.KindInt, nil
	case target == memspace.KindFloat && (value == memspace.KindInt || value == memspace.KindFloat):
		return memspace.KindFloat, nil
	case target == memspace.KindChar && value == memspace.KindChar:
		return memspace.KindChar, nil
	}
	return 0, fmt.Errorf("cannot assign %s to %s", value, target)
}

func opFromToken(tok string) quad.Op {
	switch tok {
	case "+":
		return quad.Sum
	case "-":
		return quad.Sub
	case "*":
		return quad.Mult
	case "/":
		return quad.Div
	case ">":
		return quad.MoreThan
	case "<":
		return quad.LessThan
	case ">=":
		return quad.MoreOrEqualThan
	case "<=":
		return quad.LessOrEqualThan
	case "==":
		return quad.Equal
	case "<>":
		return quad.NotEqual
	case "&":
		return quad.And
	case "||":
		return quad.Or
	}
	panic("opFromToken: unknown operator " + tok)
}

// pushOperand/popOperand/pushOperator/popOperator are the explicit O
// and P stacks of spec.md §4.1.
func (c *Compiler) pushOperand(o operand)    { c.operandStack = append(c.operandStack, o) }
func (c *Compiler) popOperand() operand {
	n := len(c.operandStack) - 1
	o := c.operandStack[n]
	c.operandStack = c.operandStack[:n]
	return o
}
func (c *Compiler) pushOperator(op string) { c.operatorStack = append(c.operatorStack, op) }
func (c *Compiler) popOperator() string {
	n := len(c.operatorStack) - 1
	op := c.operatorStack[n]
	c.operatorStack = c.operatorStack[:n]
	return op
}

// resultSegmentKind chooses which temp segment a reduction result lives in:
// arithmetic results keep their numeric kind, comparisons/logic always
// land in TempBool.
func resultSegmentKind(op string, resultKind memspace.Kind) memspace.Kind {
	switch op {
	case "+", "-", "*", "/":
		return resultKind
	default:
		return memspace.KindBool
	}
}

// reduce pops the top operator and its two operands, semantic-cube
// checks them, allocates a temp of the result type, and emits the
// quadruple — the single-reduction step of spec.md §4.1's expression
// lowering.
func (c *Compiler) reduce(line int) error {
	op := c.popOperator()
	rh := c.popOperand()
	lh := c.popOperand()
	resultKind, err := cube(op, lh.Kind, rh.Kind)
	if err != nil {
		return mmerrors.New(mmerrors.Type, c.loc(line), "%v", err)
	}
	tempKind := resultSegmentKind(op, resultKind)
	tempAddr := c.allocTemp(tempKind)
	lhOp := quad.AddrOperand(lh.Addr)
	rhOp := quad.AddrOperand(rh.Addr)
	c.emit(opFromToken(op), &lhOp, &rhOp, quad.AddrOperand(tempAddr))
	c.pushOperand(operand{Addr: tempAddr, Kind: resultKind})
	return nil
}

// lowerExpr walks an expression AST node, implementing the operand /
// operator stack algorithm of spec.md §4.1 directly against the tree
// the parser already built.
func (c *Compiler) lowerExpr(e parser.Expr) error {
	switch n := e.(type) {
	case *parser.BinaryExpr:
		if err := c.lowerExpr(n.Left); err != nil {
			return err
		}
		if err := c.lowerExpr(n.Right); err != nil {
			return err
		}
		c.pushOperator(n.Op)
		return c.reduce(n.Line)
	case *parser.IntLit:
		addr := c.allocConst(memspace.KindInt, n.Text)
		c.pushOperand(operand{Addr: addr, Kind: memspace.KindInt})
		return nil
	case *parser.FloatLit:
		addr := c.allocConst(memspace.KindFloat, n.Text)
		c.pushOperand(operand{Addr: addr, Kind: memspace.KindFloat})
		return nil
	case *parser.Ident:
		v, err := c.findVar(n.Name, n.Line)
		if err != nil {
			return err
		}
		c.pushOperand(v)
		return nil
	case *parser.CallExpr:
		return c.lowerCallExpr(n)
	}
	panic("lowerExpr: unknown node type")
}

// lowerCallExpr lowers a user-function call used for its value (spec.md
// §4.1 "Calls (user functions)"); turtle built-ins return no value and
// are rejected here.
func (c *Compiler) lowerCallExpr(call *parser.CallExpr) error {
	if _, builtin := quad.Builtins[call.Name]; builtin {
		return mmerrors.New(mmerrors.Type, c.loc(call.Line), "%s returns no value and cannot be used in an expression", call.Name)
	}
	fn, ok := c.funcDecl[call.Name]
	if !ok {
		return mmerrors.New(mmerrors.Declaration, c.loc(call.Line), "function %s is being called but has not been declared", call.Name)
	}
	if fn.RetKind == memspace.KindVoid {
		return mmerrors.New(mmerrors.Type, c.loc(call.Line), "function %s returns void and cannot be used in an expression", call.Name)
	}

	c.pushOperator(parenSentinel)
	if err := c.emitCallArgs(call, fn); err != nil {
		return err
	}

	retTemp := c.allocTemp(fn.RetKind)
	lh := quad.AddrOperand(fn.ReturnSlot)
	c.emit(quad.Assign, &lh, nil, quad.AddrOperand(retTemp))
	c.pushOperand(operand{Addr: retTemp, Kind: fn.RetKind})
	c.popOperator() // discard sentinel
	return nil
}

// emitCallArgs lowers a call's arguments left to right, checking arity
// and positional types, and emits ERA/PARAM*/GOSUB.
func (c *Compiler) emitCallArgs(call *parser.CallExpr, fn *function) error {
	c.emit(quad.Era, nil, nil, quad.NameOperand(call.Name))
	if len(call.Args) != len(fn.Params) {
		return mmerrors.New(mmerrors.Arity, c.loc(call.Line), "wrong number of arguments for %s: expected %d, got %d", call.Name, len(fn.Params), len(call.Args))
	}
	for i, arg := range call.Args {
		if err := c.lowerExpr(arg); err != nil {
			return err
		}
		a := c.popOperand()
		if a.Kind != fn.Params[i] {
			return mmerrors.New(mmerrors.Type, c.loc(call.Line), "parameter %d in call of %s has incompatible type: expected %s, got %s", i, call.Name, fn.Params[i], a.Kind)
		}
		out := quad.AddrOperand(a.Addr)
		c.emit(quad.Param, nil, nil, out)
	}
	c.emit(quad.Gosub, nil, nil, quad.NameOperand(call.Name))
	return nil
}

// compileCallStmt lowers a bare call statement: a user function call
// (result discarded) or a turtle built-in.
func (c *Compiler) compileCallStmt(stmt *parser.CallStmt) error {
	call := stmt.Call
	if op, builtin := quad.Builtins[call.Name]; builtin {
		return c.compileBuiltinCall(call, op)
	}
	fn, ok := c.funcDecl[call.Name]
	if !ok {
		return mmerrors.New(mmerrors.Declaration, c.loc(call.Line), "function %s is being called but has not been declared", call.Name)
	}
	return c.emitCallArgs(call, fn)
}

func (c *Compiler) compileBuiltinCall(call *parser.CallExpr, op quad.Op) error {
	params := quad.BuiltinParams[call.Name]
	if len(call.Args) != len(params) {
		return mmerrors.New(mmerrors.Arity, c.loc(call.Line), "wrong number of arguments for %s: expected %d, got %d", call.Name, len(params), len(call.Args))
	}
	for i, arg := range call.Args {
		if err := c.lowerExpr(arg); err != nil {
			return err
		}
		a := c.popOperand()
		if a.Kind != params[i] {
			return mmerrors.New(mmerrors.Type, c.loc(call.Line), "parameter %d in call of %s has incompatible type: expected %s, got %s", i, call.Name, params[i], a.Kind)
		}
		out := quad.AddrOperand(a.Addr)
		c.emit(quad.Param, nil, nil, out)
	}
	c.emit(op, nil, nil, quad.NameOperand(call.Name))
	return nil
}

// compileStmt lowers one statement.
func (c *Compiler) compileStmt(stmt parser.Stmt) error {
	switch s := stmt.(type) {
	case *parser.AssignStmt:
		if err := c.lowerExpr(s.Expr); err != nil {
			return err
		}
		v := c.popOperand()
		target, err := c.findVar(s.Name, s.Line)
		if err != nil {
			return err
		}
		if _, err := cubeAssign(target.Kind, v.Kind); err != nil {
			return mmerrors.New(mmerrors.Type, c.loc(s.Line), "%v", err)
		}
		lh := quad.AddrOperand(v.Addr)
		c.emit(quad.Assign, &lh, nil, quad.AddrOperand(target.Addr))
		return nil

	case *parser.ReturnStmt:
		if err := c.lowerExpr(s.Expr); err != nil {
			return err
		}
		v := c.popOperand()
		fn := c.funcDecl[c.currentFunc]
		if fn.RetKind != v.Kind {
			return mmerrors.New(mmerrors.Control, c.loc(s.Line), "return type mismatch in %s: declared %s, got %s", fn.Name, fn.RetKind, v.Kind)
		}
		lh := quad.AddrOperand(v.Addr)
		c.emit(quad.Return, &lh, nil, quad.AddrOperand(fn.ReturnSlot))
		return nil

	case *parser.ReadStmt:
		for _, name := range s.Names {
			v, err := c.findVar(name, s.Line)
			if err != nil {
				return err
			}
			c.emit(quad.Read, nil, nil, quad.AddrOperand(v.Addr))
		}
		return nil

	case *parser.WriteStmt:
		for _, arg := range s.Args {
			if arg.IsStr {
				c.emit(quad.Print, nil, nil, quad.StrOperand(arg.String))
				continue
			}
			if err := c.lowerExpr(arg.Expr); err != nil {
				return err
			}
			v := c.popOperand()
			c.emit(quad.Print, nil, nil, quad.AddrOperand(v.Addr))
		}
		return nil

	case *parser.IfStmt:
		return c.compileIf(s)

	case *parser.WhileStmt:
		return c.compileWhile(s)

	case *parser.CallStmt:
		return c.compileCallStmt(s)
	}
	panic("compileStmt: unknown statement type")
}

func (c *Compiler) compileIf(s *parser.IfStmt) error {
	if err := c.lowerExpr(s.Cond); err != nil {
		return err
	}
	cond := c.popOperand()
	if cond.Kind != memspace.KindBool {
		return mmerrors.New(mmerrors.Control, c.loc(s.Line), "if condition must be boolean, got %s", cond.Kind)
	}
	c.jumpStack = append(c.jumpStack, len(c.quads))
	condOp := quad.AddrOperand(cond.Addr)
	c.emit(quad.GotoF, &condOp, nil, quad.TargetOperand(0))

	if err := c.compileBlock(s.Then); err != nil {
		return err
	}

	if s.Else != nil {
		c.backpatch(len(c.quads) + 1)
		c.jumpStack = append(c.jumpStack, len(c.quads))
		c.emit(quad.Goto, nil, nil, quad.TargetOperand(0))
		if err := c.compileBlock(s.Else); err != nil {
			return err
		}
	}
	c.backpatch(len(c.quads))
	return nil
}

func (c *Compiler) compileWhile(s *parser.WhileStmt) error {
	loopTop := len(c.quads)
	c.jumpStack = append(c.jumpStack, loopTop)

	if err := c.lowerExpr(s.Cond); err != nil {
		return err
	}
	cond := c.popOperand()
	if cond.Kind != memspace.KindBool {
		return mmerrors.New(mmerrors.Control, c.loc(s.Line), "while condition must be boolean, got %s", cond.Kind)
	}
	c.jumpStack = append(c.jumpStack, len(c.quads))
	condOp := quad.AddrOperand(cond.Addr)
	c.emit(quad.GotoF, &condOp, nil, quad.TargetOperand(0))

	if err := c.compileBlock(s.Body); err != nil {
		return err
	}

	c.backpatch(len(c.quads) + 1)
	top := c.jumpStack[len(c.jumpStack)-1]
	c.jumpStack = c.jumpStack[:len(c.jumpStack)-1]
	c.emit(quad.Goto, nil, nil, quad.TargetOperand(top))
	return nil
}

// backpatch fills in the target of the most recently pushed pending
// jump with pos.
func (c *Compiler) backpatch(pos int) {
	n := len(c.jumpStack) - 1
	idx := c.jumpStack[n]
	c.jumpStack = c.jumpStack[:n]
	c.quads[idx].Out = quad.TargetOperand(pos)
}

func (c *Compiler) compileBlock(b *parser.Block) error {
	for _, stmt := range b.Stmts {
		if err := c.compileStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

// compileFunction declares a user function, registers its return slot,
// parameters and locals, compiles its body, and freezes its segment
// counters.
func (c *Compiler) compileFunction(decl *parser.FunctionDecl) error {
	if _, builtin := quad.Builtins[decl.Name]; builtin {
		return mmerrors.New(mmerrors.Declaration, c.loc(decl.Line), "function %s shadows a built-in", decl.Name)
	}
	if _, exists := c.funcDecl[decl.Name]; exists {
		return mmerrors.New(mmerrors.Declaration, c.loc(decl.Line), "function %s has already been declared", decl.Name)
	}

	retKind := kindFromType(decl.ReturnType)
	fn := &function{
		Name:    decl.Name,
		RetKind: retKind,
		Entry:   len(c.quads),
		Vars:    make(map[string]operand),
	}

	c.funcDecl[decl.Name] = fn
	c.funcOrder = append(c.funcOrder, decl.Name)
	c.currentFunc = decl.Name

	if retKind != memspace.KindVoid {
		fn.ReturnSlot = c.allocGlobal(retKind)
		if _, exists := c.globals[decl.Name]; exists {
			return mmerrors.New(mmerrors.Declaration, c.loc(decl.Line), "name %s collides with a global variable", decl.Name)
		}
		c.globals[decl.Name] = operand{Addr: fn.ReturnSlot, Kind: retKind}
	}

	for _, p := range decl.Params {
		kind := kindFromType(p.Type)
		if _, exists := fn.Vars[p.Name]; exists {
			return mmerrors.New(mmerrors.Declaration, c.loc(decl.Line), "parameter %s has already been declared", p.Name)
		}
		addr := c.allocLocal(kind)
		fn.Vars[p.Name] = operand{Addr: addr, Kind: kind}
		fn.Params = append(fn.Params, kind)
	}

	for _, d := range decl.Locals {
		kind := kindFromType(d.Type)
		for _, name := range d.Names {
			if _, exists := fn.Vars[name]; exists {
				return mmerrors.New(mmerrors.Declaration, c.loc(d.Line), "variable %s has already been declared", name)
			}
			addr := c.allocLocal(kind)
			fn.Vars[name] = operand{Addr: addr, Kind: kind}
		}
	}

	if err := c.compileBlock(decl.Body); err != nil {
		return err
	}
	c.emit(quad.EndFunc, nil, nil, quad.Operand{})
	return nil
}

// compileMain compiles the `main` block as a zero-arity void function
// named "main", matching the rest of the function table's bookkeeping.
func (c *Compiler) compileMain(body *parser.Block) error {
	fn := &function{Name: "main", RetKind: memspace.KindVoid, Entry: len(c.quads), Vars: make(map[string]operand)}
	c.funcDecl["main"] = fn
	c.funcOrder = append(c.funcOrder, "main")
	c.currentFunc = "main"

	if err := c.compileBlock(body); err != nil {
		return err
	}
	c.emit(quad.EndFunc, nil, nil, quad.Operand{})
	return nil
}

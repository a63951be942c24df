package compiler

import (
	"testing"

	mmerrors "memyself/internal/errors"
	"memyself/internal/lexer"
	"memyself/internal/parser"
	"memyself/internal/quad"
)

func compileSource(t *testing.T, src string) *parser.Program {
	t.Helper()
	tokens, err := lexer.NewScanner("t.mm", src).ScanTokens()
	if err != nil {
		t.Fatalf("ScanTokens: %v", err)
	}
	prog, err := parser.New("t.mm", tokens).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return prog
}

func TestCompileEntryPointJumpsToMain(t *testing.T) {
	prog := compileSource(t, `program p;
main {
	write("hi");
}`)
	obj, err := New("t.mm").Compile(prog)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if obj.Quads[0].Op != quad.Goto {
		t.Fatalf("quads[0] = %+v, want a GOTO prologue", obj.Quads[0])
	}
	mainIdx := obj.Quads[0].Out.Target
	if obj.Quads[mainIdx].Op != quad.Print {
		t.Errorf("prologue target %d = %+v, want the PRINT inside main", mainIdx, obj.Quads[mainIdx])
	}
}

func TestCompileEmitsCallSequenceForUserFunction(t *testing.T) {
	prog := compileSource(t, `program p;
var int total;
int function add(int a, int b) {
	return a + b;
}
main {
	total = add(1, 2);
}`)
	obj, err := New("t.mm").Compile(prog)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	var sawEra, sawParam, sawGosub int
	for _, q := range obj.Quads {
		switch q.Op {
		case quad.Era:
			sawEra++
			if q.Out.Name != "add" {
				t.Errorf("ERA name = %q, want add", q.Out.Name)
			}
		case quad.Param:
			sawParam++
		case quad.Gosub:
			sawGosub++
		}
	}
	if sawEra != 1 || sawGosub != 1 || sawParam != 2 {
		t.Errorf("got ERA=%d PARAM=%d GOSUB=%d, want 1/2/1", sawEra, sawParam, sawGosub)
	}

	var fnNames []string
	for _, fn := range obj.Functions {
		fnNames = append(fnNames, fn.Name)
	}
	if len(fnNames) != 2 || fnNames[0] != "add" || fnNames[1] != "main" {
		t.Errorf("function order = %v, want [add main]", fnNames)
	}
}

func TestCompileRejectsArityMismatch(t *testing.T) {
	prog := compileSource(t, `program p;
var int total;
int function add(int a, int b) {
	return a + b;
}
main {
	total = add(1);
}`)
	_, err := New("t.mm").Compile(prog)
	if err == nil {
		t.Fatal("expected an arity error")
	}
	mm, ok := err.(*mmerrors.MMError)
	if !ok || mm.Kind != mmerrors.Arity {
		t.Errorf("got %v (%T), want an ArityError", err, err)
	}
}

func TestCompileRejectsTypeMismatchInBinaryOp(t *testing.T) {
	prog := compileSource(t, `program p;
var int x;
main {
	x = (1 > 0) + 1;
}`)
	_, err := New("t.mm").Compile(prog)
	if err == nil {
		t.Fatal("expected a type error adding a bool result to an int")
	}
	mm, ok := err.(*mmerrors.MMError)
	if !ok || mm.Kind != mmerrors.Type {
		t.Errorf("got %v (%T), want a TypeError", err, err)
	}
}

func TestCompileIfElseBackpatchesBothTargets(t *testing.T) {
	prog := compileSource(t, `program p;
var int x;
main {
	x = 1;
	if (x > 0) {
		write("pos");
	} else {
		write("nonpos");
	}
	write("done");
}`)
	obj, err := New("t.mm").Compile(prog)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	var gotoF, gotoUncond *quadAt
	for i, q := range obj.Quads {
		if q.Op == quad.GotoF && gotoF == nil {
			gotoF = &quadAt{i, q}
		}
		if q.Op == quad.Goto && i > 0 && gotoUncond == nil {
			gotoUncond = &quadAt{i, q}
		}
	}
	if gotoF == nil || gotoUncond == nil {
		t.Fatal("expected both a GOTOF and a follow-up GOTO in the if/else")
	}
	if gotoF.q.Out.Target != gotoUncond.i+1 {
		t.Errorf("GOTOF target = %d, want the else branch at %d", gotoF.q.Out.Target, gotoUncond.i+1)
	}
	if gotoUncond.q.Out.Target <= gotoF.q.Out.Target {
		t.Errorf("unconditional GOTO target %d should land after the else block", gotoUncond.q.Out.Target)
	}
}

type quadAt struct {
	i int
	q quad.Quadruple
}

func TestCompileRejectsBuiltinShadowing(t *testing.T) {
	prog := compileSource(t, `program p;
void function Forward(int x) {
	return 0;
}
main {
}`)
	_, err := New("t.mm").Compile(prog)
	if err == nil {
		t.Fatal("expected a declaration error for shadowing a built-in")
	}
}

func TestCompileTurtleBuiltinCallEmitsParamsAndOp(t *testing.T) {
	prog := compileSource(t, `program p;
main {
	Forward(50.0);
}`)
	obj, err := New("t.mm").Compile(prog)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var paramCount int
	var sawForward bool
	for _, q := range obj.Quads {
		if q.Op == quad.Param {
			paramCount++
		}
		if q.Op == quad.Forward {
			sawForward = true
		}
	}
	if paramCount != 1 || !sawForward {
		t.Errorf("got PARAM=%d sawForward=%v, want 1/true", paramCount, sawForward)
	}
}

package vm

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"memyself/internal/compiler"
	mmerrors "memyself/internal/errors"
	"memyself/internal/lexer"
	"memyself/internal/object"
	"memyself/internal/parser"
)

// stubSink records every turtle call it receives, in order.
type stubSink struct {
	calls []string
}

func (s *stubSink) record(format string, args ...interface{}) {
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
}

func (s *stubSink) Center()           { s.record("Center") }
func (s *stubSink) Forward(u float64) { s.record("Forward(%g)", u) }
func (s *stubSink) Backward(u float64) { s.record("Backward(%g)", u) }
func (s *stubSink) Left(d float64)    { s.record("Left(%g)", d) }
func (s *stubSink) Right(d float64)   { s.record("Right(%g)", d) }
func (s *stubSink) Size(u float64)    { s.record("Size(%g)", u) }
func (s *stubSink) Clear()            { s.record("Clear") }
func (s *stubSink) PenUp()            { s.record("PenUp") }
func (s *stubSink) PenDown()          { s.record("PenDown") }
func (s *stubSink) Color(r, g, b float64) { s.record("Color(%g,%g,%g)", r, g, b) }
func (s *stubSink) Position(x, y float64) { s.record("Position(%g,%g)", x, y) }
func (s *stubSink) BackgroundColor(r, g, b float64) { s.record("BackgroundColor(%g,%g,%g)", r, g, b) }
func (s *stubSink) FillColor(r, g, b float64)       { s.record("FillColor(%g,%g,%g)", r, g, b) }
func (s *stubSink) StartFill() { s.record("StartFill") }
func (s *stubSink) EndFill()   { s.record("EndFill") }

func compileProgram(t *testing.T, src string) *object.Object {
	t.Helper()
	tokens, err := lexer.NewScanner("t.mm", src).ScanTokens()
	if err != nil {
		t.Fatalf("ScanTokens: %v", err)
	}
	prog, err := parser.New("t.mm", tokens).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	obj, err := compiler.New("t.mm").Compile(prog)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return obj
}

func runProgram(t *testing.T, src, stdin string) (stdout string, sink *stubSink) {
	t.Helper()
	obj := compileProgram(t, src)
	sink = &stubSink{}
	var out bytes.Buffer
	m, err := New(obj, sink, strings.NewReader(stdin), &out)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String(), sink
}

func TestArithmeticAndPrint(t *testing.T) {
	out, _ := runProgram(t, `program p;
main {
	write(1 + 2);
}`, "")
	if out != "3\n" {
		t.Errorf("got %q, want %q", out, "3\n")
	}
}

func TestIfElseChoosesBranch(t *testing.T) {
	out, _ := runProgram(t, `program p;
var int x;
main {
	x = 5;
	if (x > 10) {
		write("big");
	} else {
		write("small");
	}
}`, "")
	if out != "small\n" {
		t.Errorf("got %q, want %q", out, "small\n")
	}
}

func TestWhileLoopAccumulates(t *testing.T) {
	out, _ := runProgram(t, `program p;
var int i;
var int sum;
main {
	i = 0;
	sum = 0;
	while (i < 5) {
		sum = sum + i;
		i = i + 1;
	}
	write(sum);
}`, "")
	if out != "10\n" {
		t.Errorf("got %q, want %q", out, "10\n")
	}
}

func TestFunctionCallReturnsValue(t *testing.T) {
	out, _ := runProgram(t, `program p;
var int result;
int function square(int n) {
	return n * n;
}
main {
	result = square(3);
	write(result);
}`, "")
	if out != "9\n" {
		t.Errorf("got %q, want %q", out, "9\n")
	}
}

func TestReadParsesIntFromStdin(t *testing.T) {
	out, _ := runProgram(t, `program p;
var int n;
main {
	read(n);
	write(n * 2);
}`, "21\n")
	if out != "42\n" {
		t.Errorf("got %q, want %q", out, "42\n")
	}
}

func TestTurtleBuiltinColorSwapsStorageOrder(t *testing.T) {
	_, sink := runProgram(t, `program p;
main {
	Color(1.0, 2.0, 3.0);
}`, "")
	if len(sink.calls) != 1 {
		t.Fatalf("got %d sink calls, want 1: %v", len(sink.calls), sink.calls)
	}
	// Source args are stored positionally as (r, b, g); the sink always
	// receives (r, g, b), so Color(1, 2, 3) forwards as Color(1, 3, 2).
	want := "Color(1,3,2)"
	if sink.calls[0] != want {
		t.Errorf("got %q, want %q", sink.calls[0], want)
	}
}

func TestDivisionByZeroIsFatal(t *testing.T) {
	obj := compileProgram(t, `program p;
var int x;
main {
	x = 1 / 0;
}`)
	var out bytes.Buffer
	m, err := New(obj, &stubSink{}, strings.NewReader(""), &out)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = m.Run()
	if err == nil {
		t.Fatal("expected a division-by-zero runtime error")
	}
	mm, ok := err.(*mmerrors.MMError)
	if !ok || mm.Kind != mmerrors.RuntimeArith {
		t.Errorf("got %v (%T), want a RuntimeArithError", err, err)
	}
}

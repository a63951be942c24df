package lexer

import "testing"

func typesOf(tokens []Token) []TokenType {
	out := make([]TokenType, len(tokens))
	for i, t := range tokens {
		out[i] = t.Type
	}
	return out
}

func TestScanTokensOnSampleProgram(t *testing.T) {
	src := `program demo;
var int x, y;
main {
	x = 1 + 2;
	if (x > y) {
		write("go");
	}
}`
	tokens, err := NewScanner("demo.mm", src).ScanTokens()
	if err != nil {
		t.Fatalf("ScanTokens: %v", err)
	}

	want := []TokenType{
		TokProgram, TokIdent, TokSemi,
		TokVar, TokInt, TokIdent, TokComma, TokIdent, TokSemi,
		TokMain, TokLBrace,
		TokIdent, TokAssign, TokIntLit, TokPlus, TokIntLit, TokSemi,
		TokIf, TokLParen, TokIdent, TokGT, TokIdent, TokRParen, TokLBrace,
		TokWrite, TokLParen, TokString, TokRParen, TokSemi,
		TokRBrace,
		TokRBrace,
		TokEOF,
	}
	got := typesOf(tokens)
	if len(got) != len(want) {
		t.Fatalf("got %d tokens %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestScanTokensRecognizesTwoCharOperators(t *testing.T) {
	tokens, err := NewScanner("ops.mm", "<= >= == <> || &").ScanTokens()
	if err != nil {
		t.Fatalf("ScanTokens: %v", err)
	}
	want := []TokenType{TokLE, TokGE, TokEQ, TokNE, TokOr, TokAnd, TokEOF}
	got := typesOf(tokens)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestScanTokensSkipsLineComments(t *testing.T) {
	tokens, err := NewScanner("c.mm", "1 // trailing comment\n2").ScanTokens()
	if err != nil {
		t.Fatalf("ScanTokens: %v", err)
	}
	want := []TokenType{TokIntLit, TokIntLit, TokEOF}
	got := typesOf(tokens)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestScanTokensDistinguishesIntAndFloatLiterals(t *testing.T) {
	tokens, err := NewScanner("n.mm", "3 3.5 30").ScanTokens()
	if err != nil {
		t.Fatalf("ScanTokens: %v", err)
	}
	if len(tokens) != 4 {
		t.Fatalf("got %d tokens, want 4 (int, float, int, eof)", len(tokens))
	}
	if tokens[0].Type != TokIntLit || tokens[0].Lexeme != "3" {
		t.Errorf("token 0 = %+v, want IntLit 3", tokens[0])
	}
	if tokens[1].Type != TokFloatLit || tokens[1].Lexeme != "3.5" {
		t.Errorf("token 1 = %+v, want FloatLit 3.5", tokens[1])
	}
	if tokens[2].Type != TokIntLit || tokens[2].Lexeme != "30" {
		t.Errorf("token 2 = %+v, want IntLit 30", tokens[2])
	}
}

func TestScanTokensRejectsUnterminatedString(t *testing.T) {
	if _, err := NewScanner("bad.mm", `"never closed`).ScanTokens(); err == nil {
		t.Fatal("expected an error for an unterminated string literal")
	}
}

func TestScanTokensRejectsUnknownCharacter(t *testing.T) {
	if _, err := NewScanner("bad.mm", "x = 1 $ 2;").ScanTokens(); err == nil {
		t.Fatal("expected an error for an unexpected character")
	}
}

func TestScanTokensKeywordsAreCaseInsensitive(t *testing.T) {
	tokens, err := NewScanner("kw.mm", "IF WHILE Function").ScanTokens()
	if err != nil {
		t.Fatalf("ScanTokens: %v", err)
	}
	want := []TokenType{TokIf, TokWhile, TokFunction, TokEOF}
	got := typesOf(tokens)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

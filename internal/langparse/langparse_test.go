package langparse

import (
	"testing"

	"github.com/sunholo/quillmod/internal/langast"
)

func TestParseLetAndExport(t *testing.T) {
	prog, err := Parse(`
import "math" as m
export let x = 1 + 2
fn square(n) = n * n
`)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(prog.Statements) != 3 {
		t.Fatalf("got %d statements, want 3", len(prog.Statements))
	}
	if _, ok := prog.Statements[0].(*langast.ImportStmt); !ok {
		t.Fatalf("statement 0 = %T, want *ImportStmt", prog.Statements[0])
	}
	let, ok := prog.Statements[1].(*langast.LetStmt)
	if !ok || !let.Exported || let.Name != "x" {
		t.Fatalf("statement 1 = %+v", prog.Statements[1])
	}
	fn, ok := prog.Statements[2].(*langast.FnStmt)
	if !ok || fn.Name != "square" || len(fn.Params) != 1 {
		t.Fatalf("statement 2 = %+v", prog.Statements[2])
	}
}

func TestParseCallAndFieldAccess(t *testing.T) {
	prog, err := Parse(`print(o.foo)`)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	stmt, ok := prog.Statements[0].(*langast.ExprStmt)
	if !ok {
		t.Fatalf("got %T", prog.Statements[0])
	}
	call, ok := stmt.Expr.(*langast.Call)
	if !ok || len(call.Args) != 1 {
		t.Fatalf("got %+v", stmt.Expr)
	}
	if _, ok := call.Args[0].(*langast.FieldAccess); !ok {
		t.Fatalf("arg = %T, want *FieldAccess", call.Args[0])
	}
}

func TestParseErrorOnUnterminatedString(t *testing.T) {
	if _, err := Parse(`let x = "unterminated`); err == nil {
		t.Fatal("expected parse error")
	}
}

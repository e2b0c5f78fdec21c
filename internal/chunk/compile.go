package chunk

import (
	"fmt"

	"github.com/sunholo/quillmod/internal/langast"
)

// ExportDescriptor is one compiler-recognized export entry: name, kind,
// visibility.
type ExportDescriptor struct {
	Name       string
	Kind       string // "Function" | "Variable" | "Constant"
	Visibility byte   // 0 = private, 1 = public
}

// Import records a compile-time import statement; the VM resolves it at
// execution time via its configured import callback.
type Import struct {
	Spec  string
	Alias string
}

// CompileResult bundles a module's compiled chunk with the static
// export/import tables the loader and inspector need without re-walking
// bytecode.
type CompileResult struct {
	Chunk   *Chunk
	Exports []ExportDescriptor
	Imports []Import
}

type compiler struct {
	chunk   *Chunk
	exports []ExportDescriptor
	imports []Import
	locals  map[string]byte // set only while compiling a function body
}

// Compile lowers a parsed Program into bytecode.
func Compile(prog *langast.Program) (*CompileResult, error) {
	c := &compiler{chunk: New()}
	for _, stmt := range prog.Statements {
		if err := c.compileStmt(stmt); err != nil {
			return nil, err
		}
	}
	return &CompileResult{Chunk: c.chunk, Exports: c.exports, Imports: c.imports}, nil
}

func (c *compiler) compileStmt(stmt langast.Stmt) error {
	switch s := stmt.(type) {
	case *langast.ImportStmt:
		nameIdx := c.chunk.addConstant(String(s.Alias))
		specIdx := c.chunk.addConstant(String(s.Spec))
		c.chunk.emit(OpImport, u16(specIdx)[0], u16(specIdx)[1], u16(nameIdx)[0], u16(nameIdx)[1])
		c.imports = append(c.imports, Import{Spec: s.Spec, Alias: s.Alias})
		return nil

	case *langast.LetStmt:
		if err := c.compileExpr(s.Value); err != nil {
			return err
		}
		nameIdx := c.chunk.addConstant(String(s.Name))
		ib := u16(nameIdx)
		c.chunk.emit(OpDefineGlobal, ib[0], ib[1])
		if s.Exported {
			c.chunk.emit(OpExportGlobal, ib[0], ib[1])
			c.exports = append(c.exports, ExportDescriptor{Name: s.Name, Kind: "Variable", Visibility: 1})
		}
		return nil

	case *langast.FnStmt:
		proto, err := compileFunction(s.Name, s.Params, s.Body)
		if err != nil {
			return err
		}
		fnIdx := len(c.chunk.Functions)
		c.chunk.Functions = append(c.chunk.Functions, proto)
		c.chunk.emit(OpMakeClosure, u16(uint16(fnIdx))[0], u16(uint16(fnIdx))[1])
		nameIdx := c.chunk.addConstant(String(s.Name))
		ib := u16(nameIdx)
		c.chunk.emit(OpDefineGlobal, ib[0], ib[1])
		if s.Exported {
			c.chunk.emit(OpExportGlobal, ib[0], ib[1])
			c.exports = append(c.exports, ExportDescriptor{Name: s.Name, Kind: "Function", Visibility: 1})
		}
		return nil

	case *langast.ExprStmt:
		if err := c.compileExpr(s.Expr); err != nil {
			return err
		}
		c.chunk.emit(OpPop)
		return nil

	default:
		return fmt.Errorf("chunk: unknown statement type %T", stmt)
	}
}

func compileFunction(name string, params []string, body langast.Expr) (*FunctionProto, error) {
	inner := &compiler{chunk: New(), locals: map[string]byte{}}
	for i, p := range params {
		inner.locals[p] = byte(i)
	}
	if err := inner.compileExpr(body); err != nil {
		return nil, err
	}
	inner.chunk.emit(OpReturn)
	return &FunctionProto{Name: name, Params: params, Chunk: inner.chunk}, nil
}


func (c *compiler) compileExpr(expr langast.Expr) error {
	switch e := expr.(type) {
	case *langast.NumberLit:
		idx := c.chunk.addConstant(Number(e.Value))
		ib := u16(idx)
		c.chunk.emit(OpConst, ib[0], ib[1])
	case *langast.StringLit:
		idx := c.chunk.addConstant(String(e.Value))
		ib := u16(idx)
		c.chunk.emit(OpConst, ib[0], ib[1])
	case *langast.BoolLit:
		idx := c.chunk.addConstant(Bool(e.Value))
		ib := u16(idx)
		c.chunk.emit(OpConst, ib[0], ib[1])
	case *langast.NilLit:
		idx := c.chunk.addConstant(Nil())
		ib := u16(idx)
		c.chunk.emit(OpConst, ib[0], ib[1])
	case *langast.Ident:
		if c.locals != nil {
			if slot, ok := c.locals[e.Name]; ok {
				c.chunk.emit(OpGetLocal, slot)
				return nil
			}
		}
		idx := c.chunk.addConstant(String(e.Name))
		ib := u16(idx)
		c.chunk.emit(OpGetGlobal, ib[0], ib[1])
	case *langast.FieldAccess:
		if err := c.compileExpr(e.Object); err != nil {
			return err
		}
		idx := c.chunk.addConstant(String(e.Field))
		ib := u16(idx)
		c.chunk.emit(OpGetProp, ib[0], ib[1])
	case *langast.Unary:
		if err := c.compileExpr(e.X); err != nil {
			return err
		}
		switch e.Op {
		case "-":
			c.chunk.emit(OpNeg)
		case "!":
			c.chunk.emit(OpNot)
		default:
			return fmt.Errorf("chunk: unknown unary operator %q", e.Op)
		}
	case *langast.Binary:
		if err := c.compileExpr(e.Left); err != nil {
			return err
		}
		if err := c.compileExpr(e.Right); err != nil {
			return err
		}
		switch e.Op {
		case "+":
			c.chunk.emit(OpAdd)
		case "-":
			c.chunk.emit(OpSub)
		case "*":
			c.chunk.emit(OpMul)
		case "/":
			c.chunk.emit(OpDiv)
		case "==":
			c.chunk.emit(OpEq)
		case "!=":
			c.chunk.emit(OpEq)
			c.chunk.emit(OpNot)
		case "<":
			c.chunk.emit(OpLt)
		case ">":
			c.chunk.emit(OpGt)
		case "<=":
			c.chunk.emit(OpGt)
			c.chunk.emit(OpNot)
		case ">=":
			c.chunk.emit(OpLt)
			c.chunk.emit(OpNot)
		case "&&":
			c.chunk.emit(OpAnd)
		case "||":
			c.chunk.emit(OpOr)
		default:
			return fmt.Errorf("chunk: unknown binary operator %q", e.Op)
		}
	case *langast.Call:
		if err := c.compileExpr(e.Callee); err != nil {
			return err
		}
		for _, a := range e.Args {
			if err := c.compileExpr(a); err != nil {
				return err
			}
		}
		c.chunk.emit(OpCall, byte(len(e.Args)))
	default:
		return fmt.Errorf("chunk: unknown expression type %T", expr)
	}
	return nil
}

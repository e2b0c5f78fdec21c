// Package vm is the bytecode interpreter: a straightforward stack machine
// executing a chunk.Chunk against a global environment.
package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/sunholo/quillmod/internal/chunk"
)

// ImportFunc resolves an import statement ("spec") to an exports object,
// supplied by the loader so that circular imports are handled by the
// loader's own Loading-state cache semantics rather than duplicated here.
type ImportFunc func(spec string) (*chunk.Object, error)

// VM executes chunks against a shared global table.
type VM struct {
	Globals *chunk.Object
	Import  ImportFunc
	Stdout  func(string)
}

// New constructs a VM with a fresh, empty globals object (the module's
// module_exports equivalent) and a no-op stdout sink the caller should
// override.
func New() *VM {
	return &VM{Globals: chunk.NewObject("globals"), Stdout: func(string) {}}
}

type frame struct {
	locals []chunk.Value
}

// Interpret executes c's top-level code against the VM's globals. It
// returns only an error; results are read back from v.Globals.
func (v *VM) Interpret(c *chunk.Chunk) error {
	_, err := v.run(c, &frame{})
	return err
}

// CallValue invokes a callable Value (native or closure) with args,
// independent of any enclosing chunk -- used by bundle Execute to invoke a
// module's "main" export directly.
func (v *VM) CallValue(callee chunk.Value, args []chunk.Value) (chunk.Value, error) {
	return v.call(callee, args)
}

func (v *VM) run(c *chunk.Chunk, fr *frame) (chunk.Value, error) {
	var stack []chunk.Value
	push := func(val chunk.Value) { stack = append(stack, val) }
	pop := func() chunk.Value {
		n := len(stack)
		val := stack[n-1]
		stack = stack[:n-1]
		return val
	}

	code := c.Code
	ip := 0
	for ip < len(code) {
		op := chunk.Op(code[ip])
		ip++
		switch op {
		case chunk.OpConst:
			idx := binary.LittleEndian.Uint16(code[ip:])
			ip += 2
			push(c.Constants[idx])

		case chunk.OpPop:
			if len(stack) > 0 {
				pop()
			}

		case chunk.OpAdd, chunk.OpSub, chunk.OpMul, chunk.OpDiv, chunk.OpLt, chunk.OpGt, chunk.OpEq:
			b := pop()
			a := pop()
			res, err := binaryOp(op, a, b)
			if err != nil {
				return chunk.Nil(), err
			}
			push(res)

		case chunk.OpAnd:
			b := pop()
			a := pop()
			push(chunk.Bool(a.Truthy() && b.Truthy()))

		case chunk.OpOr:
			b := pop()
			a := pop()
			push(chunk.Bool(a.Truthy() || b.Truthy()))

		case chunk.OpNeg:
			a := pop()
			if a.Kind != chunk.KindNumber {
				return chunk.Nil(), fmt.Errorf("vm: cannot negate %s", a.TypeName())
			}
			push(chunk.Number(-a.Num))

		case chunk.OpNot:
			a := pop()
			push(chunk.Bool(!a.Truthy()))

		case chunk.OpDefineGlobal:
			idx := binary.LittleEndian.Uint16(code[ip:])
			ip += 2
			name := c.Constants[idx].Str
			val := pop()
			v.Globals.Set(name, val)

		case chunk.OpExportGlobal:
			idx := binary.LittleEndian.Uint16(code[ip:])
			ip += 2
			// Exporting is a no-op at execution time beyond having already
			// defined the global -- visibility bookkeeping lives in the
			// compiler's ExportDescriptor table, not in the runtime value.
			_ = idx

		case chunk.OpGetGlobal:
			idx := binary.LittleEndian.Uint16(code[ip:])
			ip += 2
			name := c.Constants[idx].Str
			val, ok := v.Globals.Get(name)
			if !ok {
				return chunk.Nil(), fmt.Errorf("vm: undefined global %q", name)
			}
			push(val)

		case chunk.OpGetLocal:
			slot := code[ip]
			ip++
			if int(slot) >= len(fr.locals) {
				return chunk.Nil(), fmt.Errorf("vm: local slot %d out of range", slot)
			}
			push(fr.locals[slot])

		case chunk.OpGetProp:
			idx := binary.LittleEndian.Uint16(code[ip:])
			ip += 2
			name := c.Constants[idx].Str
			obj := pop()
			if obj.Kind != chunk.KindObject {
				return chunk.Nil(), fmt.Errorf("vm: cannot access field %q on %s", name, obj.TypeName())
			}
			val, ok := obj.Obj.Get(name)
			if !ok {
				return chunk.Nil(), fmt.Errorf("vm: object %q has no field %q", obj.Obj.Name, name)
			}
			push(val)

		case chunk.OpImport:
			specIdx := binary.LittleEndian.Uint16(code[ip:])
			ip += 2
			aliasIdx := binary.LittleEndian.Uint16(code[ip:])
			ip += 2
			spec := c.Constants[specIdx].Str
			alias := c.Constants[aliasIdx].Str
			if v.Import == nil {
				return chunk.Nil(), fmt.Errorf("vm: import %q requested but no import function configured", spec)
			}
			obj, err := v.Import(spec)
			if err != nil {
				return chunk.Nil(), err
			}
			v.Globals.Set(alias, chunk.ObjectVal(obj))

		case chunk.OpMakeClosure:
			idx := binary.LittleEndian.Uint16(code[ip:])
			ip += 2
			proto := c.Functions[idx]
			push(chunk.ClosureVal(&chunk.Closure{Proto: proto}))

		case chunk.OpCall:
			argc := int(code[ip])
			ip++
			args := make([]chunk.Value, argc)
			for i := argc - 1; i >= 0; i-- {
				args[i] = pop()
			}
			callee := pop()
			result, err := v.call(callee, args)
			if err != nil {
				return chunk.Nil(), err
			}
			push(result)

		case chunk.OpReturn:
			if len(stack) == 0 {
				return chunk.Nil(), nil
			}
			return pop(), nil

		default:
			return chunk.Nil(), fmt.Errorf("vm: unknown opcode %d", op)
		}
	}
	if len(stack) > 0 {
		return stack[len(stack)-1], nil
	}
	return chunk.Nil(), nil
}

func (v *VM) call(callee chunk.Value, args []chunk.Value) (chunk.Value, error) {
	switch callee.Kind {
	case chunk.KindNativeFn:
		if callee.Native.Arity >= 0 && len(args) != callee.Native.Arity {
			return chunk.Nil(), fmt.Errorf("vm: %s expects %d args, got %d", callee.Native.Name, callee.Native.Arity, len(args))
		}
		return callee.Native.Fn(args)
	case chunk.KindClosure:
		proto := callee.Closure.Proto
		if len(args) != len(proto.Params) {
			return chunk.Nil(), fmt.Errorf("vm: %s expects %d args, got %d", proto.Name, len(proto.Params), len(args))
		}
		return v.run(proto.Chunk, &frame{locals: args})
	default:
		return chunk.Nil(), fmt.Errorf("vm: value of kind %s is not callable", callee.TypeName())
	}
}

func binaryOp(op chunk.Op, a, b chunk.Value) (chunk.Value, error) {
	if op == chunk.OpEq {
		return chunk.Bool(valuesEqual(a, b)), nil
	}
	if a.Kind == chunk.KindString && b.Kind == chunk.KindString && op == chunk.OpAdd {
		return chunk.String(a.Str + b.Str), nil
	}
	if a.Kind != chunk.KindNumber || b.Kind != chunk.KindNumber {
		return chunk.Nil(), fmt.Errorf("vm: operator requires numbers, got %s and %s", a.TypeName(), b.TypeName())
	}
	switch op {
	case chunk.OpAdd:
		return chunk.Number(a.Num + b.Num), nil
	case chunk.OpSub:
		return chunk.Number(a.Num - b.Num), nil
	case chunk.OpMul:
		return chunk.Number(a.Num * b.Num), nil
	case chunk.OpDiv:
		if b.Num == 0 {
			return chunk.Nil(), fmt.Errorf("vm: division by zero")
		}
		return chunk.Number(a.Num / b.Num), nil
	case chunk.OpLt:
		return chunk.Bool(a.Num < b.Num), nil
	case chunk.OpGt:
		return chunk.Bool(a.Num > b.Num), nil
	default:
		return chunk.Nil(), fmt.Errorf("vm: unsupported binary op %d", op)
	}
}

func valuesEqual(a, b chunk.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case chunk.KindNil:
		return true
	case chunk.KindBool:
		return a.Bool == b.Bool
	case chunk.KindNumber:
		return a.Num == b.Num
	case chunk.KindString:
		return a.Str == b.Str
	default:
		return false
	}
}

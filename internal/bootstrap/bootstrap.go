// Package bootstrap builds the synthetic "__builtins__" module: print,
// typeof, assert, plus math/string/io/array native functions, mirrored into
// both scope and exports-object and returned already Loaded. Every higher
// loader tier parents to the loader holding this module so built-in lookups
// never touch disk.
package bootstrap

import (
	"fmt"
	"math"
	"strings"

	"github.com/sunholo/quillmod/internal/chunk"
	"github.com/sunholo/quillmod/internal/module"
	"github.com/sunholo/quillmod/internal/strpool"
)

// Name is the canonical path of the bootstrap module.
const Name = "__builtins__"

// Stdout is injected so print() is testable without touching os.Stdout.
type Stdout func(string)

// Build constructs the __builtins__ module in the Loaded state with its
// native exports populated. stdout receives print()'s formatted output.
func Build(stdout Stdout) *module.Module {
	if stdout == nil {
		stdout = func(string) {}
	}
	pool := strpool.New()
	m := module.New(pool.Intern(Name), "")

	for _, fn := range nativeFns(stdout) {
		m.Export(fn.Name, chunk.NativeFunc(fn))
	}

	_ = m.SetState(module.Loading)
	_ = m.SetState(module.Loaded)
	return m
}

func nativeFns(stdout Stdout) []*chunk.NativeFn {
	var fns []*chunk.NativeFn
	fns = append(fns, core(stdout)...)
	fns = append(fns, mathFns()...)
	fns = append(fns, stringFns()...)
	fns = append(fns, ioFns(stdout)...)
	fns = append(fns, arrayFns()...)
	return fns
}

func core(stdout Stdout) []*chunk.NativeFn {
	return []*chunk.NativeFn{
		{Name: "print", Arity: 1, Fn: func(args []chunk.Value) (chunk.Value, error) {
			stdout(args[0].String() + "\n")
			return chunk.Nil(), nil
		}},
		{Name: "typeof", Arity: 1, Fn: func(args []chunk.Value) (chunk.Value, error) {
			return chunk.String(args[0].TypeName()), nil
		}},
		{Name: "assert", Arity: 2, Fn: func(args []chunk.Value) (chunk.Value, error) {
			if !args[0].Truthy() {
				return chunk.Nil(), fmt.Errorf("assertion failed: %s", args[1].String())
			}
			return chunk.Bool(true), nil
		}},
	}
}

func numArgs2(name string, f func(a, b float64) float64) *chunk.NativeFn {
	return &chunk.NativeFn{Name: name, Arity: 2, Fn: func(args []chunk.Value) (chunk.Value, error) {
		if args[0].Kind != chunk.KindNumber || args[1].Kind != chunk.KindNumber {
			return chunk.Nil(), fmt.Errorf("%s: expected numbers", name)
		}
		return chunk.Number(f(args[0].Num, args[1].Num)), nil
	}}
}

func numArgs1(name string, f func(a float64) float64) *chunk.NativeFn {
	return &chunk.NativeFn{Name: name, Arity: 1, Fn: func(args []chunk.Value) (chunk.Value, error) {
		if args[0].Kind != chunk.KindNumber {
			return chunk.Nil(), fmt.Errorf("%s: expected a number", name)
		}
		return chunk.Number(f(args[0].Num)), nil
	}}
}

func mathFns() []*chunk.NativeFn {
	return []*chunk.NativeFn{
		numArgs2("math.add", func(a, b float64) float64 { return a + b }),
		numArgs2("math.sub", func(a, b float64) float64 { return a - b }),
		numArgs2("math.mul", func(a, b float64) float64 { return a * b }),
		numArgs2("math.div", func(a, b float64) float64 { return a / b }),
		numArgs2("math.pow", math.Pow),
		numArgs2("math.min", math.Min),
		numArgs2("math.max", math.Max),
		numArgs1("math.sqrt", math.Sqrt),
		numArgs1("math.floor", math.Floor),
		numArgs1("math.ceil", math.Ceil),
		numArgs1("math.abs", math.Abs),
	}
}

func strArg(name string, f func(s string) chunk.Value) *chunk.NativeFn {
	return &chunk.NativeFn{Name: name, Arity: 1, Fn: func(args []chunk.Value) (chunk.Value, error) {
		if args[0].Kind != chunk.KindString {
			return chunk.Nil(), fmt.Errorf("%s: expected a string", name)
		}
		return f(args[0].Str), nil
	}}
}

func stringFns() []*chunk.NativeFn {
	return []*chunk.NativeFn{
		strArg("string.len", func(s string) chunk.Value { return chunk.Number(float64(len(s))) }),
		strArg("string.upper", func(s string) chunk.Value { return chunk.String(strings.ToUpper(s)) }),
		strArg("string.lower", func(s string) chunk.Value { return chunk.String(strings.ToLower(s)) }),
		strArg("string.trim", func(s string) chunk.Value { return chunk.String(strings.TrimSpace(s)) }),
		{Name: "string.concat", Arity: 2, Fn: func(args []chunk.Value) (chunk.Value, error) {
			return chunk.String(args[0].String() + args[1].String()), nil
		}},
		{Name: "string.slice", Arity: 3, Fn: func(args []chunk.Value) (chunk.Value, error) {
			if args[0].Kind != chunk.KindString || args[1].Kind != chunk.KindNumber || args[2].Kind != chunk.KindNumber {
				return chunk.Nil(), fmt.Errorf("string.slice: expected (string, number, number)")
			}
			s := args[0].Str
			start, end := int(args[1].Num), int(args[2].Num)
			if start < 0 {
				start = 0
			}
			if end > len(s) {
				end = len(s)
			}
			if start > end {
				return chunk.String(""), nil
			}
			return chunk.String(s[start:end]), nil
		}},
	}
}

func ioFns(stdout Stdout) []*chunk.NativeFn {
	return []*chunk.NativeFn{
		{Name: "io.write", Arity: 1, Fn: func(args []chunk.Value) (chunk.Value, error) {
			stdout(args[0].String())
			return chunk.Nil(), nil
		}},
		{Name: "io.writeln", Arity: 1, Fn: func(args []chunk.Value) (chunk.Value, error) {
			stdout(args[0].String() + "\n")
			return chunk.Nil(), nil
		}},
	}
}

// array functions model a fixed-size list as a chunk.Object with numeric
// string keys plus a "length" field -- this module subsystem's chunk.Value
// has no dedicated array kind (that belongs to the out-of-scope
// compiler/VM layer), so the built-in array namespace adapts the same
// Object property bag used for exports-objects.
func arrayFns() []*chunk.NativeFn {
	return []*chunk.NativeFn{
		{Name: "array.new", Arity: -1, Fn: func(args []chunk.Value) (chunk.Value, error) {
			obj := chunk.NewObject("array")
			for i, v := range args {
				obj.Set(fmt.Sprintf("%d", i), v)
			}
			obj.Set("length", chunk.Number(float64(len(args))))
			return chunk.ObjectVal(obj), nil
		}},
		{Name: "array.get", Arity: 2, Fn: func(args []chunk.Value) (chunk.Value, error) {
			if args[0].Kind != chunk.KindObject || args[1].Kind != chunk.KindNumber {
				return chunk.Nil(), fmt.Errorf("array.get: expected (array, number)")
			}
			v, ok := args[0].Obj.Get(fmt.Sprintf("%d", int(args[1].Num)))
			if !ok {
				return chunk.Nil(), fmt.Errorf("array.get: index %d out of range", int(args[1].Num))
			}
			return v, nil
		}},
		{Name: "array.length", Arity: 1, Fn: func(args []chunk.Value) (chunk.Value, error) {
			if args[0].Kind != chunk.KindObject {
				return chunk.Nil(), fmt.Errorf("array.length: expected an array")
			}
			v, _ := args[0].Obj.Get("length")
			return v, nil
		}},
	}
}

package chunk

import "fmt"

// Kind tags a Value the way the runtime's tagged-value union would: the
// arithmetic-heavy case (Number) stays unboxed as a float64 field, every
// other case carries its payload in the matching field.
type Kind byte

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString
	KindClosure
	KindNativeFn
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindClosure:
		return "closure"
	case KindNativeFn:
		return "native"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// NativeFn is a builtin implemented in Go.
type NativeFn struct {
	Name  string
	Arity int // -1 means variadic
	Fn    func(args []Value) (Value, error)
}

// Object is a property bag -- the concrete shape behind an exports-object
// and behind imported-module bindings (`o.foo` resolves through Object.Get).
type Object struct {
	Name   string
	fields map[string]Value
	order  []string
}

// NewObject constructs an empty property bag.
func NewObject(name string) *Object {
	return &Object{Name: name, fields: map[string]Value{}}
}

// Set upserts a field, recording first-observation order -- exports stay
// append-only and order-preserving.
func (o *Object) Set(name string, v Value) {
	if _, ok := o.fields[name]; !ok {
		o.order = append(o.order, name)
	}
	o.fields[name] = v
}

// Get looks up a field by name.
func (o *Object) Get(name string) (Value, bool) {
	v, ok := o.fields[name]
	return v, ok
}

// Names returns field names in definition order.
func (o *Object) Names() []string {
	out := make([]string, len(o.order))
	copy(out, o.order)
	return out
}

// Value is a dynamically-typed tagged value.
type Value struct {
	Kind    Kind
	Num     float64
	Str     string
	Bool    bool
	Closure *Closure
	Native  *NativeFn
	Obj     *Object
}

// Closure wraps a compiled function prototype and carries no environment:
// its body resolves globals against the globals of the VM that calls it
// (this language has no block-scoped captures, only globals and its own
// parameters).
type Closure struct {
	Proto *FunctionProto
}

// FunctionProto is a compiled function body: its own Chunk plus arity and
// parameter names for locals binding.
type FunctionProto struct {
	Name   string
	Params []string
	Chunk  *Chunk
}

func Nil() Value              { return Value{Kind: KindNil} }
func Bool(b bool) Value       { return Value{Kind: KindBool, Bool: b} }
func Number(n float64) Value  { return Value{Kind: KindNumber, Num: n} }
func String(s string) Value   { return Value{Kind: KindString, Str: s} }
func NativeFunc(n *NativeFn) Value { return Value{Kind: KindNativeFn, Native: n} }
func ClosureVal(c *Closure) Value  { return Value{Kind: KindClosure, Closure: c} }
func ObjectVal(o *Object) Value    { return Value{Kind: KindObject, Obj: o} }

// Truthy follows the usual dynamic-language rule: nil and false are falsy,
// everything else is truthy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNil:
		return false
	case KindBool:
		return v.Bool
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		return fmt.Sprintf("%v", v.Bool)
	case KindNumber:
		return fmt.Sprintf("%g", v.Num)
	case KindString:
		return v.Str
	case KindClosure:
		return fmt.Sprintf("<fn %s>", v.Closure.Proto.Name)
	case KindNativeFn:
		return fmt.Sprintf("<native %s>", v.Native.Name)
	case KindObject:
		return fmt.Sprintf("<object %s>", v.Obj.Name)
	default:
		return "<?>"
	}
}

// TypeName returns the script-visible type name, used by the typeof
// builtin.
func (v Value) TypeName() string {
	return v.Kind.String()
}

// Package chunk implements the bytecode Chunk: a compiled function or
// module body (constant pool + code bytes), its BCDS binary serialization,
// and a small stack-machine compiler from langast into Chunks.
package chunk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	modulerrors "github.com/sunholo/quillmod/internal/errors"
)

// Magic is the BCDS chunk magic number.
const Magic uint32 = 0x42434453

// Op is a single bytecode instruction opcode.
type Op byte

const (
	OpConst Op = iota
	OpPop
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNeg
	OpNot
	OpEq
	OpLt
	OpGt
	OpAnd
	OpOr
	OpDefineGlobal
	OpExportGlobal
	OpGetGlobal
	OpGetLocal
	OpGetProp
	OpImport
	OpMakeClosure
	OpCall
	OpReturn
)

// Chunk is a compiled unit of bytecode: a constant pool plus code bytes.
// Functions holds compiler-internal function prototypes referenced by
// OpMakeClosure; it is not part of the BCDS wire format: only the constant
// pool (Nil/Bool/Number/String) and the code bytes are serialized, so a
// chunk returned by Deserialize has no Functions.
type Chunk struct {
	Constants []Value
	Code      []byte
	Functions []*FunctionProto
}

// New returns an empty chunk.
func New() *Chunk {
	return &Chunk{}
}

func (c *Chunk) addConstant(v Value) uint16 {
	for i, existing := range c.Constants {
		if existing.Kind == v.Kind && existing == v {
			return uint16(i)
		}
	}
	c.Constants = append(c.Constants, v)
	return uint16(len(c.Constants) - 1)
}

func (c *Chunk) emit(op Op, operands ...byte) {
	c.Code = append(c.Code, byte(op))
	c.Code = append(c.Code, operands...)
}

func u16(v uint16) [2]byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return b
}

// Serialize writes the BCDS binary form of c.
func (c *Chunk) Serialize() []byte {
	var buf bytes.Buffer
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], Magic)
	buf.Write(hdr[:])

	var cc [4]byte
	binary.LittleEndian.PutUint32(cc[:], uint32(len(c.Constants)))
	buf.Write(cc[:])

	for _, v := range c.Constants {
		buf.WriteByte(byte(constSerialKind(v.Kind)))
		switch v.Kind {
		case KindNil:
			// no payload
		case KindBool:
			if v.Bool {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
		case KindNumber:
			var nb [8]byte
			binary.LittleEndian.PutUint64(nb[:], math.Float64bits(v.Num))
			buf.Write(nb[:])
		case KindString:
			var lb [4]byte
			binary.LittleEndian.PutUint32(lb[:], uint32(len(v.Str)))
			buf.Write(lb[:])
			buf.WriteString(v.Str)
		default:
			// Opaque fixed-size payload for any other constant kind that
			// might appear in the pool (none are emitted by this
			// compiler today).
			var zb [4]byte
			buf.Write(zb[:])
		}
	}

	var codeLen [4]byte
	binary.LittleEndian.PutUint32(codeLen[:], uint32(len(c.Code)))
	buf.Write(codeLen[:])
	buf.Write(c.Code)

	return buf.Bytes()
}

// constSerialKind maps the in-memory Kind to the BCDS wire kind byte. Only
// Nil/Bool/Number/String ever reach the constant pool from this compiler.
func constSerialKind(k Kind) byte {
	switch k {
	case KindNil:
		return 0
	case KindBool:
		return 1
	case KindNumber:
		return 2
	case KindString:
		return 3
	default:
		return 9 // opaque/unrecognized
	}
}

// Deserialize parses the BCDS binary form produced by Serialize. It does
// not reconstruct Functions (closures are never persisted to disk by this
// compiler).
func Deserialize(data []byte) (*Chunk, error) {
	r := bytes.NewReader(data)

	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, modulerrors.New(modulerrors.Truncated, "chunk", "", "short read for magic")
	}
	if magic != Magic {
		return nil, modulerrors.New(modulerrors.InvalidFormat, "chunk", "", fmt.Sprintf("bad chunk magic 0x%08X", magic))
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, modulerrors.New(modulerrors.Truncated, "chunk", "", "short read for constant count")
	}

	c := &Chunk{}
	for i := uint32(0); i < count; i++ {
		kindByte, err := r.ReadByte()
		if err != nil {
			return nil, modulerrors.New(modulerrors.Truncated, "chunk", "", "short read for constant kind")
		}
		switch kindByte {
		case 0:
			c.Constants = append(c.Constants, Nil())
		case 1:
			b, err := r.ReadByte()
			if err != nil {
				return nil, modulerrors.New(modulerrors.Truncated, "chunk", "", "short read for bool constant")
			}
			c.Constants = append(c.Constants, Bool(b != 0))
		case 2:
			var bits uint64
			if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
				return nil, modulerrors.New(modulerrors.Truncated, "chunk", "", "short read for number constant")
			}
			c.Constants = append(c.Constants, Number(math.Float64frombits(bits)))
		case 3:
			var length uint32
			if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
				return nil, modulerrors.New(modulerrors.Truncated, "chunk", "", "short read for string length")
			}
			sb := make([]byte, length)
			if _, err := r.Read(sb); err != nil {
				return nil, modulerrors.New(modulerrors.Truncated, "chunk", "", "short read for string bytes")
			}
			c.Constants = append(c.Constants, String(string(sb)))
		default:
			skip := make([]byte, 4)
			if _, err := r.Read(skip); err != nil {
				return nil, modulerrors.New(modulerrors.Truncated, "chunk", "", "short read for opaque constant")
			}
			c.Constants = append(c.Constants, Nil())
		}
	}

	var codeLen uint32
	if err := binary.Read(r, binary.LittleEndian, &codeLen); err != nil {
		return nil, modulerrors.New(modulerrors.Truncated, "chunk", "", "short read for code length")
	}
	code := make([]byte, codeLen)
	if codeLen > 0 {
		if _, err := r.Read(code); err != nil {
			return nil, modulerrors.New(modulerrors.Truncated, "chunk", "", "short read for code bytes")
		}
	}
	c.Code = code

	return c, nil
}

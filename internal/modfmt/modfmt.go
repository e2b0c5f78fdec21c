// Package modfmt implements the single-module binary container: header +
// section table + payloads, with a CRC32-IEEE checksum computed over the
// file with the checksum field zeroed. Bit-exact per the external
// interfaces this format must match: magic 0x53574D4F ("SWMO"), format
// version 1, little-endian scalars, length-prefixed UTF-8 strings.
package modfmt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	modulerrors "github.com/sunholo/quillmod/internal/errors"
)

const (
	Magic   uint32 = 0x53574D4F
	Version uint16 = 1
)

// SectionType tags a section's payload kind.
type SectionType byte

const (
	SectionMetadata  SectionType = 0x02
	SectionExports   SectionType = 0x03
	SectionImports   SectionType = 0x04
	SectionBytecode  SectionType = 0x05
	SectionDebug     SectionType = 0x06
	SectionNatives   SectionType = 0x07
	SectionConstants SectionType = 0x08
	SectionEnd       SectionType = 0xFF
)

// headerSize is magic(4) + version(2) + flags(2) + sectionCount(4) +
// timestamp(8) + crc32(4).
const headerSize = 4 + 2 + 2 + 4 + 8 + 4

// sectionHeaderSize is type(1) + size(4) + offset(8).
const sectionHeaderSize = 1 + 4 + 8

// Export is a single export section entry.
type Export struct {
	Name           string
	Kind           byte
	BytecodeOffset uint32
	Signature      string
}

// Import is a single import section entry.
type Import struct {
	Module string
	Name   string
	Alias  string
}

// NativeBinding is a single natives section entry.
type NativeBinding struct {
	ExportName   string
	NativeSymbol string
	Signature    string
}

// Writer accumulates sections and finalizes them into the binary format.
type Writer struct {
	name, version string
	exports       []Export
	imports       []Import
	bytecode      []byte
	natives       []NativeBinding
	timestamp     uint64
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// AddMetadata sets the module's name and version.
func (w *Writer) AddMetadata(name, version string) {
	w.name, w.version = name, version
}

// AddExport appends one export-section entry.
func (w *Writer) AddExport(name string, kind byte, bytecodeOffset uint32, signature string) {
	w.exports = append(w.exports, Export{Name: name, Kind: kind, BytecodeOffset: bytecodeOffset, Signature: signature})
}

// AddImport appends one import-section entry.
func (w *Writer) AddImport(module, name, alias string) {
	w.imports = append(w.imports, Import{Module: module, Name: name, Alias: alias})
}

// AddBytecode sets the bytecode-section payload.
func (w *Writer) AddBytecode(data []byte) {
	w.bytecode = append([]byte(nil), data...)
}

// AddNativeBinding appends one natives-section entry.
func (w *Writer) AddNativeBinding(exportName, nativeSymbol, signature string) {
	w.natives = append(w.natives, NativeBinding{ExportName: exportName, NativeSymbol: nativeSymbol, Signature: signature})
}

// WithTimestamp overrides the header timestamp (defaults to 0; callers that
// want "now" pass it explicitly since this package must stay deterministic
// without a wall clock).
func (w *Writer) WithTimestamp(ts uint64) *Writer {
	w.timestamp = ts
	return w
}

func putString(buf *bytes.Buffer, s string) {
	var lb [4]byte
	binary.LittleEndian.PutUint32(lb[:], uint32(len(s)+1))
	buf.Write(lb[:])
	buf.WriteString(s)
	buf.WriteByte(0)
}

func readString(r *bytes.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	if length == 0 {
		return "", nil
	}
	b := make([]byte, length)
	if _, err := r.Read(b); err != nil {
		return "", err
	}
	if length > 0 && b[length-1] == 0 {
		b = b[:length-1]
	}
	return string(b), nil
}

type builtSection struct {
	typ     SectionType
	payload []byte
}

func (w *Writer) buildSections() []builtSection {
	var sections []builtSection

	var meta bytes.Buffer
	putString(&meta, w.name)
	putString(&meta, w.version)
	sections = append(sections, builtSection{SectionMetadata, meta.Bytes()})

	if len(w.exports) > 0 {
		var buf bytes.Buffer
		var cnt [4]byte
		binary.LittleEndian.PutUint32(cnt[:], uint32(len(w.exports)))
		buf.Write(cnt[:])
		for _, e := range w.exports {
			putString(&buf, e.Name)
			buf.WriteByte(e.Kind)
			var off [4]byte
			binary.LittleEndian.PutUint32(off[:], e.BytecodeOffset)
			buf.Write(off[:])
			putString(&buf, e.Signature)
		}
		sections = append(sections, builtSection{SectionExports, buf.Bytes()})
	}

	if len(w.imports) > 0 {
		var buf bytes.Buffer
		var cnt [4]byte
		binary.LittleEndian.PutUint32(cnt[:], uint32(len(w.imports)))
		buf.Write(cnt[:])
		for _, imp := range w.imports {
			putString(&buf, imp.Module)
			putString(&buf, imp.Name)
			putString(&buf, imp.Alias)
		}
		sections = append(sections, builtSection{SectionImports, buf.Bytes()})
	}

	sections = append(sections, builtSection{SectionBytecode, append([]byte(nil), w.bytecode...)})

	if len(w.natives) > 0 {
		var buf bytes.Buffer
		var cnt [4]byte
		binary.LittleEndian.PutUint32(cnt[:], uint32(len(w.natives)))
		buf.Write(cnt[:])
		for _, nb := range w.natives {
			putString(&buf, nb.ExportName)
			putString(&buf, nb.NativeSymbol)
			putString(&buf, nb.Signature)
		}
		sections = append(sections, builtSection{SectionNatives, buf.Bytes()})
	}

	sections = append(sections, builtSection{SectionEnd, nil})
	return sections
}

// Finalize writes the header, section-header table, and payloads, then
// patches in the CRC32 computed with the checksum field zeroed.
func (w *Writer) Finalize() []byte {
	sections := w.buildSections()

	offset := uint64(headerSize + len(sections)*sectionHeaderSize)
	type placed struct {
		typ    SectionType
		size   uint32
		offset uint64
		data   []byte
	}
	var placedSections []placed
	for _, s := range sections {
		placedSections = append(placedSections, placed{typ: s.typ, size: uint32(len(s.payload)), offset: offset, data: s.payload})
		offset += uint64(len(s.payload))
	}

	var out bytes.Buffer
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], Magic)
	binary.LittleEndian.PutUint16(hdr[4:6], Version)
	binary.LittleEndian.PutUint16(hdr[6:8], 0) // flags
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(sections)))
	binary.LittleEndian.PutUint64(hdr[12:20], w.timestamp)
	binary.LittleEndian.PutUint32(hdr[20:24], 0) // checksum, zeroed for now
	out.Write(hdr[:])

	for _, p := range placedSections {
		var sh [sectionHeaderSize]byte
		sh[0] = byte(p.typ)
		binary.LittleEndian.PutUint32(sh[1:5], p.size)
		binary.LittleEndian.PutUint64(sh[5:13], p.offset)
		out.Write(sh[:])
	}
	for _, p := range placedSections {
		out.Write(p.data)
	}

	full := out.Bytes()
	sum := crc32.ChecksumIEEE(full)
	binary.LittleEndian.PutUint32(full[20:24], sum)
	return full
}

// Reader loads and parses a modfmt file; its Exports/Imports/Natives fields
// carry the decoded section contents.
type Reader struct {
	Name, Version string
	Exports       []Export
	Imports       []Import
	Bytecode      []byte
	Natives       []NativeBinding
	raw           []byte
}

// Read parses data's header, section table, and recognized section
// payloads. Unknown section types are skipped.
func Read(data []byte) (*Reader, error) {
	if len(data) < headerSize {
		return nil, modulerrors.New(modulerrors.Truncated, "modfmt", "", "file shorter than header")
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != Magic {
		return nil, modulerrors.New(modulerrors.InvalidFormat, "modfmt", "", fmt.Sprintf("bad magic 0x%08X", magic))
	}
	version := binary.LittleEndian.Uint16(data[4:6])
	if version != Version {
		return nil, modulerrors.New(modulerrors.UnsupportedVersion, "modfmt", "", fmt.Sprintf("unsupported format version %d", version))
	}
	sectionCount := binary.LittleEndian.Uint32(data[8:12])

	tableEnd := headerSize + int(sectionCount)*sectionHeaderSize
	if len(data) < tableEnd {
		return nil, modulerrors.New(modulerrors.Truncated, "modfmt", "", "file shorter than section table")
	}

	r := &Reader{raw: data}
	pos := headerSize
	for i := uint32(0); i < sectionCount; i++ {
		typ := SectionType(data[pos])
		size := binary.LittleEndian.Uint32(data[pos+1 : pos+5])
		off := binary.LittleEndian.Uint64(data[pos+5 : pos+13])
		pos += sectionHeaderSize

		if off+uint64(size) > uint64(len(data)) {
			return nil, modulerrors.New(modulerrors.Truncated, "modfmt", "", "section payload out of bounds")
		}
		payload := data[off : off+uint64(size)]

		switch typ {
		case SectionMetadata:
			br := bytes.NewReader(payload)
			name, err := readString(br)
			if err != nil {
				return nil, modulerrors.New(modulerrors.Truncated, "modfmt", "", "bad metadata section")
			}
			version, err := readString(br)
			if err != nil {
				return nil, modulerrors.New(modulerrors.Truncated, "modfmt", "", "bad metadata section")
			}
			r.Name, r.Version = name, version
		case SectionExports:
			br := bytes.NewReader(payload)
			var count uint32
			if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
				return nil, modulerrors.New(modulerrors.Truncated, "modfmt", "", "bad exports section")
			}
			for j := uint32(0); j < count; j++ {
				name, err := readString(br)
				if err != nil {
					return nil, modulerrors.New(modulerrors.Truncated, "modfmt", "", "bad export entry")
				}
				kind, err := br.ReadByte()
				if err != nil {
					return nil, modulerrors.New(modulerrors.Truncated, "modfmt", "", "bad export entry")
				}
				var boff uint32
				if err := binary.Read(br, binary.LittleEndian, &boff); err != nil {
					return nil, modulerrors.New(modulerrors.Truncated, "modfmt", "", "bad export entry")
				}
				sig, err := readString(br)
				if err != nil {
					return nil, modulerrors.New(modulerrors.Truncated, "modfmt", "", "bad export entry")
				}
				r.Exports = append(r.Exports, Export{Name: name, Kind: kind, BytecodeOffset: boff, Signature: sig})
			}
		case SectionImports:
			br := bytes.NewReader(payload)
			var count uint32
			if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
				return nil, modulerrors.New(modulerrors.Truncated, "modfmt", "", "bad imports section")
			}
			for j := uint32(0); j < count; j++ {
				mod, err1 := readString(br)
				name, err2 := readString(br)
				alias, err3 := readString(br)
				if err1 != nil || err2 != nil || err3 != nil {
					return nil, modulerrors.New(modulerrors.Truncated, "modfmt", "", "bad import entry")
				}
				r.Imports = append(r.Imports, Import{Module: mod, Name: name, Alias: alias})
			}
		case SectionBytecode:
			r.Bytecode = append([]byte(nil), payload...)
		case SectionNatives:
			br := bytes.NewReader(payload)
			var count uint32
			if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
				return nil, modulerrors.New(modulerrors.Truncated, "modfmt", "", "bad natives section")
			}
			for j := uint32(0); j < count; j++ {
				exp, err1 := readString(br)
				sym, err2 := readString(br)
				sig, err3 := readString(br)
				if err1 != nil || err2 != nil || err3 != nil {
					return nil, modulerrors.New(modulerrors.Truncated, "modfmt", "", "bad native binding")
				}
				r.Natives = append(r.Natives, NativeBinding{ExportName: exp, NativeSymbol: sym, Signature: sig})
			}
		case SectionEnd, SectionDebug, SectionConstants:
			// recognized but not parsed by this reader; SectionEnd has no
			// payload, Debug/Constants are skipped deliberately.
		default:
			// unknown section types are skipped
		}
	}
	return r, nil
}

// Verify re-reads data, zeros the checksum field in a copy, recomputes
// CRC32, and compares against the stored value.
func Verify(data []byte) bool {
	if len(data) < headerSize {
		return false
	}
	stored := binary.LittleEndian.Uint32(data[20:24])
	cp := append([]byte(nil), data...)
	binary.LittleEndian.PutUint32(cp[20:24], 0)
	return crc32.ChecksumIEEE(cp) == stored
}

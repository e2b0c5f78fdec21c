package modfmt

import (
	"bytes"
	"testing"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter()
	w.AddMetadata("mod.a", "1.0.0")
	w.AddExport("f", 0 /* Function */, 0, "()->Int")
	w.AddBytecode([]byte{0x01, 0x02, 0x03, 0x04})
	data := w.Finalize()

	r, err := Read(data)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if r.Name != "mod.a" || r.Version != "1.0.0" {
		t.Fatalf("metadata mismatch: %+v", r)
	}
	if len(r.Exports) != 1 || r.Exports[0].Name != "f" {
		t.Fatalf("exports mismatch: %+v", r.Exports)
	}
	if !bytes.Equal(r.Bytecode, []byte{0x01, 0x02, 0x03, 0x04}) {
		t.Fatalf("bytecode mismatch: %v", r.Bytecode)
	}
	if !Verify(data) {
		t.Fatal("expected verify to succeed on unmutated file")
	}
}

func TestVerifyDetectsMutation(t *testing.T) {
	w := NewWriter()
	w.AddMetadata("mod.a", "1.0.0")
	w.AddBytecode([]byte{0xAA})
	data := w.Finalize()
	data[len(data)-1] ^= 0xFF
	if Verify(data) {
		t.Fatal("expected verify to fail after mutation")
	}
}

func TestBadMagic(t *testing.T) {
	if _, err := Read(make([]byte, 64)); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestUnsupportedVersion(t *testing.T) {
	w := NewWriter()
	w.AddMetadata("m", "1.0.0")
	data := w.Finalize()
	// corrupt the version field (bytes 4-6) to something unsupported
	data[4] = 99
	if _, err := Read(data); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}

func TestImportsAndNatives(t *testing.T) {
	w := NewWriter()
	w.AddMetadata("mod.b", "2.0.0")
	w.AddImport("mod.a", "f", "aliasF")
	w.AddNativeBinding("g", "mod_b_g", "(Int)->Int")
	data := w.Finalize()

	r, err := Read(data)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if len(r.Imports) != 1 || r.Imports[0].Alias != "aliasF" {
		t.Fatalf("imports mismatch: %+v", r.Imports)
	}
	if len(r.Natives) != 1 || r.Natives[0].NativeSymbol != "mod_b_g" {
		t.Fatalf("natives mismatch: %+v", r.Natives)
	}
}

func TestEmptyBytecodeSection(t *testing.T) {
	w := NewWriter()
	w.AddMetadata("empty", "1.0.0")
	data := w.Finalize()
	r, err := Read(data)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if len(r.Bytecode) != 0 {
		t.Fatalf("expected empty bytecode, got %d bytes", len(r.Bytecode))
	}
}

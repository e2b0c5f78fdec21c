package chunk

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	c := New()
	c.Constants = []Value{Number(42), String("hello"), Bool(true), Nil()}
	c.Code = []byte{0x01, 0x02, 0x03, 0x04}

	data := c.Serialize()
	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize error: %v", err)
	}
	if diff := cmp.Diff(c.Constants, got.Constants); diff != "" {
		t.Fatalf("constants mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(c.Code, got.Code); diff != "" {
		t.Fatalf("code mismatch (-want +got):\n%s", diff)
	}
}

func TestDeserializeBadMagic(t *testing.T) {
	if _, err := Deserialize([]byte{0, 0, 0, 0}); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestDeserializeTruncated(t *testing.T) {
	c := New()
	c.Constants = []Value{Number(1)}
	data := c.Serialize()
	if _, err := Deserialize(data[:len(data)-2]); err == nil {
		t.Fatal("expected error for truncated chunk")
	}
}

func TestZeroLengthBytecodeSection(t *testing.T) {
	c := New()
	got, err := Deserialize(c.Serialize())
	if err != nil {
		t.Fatalf("Deserialize error: %v", err)
	}
	if len(got.Code) != 0 {
		t.Fatalf("expected empty code, got %d bytes", len(got.Code))
	}
	if len(got.Constants) != 0 {
		t.Fatalf("expected empty constants, got %d", len(got.Constants))
	}
}

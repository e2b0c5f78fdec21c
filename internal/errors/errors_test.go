package errors

import "testing"

func TestNewAndAsReport(t *testing.T) {
	err := New(ModuleNotFound, "loader", "mod.a", "could not resolve spec")
	rep, ok := AsReport(err)
	if !ok {
		t.Fatal("expected AsReport to succeed")
	}
	if rep.Kind != ModuleNotFound {
		t.Fatalf("Kind = %v, want %v", rep.Kind, ModuleNotFound)
	}
	if !Is(err, ModuleNotFound) {
		t.Fatal("expected Is(err, ModuleNotFound) to be true")
	}
	if Is(err, Corrupt) {
		t.Fatal("expected Is(err, Corrupt) to be false")
	}
}

func TestErrorMessage(t *testing.T) {
	err := New(CircularDependency, "loader", "mod.a", "cycle detected")
	want := "CircularDependency (mod.a): cycle detected"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestToJSON(t *testing.T) {
	err := New(Corrupt, "format", "", "checksum mismatch")
	rep, _ := AsReport(err)
	js, jerr := rep.ToJSON()
	if jerr != nil {
		t.Fatalf("ToJSON error: %v", jerr)
	}
	if js == "" {
		t.Fatal("expected non-empty JSON")
	}
}

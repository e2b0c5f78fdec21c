package pkgmeta

import "testing"

const sample = `{
  "name": "mod.a",
  "version": "1.0.0",
  "type": "library",
  "exports": {
    "f": {"type": "Function", "signature": "()->Int", "native": "mod_a_f"},
    "PI": {"type": "Constant", "value": 3.14}
  },
  "dependencies": {
    "mod.b": ">=1.0.0",
    "mod.c": "./local/mod.c"
  },
  "native": {"source": "native.c", "library": "libmoda.so"}
}`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if m.Name != "mod.a" || m.Version != "1.0.0" || m.Type != TypeLibrary {
		t.Fatalf("unexpected manifest: %+v", m)
	}
	f, ok := m.FindExport("f")
	if !ok || f.Kind != ExportFunction || f.NativeSymbol != "mod_a_f" {
		t.Fatalf("unexpected export f: %+v", f)
	}
	dep, ok := m.FindDependency("mod.b")
	if !ok || dep.Version != ">=1.0.0" {
		t.Fatalf("unexpected dependency mod.b: %+v", dep)
	}
	pathDep, ok := m.FindDependency("mod.c")
	if !ok || pathDep.Path != "./local/mod.c" {
		t.Fatalf("unexpected dependency mod.c: %+v", pathDep)
	}
	if m.Native == nil || m.Native.Library != "libmoda.so" {
		t.Fatalf("unexpected native spec: %+v", m.Native)
	}
}

func TestParseMissingName(t *testing.T) {
	if _, err := Parse([]byte(`{"version":"1.0.0"}`)); err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/module.json"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

package bundle

import (
	"testing"

	"github.com/sunholo/quillmod/internal/chunk"
	"github.com/sunholo/quillmod/internal/langparse"
)

func compileSource(t *testing.T, src string) []byte {
	t.Helper()
	prog, err := langparse.Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	result, err := chunk.Compile(prog)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return result.Chunk.Serialize()
}

func buildBundle(t *testing.T, entry string, modules map[string]string) []byte {
	t.Helper()
	b := NewBuilder(&FileResolver{Root: t.TempDir()})
	b.SetMetadata("demo", "1.0.0", TypeApplication, entry, "", "", "", 0)
	for name, src := range modules {
		b.AddModule(name+".ql", name, compileSource(t, src))
	}
	data, err := b.Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	return data
}

func TestExecuteMainReturnsValue(t *testing.T) {
	data := buildBundle(t, "app", map[string]string{
		"app": `export fn main() = 42`,
	})
	res, err := Execute(data, nil)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if res.ExitCode != 42 {
		t.Fatalf("ExitCode = %d, want 42", res.ExitCode)
	}
}

func TestExecuteNoMainWarns(t *testing.T) {
	data := buildBundle(t, "app", map[string]string{
		"app": `let x = 1`,
	})
	res, err := Execute(data, nil)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("ExitCode = %d, want 0", res.ExitCode)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", res.Warnings)
	}
}

func TestExecuteNoEntryPointLoadsForSideEffects(t *testing.T) {
	b := NewBuilder(&FileResolver{Root: t.TempDir()})
	b.SetMetadata("lib", "1.0.0", TypeLibrary, "", "", "", "", 0)
	b.AddModule("a.ql", "a", compileSource(t, `export let x = 1`))
	data, err := b.Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	res, err := Execute(data, nil)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if res.ExitCode != 0 || len(res.Warnings) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestOpenRoundTrip(t *testing.T) {
	data := buildBundle(t, "app", map[string]string{
		"app": `export fn main() = 1`,
	})
	b, err := Open(data)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if b.Summary.Name != "demo" || b.Summary.EntryPoint != "app" {
		t.Fatalf("unexpected summary: %+v", b.Summary)
	}
	if len(b.Names()) != 1 || b.Names()[0] != "app" {
		t.Fatalf("unexpected names: %v", b.Names())
	}
}

package platform

import "testing"

func TestGlob(t *testing.T) {
	ok, err := Glob("modules/**/*.ql", "modules/a/b/c.ql")
	if err != nil {
		t.Fatalf("Glob error: %v", err)
	}
	if !ok {
		t.Fatal("expected recursive glob to match")
	}
}

func TestFnmatch(t *testing.T) {
	ok, err := Fnmatch("*.qpkg", "app.qpkg")
	if err != nil {
		t.Fatalf("Fnmatch error: %v", err)
	}
	if !ok {
		t.Fatal("expected simple pattern to match")
	}
}

func TestHomeDirNeverEmpty(t *testing.T) {
	if HomeDir() == "" {
		t.Fatal("HomeDir must never return empty string")
	}
}

func TestNewFlagSet(t *testing.T) {
	fs := NewFlagSet("test")
	lazy := fs.Bool("lazy", false, "lazy load modules")
	if err := fs.Parse([]string{"--lazy"}); err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if !*lazy {
		t.Fatal("expected --lazy to set true")
	}
}

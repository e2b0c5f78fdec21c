package bundle

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveCandidateProbesAllThreeLocations(t *testing.T) {
	t.Run("modules/<name>/build/<name>.<ext>", func(t *testing.T) {
		root := t.TempDir()
		dir := filepath.Join(root, "modules", "logger", "build")
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		want := filepath.Join(dir, "logger.ql")
		if err := os.WriteFile(want, []byte(`let x = 1`), 0644); err != nil {
			t.Fatal(err)
		}

		f := &FileResolver{Root: root}
		got, ok := f.ResolveCandidate("logger", "ql")
		if !ok || got != want {
			t.Fatalf("ResolveCandidate = (%q, %v), want (%q, true)", got, ok, want)
		}
	})

	t.Run("build/modules/<name>.<ext>", func(t *testing.T) {
		root := t.TempDir()
		dir := filepath.Join(root, "build", "modules")
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		want := filepath.Join(dir, "logger.ql")
		if err := os.WriteFile(want, []byte(`let x = 1`), 0644); err != nil {
			t.Fatal(err)
		}

		f := &FileResolver{Root: root}
		got, ok := f.ResolveCandidate("logger", "ql")
		if !ok || got != want {
			t.Fatalf("ResolveCandidate = (%q, %v), want (%q, true)", got, ok, want)
		}
	})

	t.Run("<name>.<ext>", func(t *testing.T) {
		root := t.TempDir()
		want := filepath.Join(root, "logger.ql")
		if err := os.WriteFile(want, []byte(`let x = 1`), 0644); err != nil {
			t.Fatal(err)
		}

		f := &FileResolver{Root: root}
		got, ok := f.ResolveCandidate("logger", "ql")
		if !ok || got != want {
			t.Fatalf("ResolveCandidate = (%q, %v), want (%q, true)", got, ok, want)
		}
	})

	t.Run("first hit wins", func(t *testing.T) {
		root := t.TempDir()
		buildDir := filepath.Join(root, "modules", "logger", "build")
		if err := os.MkdirAll(buildDir, 0755); err != nil {
			t.Fatal(err)
		}
		want := filepath.Join(buildDir, "logger.ql")
		if err := os.WriteFile(want, []byte(`let x = 1`), 0644); err != nil {
			t.Fatal(err)
		}
		// Also place a match at the bare, lowest-priority location; the
		// first candidate must still win.
		if err := os.WriteFile(filepath.Join(root, "logger.ql"), []byte(`let x = 2`), 0644); err != nil {
			t.Fatal(err)
		}

		f := &FileResolver{Root: root}
		got, ok := f.ResolveCandidate("logger", "ql")
		if !ok || got != want {
			t.Fatalf("ResolveCandidate = (%q, %v), want (%q, true)", got, ok, want)
		}
	})

	t.Run("unresolved", func(t *testing.T) {
		f := &FileResolver{Root: t.TempDir()}
		if _, ok := f.ResolveCandidate("missing", "ql"); ok {
			t.Fatal("expected no candidate to resolve")
		}
	})
}

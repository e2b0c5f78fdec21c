package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)
	l.Info("loader", "this should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below level, got %q", buf.String())
	}
	l.Error("loader", "this should appear")
	if !strings.Contains(buf.String(), "this should appear") {
		t.Fatalf("expected error message, got %q", buf.String())
	}
}

func TestModuleFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelTrace)
	l.allMods = false
	l.modules = map[string]bool{"loader": true}
	l.Info("cache", "hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected cache module filtered out, got %q", buf.String())
	}
	l.Info("loader", "visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatal("expected loader module message to appear")
	}
}

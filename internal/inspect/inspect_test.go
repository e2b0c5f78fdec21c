package inspect

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sunholo/quillmod/internal/config"
	"github.com/sunholo/quillmod/internal/loader"
	"github.com/sunholo/quillmod/internal/logging"
)

func writeSource(t *testing.T, dir, name, src string) {
	t.Helper()
	p := filepath.Join(dir, name+".ql")
	if err := os.WriteFile(p, []byte(src), 0644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
}

func newTestLoader(t *testing.T, dir string) *loader.Loader {
	t.Helper()
	root := loader.NewBootstrap(nil)
	cfg := config.Default(t.TempDir())
	return loader.NewApplication(root, []string{dir}, cfg, logging.New(os.Stderr, logging.LevelError))
}

func TestModulesListsLoadedModules(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "greeter", `export fn hello() = "hi"`)

	l := newTestLoader(t, dir)
	if _, err := l.Load("greeter", false, ""); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	ins := New(l)
	mods := ins.Modules()
	if len(mods) != 1 {
		t.Fatalf("expected 1 module, got %d", len(mods))
	}
	if mods[0].Path != "greeter" {
		t.Fatalf("expected path greeter, got %q", mods[0].Path)
	}
	if len(mods[0].Exports) != 1 || mods[0].Exports[0].Name != "hello" {
		t.Fatalf("expected hello export, got %+v", mods[0].Exports)
	}
	if mods[0].Exports[0].Visibility != "public" {
		t.Fatalf("expected public visibility, got %q", mods[0].Exports[0].Visibility)
	}
}

func TestSearchMatchesGlobPattern(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "alpha", `let x = 1`)
	writeSource(t, dir, "beta", `let y = 2`)

	l := newTestLoader(t, dir)
	if _, err := l.Load("alpha", false, ""); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if _, err := l.Load("beta", false, ""); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	ins := New(l)
	matches, err := ins.Search("alpha")
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(matches) != 1 || matches[0].Path != "alpha" {
		t.Fatalf("expected only alpha to match, got %+v", matches)
	}
}

func TestStatisticsReflectsCacheActivity(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "once", `let x = 1`)

	l := newTestLoader(t, dir)
	if _, err := l.Load("once", false, ""); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if _, err := l.Load("once", false, ""); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	ins := New(l)
	stats := ins.Statistics()
	if stats.LoadedModules != 1 {
		t.Fatalf("expected 1 loaded module, got %d", stats.LoadedModules)
	}
	if stats.CacheHits == 0 {
		t.Fatal("expected at least one cache hit")
	}
}

func TestDependenciesReportsImportEdges(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "base", `export fn answer() = 42`)
	writeSource(t, dir, "consumer", `import "base" as base
export fn check() = base.answer()`)

	l := newTestLoader(t, dir)
	if _, err := l.Load("consumer", false, ""); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	ins := New(l)
	edges := ins.Dependencies()
	found := false
	for _, e := range edges {
		if e.From == "consumer" && e.To == "base" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a consumer->base edge, got %+v", edges)
	}

	dependents := ins.DependentsOf("base")
	if len(dependents) != 1 || dependents[0] != "consumer" {
		t.Fatalf("expected consumer to depend on base, got %+v", dependents)
	}
}

func TestToJSONAndToYAMLRoundtripShape(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "greeter", `export fn hello() = "hi"`)

	l := newTestLoader(t, dir)
	if _, err := l.Load("greeter", false, ""); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	ins := New(l)
	mods := ins.Modules()

	js, err := ToJSON(mods)
	if err != nil {
		t.Fatalf("ToJSON error: %v", err)
	}
	if !strings.Contains(js, `"path": "greeter"`) {
		t.Fatalf("expected JSON to contain module path, got %s", js)
	}

	y, err := ToYAML(mods)
	if err != nil {
		t.Fatalf("ToYAML error: %v", err)
	}
	if !strings.Contains(y, "path: greeter") {
		t.Fatalf("expected YAML to contain module path, got %s", y)
	}
}

func TestModuleLookupMissingReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	l := newTestLoader(t, dir)
	ins := New(l)
	if _, ok := ins.Module("nope"); ok {
		t.Fatal("expected lookup of an unloaded module to report false")
	}
}

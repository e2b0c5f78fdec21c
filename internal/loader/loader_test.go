package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sunholo/quillmod/internal/archive"
	"github.com/sunholo/quillmod/internal/chunk"
	"github.com/sunholo/quillmod/internal/config"
	modulerrors "github.com/sunholo/quillmod/internal/errors"
	"github.com/sunholo/quillmod/internal/hooks"
	"github.com/sunholo/quillmod/internal/langparse"
	"github.com/sunholo/quillmod/internal/logging"
	"github.com/sunholo/quillmod/internal/module"
)

func writeSource(t *testing.T, dir, name, src string) string {
	t.Helper()
	p := filepath.Join(dir, name+".ql")
	if err := os.WriteFile(p, []byte(src), 0644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func newTestLoader(t *testing.T, searchPaths []string) *Loader {
	t.Helper()
	root := NewBootstrap(nil)
	cfg := config.Default(t.TempDir())
	return NewApplication(root, searchPaths, cfg, logging.New(os.Stderr, logging.LevelError))
}

func TestLoadSourceExportsFunction(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "math_helpers", `export fn double(x) = x * 2`)

	l := newTestLoader(t, []string{dir})
	m, err := l.Load("math_helpers", false, "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if m.State() != module.Loaded {
		t.Fatalf("expected Loaded, got %s", m.State())
	}
	if _, ok := m.ExportsObj.Get("double"); !ok {
		t.Fatal("expected double to be exported")
	}
}

func TestLoadIsCachedOnSecondCall(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "once", `let x = 1`)

	l := newTestLoader(t, []string{dir})
	first, err := l.Load("once", false, "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	second, err := l.Load("once", false, "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if first != second {
		t.Fatal("expected the second Load to return the cached module")
	}
	stats := l.Cache.GetStats()
	if stats.Hits == 0 {
		t.Fatal("expected at least one cache hit")
	}
}

func TestLoadMissingModuleReturnsModuleNotFound(t *testing.T) {
	l := newTestLoader(t, []string{t.TempDir()})
	_, err := l.Load("does_not_exist", false, "")
	if err == nil {
		t.Fatal("expected an error for a missing module")
	}
	if !modulerrors.Is(err, modulerrors.ModuleNotFound) {
		t.Fatalf("expected ModuleNotFound, got %v", err)
	}
}

func TestLoadBadSourceIsCachedAsError(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "broken", `let x = `)

	l := newTestLoader(t, []string{dir})
	m, err := l.Load("broken", false, "")
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if m.State() != module.Error {
		t.Fatalf("expected Error state, got %s", m.State())
	}

	again, err := l.Load("broken", false, "")
	if err == nil {
		t.Fatal("expected the cached error to be returned again")
	}
	if again != m {
		t.Fatal("expected the same Error-state module to be returned from cache")
	}
}

func TestUnloadRefusesWhileReferenced(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "held", `let x = 1`)

	l := newTestLoader(t, []string{dir})
	m, err := l.Load("held", false, "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	m.Acquire()

	if err := l.Unload("held"); err == nil {
		t.Fatal("expected Unload to refuse a referenced module")
	}
	if err := l.ForceUnload("held"); err != nil {
		t.Fatalf("ForceUnload error: %v", err)
	}
	if _, ok := l.Cache.Get("held"); ok {
		t.Fatal("expected the module to be gone from the cache after ForceUnload")
	}
}

func TestChildTierDelegatesToParentCache(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "shared", `let x = 1`)

	parent := newTestLoader(t, []string{dir})
	if _, err := parent.Load("shared", false, ""); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	child := NewChild(parent)
	m, err := child.Load("shared", false, "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if m.State() != module.Loaded {
		t.Fatalf("expected the parent's already-loaded module, got %s", m.State())
	}
	if child.Cache.Len() != 0 {
		t.Fatal("expected the child's own cache to stay empty when satisfied by the parent")
	}
}

func TestResolveFindsDirectoryManifest(t *testing.T) {
	dir := t.TempDir()
	modDir := filepath.Join(dir, "greeter")
	if err := os.MkdirAll(modDir, 0755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"greeter","version":"1.0.0","main_file":"greeter.ql"}`
	if err := os.WriteFile(filepath.Join(modDir, "module.json"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	writeSource(t, modDir, "greeter", `export fn hello() = "hi"`)

	l := newTestLoader(t, []string{dir})
	m, err := l.Load("greeter", false, "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if m.Version != "1.0.0" {
		t.Fatalf("expected version 1.0.0, got %q", m.Version)
	}
	if _, ok := m.ExportsObj.Get("hello"); !ok {
		t.Fatal("expected hello to be exported")
	}
}

func TestLoadDirectoryRejectsUnsatisfiedDependencyVersion(t *testing.T) {
	dir := t.TempDir()

	libDir := filepath.Join(dir, "libby")
	if err := os.MkdirAll(libDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(libDir, "module.json"), []byte(`{"name":"libby","version":"1.0.0"}`), 0644); err != nil {
		t.Fatal(err)
	}
	writeSource(t, libDir, "libby", `let x = 1`)

	appDir := filepath.Join(dir, "app")
	if err := os.MkdirAll(appDir, 0755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"app","version":"1.0.0","dependencies":{"libby":"~>2.0.0"}}`
	if err := os.WriteFile(filepath.Join(appDir, "module.json"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	writeSource(t, appDir, "app", `let x = 1`)

	l := newTestLoader(t, []string{dir})
	_, err := l.Load("app", false, "")
	if err == nil {
		t.Fatal("expected an unsatisfied version requirement error")
	}
}

func TestLoadDirectoryAcceptsSatisfiedDependencyVersion(t *testing.T) {
	dir := t.TempDir()

	libDir := filepath.Join(dir, "libby")
	if err := os.MkdirAll(libDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(libDir, "module.json"), []byte(`{"name":"libby","version":"1.2.0"}`), 0644); err != nil {
		t.Fatal(err)
	}
	writeSource(t, libDir, "libby", `let x = 1`)

	appDir := filepath.Join(dir, "app")
	if err := os.MkdirAll(appDir, 0755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"app","version":"1.0.0","dependencies":{"libby":"~>1.0"}}`
	if err := os.WriteFile(filepath.Join(appDir, "module.json"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	writeSource(t, appDir, "app", `let x = 1`)

	l := newTestLoader(t, []string{dir})
	m, err := l.Load("app", false, "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if m.State() != module.Loaded {
		t.Fatalf("expected Loaded, got %s", m.State())
	}
}

func TestImportResolvesThroughLoader(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "base", `export fn answer() = 42`)
	writeSource(t, dir, "consumer", `import "base" as base
export fn check() = base.answer()`)

	l := newTestLoader(t, []string{dir})
	m, err := l.Load("consumer", false, "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if m.State() != module.Loaded {
		t.Fatalf("expected Loaded, got %s", m.State())
	}
	if _, ok := l.Cache.Get("base"); !ok {
		t.Fatal("expected the transitive import to also be cached")
	}
}

func TestDiskCacheReusesCompiledFunctionFreeChunk(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "cached", `let x = 1 + 2`)
	cacheDir := filepath.Join(dir, "cache")

	l := newTestLoader(t, []string{dir})
	l.Config.CacheDir = cacheDir

	src, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	_, hit1, err := l.loadCompiledWithDiskCache(path, string(src))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if hit1 {
		t.Fatal("expected the first compile to miss the disk cache")
	}
	_, hit2, err := l.loadCompiledWithDiskCache(path, string(src))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if !hit2 {
		t.Fatal("expected the second compile to hit the disk cache")
	}
}

func writeArchive(t *testing.T, dir, name, src string) string {
	t.Helper()
	prog, err := langparse.Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	compiled, err := chunk.Compile(prog)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	w := archive.NewWriter()
	w.AddJSON([]byte(`{"name":"` + name + `","version":"1.0.0"}`))
	w.AddBytecode(name, compiled.Chunk.Serialize())
	data, err := w.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	path := filepath.Join(dir, name+"."+ArchiveExt)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func globalValue(m *module.Module, name string) (chunk.Value, bool) {
	for _, g := range m.Globals() {
		if g.Name == name {
			return g.Value, true
		}
	}
	return chunk.Value{}, false
}

func TestLazyArchiveParksUntilFirstUse(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir, "lazypkg", `let answer = 14 * 3`)

	l := newTestLoader(t, []string{dir})
	l.Config.LazyModules = true

	var firstUseCount int
	l.Hooks.SetHooks("lazypkg", hooks.ModuleHooks{
		OnFirstUse: func(m *module.Module) error {
			firstUseCount++
			return nil
		},
	})

	m, err := l.Load("lazypkg", false, "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if m.State() != module.Loaded {
		t.Fatalf("expected Loaded even while parked, got %s", m.State())
	}
	if m.Pending == nil {
		t.Fatal("expected a parked chunk before first use")
	}
	if _, ok := globalValue(m, "answer"); ok {
		t.Fatal("expected no globals before the parked chunk has run")
	}
	if firstUseCount != 0 {
		t.Fatal("OnFirstUse must not fire before EnsureInitialized runs the chunk")
	}

	if err := l.EnsureInitialized("lazypkg"); err != nil {
		t.Fatalf("EnsureInitialized error: %v", err)
	}
	if m.Pending != nil {
		t.Fatal("expected the parked chunk to be cleared after first use")
	}
	v, ok := globalValue(m, "answer")
	if !ok || v.Num != 42 {
		t.Fatalf("expected answer=42 after first use, got %v (ok=%v)", v, ok)
	}
	if firstUseCount != 1 {
		t.Fatalf("expected OnFirstUse to fire exactly once, fired %d times", firstUseCount)
	}

	if err := l.EnsureInitialized("lazypkg"); err != nil {
		t.Fatalf("second EnsureInitialized error: %v", err)
	}
	if firstUseCount != 1 {
		t.Fatalf("expected a second EnsureInitialized not to re-run the chunk or re-fire the hook, fired %d times", firstUseCount)
	}
}

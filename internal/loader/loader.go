// Package loader implements the four-tier loader hierarchy (Bootstrap,
// System, Application, Child): path resolution, the state-machine-driven
// load, hierarchy delegation, and reference-counted unload. It ties
// together nearly every other package: cache, hooks, pkgmeta, archive,
// bundle, modfmt, chunk, vm, and the langlex/langparse collaborator layer.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sunholo/quillmod/internal/allocreg"
	"github.com/sunholo/quillmod/internal/archive"
	"github.com/sunholo/quillmod/internal/bootstrap"
	"github.com/sunholo/quillmod/internal/cache"
	"github.com/sunholo/quillmod/internal/chunk"
	"github.com/sunholo/quillmod/internal/config"
	modulerrors "github.com/sunholo/quillmod/internal/errors"
	"github.com/sunholo/quillmod/internal/hooks"
	"github.com/sunholo/quillmod/internal/langparse"
	"github.com/sunholo/quillmod/internal/logging"
	"github.com/sunholo/quillmod/internal/modfmt"
	"github.com/sunholo/quillmod/internal/module"
	"github.com/sunholo/quillmod/internal/pkgmeta"
	"github.com/sunholo/quillmod/internal/platform"
	"github.com/sunholo/quillmod/internal/semver"
	"github.com/sunholo/quillmod/internal/strpool"
	"github.com/sunholo/quillmod/internal/vm"
)

// Extensions this loader recognizes when probing search paths.
const (
	SourceExt    = "ql"
	ArchiveExt   = "qpkg"
	ModFormatExt = "qmod"
	BytecodeExt  = "qbc"
	RuntimeName  = "quill"
)

// Tier is this loader's position in the hierarchy.
type Tier byte

const (
	TierBootstrap Tier = iota
	TierSystem
	TierApplication
	TierChild
)

func (t Tier) String() string {
	switch t {
	case TierBootstrap:
		return "Bootstrap"
	case TierSystem:
		return "System"
	case TierApplication:
		return "Application"
	case TierChild:
		return "Child"
	default:
		return "Unknown"
	}
}

// Loader is one tier: a cache, search paths, a parent to delegate misses
// to, and (Application tier only) a package registry.
type Loader struct {
	Tier        Tier
	Parent      *Loader
	Cache       *cache.Cache
	SearchPaths []string

	Hooks   *hooks.Registry
	Config  config.Config
	Logger  *logging.Logger
	Strings *strpool.Pool
	Allocs  *allocreg.Registry
	Stdout  func(string)

	// PkgRegistry maps a package name to its parsed manifest; only the
	// Application tier populates and consults it.
	PkgRegistry map[string]*pkgmeta.Manifest
}

// NewBootstrap constructs the root of the hierarchy: a loader with no
// parent whose cache holds only the synthetic "__builtins__" module.
func NewBootstrap(stdout func(string)) *Loader {
	l := &Loader{
		Tier:    TierBootstrap,
		Cache:   cache.New(),
		Hooks:   hooks.NewRegistry(),
		Strings: strpool.New(),
		Allocs:  allocreg.New(),
		Stdout:  stdout,
		Logger:  logging.New(os.Stderr, logging.LevelInfo),
	}
	builtins := bootstrap.Build(stdout)
	l.Cache.Put(bootstrap.Name, builtins)
	return l
}

// NewSystem constructs a System-tier loader parented to parent.
func NewSystem(parent *Loader, searchPaths []string, cfg config.Config, logger *logging.Logger) *Loader {
	return &Loader{
		Tier:        TierSystem,
		Parent:      parent,
		Cache:       cache.New(),
		SearchPaths: searchPaths,
		Hooks:       hooks.NewRegistry(),
		Config:      cfg,
		Logger:      logger,
		Strings:     strpool.New(),
		Allocs:      allocreg.New(),
		Stdout:      parent.Stdout,
	}
}

// NewApplication constructs an Application-tier loader: the only tier that
// owns a package registry.
func NewApplication(parent *Loader, searchPaths []string, cfg config.Config, logger *logging.Logger) *Loader {
	l := NewSystem(parent, searchPaths, cfg, logger)
	l.Tier = TierApplication
	l.PkgRegistry = make(map[string]*pkgmeta.Manifest)
	return l
}

// NewChild constructs a Child-tier loader with its own cache and hook
// registry that shares its parent's config, logger, string pool, allocator
// registry and stdout, and delegates cache misses to the parent -- used for
// prefetch threads and sandboxed sub-loads.
func NewChild(parent *Loader) *Loader {
	return &Loader{
		Tier:    TierChild,
		Parent:  parent,
		Cache:   cache.New(),
		Hooks:   hooks.NewRegistry(),
		Config:  parent.Config,
		Logger:  parent.Logger,
		Strings: parent.Strings,
		Allocs:  parent.Allocs,
		Stdout:  parent.Stdout,
	}
}

// RegisterPackage adds a manifest to the Application-tier package
// registry, keyed by its name.
func (l *Loader) RegisterPackage(m *pkgmeta.Manifest) {
	if l.PkgRegistry == nil {
		return
	}
	l.PkgRegistry[m.Name] = m
}

// lookupChain consults this loader's cache, then its parent chain.
func (l *Loader) lookupChain(key string) (*module.Module, bool) {
	if m, ok := l.Cache.Get(key); ok {
		return m, true
	}
	if l.Parent != nil {
		return l.Parent.lookupChain(key)
	}
	return nil, false
}

// Load resolves spec, dispatches to the matching format reader, executes
// the result in a fresh child VM, and caches the outcome (Loaded or
// Error). A cache hit on a module still Loading is the circular-import
// path: it returns the in-progress module with a nil error rather than
// erroring. That module's exports-object is filled only after its chunk
// finishes running, so an importer inside the cycle receives it while it
// is still empty, and top-level code that reads a field from it during the
// cycle fails.
func (l *Loader) Load(spec string, nativeFlag bool, relativeTo string) (*module.Module, error) {
	if m, ok := l.lookupChain(spec); ok {
		if m.State() == module.Error {
			return m, m.Err()
		}
		return m, nil
	}

	var resolved Resolved
	var err error
	if nativeFlag {
		resolved, err = l.resolveNative(spec)
	} else {
		resolved, err = l.Resolve(spec, relativeTo)
	}
	if err != nil {
		return nil, modulerrors.New(modulerrors.ModuleNotFound, "resolve", spec, err.Error())
	}

	interned := l.Strings.Intern(spec)
	m := module.New(interned, resolved.Path)
	if err := m.SetState(module.Loading); err != nil {
		return nil, err
	}
	l.Cache.Put(spec, m)
	m.Touch(time.Now().UnixNano())

	loadErr := l.dispatch(m, resolved, nativeFlag)
	if loadErr != nil {
		_ = m.Fail(loadErr)
		l.Hooks.RunError(m, loadErr)
		return m, loadErr
	}

	if err := l.Hooks.RunInit(m); err != nil {
		_ = m.Fail(err)
		l.Hooks.RunError(m, err)
		return m, modulerrors.New(modulerrors.HookRejected, "init", spec, err.Error())
	}

	if err := m.SetState(module.Loaded); err != nil {
		return m, err
	}
	return m, nil
}

func (l *Loader) dispatch(m *module.Module, r Resolved, nativeFlag bool) error {
	switch r.Kind {
	case KindDirectory:
		return l.loadDirectory(m, r)
	case KindSource:
		return l.loadSource(m, r.Path)
	case KindArchive:
		return l.loadArchive(m, r)
	case KindModFormat:
		return l.loadModFormat(m, r)
	case KindNative:
		return l.loadNative(m, r)
	default:
		return fmt.Errorf("loader: unhandled resolved kind %d", r.Kind)
	}
}

func (l *Loader) childVM(m *module.Module) *vm.VM {
	machine := vm.New()
	machine.Stdout = l.Stdout
	if machine.Stdout == nil {
		machine.Stdout = func(string) {}
	}
	machine.Import = func(spec string) (*chunk.Object, error) {
		sub, err := l.Load(spec, false, m.AbsPath)
		if err != nil {
			return nil, err
		}
		return sub.ExportsObj, nil
	}
	return machine
}

// runChunk executes compiled against a fresh child VM and copies its
// results back into m: every global into m's globals table, and every
// statically-known export (from exportDescs) into m's exports table and
// exports-object.
func (l *Loader) runChunk(m *module.Module, compiled *chunk.Chunk, exportDescs []chunk.ExportDescriptor) error {
	machine := l.childVM(m)
	if err := machine.Interpret(compiled); err != nil {
		return modulerrors.New(modulerrors.LoadExecutionFailed, "execute", m.Path.String(), err.Error())
	}
	for _, name := range machine.Globals.Names() {
		v, _ := machine.Globals.Get(name)
		m.SetGlobal(name, v)
	}
	for _, exp := range exportDescs {
		v, ok := machine.Globals.Get(exp.Name)
		if !ok {
			continue
		}
		vis := module.Private
		if exp.Visibility == 1 {
			vis = module.Public
		}
		m.ExportWithVisibility(exp.Name, v, vis)
	}
	return nil
}

// EnsureInitialized runs a lazily-parked module's pending chunk on first
// use: under lazy-load mode, archive loads defer execution until something
// actually needs the module's exports, and this is that trigger. It is a
// no-op for a module with no parked chunk, and for a module already
// initialized it returns the original run's result without re-executing
// anything. The OnFirstUse hook fires exactly once, right after the parked
// chunk runs.
func (l *Loader) EnsureInitialized(spec string) error {
	m, ok := l.lookupChain(spec)
	if !ok {
		return fmt.Errorf("loader: %q is not loaded", spec)
	}
	ranPending := false
	err := m.EnsureInitialized(func(compiled *chunk.Chunk) error {
		ranPending = true
		return l.runChunk(m, compiled, nil)
	})
	if err != nil {
		return err
	}
	if ranPending {
		return l.Hooks.RunFirstUse(m)
	}
	return nil
}

func compileSource(src string) (*chunk.CompileResult, error) {
	prog, err := langparse.Parse(src)
	if err != nil {
		return nil, modulerrors.New(modulerrors.ParseError, "parse", "", err.Error())
	}
	result, err := chunk.Compile(prog)
	if err != nil {
		return nil, modulerrors.New(modulerrors.CompileError, "compile", "", err.Error())
	}
	return result, nil
}

func (l *Loader) loadSource(m *module.Module, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return modulerrors.New(modulerrors.IoError, "read", path, err.Error())
	}

	compiled, fromCache, err := l.loadCompiledWithDiskCache(path, string(data))
	if err != nil {
		return err
	}
	if l.Logger != nil && l.Config.Debug {
		l.Logger.Debug("loader", "loaded %s (disk-cache hit=%v)", path, fromCache)
	}
	for _, imp := range compiled.Imports {
		m.Dependencies = append(m.Dependencies, imp.Spec)
	}
	return l.runChunk(m, compiled.Chunk, compiled.Exports)
}

func (l *Loader) loadDirectory(m *module.Module, r Resolved) error {
	manifestPath := filepath.Join(r.Path, "module.json")
	manifest, err := pkgmeta.Load(manifestPath)
	if err != nil {
		return modulerrors.New(modulerrors.IoError, "manifest", manifestPath, err.Error())
	}
	m.Version = manifest.Version

	if err := l.checkDependencyVersions(manifest, r.Path); err != nil {
		return err
	}

	if manifest.Native != nil && manifest.Native.Library != "" {
		return l.loadNativeSideLibrary(m, manifest)
	}

	mainFile := manifest.MainFile
	if mainFile == "" {
		mainFile = manifest.Name + "." + SourceExt
	}
	return l.loadSource(m, filepath.Join(r.Path, mainFile))
}

// checkDependencyVersions loads each declared dependency and verifies its
// resolved version satisfies the manifest's requirement string. A
// dependency with no version constraint is loaded but not checked.
func (l *Loader) checkDependencyVersions(manifest *pkgmeta.Manifest, relativeTo string) error {
	for _, dep := range manifest.Dependencies {
		depModule, err := l.Load(dep.Name, false, relativeTo)
		if err != nil {
			return err
		}
		if dep.Version == "" || depModule.Version == "" {
			continue
		}
		depVersion, err := semver.Parse(depModule.Version)
		if err != nil {
			return modulerrors.New(modulerrors.VersionRequirementUnsatisfied, "version", dep.Name, err.Error())
		}
		ok, err := depVersion.Satisfies(dep.Version)
		if err != nil {
			return modulerrors.New(modulerrors.VersionRequirementUnsatisfied, "version", dep.Name, err.Error())
		}
		if !ok {
			msg := fmt.Sprintf("%s requires %s %s, found %s", manifest.Name, dep.Name, dep.Version, depModule.Version)
			return modulerrors.Newf(modulerrors.VersionRequirementUnsatisfied, "version", dep.Name, msg, map[string]any{
				"required": dep.Version,
				"found":    depModule.Version,
			})
		}
	}
	return nil
}

func (l *Loader) loadArchive(m *module.Module, r Resolved) error {
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return modulerrors.New(modulerrors.IoError, "read", r.Path, err.Error())
	}
	reader, err := archive.OpenReader(data)
	if err != nil {
		return modulerrors.New(modulerrors.InvalidFormat, "archive", r.Path, err.Error())
	}

	baseName := strings.TrimSuffix(filepath.Base(r.Path), "."+ArchiveExt)
	var manifest *pkgmeta.Manifest
	if manifestJSON, err := reader.ExtractJSON(); err == nil {
		if parsed, err := pkgmeta.Parse(manifestJSON); err == nil {
			manifest = parsed
			m.Version = manifest.Version
			if manifest.Name != "" {
				baseName = manifest.Name
			}
		}
	}

	if manifest != nil && manifest.Native != nil && manifest.Native.Library != "" {
		return l.loadArchiveNativeSideLibrary(m, manifest, reader)
	}

	var bc []byte
	bc, err = reader.ExtractBytecode(RuntimeName + "." + baseName)
	if err != nil {
		bc, err = reader.ExtractBytecode(baseName)
	}
	if err != nil {
		return modulerrors.New(modulerrors.ModuleNotFound, "archive", r.Path, "no bytecode entry for "+baseName)
	}

	compiled, err := chunk.Deserialize(bc)
	if err != nil {
		return modulerrors.New(modulerrors.Corrupt, "archive", r.Path, err.Error())
	}

	if l.Config.LazyModules {
		m.Pending = compiled
		return nil
	}
	return l.runChunk(m, compiled, nil)
}

func (l *Loader) loadModFormat(m *module.Module, r Resolved) error {
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return modulerrors.New(modulerrors.IoError, "read", r.Path, err.Error())
	}
	rd, err := modfmt.Read(data)
	if err != nil {
		return err
	}
	if !modfmt.Verify(data) {
		return modulerrors.New(modulerrors.Corrupt, "modfmt", r.Path, "checksum mismatch")
	}
	m.Version = rd.Version
	compiled, err := chunk.Deserialize(rd.Bytecode)
	if err != nil {
		return modulerrors.New(modulerrors.Corrupt, "modfmt", r.Path, err.Error())
	}
	// The section-table export list only records names already filtered to
	// what the compiler marked exported, so every entry here is Public.
	var descs []chunk.ExportDescriptor
	for _, e := range rd.Exports {
		descs = append(descs, chunk.ExportDescriptor{Name: e.Name, Kind: exportKindName(e.Kind), Visibility: 1})
	}
	return l.runChunk(m, compiled, descs)
}

func (l *Loader) loadNative(m *module.Module, r Resolved) error {
	lib, err := platform.OpenLibrary(r.Path)
	if err != nil {
		return modulerrors.New(modulerrors.NativeInitFailed, "native", r.Path, err.Error())
	}

	sanitized := sanitizeSymbolName(m.Path.String())
	sym, err := lib.Symbol(fmt.Sprintf("%s_%s_module_init", RuntimeName, sanitized))
	if err != nil {
		sym, err = lib.Symbol(fmt.Sprintf("%s_module_init", RuntimeName))
	}
	if err != nil {
		return modulerrors.New(modulerrors.NativeSymbolMissing, "native", r.Path, err.Error())
	}
	initFn, ok := sym.(func(*module.Module) error)
	if !ok {
		return modulerrors.New(modulerrors.NativeSymbolMissing, "native", r.Path, "module_init has unexpected signature")
	}
	if err := initFn(m); err != nil {
		return modulerrors.New(modulerrors.NativeInitFailed, "native", r.Path, err.Error())
	}
	m.IsNative = true
	m.NativeHandle = lib
	return nil
}

func (l *Loader) loadNativeSideLibrary(m *module.Module, manifest *pkgmeta.Manifest) error {
	lib, err := platform.OpenLibrary(manifest.Native.Library)
	if err != nil {
		return modulerrors.New(modulerrors.NativeInitFailed, "native", manifest.Native.Library, err.Error())
	}
	return bindNativeExports(m, lib, manifest)
}

// loadArchiveNativeSideLibrary handles a package-metadata native side
// library that was compiled into the archive itself (native/<platform>/<lib>
// entries), rather than referenced by a local filesystem path: the library
// is extracted to a temporary file before it can be opened, and that file's
// path is tracked on the module so ReleaseResources can unlink it on unload.
func (l *Loader) loadArchiveNativeSideLibrary(m *module.Module, manifest *pkgmeta.Manifest, reader *archive.Reader) error {
	libName := manifest.Native.Library
	tmp, err := os.CreateTemp("", "quill-native-*-"+filepath.Base(libName))
	if err != nil {
		return modulerrors.New(modulerrors.IoError, "native", libName, err.Error())
	}
	tempPath := tmp.Name()
	_ = tmp.Close()

	if err := reader.ExtractNativeLib(platform.CurrentTag(), libName, tempPath); err != nil {
		_ = os.Remove(tempPath)
		return modulerrors.New(modulerrors.NativeSymbolMissing, "native", libName, err.Error())
	}

	lib, err := platform.OpenLibrary(tempPath)
	if err != nil {
		_ = os.Remove(tempPath)
		return modulerrors.New(modulerrors.NativeInitFailed, "native", libName, err.Error())
	}
	m.NativeTempPath = tempPath
	return bindNativeExports(m, lib, manifest)
}

func bindNativeExports(m *module.Module, lib *platform.NativeLibrary, manifest *pkgmeta.Manifest) error {
	for _, exp := range manifest.Exports {
		switch exp.Kind {
		case pkgmeta.ExportFunction:
			if exp.NativeSymbol == "" {
				continue
			}
			sym, err := lib.Symbol(exp.NativeSymbol)
			if err != nil {
				return modulerrors.New(modulerrors.NativeSymbolMissing, "native", exp.NativeSymbol, err.Error())
			}
			fn, ok := sym.(func([]chunk.Value) (chunk.Value, error))
			if !ok {
				return modulerrors.New(modulerrors.NativeSymbolMissing, "native", exp.NativeSymbol, "unexpected native function signature")
			}
			m.Export(exp.Name, chunk.NativeFunc(&chunk.NativeFn{Name: exp.Name, Arity: -1, Fn: fn}))
		case pkgmeta.ExportConstant:
			m.Export(exp.Name, constantToValue(exp.ConstantValue))
		}
	}
	m.IsNative = true
	m.NativeHandle = lib
	return nil
}

func constantToValue(v any) chunk.Value {
	switch t := v.(type) {
	case nil:
		return chunk.Nil()
	case bool:
		return chunk.Bool(t)
	case float64:
		return chunk.Number(t)
	case string:
		return chunk.String(t)
	default:
		return chunk.Nil()
	}
}

func exportKindName(kind byte) string {
	switch kind {
	case 0:
		return "Function"
	case 1:
		return "Variable"
	case 2:
		return "Constant"
	default:
		return "Variable"
	}
}

func sanitizeSymbolName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

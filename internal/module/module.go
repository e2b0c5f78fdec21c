// Package module defines the Module data model: the one loaded unit a
// Loader produces, caches, and eventually unloads. It holds the module's
// state machine, its scope table, its append-only export/global arrays,
// and the handles (native library, parked chunk) the loader attaches
// during load.
package module

import (
	"fmt"
	"sync"

	"github.com/sunholo/quillmod/internal/chunk"
	"github.com/sunholo/quillmod/internal/platform"
	"github.com/sunholo/quillmod/internal/strpool"
)

// State is the module's lifecycle state. It is an exhaustive tagged
// variant: every transition below is the only way to move between states,
// so an "unreachable" module state cannot be represented.
type State byte

const (
	Unloaded State = iota
	Loading
	Loaded
	Error
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "Unloaded"
	case Loading:
		return "Loading"
	case Loaded:
		return "Loaded"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// Visibility tags one export entry.
type Visibility byte

const (
	Private Visibility = 0
	Public  Visibility = 1
)

// ExportEntry is one module export: name, tagged value, visibility.
type ExportEntry struct {
	Name       string
	Value      chunk.Value
	Visibility Visibility
}

// GlobalEntry is one module-level global binding.
type GlobalEntry struct {
	Name  string
	Value chunk.Value
}

// NativeInitFn is the signature every `<runtime>_module_init`-style native
// entry point must have: it receives the module so it can populate exports
// directly.
type NativeInitFn func(m *Module) error

// Module is one loaded unit of compiled code.
type Module struct {
	Path         strpool.Interned // canonical path, interned
	AbsPath      string
	Version      string
	BundlePath   string   // opaque back-reference to the owning bundle, if any
	Dependencies []string // import specs this module referenced at compile time

	mu          platform.Mutex
	state       State
	refCount    int
	lastAccess  int64 // unix nanos, updated by the cache on Get

	scope   *Scope
	exports []ExportEntry
	globals []GlobalEntry

	// ExportsObj is the GC-owned property bag mirroring public exports,
	// rooted by the cache from creation until unload.
	ExportsObj *chunk.Object

	IsNative       bool
	NativeHandle   *platform.NativeLibrary
	NativeTempPath string
	NativeInit     NativeInitFn

	// Pending is a parked chunk awaiting lazy execution; EnsureInitialized
	// is the only path allowed to run it.
	Pending *chunk.Chunk

	initOnce sync.Once
	initErr  error
	loadErr  error
}

// New constructs a fresh Unloaded module for canonicalPath.
func New(canonicalPath strpool.Interned, absPath string) *Module {
	return &Module{
		Path:       canonicalPath,
		AbsPath:    absPath,
		state:      Unloaded,
		scope:      NewScope(),
		ExportsObj: chunk.NewObject(canonicalPath.String()),
	}
}

// State returns the module's current lifecycle state.
func (m *Module) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetState transitions the module's state, enforcing the monotonic
// invariant: Unloaded -> Loading -> {Loaded, Error}; a Loaded module may
// only return to Unloaded via an explicit unload.
func (m *Module) SetState(s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !validTransition(m.state, s) {
		return fmt.Errorf("module: invalid state transition %s -> %s for %s", m.state, s, m.Path.String())
	}
	m.state = s
	return nil
}

func validTransition(from, to State) bool {
	if from == to {
		return true
	}
	switch from {
	case Unloaded:
		return to == Loading
	case Loading:
		return to == Loaded || to == Error
	case Loaded:
		return to == Unloaded || to == Error
	case Error:
		return to == Unloaded
	default:
		return false
	}
}

// Fail transitions the module to Error and records the cause, so that a
// subsequent Load of the same spec can return the identical cached failure
// instead of retrying.
func (m *Module) Fail(cause error) error {
	if err := m.SetState(Error); err != nil {
		return err
	}
	m.mu.Lock()
	m.loadErr = cause
	m.mu.Unlock()
	return nil
}

// Err returns the cause recorded by Fail, if the module is in the Error
// state.
func (m *Module) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadErr
}

// RefCount returns the current reference count.
func (m *Module) RefCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refCount
}

// Acquire increments the reference count.
func (m *Module) Acquire() {
	m.mu.Lock()
	m.refCount++
	m.mu.Unlock()
}

// Release decrements the reference count. It never goes negative.
func (m *Module) Release() {
	m.mu.Lock()
	if m.refCount > 0 {
		m.refCount--
	}
	m.mu.Unlock()
}

// LastAccess returns the last-access timestamp (unix nanos).
func (m *Module) LastAccess() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastAccess
}

// Touch updates the last-access timestamp. Called by the cache on a hit.
func (m *Module) Touch(nanos int64) {
	m.mu.Lock()
	m.lastAccess = nanos
	m.mu.Unlock()
}

// Export upserts a public export by name and mirrors it onto ExportsObj.
func (m *Module) Export(name string, v chunk.Value) {
	m.ExportWithVisibility(name, v, Public)
}

// ExportWithVisibility upserts an export with an explicit visibility byte.
// Only Public exports are mirrored onto ExportsObj (observable from script
// code); Private exports stay in the module's own export table.
func (m *Module) ExportWithVisibility(name string, v chunk.Value, vis Visibility) {
	m.mu.Lock()
	found := false
	for i := range m.exports {
		if m.exports[i].Name == name {
			m.exports[i].Value = v
			m.exports[i].Visibility = vis
			found = true
			break
		}
	}
	if !found {
		m.exports = append(m.exports, ExportEntry{Name: name, Value: v, Visibility: vis})
	}
	m.mu.Unlock()

	if vis == Public {
		m.ExportsObj.Set(name, v)
	}
	m.scope.Set(name, v, vis == Public)
}

// Exports returns a copy of the export table in first-observation order.
func (m *Module) Exports() []ExportEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ExportEntry, len(m.exports))
	copy(out, m.exports)
	return out
}

// SetGlobal upserts a module-level global (not necessarily exported).
func (m *Module) SetGlobal(name string, v chunk.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.globals {
		if m.globals[i].Name == name {
			m.globals[i].Value = v
			return
		}
	}
	m.globals = append(m.globals, GlobalEntry{Name: name, Value: v})
}

// Globals returns a copy of the module-global table.
func (m *Module) Globals() []GlobalEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]GlobalEntry, len(m.globals))
	copy(out, m.globals)
	return out
}

// Scope exposes the module's name-lookup scope table.
func (m *Module) Scope() *Scope {
	return m.scope
}

// EnsureInitialized runs a parked (lazily-loaded) chunk exactly once. It is
// the only path that executes Pending; a second caller while the first is
// still running blocks on the same sync.Once and then observes the same
// result rather than re-entering or running the chunk a second time.
func (m *Module) EnsureInitialized(run func(*chunk.Chunk) error) error {
	m.initOnce.Do(func() {
		if m.Pending == nil {
			return
		}
		m.initErr = run(m.Pending)
		m.Pending = nil
	})
	return m.initErr
}

// ReleaseResources releases OS-owned resources this module holds (the
// extracted native temp file, if any, and the native handle) and clears
// the parked chunk, scope, export and global tables. It does not touch
// ExportsObj, which is GC-owned.
func (m *Module) ReleaseResources() {
	if m.NativeTempPath != "" {
		_ = releaseNativeTemp(m.NativeTempPath)
		m.NativeTempPath = ""
	}
	m.NativeHandle = nil
	m.Pending = nil
	m.scope = NewScope()
	m.exports = nil
	m.globals = nil
}

// Package hooks implements the module lifecycle hook registry: per-module
// callbacks (init/first_use/unload/error) plus priority-ordered global
// callbacks that bracket every module's init and unload. A single mutex
// protects both the per-module and global hook structures.
package hooks

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sunholo/quillmod/internal/module"
)

// ModuleHooks are the per-module lifecycle callbacks. OnInit returning
// false (with a nil error) aborts subsequent hooks and marks the module
// Error, same as returning a non-nil error.
type ModuleHooks struct {
	OnInit     func(m *module.Module) (bool, error)
	OnFirstUse func(m *module.Module) error
	OnUnload   func(m *module.Module)
	OnError    func(m *module.Module, cause error)
	UserData   any
}

// GlobalHooks bracket every module's init/unload, in ascending priority
// order (lower runs first).
type GlobalHooks struct {
	BeforeInit   func(m *module.Module) (bool, error)
	AfterInit    func(m *module.Module) error
	BeforeUnload func(m *module.Module)
	AfterUnload  func(m *module.Module)
	ShouldApply  func(name string) bool
	Priority     int
}

func (g GlobalHooks) applies(name string) bool {
	return g.ShouldApply == nil || g.ShouldApply(name)
}

type globalEntry struct {
	id    int
	hooks GlobalHooks
}

// Stats tracks hook registration/execution/failure counts.
type Stats struct {
	Registered int64
	Executions int64
	Failures   int64
}

// Registry owns every module-specific and global hook registration.
type Registry struct {
	mu      sync.Mutex
	perMod  map[string]ModuleHooks
	globals []globalEntry
	nextID  int32

	registered int64
	executions int64
	failures   int64
}

// NewRegistry returns an empty hook registry, constructed as an isolated
// instance rather than a package-level singleton so tests never share
// state.
func NewRegistry() *Registry {
	return &Registry{perMod: make(map[string]ModuleHooks)}
}

// SetHooks installs (or replaces) moduleName's per-module hooks.
func (r *Registry) SetHooks(moduleName string, h ModuleHooks) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.perMod[moduleName] = h
	atomic.AddInt64(&r.registered, 1)
}

// HookID identifies a registered global hook, for future removal.
type HookID int32

// RegisterGlobalHooks installs a global hook set at the given priority and
// returns a monotonically increasing hook ID.
func (r *Registry) RegisterGlobalHooks(h GlobalHooks, priority int) HookID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	h.Priority = priority
	r.globals = append(r.globals, globalEntry{id: int(id), hooks: h})
	sort.SliceStable(r.globals, func(i, j int) bool {
		return r.globals[i].hooks.Priority < r.globals[j].hooks.Priority
	})
	atomic.AddInt64(&r.registered, 1)
	return HookID(id)
}

// ScriptInitHook installs a trampoline whose OnInit looks up a named export
// on the target module and invokes it through invoke, treating a
// non-boolean or falsy result as rejection. invoke typically closes over a
// VM handle.
func ScriptInitHook(functionName string, invoke func(m *module.Module, fnName string) (bool, error)) ModuleHooks {
	return ModuleHooks{
		OnInit: func(m *module.Module) (bool, error) {
			return invoke(m, functionName)
		},
	}
}

// RunInit executes the init hook sequence for m: global BeforeInit (in
// priority order), the module-specific OnInit, then global AfterInit (in
// priority order). Any hook returning false or an error aborts the
// remaining sequence and the init is considered rejected.
func (r *Registry) RunInit(m *module.Module) error {
	name := m.Path.String()
	r.mu.Lock()
	globals := append([]globalEntry(nil), r.globals...)
	per, hasPer := r.perMod[name]
	r.mu.Unlock()

	run := func(fn func(*module.Module) (bool, error)) error {
		if fn == nil {
			return nil
		}
		atomic.AddInt64(&r.executions, 1)
		ok, err := fn(m)
		if err != nil {
			atomic.AddInt64(&r.failures, 1)
			return err
		}
		if !ok {
			atomic.AddInt64(&r.failures, 1)
			return errRejected{module: name}
		}
		return nil
	}

	for _, g := range globals {
		if !g.hooks.applies(name) {
			continue
		}
		if err := run(g.hooks.BeforeInit); err != nil {
			return err
		}
	}
	if hasPer {
		if err := run(per.OnInit); err != nil {
			return err
		}
	}
	for _, g := range globals {
		if !g.hooks.applies(name) {
			continue
		}
		if g.hooks.AfterInit == nil {
			continue
		}
		atomic.AddInt64(&r.executions, 1)
		if err := g.hooks.AfterInit(m); err != nil {
			atomic.AddInt64(&r.failures, 1)
			return err
		}
	}
	return nil
}

// RunUnload executes the unload hook sequence unconditionally: it cannot
// fail, since module-specific and global unload hooks return nothing.
func (r *Registry) RunUnload(m *module.Module) {
	name := m.Path.String()
	r.mu.Lock()
	globals := append([]globalEntry(nil), r.globals...)
	per, hasPer := r.perMod[name]
	r.mu.Unlock()

	for _, g := range globals {
		if g.hooks.applies(name) && g.hooks.BeforeUnload != nil {
			atomic.AddInt64(&r.executions, 1)
			g.hooks.BeforeUnload(m)
		}
	}
	if hasPer && per.OnUnload != nil {
		atomic.AddInt64(&r.executions, 1)
		per.OnUnload(m)
	}
	for _, g := range globals {
		if g.hooks.applies(name) && g.hooks.AfterUnload != nil {
			atomic.AddInt64(&r.executions, 1)
			g.hooks.AfterUnload(m)
		}
	}
}

// RunFirstUse invokes the module-specific first-use hook, if any. It is
// meant to be called the moment a lazily-parked module's chunk actually
// executes, not at Load time.
func (r *Registry) RunFirstUse(m *module.Module) error {
	r.mu.Lock()
	per, hasPer := r.perMod[m.Path.String()]
	r.mu.Unlock()
	if !hasPer || per.OnFirstUse == nil {
		return nil
	}
	atomic.AddInt64(&r.executions, 1)
	if err := per.OnFirstUse(m); err != nil {
		atomic.AddInt64(&r.failures, 1)
		return err
	}
	return nil
}

// RunError invokes the module-specific error hook, if any.
func (r *Registry) RunError(m *module.Module, cause error) {
	r.mu.Lock()
	per, hasPer := r.perMod[m.Path.String()]
	r.mu.Unlock()
	if hasPer && per.OnError != nil {
		atomic.AddInt64(&r.executions, 1)
		per.OnError(m, cause)
	}
}

// GetStats returns a snapshot of registration/execution/failure counters.
func (r *Registry) GetStats() Stats {
	return Stats{
		Registered: atomic.LoadInt64(&r.registered),
		Executions: atomic.LoadInt64(&r.executions),
		Failures:   atomic.LoadInt64(&r.failures),
	}
}

type errRejected struct{ module string }

func (e errRejected) Error() string { return "hooks: init hook rejected module " + e.module }

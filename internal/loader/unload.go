package loader

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sunholo/quillmod/internal/module"
)

// Unload removes spec's module from this tier's cache and runs its unload
// hooks, refusing while the module is still referenced. It does not touch
// the parent chain -- a Child loader can only unload what it loaded
// itself.
func (l *Loader) Unload(spec string) error {
	m, ok := l.Cache.Get(spec)
	if !ok {
		return fmt.Errorf("loader: %q is not loaded", spec)
	}
	if m.RefCount() > 0 {
		return fmt.Errorf("loader: %q still has %d active reference(s)", spec, m.RefCount())
	}
	return l.unloadModule(spec, m)
}

// ForceUnload unloads spec regardless of its reference count, logging a
// warning since it bypasses the normal busy-refcount check.
func (l *Loader) ForceUnload(spec string) error {
	m, ok := l.Cache.Get(spec)
	if !ok {
		return fmt.Errorf("loader: %q is not loaded", spec)
	}
	if rc := m.RefCount(); rc > 0 && l.Logger != nil {
		l.Logger.Warn("loader", "force-unloading %q with %d active reference(s)", spec, rc)
	}
	return l.unloadModule(spec, m)
}

func (l *Loader) unloadModule(spec string, m *module.Module) error {
	l.Hooks.RunUnload(m)
	if err := m.SetState(module.Unloaded); err != nil {
		return err
	}
	m.ReleaseResources()
	l.Cache.Remove(spec)
	return nil
}

// UnloadAll unloads every module this tier's cache currently holds whose
// reference count is zero, skipping (and reporting) the rest. It never
// touches the parent chain.
func (l *Loader) UnloadAll() []error {
	var errs []error
	for spec, m := range l.Cache.Snapshot() {
		if m.RefCount() > 0 {
			errs = append(errs, fmt.Errorf("loader: %q still has %d active reference(s)", spec, m.RefCount()))
			continue
		}
		if err := l.unloadModule(spec, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Prefetch loads every spec in specs concurrently, one goroutine per spec
// under an errgroup with no concurrency limit, and returns the first error encountered (if any); all loads that
// succeeded remain cached regardless of a sibling's failure.
func (l *Loader) Prefetch(specs []string, relativeTo string) error {
	var g errgroup.Group
	for _, s := range specs {
		spec := s
		g.Go(func() error {
			_, err := l.Load(spec, false, relativeTo)
			return err
		})
	}
	return g.Wait()
}

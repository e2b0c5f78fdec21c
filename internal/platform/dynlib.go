package platform

import (
	"fmt"
	"plugin"
)

// NativeLibrary wraps a loaded shared object. The stdlib plugin package is
// the only real dlopen-equivalent in the Go ecosystem (Linux/macOS only;
// plugin.Open on other platforms returns an error, which callers surface as
// NativeInitFailed) -- no third-party library in the pack wraps dlopen, so
// this stays stdlib deliberately (see DESIGN.md).
type NativeLibrary struct {
	path string
	p    *plugin.Plugin
}

// OpenLibrary loads a shared object from path.
func OpenLibrary(path string) (*NativeLibrary, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("platform: open native library %s: %w", path, err)
	}
	return &NativeLibrary{path: path, p: p}, nil
}

// Symbol looks up an exported symbol by name.
func (l *NativeLibrary) Symbol(name string) (plugin.Symbol, error) {
	sym, err := l.p.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("platform: symbol %s not found in %s: %w", name, l.path, err)
	}
	return sym, nil
}

// Path returns the path the library was loaded from.
func (l *NativeLibrary) Path() string {
	return l.path
}

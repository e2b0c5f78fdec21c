package bundle

import (
	"os"
	"path/filepath"

	"github.com/sunholo/quillmod/internal/pkgmeta"
)

// FileResolver is the default DependencyResolver: module.json lives next to
// the module source, and dependency candidates are probed under a single
// root directory by name.
type FileResolver struct {
	Root string
}

// LoadManifest reads module.json from the directory containing modulePath.
func (f *FileResolver) LoadManifest(modulePath string) (*pkgmeta.Manifest, error) {
	dir := filepath.Dir(modulePath)
	manifestPath := filepath.Join(dir, "module.json")
	if _, err := os.Stat(manifestPath); err != nil {
		return &pkgmeta.Manifest{}, nil
	}
	return pkgmeta.Load(manifestPath)
}

// ResolveCandidate probes, in order, the three fixed dependency locations:
// "modules/<name>/build/<name>.<ext>", "build/modules/<name>.<ext>", and
// "<name>.<ext>", all relative to Root. First hit wins.
func (f *FileResolver) ResolveCandidate(name, ext string) (string, bool) {
	candidates := []string{
		filepath.Join(f.Root, "modules", name, "build", name+"."+ext),
		filepath.Join(f.Root, "build", "modules", name+"."+ext),
		filepath.Join(f.Root, name+"."+ext),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

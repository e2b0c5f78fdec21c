package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sunholo/quillmod/internal/platform"
)

// NativePrefix marks a module spec that names a native shared library
// directly rather than a path to resolve against search paths, e.g.
// "native:crypto" loads libcrypto.<ext> from a native search directory.
const NativePrefix = "native:"

// Kind tags what Resolve found at a path, so Load knows which dispatcher
// to run.
type Kind byte

const (
	KindDirectory Kind = iota
	KindSource
	KindArchive
	KindModFormat
	KindNative
)

// Resolved is the outcome of resolving a module spec to a concrete path.
type Resolved struct {
	Path string
	Kind Kind
}

func nativeExts() []string {
	return []string{".so", ".dylib", ".dll"}
}

// Resolve turns spec into a concrete file or directory path plus the kind
// of container found there. relativeTo is the absolute path of the module
// doing the importing (or "" at the top level), used to anchor "./"- and
// "@"-prefixed specs.
func (l *Loader) Resolve(spec string, relativeTo string) (Resolved, error) {
	if spec == "" {
		return Resolved{}, fmt.Errorf("loader: empty module spec")
	}

	if strings.HasPrefix(spec, NativePrefix) {
		return l.resolveNative(strings.TrimPrefix(spec, NativePrefix))
	}

	if strings.HasPrefix(spec, "@") {
		return l.resolveAnchored(strings.TrimPrefix(spec, "@"), relativeTo)
	}

	if filepath.IsAbs(spec) {
		if r, ok := resolvePathKind(spec); ok {
			return r, nil
		}
		if r, ok := probeBase(spec); ok {
			return r, nil
		}
		return Resolved{}, fmt.Errorf("loader: nothing at absolute path %q", spec)
	}

	if strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") {
		return l.resolveAnchored(spec, relativeTo)
	}

	if l.Tier == TierApplication && l.PkgRegistry != nil {
		if r, ok := l.resolveFromRegistry(spec); ok {
			return r, nil
		}
	}

	dotted := strings.ReplaceAll(spec, ".", string(filepath.Separator))

	for _, sp := range l.SearchPaths {
		if r, ok := probeBase(filepath.Join(sp, dotted)); ok {
			return r, nil
		}
	}

	if r, ok := probeBase(filepath.Join(".", dotted)); ok {
		return r, nil
	}

	if r, ok := l.probeCachedInstall(dotted); ok {
		return r, nil
	}

	return Resolved{}, fmt.Errorf("loader: cannot resolve module %q", spec)
}

func (l *Loader) resolveAnchored(rel string, relativeTo string) (Resolved, error) {
	dir := "."
	if relativeTo != "" {
		dir = filepath.Dir(relativeTo)
	}
	base := filepath.Join(dir, rel)
	if r, ok := probeBase(base); ok {
		return r, nil
	}
	return Resolved{}, fmt.Errorf("loader: cannot resolve anchored module %q relative to %q", rel, relativeTo)
}

func (l *Loader) resolveNative(name string) (Resolved, error) {
	candidates := append([]string{}, l.SearchPaths...)
	candidates = append(candidates, ".")
	for _, dir := range candidates {
		for _, ext := range nativeExts() {
			p := filepath.Join(dir, "lib"+name+ext)
			if fileExists(p) {
				return Resolved{Path: p, Kind: KindNative}, nil
			}
			p = filepath.Join(dir, name+ext)
			if fileExists(p) {
				return Resolved{Path: p, Kind: KindNative}, nil
			}
		}
	}
	return Resolved{}, fmt.Errorf("loader: native module %q not found", name)
}

// resolveFromRegistry consults the Application tier's package registry: the
// spec's first path segment names a registered package, and any remaining
// segments address a file within it.
func (l *Loader) resolveFromRegistry(spec string) (Resolved, bool) {
	parts := strings.SplitN(spec, ".", 2)
	manifest, ok := l.PkgRegistry[parts[0]]
	if !ok {
		return Resolved{}, false
	}
	rest := ""
	if len(parts) == 2 {
		rest = strings.ReplaceAll(parts[1], ".", string(filepath.Separator))
	}
	roots := manifest.Paths.Modules
	if len(roots) == 0 {
		roots = []string{"."}
	}
	for _, root := range roots {
		base := root
		if rest != "" {
			base = filepath.Join(root, rest)
		}
		if r, ok := probeBase(base); ok {
			return r, true
		}
	}
	return Resolved{}, false
}

func (l *Loader) probeCachedInstall(dotted string) (Resolved, bool) {
	cacheDir := l.Config.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(platform.HomeDir(), ".quill", "cache")
	}
	installDir := filepath.Join(filepath.Dir(cacheDir), "installed")
	pattern := filepath.Join(installDir, "**", dotted+".*")
	matches, err := platform.GlobFiles(pattern)
	if err != nil {
		return Resolved{}, false
	}
	for _, m := range matches {
		if r, ok := resolvePathKind(m); ok {
			return r, true
		}
	}
	return Resolved{}, false
}

// probeBase tries base as-is (a directory, or a path that already carries
// one of the recognized extensions) and then with each recognized
// extension appended, in the order a source file is most likely to exist.
func probeBase(base string) (Resolved, bool) {
	if r, ok := resolvePathKind(base); ok {
		return r, true
	}
	for _, ext := range []string{SourceExt, ArchiveExt, ModFormatExt} {
		p := base + "." + ext
		if fileExists(p) {
			return Resolved{Path: p, Kind: extKind(ext)}, true
		}
	}
	return Resolved{}, false
}

func resolvePathKind(p string) (Resolved, bool) {
	info, err := os.Stat(p)
	if err != nil {
		return Resolved{}, false
	}
	if info.IsDir() {
		return Resolved{Path: p, Kind: KindDirectory}, true
	}
	ext := strings.TrimPrefix(filepath.Ext(p), ".")
	switch ext {
	case SourceExt:
		return Resolved{Path: p, Kind: KindSource}, true
	case ArchiveExt:
		return Resolved{Path: p, Kind: KindArchive}, true
	case ModFormatExt:
		return Resolved{Path: p, Kind: KindModFormat}, true
	}
	for _, nativeExt := range nativeExts() {
		if strings.HasSuffix(p, nativeExt) {
			return Resolved{Path: p, Kind: KindNative}, true
		}
	}
	return Resolved{}, false
}

func extKind(ext string) Kind {
	switch ext {
	case SourceExt:
		return KindSource
	case ArchiveExt:
		return KindArchive
	case ModFormatExt:
		return KindModFormat
	default:
		return KindSource
	}
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

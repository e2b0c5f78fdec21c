// Package bundle implements the application-deployment container: an
// Archive (package internal/archive) plus bundle.json summary metadata and
// manifest.json per-module records, with an Execute entry point.
package bundle

import (
	"encoding/json"
	"fmt"

	"github.com/sunholo/quillmod/internal/archive"
	"github.com/sunholo/quillmod/internal/pkgmeta"
)

// Type is the bundle's declared deployment kind.
type Type string

const (
	TypeApplication Type = "Application"
	TypeLibrary     Type = "Library"
	TypePlugin      Type = "Plugin"
)

// FormatVersion is the only bundle.json schema version this package
// recognizes.
const FormatVersion = 1

// Summary is the parsed bundle.json.
type Summary struct {
	FormatVersion    int    `json:"format_version"`
	Name             string `json:"name"`
	Version          string `json:"version"`
	Type             Type   `json:"type"`
	EntryPoint       string `json:"entry_point,omitempty"`
	CreatedAt        int64  `json:"created_at"`
	Creator          string `json:"creator,omitempty"`
	Platform         string `json:"platform,omitempty"`
	MinRuntimeVersion string `json:"min_runtime_version,omitempty"`
	ModuleCount      int    `json:"module_count"`
}

// ModuleRecord is one manifest.json entry.
type ModuleRecord struct {
	Name        string `json:"name"`
	SourcePath  string `json:"source_path,omitempty"`
	ArchivePath string `json:"archive_path"`
}

// Manifest is the parsed manifest.json: per-module records.
type Manifest struct {
	Modules []ModuleRecord `json:"modules"`
}

// pendingModule is a module staged for inclusion before Build.
type pendingModule struct {
	path       string
	bundleName string
}

// Builder accumulates modules, dependencies, and resources before writing
// the final bundle.
type Builder struct {
	summary  Summary
	modules  map[string]pendingModule // keyed by bundle name, idempotent add
	order    []string
	resolver DependencyResolver
	arc      *archive.Writer
	warnings []string
}

// DependencyResolver reads a module's manifest and probes the fixed
// candidate locations a dependency may resolve to. Implementations
// typically wrap a loader's resolve logic; a default filesystem-based
// resolver is in resolve.go.
type DependencyResolver interface {
	LoadManifest(modulePath string) (*pkgmeta.Manifest, error)
	ResolveCandidate(name, ext string) (string, bool)
}

// NewBuilder starts a bundle build.
func NewBuilder(resolver DependencyResolver) *Builder {
	return &Builder{
		modules:  map[string]pendingModule{},
		resolver: resolver,
		arc:      archive.NewWriter(),
	}
}

// SetMetadata sets the bundle.json summary fields.
func (b *Builder) SetMetadata(name, version string, typ Type, entryPoint, creator, platform, minRuntime string, createdAt int64) {
	b.summary = Summary{
		FormatVersion:     FormatVersion,
		Name:              name,
		Version:           version,
		Type:              typ,
		EntryPoint:        entryPoint,
		CreatedAt:         createdAt,
		Creator:           creator,
		Platform:          platform,
		MinRuntimeVersion: minRuntime,
	}
}

// AddModule stages a module's compiled bytecode for inclusion. Adding the
// same bundle name twice is a no-op.
func (b *Builder) AddModule(modulePath string, bundleName string, bytecode []byte) {
	if _, exists := b.modules[bundleName]; exists {
		return
	}
	b.modules[bundleName] = pendingModule{path: modulePath, bundleName: bundleName}
	b.order = append(b.order, bundleName)
	b.arc.AddBytecode(bundleName, bytecode)
}

// AddDependencies reads rootModulePath's module.json and, if recursive is
// set, resolves and stages each dependency through the fixed candidate
// list. Unresolved dependencies are skipped with a recorded warning rather
// than failing the build.
func (b *Builder) AddDependencies(rootModulePath string, recursive bool, loadBytecode func(resolvedPath string) ([]byte, error)) error {
	m, err := b.resolver.LoadManifest(rootModulePath)
	if err != nil {
		return fmt.Errorf("bundle: load manifest for %s: %w", rootModulePath, err)
	}
	for _, dep := range m.Dependencies {
		if _, ok := b.modules[dep.Name]; ok {
			continue
		}
		candidate, found := b.resolver.ResolveCandidate(dep.Name, "ql")
		if !found {
			b.warnings = append(b.warnings, fmt.Sprintf("unresolved dependency %q, skipped", dep.Name))
			continue
		}
		bc, err := loadBytecode(candidate)
		if err != nil {
			b.warnings = append(b.warnings, fmt.Sprintf("dependency %q failed to compile: %v", dep.Name, err))
			continue
		}
		b.AddModule(candidate, dep.Name, bc)
		if recursive {
			if err := b.AddDependencies(candidate, recursive, loadBytecode); err != nil {
				b.warnings = append(b.warnings, err.Error())
			}
		}
	}
	return nil
}

// AddResource stores an arbitrary resource file.
func (b *Builder) AddResource(name string, data []byte) {
	b.arc.AddResource(name, data)
}

// Warnings returns unresolved-dependency warnings accumulated so far.
func (b *Builder) Warnings() []string {
	return b.warnings
}

// Build finalizes the archive, writing bundle.json and manifest.json at
// the archive root alongside the bytecode/ and resources/ entries already
// staged.
func (b *Builder) Build() ([]byte, error) {
	b.summary.ModuleCount = len(b.order)
	summaryJSON, err := json.Marshal(b.summary)
	if err != nil {
		return nil, err
	}
	b.arc.AddEntry("bundle.json", summaryJSON)

	manifest := Manifest{}
	for _, name := range b.order {
		pm := b.modules[name]
		manifest.Modules = append(manifest.Modules, ModuleRecord{
			Name:        name,
			SourcePath:  pm.path,
			ArchivePath: archive.BytecodeEntry(name),
		})
	}
	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return nil, err
	}
	b.arc.AddEntry("manifest.json", manifestJSON)

	return b.arc.Finalize()
}

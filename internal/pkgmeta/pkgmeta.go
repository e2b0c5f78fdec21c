// Package pkgmeta parses module.json package manifests: name, version,
// type, exports, dependencies, and optional native side-library hints.
package pkgmeta

import (
	"encoding/json"
	"fmt"
	"os"
)

// ModuleType is the manifest's declared module kind.
type ModuleType string

const (
	TypeLibrary     ModuleType = "library"
	TypeApplication ModuleType = "application"
	TypeNative      ModuleType = "native"
)

// ExportKind tags what kind of binding an export descriptor refers to.
type ExportKind string

const (
	ExportFunction ExportKind = "Function"
	ExportVariable ExportKind = "Variable"
	ExportConstant ExportKind = "Constant"
	ExportClass    ExportKind = "Class"
	ExportStruct   ExportKind = "Struct"
	ExportTrait    ExportKind = "Trait"
)

// Export is one export descriptor from the manifest's "exports" map.
type Export struct {
	Name          string     `json:"-"`
	Kind          ExportKind `json:"type"`
	Signature     string     `json:"signature,omitempty"`
	NativeSymbol  string     `json:"native,omitempty"`
	ConstantValue any        `json:"value,omitempty"`
}

// Dependency is one dependency descriptor from the manifest's
// "dependencies" map: either a version requirement or a path locator.
type Dependency struct {
	Name    string `json:"-"`
	Version string `json:"-"`
	Path    string `json:"-"`
}

// NativeSpec carries the native side-library build/load hints.
type NativeSpec struct {
	Source  string `json:"source,omitempty"`
	Header  string `json:"header,omitempty"`
	Library string `json:"library,omitempty"`
}

// Manifest is the parsed module.json.
type Manifest struct {
	Name         string                `json:"name"`
	Version      string                `json:"version"`
	Description  string                `json:"description,omitempty"`
	Type         ModuleType            `json:"type,omitempty"`
	MainFile     string                `json:"main_file,omitempty"`
	Exports      []Export              `json:"-"`
	Dependencies []Dependency          `json:"-"`
	Native       *NativeSpec           `json:"native,omitempty"`
	Paths        struct {
		Modules []string `json:"modules,omitempty"`
	} `json:"paths,omitempty"`
}

// wireManifest mirrors the on-disk JSON shape (exports/dependencies as
// maps) before being flattened into the ordered slices Manifest exposes.
type wireManifest struct {
	Name         string                     `json:"name"`
	Version      string                     `json:"version"`
	Description  string                     `json:"description,omitempty"`
	Type         ModuleType                 `json:"type,omitempty"`
	MainFile     string                     `json:"main_file,omitempty"`
	Exports      map[string]Export          `json:"exports,omitempty"`
	Dependencies map[string]json.RawMessage `json:"dependencies,omitempty"`
	Native       *NativeSpec                `json:"native,omitempty"`
	Paths        struct {
		Modules []string `json:"modules,omitempty"`
	} `json:"paths,omitempty"`
}

// Parse parses manifest JSON bytes.
func Parse(data []byte) (*Manifest, error) {
	var w wireManifest
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("pkgmeta: invalid module.json: %w", err)
	}
	if w.Name == "" {
		return nil, fmt.Errorf("pkgmeta: module.json missing required field \"name\"")
	}

	m := &Manifest{
		Name:        w.Name,
		Version:     w.Version,
		Description: w.Description,
		Type:        w.Type,
		MainFile:    w.MainFile,
		Native:      w.Native,
		Paths:       w.Paths,
	}

	for name, exp := range w.Exports {
		exp.Name = name
		m.Exports = append(m.Exports, exp)
	}
	for name, raw := range w.Dependencies {
		dep := Dependency{Name: name}
		var asString string
		if err := json.Unmarshal(raw, &asString); err == nil {
			if len(asString) > 0 && (asString[0] == '.' || asString[0] == '/') {
				dep.Path = asString
			} else {
				dep.Version = asString
			}
			m.Dependencies = append(m.Dependencies, dep)
			continue
		}
		var asObj struct {
			Version string `json:"version"`
			Path    string `json:"path"`
		}
		if err := json.Unmarshal(raw, &asObj); err == nil {
			dep.Version = asObj.Version
			dep.Path = asObj.Path
			m.Dependencies = append(m.Dependencies, dep)
		}
	}
	return m, nil
}

// Load reads and parses module.json from path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pkgmeta: %w", err)
	}
	return Parse(data)
}

// FindExport looks up an export by name.
func (m *Manifest) FindExport(name string) (Export, bool) {
	for _, e := range m.Exports {
		if e.Name == name {
			return e, true
		}
	}
	return Export{}, false
}

// FindDependency looks up a dependency by name.
func (m *Manifest) FindDependency(name string) (Dependency, bool) {
	for _, d := range m.Dependencies {
		if d.Name == name {
			return d, true
		}
	}
	return Dependency{}, false
}

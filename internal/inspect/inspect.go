// Package inspect builds the read-only introspection surface over a
// loader: per-module summaries, dependency edges, aggregate statistics,
// glob-based search, and serialization to JSON/YAML, plus a Prometheus
// collector for the same counters.
package inspect

import (
	"encoding/json"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/sunholo/quillmod/internal/hooks"
	"github.com/sunholo/quillmod/internal/loader"
	"github.com/sunholo/quillmod/internal/module"
	"github.com/sunholo/quillmod/internal/platform"
)

// ExportSummary is one exported binding, as reported to an inspector.
type ExportSummary struct {
	Name       string `json:"name" yaml:"name"`
	Visibility string `json:"visibility" yaml:"visibility"`
	Type       string `json:"type" yaml:"type"`
}

// ModuleSummary is everything an inspector reports about a single loaded
// module.
type ModuleSummary struct {
	Path       string          `json:"path" yaml:"path"`
	AbsPath    string          `json:"abs_path,omitempty" yaml:"abs_path,omitempty"`
	Version    string          `json:"version,omitempty" yaml:"version,omitempty"`
	State      string          `json:"state" yaml:"state"`
	RefCount   int             `json:"ref_count" yaml:"ref_count"`
	IsNative   bool            `json:"is_native" yaml:"is_native"`
	LastAccess int64           `json:"last_access" yaml:"last_access"`
	Exports    []ExportSummary `json:"exports" yaml:"exports"`
}

// Stats aggregates counters pulled from the cache and hook registry.
type Stats struct {
	LoadedModules int    `json:"loaded_modules" yaml:"loaded_modules"`
	CacheHits     uint64 `json:"cache_hits" yaml:"cache_hits"`
	CacheMisses   uint64 `json:"cache_misses" yaml:"cache_misses"`
	CacheEvicts   uint64 `json:"cache_evictions" yaml:"cache_evictions"`
	HooksRun      int64  `json:"hooks_run" yaml:"hooks_run"`
	HookFailures  int64  `json:"hook_failures" yaml:"hook_failures"`
}

// Inspector reports on one loader tier without mutating anything it reads.
type Inspector struct {
	l *loader.Loader
}

// New wraps l for introspection.
func New(l *loader.Loader) *Inspector {
	return &Inspector{l: l}
}

func summarize(path string, m *module.Module) ModuleSummary {
	var exports []ExportSummary
	for _, e := range m.Exports() {
		vis := "private"
		if e.Visibility == module.Public {
			vis = "public"
		}
		exports = append(exports, ExportSummary{Name: e.Name, Visibility: vis, Type: e.Value.TypeName()})
	}
	sort.Slice(exports, func(i, j int) bool { return exports[i].Name < exports[j].Name })
	return ModuleSummary{
		Path:       path,
		AbsPath:    m.AbsPath,
		Version:    m.Version,
		State:      m.State().String(),
		RefCount:   m.RefCount(),
		IsNative:   m.IsNative,
		LastAccess: m.LastAccess(),
		Exports:    exports,
	}
}

// Modules lists every module currently cached at this tier, sorted by path.
func (i *Inspector) Modules() []ModuleSummary {
	var out []ModuleSummary
	i.l.Cache.Iterate(func(path string, m *module.Module) {
		out = append(out, summarize(path, m))
	})
	sort.Slice(out, func(a, b int) bool { return out[a].Path < out[b].Path })
	return out
}

// Module looks up one module summary by path.
func (i *Inspector) Module(path string) (ModuleSummary, bool) {
	m, ok := i.l.Cache.Get(path)
	if !ok {
		return ModuleSummary{}, false
	}
	return summarize(path, m), true
}

// Search returns every cached module whose path matches the doublestar
// glob pattern.
func (i *Inspector) Search(pattern string) ([]ModuleSummary, error) {
	var out []ModuleSummary
	var firstErr error
	i.l.Cache.Iterate(func(path string, m *module.Module) {
		if firstErr != nil {
			return
		}
		matched, err := platform.Glob(pattern, path)
		if err != nil {
			firstErr = err
			return
		}
		if matched {
			out = append(out, summarize(path, m))
		}
	})
	if firstErr != nil {
		return nil, firstErr
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Path < out[b].Path })
	return out, nil
}

// Statistics aggregates cache and hook counters for this tier.
func (i *Inspector) Statistics() Stats {
	cacheStats := i.l.Cache.GetStats()
	var hooksRun, hookFailures int64
	if i.l.Hooks != nil {
		hs := i.l.Hooks.GetStats()
		hooksRun, hookFailures = hs.Executions, hs.Failures
	}
	return Stats{
		LoadedModules: cacheStats.Size,
		CacheHits:     cacheStats.Hits,
		CacheMisses:   cacheStats.Misses,
		CacheEvicts:   cacheStats.Evictions,
		HooksRun:      hooksRun,
		HookFailures:  hookFailures,
	}
}

// ToJSON renders summaries as indented JSON.
func ToJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ToYAML renders summaries as YAML.
func ToYAML(v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

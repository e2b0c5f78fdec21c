package inspect

import (
	"sort"

	"github.com/sunholo/quillmod/internal/module"
)

// Edge is one dependency edge: From imports To.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Dependencies reports every import edge recorded across this tier's
// cached modules.
func (i *Inspector) Dependencies() []Edge {
	var edges []Edge
	i.l.Cache.Iterate(func(path string, m *module.Module) {
		for _, dep := range m.Dependencies {
			edges = append(edges, Edge{From: path, To: dep})
		}
	})
	sort.Slice(edges, func(a, b int) bool {
		if edges[a].From != edges[b].From {
			return edges[a].From < edges[b].From
		}
		return edges[a].To < edges[b].To
	})
	return edges
}

// DependentsOf returns every cached module that directly depends on target.
func (i *Inspector) DependentsOf(target string) []string {
	var out []string
	i.l.Cache.Iterate(func(path string, m *module.Module) {
		for _, dep := range m.Dependencies {
			if dep == target {
				out = append(out, path)
				break
			}
		}
	})
	sort.Strings(out)
	return out
}

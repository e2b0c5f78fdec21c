package bundle

import (
	"encoding/json"
	"fmt"

	"github.com/sunholo/quillmod/internal/archive"
	"github.com/sunholo/quillmod/internal/chunk"
	"github.com/sunholo/quillmod/internal/vm"
)

// Bundle wraps an opened archive together with its bundle.json summary and
// manifest.json module records.
type Bundle struct {
	Summary  Summary
	Manifest Manifest
	reader   *archive.Reader
}

// Open reads a finalized bundle's bundle.json and manifest.json.
func Open(data []byte) (*Bundle, error) {
	r, err := archive.OpenReader(data)
	if err != nil {
		return nil, fmt.Errorf("bundle: %w", err)
	}
	summaryJSON, err := r.ExtractEntry("bundle.json")
	if err != nil {
		return nil, fmt.Errorf("bundle: missing bundle.json: %w", err)
	}
	var summary Summary
	if err := json.Unmarshal(summaryJSON, &summary); err != nil {
		return nil, fmt.Errorf("bundle: invalid bundle.json: %w", err)
	}
	manifestJSON, err := r.ExtractEntry("manifest.json")
	if err != nil {
		return nil, fmt.Errorf("bundle: missing manifest.json: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(manifestJSON, &manifest); err != nil {
		return nil, fmt.Errorf("bundle: invalid manifest.json: %w", err)
	}
	return &Bundle{Summary: summary, Manifest: manifest, reader: r}, nil
}

// Module returns a bundled module's compiled bytecode by name.
func (b *Bundle) Module(name string) ([]byte, error) {
	return b.reader.ExtractBytecode(name)
}

// Names lists every bundled module in build order.
func (b *Bundle) Names() []string {
	names := make([]string, 0, len(b.Manifest.Modules))
	for _, m := range b.Manifest.Modules {
		names = append(names, m.Name)
	}
	return names
}

// ExecResult is what Execute returns: the process-style exit code together
// with any warnings emitted along the way. A bundle with no entry point
// exits 0 with a warning rather than failing.
type ExecResult struct {
	ExitCode int
	Warnings []string
}

// Execute runs the entry point's module in a fresh VM and invokes its
// "main" export; other bundled modules run only when an import reaches
// them. A bundle with no entry point runs all its modules for
// side effects and returns exit code 0 with a warning. "main" returning a
// non-number value is treated as exit code 0.
func Execute(data []byte, stdout func(string)) (ExecResult, error) {
	b, err := Open(data)
	if err != nil {
		return ExecResult{}, err
	}

	machine := vm.New()
	if stdout != nil {
		machine.Stdout = stdout
	}

	loaded := map[string]*chunk.Object{}
	var loadErr error
	machine.Import = func(spec string) (*chunk.Object, error) {
		if obj, ok := loaded[spec]; ok {
			return obj, nil
		}
		bc, err := b.Module(spec)
		if err != nil {
			return nil, fmt.Errorf("bundle: import %q: %w", spec, err)
		}
		c, err := chunk.Deserialize(bc)
		if err != nil {
			return nil, fmt.Errorf("bundle: import %q: %w", spec, err)
		}
		sub := vm.New()
		sub.Import = machine.Import
		sub.Stdout = machine.Stdout
		if err := sub.Interpret(c); err != nil {
			return nil, fmt.Errorf("bundle: import %q: %w", spec, err)
		}
		loaded[spec] = sub.Globals
		return sub.Globals, nil
	}

	if b.Summary.EntryPoint == "" {
		for _, name := range b.Names() {
			if _, err := machine.Import(name); err != nil {
				loadErr = err
				break
			}
		}
		if loadErr != nil {
			return ExecResult{}, loadErr
		}
		return ExecResult{ExitCode: 0, Warnings: []string{"bundle has no entry_point; modules loaded for side effects only"}}, nil
	}

	entryBC, err := b.Module(b.Summary.EntryPoint)
	if err != nil {
		return ExecResult{}, fmt.Errorf("bundle: entry point %q: %w", b.Summary.EntryPoint, err)
	}
	entryChunk, err := chunk.Deserialize(entryBC)
	if err != nil {
		return ExecResult{}, fmt.Errorf("bundle: entry point %q: %w", b.Summary.EntryPoint, err)
	}
	if err := machine.Interpret(entryChunk); err != nil {
		return ExecResult{}, fmt.Errorf("bundle: entry point %q: %w", b.Summary.EntryPoint, err)
	}
	loaded[b.Summary.EntryPoint] = machine.Globals

	mainFn, ok := machine.Globals.Get("main")
	if !ok {
		return ExecResult{ExitCode: 0, Warnings: []string{fmt.Sprintf("entry point %q has no main export", b.Summary.EntryPoint)}}, nil
	}
	result, err := machine.CallValue(mainFn, nil)
	if err != nil {
		return ExecResult{}, fmt.Errorf("bundle: main: %w", err)
	}
	if result.Kind != chunk.KindNumber {
		return ExecResult{ExitCode: 0}, nil
	}
	return ExecResult{ExitCode: int(result.Num)}, nil
}

// Package errors provides the structured error report used across the
// module subsystem, adapted from the same Report/ReportError pattern used
// elsewhere in this codebase's error handling, repurposed to the module
// subsystem's own error kinds instead of parser/typechecker codes.
package errors

import (
	"encoding/json"
	stderrors "errors"
)

// Kind enumerates the module subsystem's error kinds. These are kinds, not
// Go type names -- every Kind is carried by the single Report type below.
type Kind string

const (
	ModuleNotFound               Kind = "ModuleNotFound"
	InvalidFormat                Kind = "InvalidFormat"
	UnsupportedVersion           Kind = "UnsupportedVersion"
	Truncated                    Kind = "Truncated"
	Corrupt                      Kind = "Corrupt"
	ParseError                   Kind = "ParseError"
	CompileError                 Kind = "CompileError"
	LoadExecutionFailed          Kind = "LoadExecutionFailed"
	CircularDependency           Kind = "CircularDependency"
	NativeSymbolMissing          Kind = "NativeSymbolMissing"
	NativeInitFailed             Kind = "NativeInitFailed"
	VersionRequirementUnsatisfied Kind = "VersionRequirementUnsatisfied"
	HookRejected                 Kind = "HookRejected"
	IoError                      Kind = "IoError"
)

// Report is the canonical structured error type for this codebase.
type Report struct {
	Schema  string         `json:"schema"`
	Kind    Kind           `json:"kind"`
	Phase   string         `json:"phase"`
	Module  string         `json:"module,omitempty"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// ReportError wraps a Report so it survives errors.As() unwrapping.
type ReportError struct {
	Rep *Report
}

func (e *ReportError) Error() string {
	if e.Rep == nil {
		return "unknown module error"
	}
	if e.Rep.Module != "" {
		return string(e.Rep.Kind) + " (" + e.Rep.Module + "): " + e.Rep.Message
	}
	return string(e.Rep.Kind) + ": " + e.Rep.Message
}

// New builds a Report and wraps it as an error.
func New(kind Kind, phase, module, message string) error {
	return &ReportError{Rep: &Report{
		Schema:  "quillmod.error/v1",
		Kind:    kind,
		Phase:   phase,
		Module:  module,
		Message: message,
	}}
}

// Newf is like New but attaches structured data (e.g. expected/actual
// values for a corrupt-checksum report).
func Newf(kind Kind, phase, module, message string, data map[string]any) error {
	return &ReportError{Rep: &Report{
		Schema:  "quillmod.error/v1",
		Kind:    kind,
		Phase:   phase,
		Module:  module,
		Message: message,
		Data:    data,
	}}
}

// AsReport extracts a *Report from an error chain.
func AsReport(err error) (*Report, bool) {
	var re *ReportError
	if stderrors.As(err, &re) {
		return re.Rep, true
	}
	return nil, false
}

// KindOf reports the Kind carried by err, or "" if err does not wrap a
// Report.
func KindOf(err error) Kind {
	if r, ok := AsReport(err); ok {
		return r.Kind
	}
	return ""
}

// Is reports whether err carries the given Kind -- the usual call shape is
// errors.Is(err, errors.ModuleNotFound) but Kind is a string type, not an
// error, so this helper spells that check directly.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ToJSON renders the Report as deterministic JSON.
func (r *Report) ToJSON() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

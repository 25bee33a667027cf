// Package parser dispatches files to language-specific discovery extractors
// and walks repositories into flat discovery streams (spec.md §4.2, §4.3).
package parser

import "github.com/garrettyarmo/forge-sub000/internal/discovery"

// LanguageParser is the contract every concrete language parser satisfies.
// Mirrors the polymorphic CodeParser contract this system's CLI ancestor
// uses for its own AST-to-fact pipeline: SupportedExtensions + ParseFile is
// the only place dynamic dispatch is natural in this design (spec.md §9).
type LanguageParser interface {
	// SupportedExtensions returns the file suffixes this parser handles,
	// including the leading dot.
	SupportedExtensions() []string

	// ParseFile is a pure function: the same (path, content) always
	// produces the same discoveries. No I/O, no mutation of shared state.
	ParseFile(path string, content []byte) ([]discovery.Discovery, error)

	// Language returns the short language identifier (e.g. "javascript",
	// "python", "terraform", "cloudformation").
	Language() string
}

// FileError records a non-fatal per-file parse failure (spec.md §4.2:
// "Parse errors of individual files are non-fatal").
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return e.Path + ": " + e.Err.Error() }

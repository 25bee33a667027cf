package parser

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/garrettyarmo/forge-sub000/internal/discovery"
	"github.com/garrettyarmo/forge-sub000/internal/logging"
)

// denylist is excluded from every repo walk (spec.md §4.2).
var denylist = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	".terraform":   true,
}

// Registry owns one LanguageParser instance per supported language and
// routes by file extension, or by exact basename for manifest files that
// carry no distinguishing extension (package.json, pyproject.toml) (spec.md
// §4.3).
type Registry struct {
	mu       sync.RWMutex
	byExt    map[string]LanguageParser
	byName   map[string]LanguageParser
	sniffers []contentSniffer
	parsers  []LanguageParser
}

// contentSniffer routes a file to parser based on its content rather than
// its name, restricted to a candidate extension set so every file in a repo
// doesn't need reading just to be ruled out. Grounded on spec.md §4.2's
// CloudFormation/SAM rule: "only those [YAML/JSON documents] containing an
// AWSTemplateFormatVersion root key".
type contentSniffer struct {
	exts   map[string]bool
	match  func([]byte) bool
	parser LanguageParser
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]LanguageParser), byName: make(map[string]LanguageParser)}
}

// RegisterSniffer binds parser to any file whose extension is in exts and
// whose content satisfies match.
func (r *Registry) RegisterSniffer(exts []string, match func([]byte) bool, p LanguageParser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		set[normalizeExt(e)] = true
	}
	r.sniffers = append(r.sniffers, contentSniffer{exts: set, match: match, parser: p})
	r.parsers = append(r.parsers, p)
}

// Register adds parser for all of its SupportedExtensions.
func (r *Registry) Register(p LanguageParser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers = append(r.parsers, p)
	for _, ext := range p.SupportedExtensions() {
		r.byExt[normalizeExt(ext)] = p
	}
}

// RegisterManifest binds parser to an exact filename (e.g. "package.json")
// that carries no language-distinguishing extension of its own.
func (r *Registry) RegisterManifest(filename string, p LanguageParser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[filename] = p
}

// ForExtension returns the parser registered for ext, or nil.
func (r *Registry) ForExtension(ext string) LanguageParser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byExt[normalizeExt(ext)]
}

// ForPath returns the parser registered for path's basename or extension,
// basename taking priority (a manifest filename is more specific than its
// generic .json/.toml extension).
func (r *Registry) ForPath(path string) LanguageParser {
	r.mu.RLock()
	if p, ok := r.byName[filepath.Base(path)]; ok {
		r.mu.RUnlock()
		return p
	}
	r.mu.RUnlock()
	return r.ForExtension(filepath.Ext(path))
}

// ForLanguage returns the first registered parser claiming that language tag.
func (r *Registry) ForLanguage(lang string) LanguageParser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.parsers {
		if p.Language() == lang {
			return p
		}
	}
	return nil
}

// Parsers returns every registered parser, in registration order.
func (r *Registry) Parsers() []LanguageParser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]LanguageParser, len(r.parsers))
	copy(out, r.parsers)
	return out
}

func (r *Registry) hasSniffCandidate(path string) bool {
	ext := normalizeExt(filepath.Ext(path))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sniffers {
		if s.exts[ext] {
			return true
		}
	}
	return false
}

func (r *Registry) sniff(path string, content []byte) LanguageParser {
	ext := normalizeExt(filepath.Ext(path))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sniffers {
		if s.exts[ext] && s.match(content) {
			return s.parser
		}
	}
	return nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// WalkResult aggregates a repo walk's output: the flat discovery stream plus
// any non-fatal per-file errors encountered along the way.
type WalkResult struct {
	Discoveries []discovery.Discovery
	Errors      []FileError
	FilesParsed int
}

// ParseRepo walks root (bounded only by the denylist, unbounded depth),
// dispatching each file with a registered extension to its parser. Discovery
// ordering within one file is preserved; no ordering guarantee holds across
// files (spec.md §5).
func (r *Registry) ParseRepo(root string) (*WalkResult, error) {
	result := &WalkResult{}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // non-fatal: skip unreadable entries, continue walk
		}
		if d.IsDir() {
			if denylist[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if isDeniedFile(path) {
			return nil
		}
		discs, parsed, parseErr := r.parseOne(path)
		if parseErr != nil {
			logging.ParserWarn("parse failed for %s: %v", path, parseErr)
			result.Errors = append(result.Errors, FileError{Path: path, Err: parseErr})
			return nil
		}
		if parsed {
			result.Discoveries = append(result.Discoveries, discs...)
			result.FilesParsed++
		}
		return nil
	})
	return result, err
}

func isDeniedFile(path string) bool {
	return strings.HasSuffix(path, ".tfvars") || strings.HasSuffix(path, ".tfstate")
}

// ParseOne dispatches a single file by path, reading and parsing it if a
// registered parser or content sniffer claims it. It returns (nil, nil) for
// a file no parser recognizes, letting callers that already know which files
// changed (the incremental survey driver, working from a git diff) skip a
// full repository walk.
func (r *Registry) ParseOne(path string) ([]discovery.Discovery, error) {
	if isDeniedFile(path) {
		return nil, nil
	}
	discs, _, err := r.parseOne(path)
	return discs, err
}

func (r *Registry) parseOne(path string) ([]discovery.Discovery, bool, error) {
	p := r.ForPath(path)
	if p == nil && !r.hasSniffCandidate(path) {
		return nil, false, nil
	}
	content, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, false, readErr
	}
	if p == nil {
		p = r.sniff(path, content)
		if p == nil {
			return nil, false, nil
		}
	}
	discs, parseErr := p.ParseFile(path, content)
	if parseErr != nil {
		return nil, false, parseErr
	}
	return discs, true, nil
}

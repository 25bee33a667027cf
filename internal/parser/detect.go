package parser

import (
	"os"
	"path/filepath"
	"strings"
)

// Detection records a detected language and the confidence that backed it.
type Detection struct {
	Language   string
	Confidence float64
}

const maxDetectDepth = 3

// signatureFiles maps a language tag to config filenames that, if present
// anywhere within maxDetectDepth, signal presence at confidence 0.9.
var signatureFiles = map[string][]string{
	"javascript": {"package.json"},
	"python":     {"pyproject.toml", "setup.py", "requirements.txt", "Pipfile"},
}

// extensionLanguages maps a language tag to the extensions counted toward
// the "≥3 files" confidence-0.7 fallback rule.
var extensionLanguages = map[string][]string{
	"javascript": {".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx"},
	"python":     {".py"},
}

// DetectLanguages walks root to maxDetectDepth (excluding the denylist) and
// returns every language present per spec.md §4.3: a signature file at
// confidence 0.9, or ≥3 extension-matching files at confidence 0.7.
// Terraform and CloudFormation are detected structurally (any .tf file, or
// a YAML/JSON document with an AWSTemplateFormatVersion key) rather than by
// extension count, since a single file of either is decisive.
func DetectLanguages(root string) (map[string]Detection, error) {
	detected := make(map[string]Detection)
	extCounts := make(map[string]int)
	hasTF := false
	cfnCandidates := []string{}

	err := walkBounded(root, maxDetectDepth, func(path string, name string) {
		lower := strings.ToLower(name)
		for lang, sigs := range signatureFiles {
			for _, sig := range sigs {
				if lower == strings.ToLower(sig) {
					bumpConfidence(detected, lang, 0.9)
				}
			}
		}
		ext := strings.ToLower(filepath.Ext(name))
		for lang, exts := range extensionLanguages {
			for _, e := range exts {
				if ext == e {
					extCounts[lang]++
				}
			}
		}
		if ext == ".tf" {
			hasTF = true
		}
		if ext == ".yaml" || ext == ".yml" || ext == ".json" {
			cfnCandidates = append(cfnCandidates, path)
		}
	})
	if err != nil {
		return nil, err
	}
	for lang, count := range extCounts {
		if count >= 3 {
			bumpConfidence(detected, lang, 0.7)
		}
	}
	if hasTF {
		bumpConfidence(detected, "terraform", 0.9)
	}
	for _, path := range cfnCandidates {
		if looksLikeCloudFormation(path) {
			bumpConfidence(detected, "cloudformation", 0.9)
			break
		}
	}
	return detected, nil
}

func bumpConfidence(m map[string]Detection, lang string, confidence float64) {
	existing, ok := m[lang]
	if !ok || confidence > existing.Confidence {
		m[lang] = Detection{Language: lang, Confidence: confidence}
	}
}

func walkBounded(root string, maxDepth int, visit func(path, name string)) error {
	rootDepth := strings.Count(filepath.Clean(root), string(filepath.Separator))
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		depth := strings.Count(filepath.Clean(path), string(filepath.Separator)) - rootDepth
		if d.IsDir() {
			if denylist[d.Name()] {
				return filepath.SkipDir
			}
			if depth > maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if depth > maxDepth {
			return nil
		}
		visit(path, d.Name())
		return nil
	})
}

// looksLikeCloudFormation does a cheap textual scan for the
// AWSTemplateFormatVersion root key without fully parsing the document,
// mirroring spec.md §4.2's CloudFormation/SAM trigger condition.
func looksLikeCloudFormation(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), "AWSTemplateFormatVersion")
}

// ExcludeLanguages removes excluded language tags from detected, returning
// the filtered set of language tags that should actually run (spec.md §4.3).
func ExcludeLanguages(detected map[string]Detection, exclude []string) []string {
	excludeSet := make(map[string]bool, len(exclude))
	for _, l := range exclude {
		excludeSet[strings.ToLower(l)] = true
	}
	var out []string
	for lang := range detected {
		if !excludeSet[lang] {
			out = append(out, lang)
		}
	}
	return out
}

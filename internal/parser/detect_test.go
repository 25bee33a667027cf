package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectLanguagesSignatureFileWinsAtHighConfidence(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "package.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.js"), []byte("1"), 0o644))

	detected, err := DetectLanguages(root)
	require.NoError(t, err)
	require.Equal(t, 0.9, detected["javascript"].Confidence)
}

func TestDetectLanguagesExtensionCountFallback(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.py", "b.py", "c.py"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x=1"), 0o644))
	}

	detected, err := DetectLanguages(root)
	require.NoError(t, err)
	require.Equal(t, 0.7, detected["python"].Confidence)
}

func TestDetectLanguagesBelowThresholdIsAbsent(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.py", "b.py"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x=1"), 0o644))
	}

	detected, err := DetectLanguages(root)
	require.NoError(t, err)
	_, ok := detected["python"]
	require.False(t, ok)
}

func TestDetectLanguagesTerraformByExtension(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.tf"), []byte("resource \"x\" \"y\" {}"), 0o644))

	detected, err := DetectLanguages(root)
	require.NoError(t, err)
	require.Equal(t, 0.9, detected["terraform"].Confidence)
}

func TestDetectLanguagesCloudFormationBySniff(t *testing.T) {
	root := t.TempDir()
	src := "AWSTemplateFormatVersion: '2010-09-09'\nResources: {}\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "template.yaml"), []byte(src), 0o644))

	detected, err := DetectLanguages(root)
	require.NoError(t, err)
	require.Equal(t, 0.9, detected["cloudformation"].Confidence)
}

func TestDetectLanguagesRespectsMaxDepth(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "a", "b", "c", "d", "e")
	require.NoError(t, os.MkdirAll(deep, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(deep, "package.json"), []byte("{}"), 0o644))

	detected, err := DetectLanguages(root)
	require.NoError(t, err)
	_, ok := detected["javascript"]
	require.False(t, ok, "signature file beyond maxDetectDepth should not be found")
}

func TestExcludeLanguagesFiltersCaseInsensitively(t *testing.T) {
	detected := map[string]Detection{
		"python":     {Language: "python", Confidence: 0.9},
		"javascript": {Language: "javascript", Confidence: 0.9},
	}
	out := ExcludeLanguages(detected, []string{"Python"})
	require.Equal(t, []string{"javascript"}, out)
}

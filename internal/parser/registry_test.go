package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/garrettyarmo/forge-sub000/internal/discovery"
)

type stubParser struct {
	lang  string
	exts  []string
	calls int
}

func (p *stubParser) SupportedExtensions() []string { return p.exts }
func (p *stubParser) Language() string              { return p.lang }
func (p *stubParser) ParseFile(path string, content []byte) ([]discovery.Discovery, error) {
	p.calls++
	return []discovery.Discovery{}, nil
}

func TestForPathPrefersManifestOverExtension(t *testing.T) {
	r := NewRegistry()
	byExt := &stubParser{lang: "json-generic", exts: []string{".json"}}
	byName := &stubParser{lang: "javascript", exts: []string{".json"}}
	r.Register(byExt)
	r.RegisterManifest("package.json", byName)

	require.Equal(t, byName, r.ForPath("repo/package.json"))
	require.Equal(t, byExt, r.ForPath("repo/tsconfig.json"))
}

func TestForLanguageReturnsFirstMatch(t *testing.T) {
	r := NewRegistry()
	py := &stubParser{lang: "python", exts: []string{".py"}}
	r.Register(py)
	require.Equal(t, py, r.ForLanguage("python"))
	require.Nil(t, r.ForLanguage("ruby"))
}

func TestParseRepoSkipsDenylistedDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "ignored.py"), []byte("x=1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.py"), []byte("x=1"), 0o644))

	py := &stubParser{lang: "python", exts: []string{".py"}}
	r := NewRegistry()
	r.Register(py)

	res, err := r.ParseRepo(root)
	require.NoError(t, err)
	require.Equal(t, 1, res.FilesParsed)
	require.Equal(t, 1, py.calls)
}

func TestParseRepoSkipsTfvarsAndTfstate(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "terraform.tfvars"), []byte("x=1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "terraform.tfstate"), []byte("{}"), 0o644))

	tfParser := &stubParser{lang: "terraform", exts: []string{".tf", ".tfvars", ".tfstate"}}
	r := NewRegistry()
	r.Register(tfParser)

	res, err := r.ParseRepo(root)
	require.NoError(t, err)
	require.Equal(t, 0, res.FilesParsed)
	require.Equal(t, 0, tfParser.calls)
}

func TestParseRepoRecordsNonFatalFileErrors(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.py"), []byte("x=1"), 0o644))

	failing := &failingParser{lang: "python", exts: []string{".py"}}
	r := NewRegistry()
	r.Register(failing)

	res, err := r.ParseRepo(root)
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	require.Equal(t, 0, res.FilesParsed)
}

type failingParser struct {
	lang string
	exts []string
}

func (p *failingParser) SupportedExtensions() []string { return p.exts }
func (p *failingParser) Language() string              { return p.lang }
func (p *failingParser) ParseFile(path string, content []byte) ([]discovery.Discovery, error) {
	return nil, os.ErrInvalid
}

func TestParseOneReturnsNilForUnrecognizedFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	r := NewRegistry()
	discs, err := r.ParseOne(path)
	require.NoError(t, err)
	require.Nil(t, discs)
}

func TestRegisterSnifferOnlyMatchesWithinCandidateExtensions(t *testing.T) {
	root := t.TempDir()
	yamlPath := filepath.Join(root, "template.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("marker: true"), 0o644))
	txtPath := filepath.Join(root, "template.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("marker: true"), 0o644))

	matched := &stubParser{lang: "cfn", exts: nil}
	r := NewRegistry()
	r.RegisterSniffer([]string{".yaml", ".yml"}, func(b []byte) bool { return len(b) > 0 }, matched)

	discs, err := r.ParseOne(yamlPath)
	require.NoError(t, err)
	require.NotNil(t, discs)

	discs, err = r.ParseOne(txtPath)
	require.NoError(t, err)
	require.Nil(t, discs)
}

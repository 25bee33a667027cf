package parser

import (
	"github.com/garrettyarmo/forge-sub000/internal/parser/cfn"
	"github.com/garrettyarmo/forge-sub000/internal/parser/jsts"
	"github.com/garrettyarmo/forge-sub000/internal/parser/pyparse"
	"github.com/garrettyarmo/forge-sub000/internal/parser/tf"
)

// DefaultRegistry wires every concrete language parser from spec.md §4.2
// into one Registry: JS/TS and Python by extension and manifest filename,
// Terraform by extension, CloudFormation/SAM by content sniff since it
// claims no extension of its own.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	js := jsts.New()
	r.Register(js)
	r.RegisterManifest("package.json", js)

	py := pyparse.New()
	r.Register(py)
	r.RegisterManifest("pyproject.toml", py)
	r.RegisterManifest("setup.py", py)
	r.RegisterManifest("requirements.txt", py)
	r.RegisterManifest("Pipfile", py)

	r.Register(tf.New())

	r.RegisterSniffer([]string{".yaml", ".yml", ".json"}, cfn.Sniff, cfn.New())

	return r
}

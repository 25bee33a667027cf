// Package pyparse parses Python source into discoveries, grounded on this
// system's ancestor PythonCodeParser's tree-sitter walk (import/call_expression
// node-type switch over a recursive named-child traversal).
package pyparse

import (
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/garrettyarmo/forge-sub000/internal/discovery"
)

var manifestNames = map[string]bool{
	"pyproject.toml": true, "setup.py": true, "requirements.txt": true, "Pipfile": true,
}

// Parser implements parser.LanguageParser for Python.
type Parser struct {
	parser *sitter.Parser
}

// New returns a ready-to-use Python parser.
func New() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &Parser{parser: p}
}

func (p *Parser) Language() string             { return "python" }
func (p *Parser) SupportedExtensions() []string { return []string{".py", ".pyw"} }

var tableOps = map[string]discovery.Operation{
	"get_item": discovery.OpRead, "query": discovery.OpRead, "scan": discovery.OpRead,
	"batch_get_item": discovery.OpRead,
	"put_item": discovery.OpWrite, "update_item": discovery.OpWrite, "delete_item": discovery.OpWrite,
	"batch_write_item": discovery.OpWrite,
}

var httpModules = map[string]bool{"requests": true, "httpx": true}
var httpMethods = map[string]bool{"get": true, "post": true, "put": true, "delete": true, "patch": true, "head": true, "request": true}

func (p *Parser) ParseFile(path string, content []byte) ([]discovery.Discovery, error) {
	if manifestNames[filepath.Base(path)] {
		return p.ParseManifest(path, content)
	}
	tree, err := p.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	w := &walker{path: path, content: content, boto3Vars: make(map[string]string), tableVars: make(map[string]string)}
	w.walk(tree.RootNode())
	return w.discoveries, nil
}

type walker struct {
	path        string
	content     []byte
	discoveries []discovery.Discovery
	// boto3Vars maps a variable bound by boto3.client('X')/resource('X') to
	// the resource-class name X.
	boto3Vars map[string]string
	// tableVars maps a variable bound via `<resource>.Table('name')` to the
	// table name, so a later `.get_item(...)` on the same variable carries the
	// name forward instead of resolving to an unnamed placeholder node.
	tableVars map[string]string
}

func (w *walker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(w.content[n.StartByte():n.EndByte()])
}

func (w *walker) loc(n *sitter.Node) discovery.Location {
	return discovery.Location{File: w.path, Line: int(n.StartPoint().Row) + 1}
}

func stringLiteralValue(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, q := range []string{"'''", `"""`} {
		if strings.HasPrefix(raw, q) && strings.HasSuffix(raw, q) && len(raw) >= 2*len(q) {
			return raw[len(q) : len(raw)-len(q)]
		}
	}
	if len(raw) >= 2 {
		prefix := raw[0]
		if prefix == '\'' || prefix == '"' {
			return raw[1 : len(raw)-1]
		}
	}
	return raw
}

func (w *walker) walk(n *sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "import_statement", "import_from_statement":
		w.handleImport(n)
	case "assignment":
		w.handleAssignment(n)
	case "call":
		w.handleCall(n)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.walk(n.NamedChild(i))
	}
}

func (w *walker) handleImport(n *sitter.Node) {
	if n.Type() == "import_statement" {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child.Type() == "dotted_name" || child.Type() == "aliased_import" {
				module := w.text(child)
				w.emitImport(n, module, false, nil)
			}
		}
		return
	}
	// import_from_statement: from X import a, b
	moduleNode := n.ChildByFieldName("module_name")
	module := w.text(moduleNode)
	var items []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "dotted_name" && child != moduleNode {
			items = append(items, w.text(child))
		} else if child.Type() == "aliased_import" {
			items = append(items, w.text(child))
		}
	}
	w.emitImport(n, module, strings.HasPrefix(module, "."), items)
}

func (w *walker) emitImport(n *sitter.Node, module string, relative bool, items []string) {
	w.discoveries = append(w.discoveries, discovery.NewImport(w.loc(n), discovery.ImportDiscovery{
		Module: module, IsRelative: relative, ImportedItems: items,
	}))
}

// handleAssignment tracks `x = boto3.client('dynamodb')` and
// `t = <resource>.Table('name')` bindings used by later method calls.
func (w *walker) handleAssignment(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if left == nil || right == nil || left.Type() != "identifier" || right.Type() != "call" {
		return
	}
	varName := w.text(left)
	fn := right.ChildByFieldName("function")
	if fn == nil {
		return
	}
	if fn.Type() == "attribute" {
		obj := fn.ChildByFieldName("object")
		attr := fn.ChildByFieldName("attribute")
		if obj == nil || attr == nil {
			return
		}
		objName := w.text(obj)
		attrName := w.text(attr)
		if objName == "boto3" && (attrName == "client" || attrName == "resource") {
			svc := firstStringArg(right, w)
			w.boto3Vars[varName] = svc
			return
		}
		if attrName == "Table" {
			_, bound := w.boto3Vars[objName]
			if !bound && obj.Type() == "call" {
				// Chained form: boto3.resource('dynamodb').Table('name').
				if f := obj.ChildByFieldName("function"); f != nil {
					ft := w.text(f)
					bound = ft == "boto3.resource" || ft == "boto3.client"
				}
			}
			if bound {
				tableName := firstStringArg(right, w)
				w.tableVars[varName] = tableName
				if tableName != "" {
					w.discoveries = append(w.discoveries, discovery.NewDatabaseAccess(w.loc(n), discovery.DatabaseAccessDiscovery{
						DBType: "dynamodb", TableName: tableName, Operation: discovery.OpUnknown,
						DetectionMethod: discovery.DetectBoto3Client,
					}))
				}
			}
		}
	}
}

func firstStringArg(call *sitter.Node, w *walker) string {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return ""
	}
	first := args.NamedChild(0)
	if first.Type() != "string" {
		return ""
	}
	return stringLiteralValue(w.text(first))
}

// handleCall covers table method calls (`t.get_item(...)`) and HTTP calls
// (`requests.get(...)`, `httpx.post(...)`).
func (w *walker) handleCall(n *sitter.Node) {
	fn := n.ChildByFieldName("function")
	if fn == nil || fn.Type() != "attribute" {
		return
	}
	obj := fn.ChildByFieldName("object")
	attr := fn.ChildByFieldName("attribute")
	if obj == nil || attr == nil {
		return
	}
	objName := w.text(obj)
	method := w.text(attr)

	if tableName, ok := w.tableVars[objName]; ok {
		if op, found := tableOps[method]; found {
			w.discoveries = append(w.discoveries, discovery.NewDatabaseAccess(w.loc(n), discovery.DatabaseAccessDiscovery{
				DBType: "dynamodb", TableName: tableName, Operation: op, DetectionMethod: discovery.DetectBoto3TableCall,
			}))
		}
		return
	}

	if httpModules[objName] && httpMethods[method] {
		target := firstStringArg(n, w)
		w.discoveries = append(w.discoveries, discovery.NewAPICall(w.loc(n), discovery.APICallDiscovery{
			Target: target, Method: strings.ToUpper(method), DetectionMethod: discovery.DetectHTTPClientCall,
		}))
	}
}

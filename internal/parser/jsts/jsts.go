// Package jsts parses JavaScript and TypeScript source into discoveries,
// grounded on the same tree-sitter walk pattern as this system's ancestor
// TypeScript extractor (NamedChild switch over import/call/new expressions).
package jsts

import (
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/garrettyarmo/forge-sub000/internal/discovery"
)

// Parser implements parser.LanguageParser for JavaScript and TypeScript,
// sharing one grammar pair across both extensions (spec.md §4.3: "JavaScript
// and TypeScript share one parser").
type Parser struct {
	tsParser *sitter.Parser
	jsParser *sitter.Parser
}

// New returns a ready-to-use JS/TS parser.
func New() *Parser {
	ts := sitter.NewParser()
	ts.SetLanguage(typescript.GetLanguage())
	js := sitter.NewParser()
	js.SetLanguage(javascript.GetLanguage())
	return &Parser{tsParser: ts, jsParser: js}
}

func (p *Parser) Language() string { return "javascript" }

func (p *Parser) SupportedExtensions() []string {
	return []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx"}
}

// readOps/writeOps/publishOps/subscribeOps map
// AWS SDK v3 Command suffixes (and the equivalent v2 method names) to the
// discovery.Operation the surveyor records (spec.md §4.2).
var readOps = map[string]bool{
	"GetItem": true, "Query": true, "Scan": true, "BatchGetItem": true,
	"getItem": true, "query": true, "scan": true, "batchGetItem": true, "get": true,
}
var writeOps = map[string]bool{
	"PutItem": true, "UpdateItem": true, "DeleteItem": true, "BatchWriteItem": true,
	"putItem": true, "updateItem": true, "deleteItem": true, "batchWriteItem": true, "put": true,
}
var publishOps = map[string]bool{"SendMessage": true, "sendMessage": true, "Publish": true, "publish": true}
var subscribeOps = map[string]bool{"ReceiveMessage": true, "receiveMessage": true, "Subscribe": true, "subscribe": true}

func classifyOp(name string) discovery.Operation {
	switch {
	case readOps[name]:
		return discovery.OpRead
	case writeOps[name]:
		return discovery.OpWrite
	case publishOps[name]:
		return discovery.OpPublish
	case subscribeOps[name]:
		return discovery.OpSubscribe
	default:
		return discovery.OpUnknown
	}
}

var httpMethods = map[string]bool{
	"get": true, "post": true, "put": true, "delete": true, "patch": true,
	"head": true, "options": true, "request": true,
}

func (p *Parser) ParseFile(path string, content []byte) ([]discovery.Discovery, error) {
	if filepath.Base(path) == "package.json" {
		return p.ParseManifest(path, content)
	}
	ext := strings.ToLower(filepath.Ext(path))
	parser := p.tsParser
	if ext == ".js" || ext == ".jsx" || ext == ".mjs" || ext == ".cjs" {
		parser = p.jsParser
	}
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	w := &walker{path: path, content: content, v2Clients: make(map[string]bool), v3Clients: make(map[string]bool)}
	w.walk(tree.RootNode())
	return w.discoveries, nil
}

// walker accumulates discoveries during a single forward AST traversal.
// Client-variable bindings (v2 `new AWS.X()`, v3 `new XClient()`) are
// recorded as they're seen so later `.send`/method calls in the same file
// can be classified; a use before its binding is simply missed, which is an
// accepted heuristic-parser limitation rather than a correctness defect.
type walker struct {
	path        string
	content     []byte
	discoveries []discovery.Discovery
	v2Clients   map[string]bool
	v3Clients   map[string]bool
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

// stringLiteralValue strips surrounding quotes from a JS/TS string node.
func stringLiteralValue(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 2 {
		if (raw[0] == '\'' && raw[len(raw)-1] == '\'') ||
			(raw[0] == '"' && raw[len(raw)-1] == '"') ||
			(raw[0] == '`' && raw[len(raw)-1] == '`') {
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
	case "import_statement":
		w.handleImportStatement(n)
	case "variable_declarator":
		w.handleVariableDeclarator(n)
	case "call_expression":
		w.handleCallExpression(n)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.walk(n.NamedChild(i))
	}
}

// handleImportStatement covers `import x from 'y'` and `import {a,b} from 'y'`.
func (w *walker) handleImportStatement(n *sitter.Node) {
	source := n.ChildByFieldName("source")
	if source == nil {
		return
	}
	module := stringLiteralValue(w.text(source))
	var items []string
	clause := n.NamedChild(0)
	if clause != nil && clause.Type() == "import_clause" {
		items = collectImportItems(clause, w)
	}
	w.discoveries = append(w.discoveries, discovery.NewImport(w.loc(n), discovery.ImportDiscovery{
		Module:        module,
		IsRelative:    strings.HasPrefix(module, "."),
		ImportedItems: items,
	}))
}

func collectImportItems(clause *sitter.Node, w *walker) []string {
	var items []string
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "identifier":
			items = append(items, w.text(n))
		default:
			for i := 0; i < int(n.NamedChildCount()); i++ {
				visit(n.NamedChild(i))
			}
		}
	}
	visit(clause)
	return items
}

// handleVariableDeclarator detects `const x = require('y')`,
// `const c = new AWS.DynamoDB()`, and `const c = new DynamoDBClient({})`,
// recording client variable bindings and emitting the Import discovery for
// an assigned require.
func (w *walker) handleVariableDeclarator(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	valueNode := n.ChildByFieldName("value")
	if nameNode == nil || valueNode == nil {
		return
	}
	varName := w.text(nameNode)

	if valueNode.Type() == "call_expression" {
		fn := valueNode.ChildByFieldName("function")
		if fn != nil && fn.Type() == "identifier" && w.text(fn) == "require" {
			w.emitRequire(valueNode)
		}
		return
	}
	if valueNode.Type() == "new_expression" {
		ctor := valueNode.ChildByFieldName("constructor")
		if ctor == nil {
			return
		}
		switch ctor.Type() {
		case "member_expression":
			obj := ctor.ChildByFieldName("object")
			if obj != nil && w.text(obj) == "AWS" {
				w.v2Clients[varName] = true
			}
		case "identifier":
			name := w.text(ctor)
			if strings.HasSuffix(name, "Client") {
				w.v3Clients[varName] = true
			}
		}
	}
}

// emitRequire handles a bare or assigned `require('module')` call.
func (w *walker) emitRequire(call *sitter.Node) {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return
	}
	arg := args.NamedChild(0)
	if arg.Type() != "string" {
		return
	}
	module := stringLiteralValue(w.text(arg))
	w.discoveries = append(w.discoveries, discovery.NewImport(w.loc(call), discovery.ImportDiscovery{
		Module:     module,
		IsRelative: strings.HasPrefix(module, "."),
	}))
}

// handleCallExpression covers four productive call shapes: a bare
// `require(...)` expression statement, `<client>.send(new XCommand(...))`,
// a v2-client method call, and `axios.<method>`/`fetch` HTTP calls.
func (w *walker) handleCallExpression(n *sitter.Node) {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return
	}

	if fn.Type() == "identifier" {
		name := w.text(fn)
		if name == "require" {
			// An assigned require was already emitted by handleVariableDeclarator.
			if p := n.Parent(); p == nil || p.Type() != "variable_declarator" {
				w.emitRequire(n)
			}
			return
		}
		if name == "fetch" {
			w.emitAPICall(n, "GET")
			return
		}
		return
	}

	if fn.Type() != "member_expression" {
		return
	}
	obj := fn.ChildByFieldName("object")
	prop := fn.ChildByFieldName("property")
	if obj == nil || prop == nil {
		return
	}
	objName := w.text(obj)
	propName := w.text(prop)

	if objName == "axios" {
		method := strings.ToUpper(propName)
		if httpMethods[propName] {
			w.emitAPICall(n, method)
		}
		return
	}

	if propName == "send" && w.v3Clients[objName] {
		w.handleV3Send(n)
		return
	}

	if w.v2Clients[objName] {
		w.handleV2Method(n, propName)
	}
}

// handleV3Send extracts the `new XCommand({...})` argument to a v3 `.send`
// call, classifying the operation by command-name suffix.
func (w *walker) handleV3Send(call *sitter.Node) {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return
	}
	cmdExpr := args.NamedChild(0)
	if cmdExpr.Type() != "new_expression" {
		return
	}
	ctor := cmdExpr.ChildByFieldName("constructor")
	if ctor == nil || ctor.Type() != "identifier" {
		return
	}
	cmdName := w.text(ctor)
	if !strings.HasSuffix(cmdName, "Command") {
		return
	}
	opName := strings.TrimSuffix(cmdName, "Command")
	w.emitResourceOp(call, opName, cmdExpr.ChildByFieldName("arguments"), discovery.DetectSDKv3Command)
}

// handleV2Method classifies a v2-client method call like `c.putItem(...)`.
func (w *walker) handleV2Method(call *sitter.Node, method string) {
	op := classifyOp(method)
	if op == discovery.OpUnknown && !readOps[method] && !writeOps[method] && !publishOps[method] && !subscribeOps[method] {
		return
	}
	w.emitResourceOp(call, method, call.ChildByFieldName("arguments"), discovery.DetectSDKv2Client)
}

// emitResourceOp turns an operation name plus its argument object into a
// DatabaseAccess or QueueOperation discovery, extracting TableName/QueueUrl
// when present (spec.md §4.2: "otherwise emit a discovery with name=None").
func (w *walker) emitResourceOp(call *sitter.Node, opName string, args *sitter.Node, method discovery.DetectionMethod) {
	op := classifyOp(opName)
	if op == discovery.OpUnknown {
		return
	}
	name := extractLiteralProp(args, w, "TableName")
	if name != "" {
		w.discoveries = append(w.discoveries, discovery.NewDatabaseAccess(w.loc(call), discovery.DatabaseAccessDiscovery{
			DBType: "dynamodb", TableName: name, Operation: op, DetectionMethod: method,
		}))
		return
	}
	if queueURL := extractLiteralProp(args, w, "QueueUrl"); queueURL != "" || op == discovery.OpPublish || op == discovery.OpSubscribe {
		w.discoveries = append(w.discoveries, discovery.NewQueueOperation(w.loc(call), discovery.QueueOperationDiscovery{
			QueueType: "sqs", Name: queueURL, Operation: op, DetectionMethod: method,
		}))
		return
	}
	w.discoveries = append(w.discoveries, discovery.NewDatabaseAccess(w.loc(call), discovery.DatabaseAccessDiscovery{
		DBType: "dynamodb", TableName: "", Operation: op, DetectionMethod: method,
	}))
}

// extractLiteralProp finds `<key>: '<value>'` within the first object-literal
// argument, one level deep (no nested property traversal).
func extractLiteralProp(args *sitter.Node, w *walker, key string) string {
	if args == nil || args.NamedChildCount() == 0 {
		return ""
	}
	obj := args.NamedChild(0)
	if obj == nil || obj.Type() != "object" {
		return ""
	}
	for i := 0; i < int(obj.NamedChildCount()); i++ {
		pair := obj.NamedChild(i)
		if pair.Type() != "pair" {
			continue
		}
		k := pair.ChildByFieldName("key")
		v := pair.ChildByFieldName("value")
		if k == nil || v == nil {
			continue
		}
		if w.text(k) == key && v.Type() == "string" {
			return stringLiteralValue(w.text(v))
		}
	}
	return ""
}

func (w *walker) emitAPICall(call *sitter.Node, method string) {
	args := call.ChildByFieldName("arguments")
	target := ""
	if args != nil && args.NamedChildCount() > 0 {
		first := args.NamedChild(0)
		if first.Type() == "string" {
			target = stringLiteralValue(w.text(first))
		}
	}
	w.discoveries = append(w.discoveries, discovery.NewAPICall(w.loc(call), discovery.APICallDiscovery{
		Target: target, Method: method, DetectionMethod: discovery.DetectHTTPClientCall,
	}))
}

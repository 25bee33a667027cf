// Package tf parses Terraform HCL resource blocks into discoveries, grounded
// on the block/attribute-iteration and cty-evaluation style of this
// ecosystem's terragrunt HCL parser.
package tf

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/garrettyarmo/forge-sub000/internal/discovery"
)

var terraformManaged = regexp.MustCompile(`(?i)terraform`)

// languageFromRuntime infers a Lambda's implementation language from its
// runtime identifier prefix (spec.md §4.2).
func languageFromRuntime(runtime string) string {
	switch {
	case strings.HasPrefix(runtime, "python"):
		return "python"
	case strings.HasPrefix(runtime, "nodejs"):
		return "javascript"
	case strings.HasPrefix(runtime, "go"):
		return "go"
	case strings.HasPrefix(runtime, "java"):
		return "java"
	default:
		return ""
	}
}

// Parser implements parser.LanguageParser for Terraform HCL.
type Parser struct {
	hcl *hclparse.Parser
}

// New returns a ready-to-use Terraform parser.
func New() *Parser { return &Parser{hcl: hclparse.NewParser()} }

func (p *Parser) Language() string             { return "terraform" }
func (p *Parser) SupportedExtensions() []string { return []string{".tf"} }

// resourceKinds maps a Terraform resource type to the discovery it produces
// (spec.md §4.2).
var resourceKinds = map[string]string{
	"aws_dynamodb_table": "database",
	"aws_sqs_queue":       "queue",
	"aws_sns_topic":       "queue",
	"aws_s3_bucket":       "cloud_resource",
	"aws_lambda_function": "service",
}

func (p *Parser) ParseFile(path string, content []byte) ([]discovery.Discovery, error) {
	file, diags := p.hcl.ParseHCL(content, path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("tf: parse %s: %s", path, diags.Error())
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("tf: unexpected body type in %s", path)
	}

	var discoveries []discovery.Discovery
	workspace := "default"

	for _, block := range body.Blocks {
		switch block.Type {
		case "resource":
			if len(block.Labels) < 2 {
				continue
			}
			resType, resName := block.Labels[0], block.Labels[1]
			kind, ok := resourceKinds[resType]
			if !ok {
				continue
			}
			discoveries = append(discoveries, p.discoveryForResource(path, block, resType, resName, kind))
		case "terraform":
			if ws := workspaceFromBackend(block); ws != "" {
				workspace = ws
			}
		}
	}

	if workspace != "default" {
		for i := range discoveries {
			attachWorkspace(&discoveries[i], workspace)
		}
	}
	return discoveries, nil
}

func attachWorkspace(d *discovery.Discovery, workspace string) {
	switch d.Kind {
	case discovery.KindService:
		if d.Service.Attributes == nil {
			d.Service.Attributes = map[string]interface{}{}
		}
		d.Service.Attributes["terraform_workspace"] = workspace
	case discovery.KindCloudResourceUsage:
		// no attribute bag on this variant; workspace is carried at graph
		// build time from the enclosing service only.
	}
}

// workspaceFromBackend reads the first path segment of a backend block's
// "key" attribute as the terraform workspace (spec.md §4.2), defaulting to
// "default" when absent.
func workspaceFromBackend(block *hclsyntax.Block) string {
	for _, nested := range block.Body.Blocks {
		if nested.Type != "backend" {
			continue
		}
		attr, ok := nested.Body.Attributes["key"]
		if !ok {
			continue
		}
		val, err := evalExpr(attr.Expr)
		if err != nil || val.Type() != cty.String {
			continue
		}
		key := val.AsString()
		for i, c := range key {
			if c == '/' {
				return key[:i]
			}
		}
		return key
	}
	return ""
}

func (p *Parser) discoveryForResource(path string, block *hclsyntax.Block, resType, resName, kind string) discovery.Discovery {
	loc := discovery.Location{File: path, Line: int(block.DefRange().Start.Line)}
	attrs := extractAttrs(block)
	tags := extractTags(block)
	env := firstTag(tags, "environment", "env", "stage")

	switch kind {
	case "database":
		return discovery.NewCloudResourceUsage(loc, discovery.CloudResourceUsageDiscovery{
			ResourceType: "dynamodb_table", Name: stringAttr(attrs, "name", resName),
		})
	case "queue":
		resourceType := "sqs_queue"
		if resType == "aws_sns_topic" {
			resourceType = "sns_topic"
		}
		return discovery.NewCloudResourceUsage(loc, discovery.CloudResourceUsageDiscovery{
			ResourceType: resourceType, Name: stringAttr(attrs, "name", resName),
		})
	case "service":
		runtime := stringAttr(attrs, "runtime", "")
		svcAttrs := map[string]interface{}{
			"deployment_method": deploymentMethod(tags),
		}
		if env != "" {
			svcAttrs["environment"] = env
		}
		if runtime != "" {
			svcAttrs["runtime"] = runtime
		}
		if h := stringAttr(attrs, "handler", ""); h != "" {
			svcAttrs["handler"] = h
		}
		return discovery.NewService(loc, discovery.ServiceDiscovery{
			Name: stringAttr(attrs, "function_name", resName), Language: languageFromRuntime(runtime), Attributes: svcAttrs,
		})
	default:
		return discovery.NewCloudResourceUsage(loc, discovery.CloudResourceUsageDiscovery{
			ResourceType: resType, Name: stringAttr(attrs, "bucket", stringAttr(attrs, "bucket_prefix", resName)),
		})
	}
}

// deploymentMethod reads the (already lowercase-normalized) tags map for the
// signals spec.md §4.2 names: a "managedby" tag matching /terraform/i, or a
// "aws:cloudformation:stack-name" tag implying CloudFormation management.
func deploymentMethod(tags map[string]string) string {
	if v, ok := tags["managedby"]; ok && terraformManaged.MatchString(v) {
		return "terraform"
	}
	if _, ok := tags["aws:cloudformation:stack-name"]; ok {
		return "cloudformation"
	}
	return "terraform"
}

func extractAttrs(block *hclsyntax.Block) map[string]cty.Value {
	out := make(map[string]cty.Value)
	for name, attr := range block.Body.Attributes {
		if val, err := evalExpr(attr.Expr); err == nil {
			out[name] = val
		}
	}
	return out
}

func stringAttr(attrs map[string]cty.Value, key, fallback string) string {
	if v, ok := attrs[key]; ok && v.Type() == cty.String {
		return v.AsString()
	}
	return fallback
}

// extractTags reads the "tags" attribute (a flat string map) off a resource
// block, lowercasing every key so firstTag and deploymentMethod can look
// tags up by their lowercase names.
func extractTags(block *hclsyntax.Block) map[string]string {
	attr, ok := block.Body.Attributes["tags"]
	if !ok {
		return nil
	}
	val, err := evalExpr(attr.Expr)
	if err != nil || (!val.Type().IsObjectType() && !val.Type().IsMapType()) {
		return nil
	}
	out := make(map[string]string)
	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		if k.Type() == cty.String && v.Type() == cty.String {
			out[strings.ToLower(k.AsString())] = v.AsString()
		}
	}
	return out
}

func firstTag(tags map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := tags[k]; ok {
			return v
		}
	}
	return ""
}

// evalExpr evaluates a literal HCL expression with no variables or functions
// in scope; references to unresolved locals/variables fail and are skipped
// by callers, consistent with spec.md §4.2's "intrinsic expressions are not
// evaluated; store their textual form" posture for dynamic values.
func evalExpr(expr hcl.Expression) (cty.Value, error) {
	ctx := &hcl.EvalContext{}
	val, diags := expr.Value(ctx)
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("tf: eval: %s", diags.Error())
	}
	return val, nil
}

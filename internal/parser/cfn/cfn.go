// Package cfn parses CloudFormation and SAM YAML templates into discoveries.
// It decodes with yaml.v3's yaml.Node tree (rather than a target struct) so
// CloudFormation's short-form intrinsic tags (!Ref, !Sub, !GetAtt) survive
// as their literal textual form instead of failing to unmarshal, the same
// "keep unknown shape, don't fight it" posture this ecosystem's config
// loader takes toward forward-compatible YAML documents.
package cfn

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/garrettyarmo/forge-sub000/internal/discovery"
)

// Parser implements parser.LanguageParser for CloudFormation/SAM templates.
// It claims no extension of its own: registry.ParseRepo dispatches to it by
// content sniff (see Sniff), not by SupportedExtensions.
type Parser struct{}

// New returns a ready-to-use CloudFormation/SAM parser.
func New() *Parser { return &Parser{} }

func (p *Parser) Language() string             { return "cloudformation" }
func (p *Parser) SupportedExtensions() []string { return nil }

// Sniff reports whether content looks like a CloudFormation/SAM template:
// a YAML or JSON document with an AWSTemplateFormatVersion root key
// (spec.md §4.2).
func Sniff(content []byte) bool {
	return strings.Contains(string(content), "AWSTemplateFormatVersion")
}

var resourceServiceTypes = map[string]bool{
	"AWS::Serverless::Function": true, "AWS::Lambda::Function": true,
}
var resourceDatabaseTypes = map[string]bool{"AWS::DynamoDB::Table": true}
var resourceQueueTypes = map[string]bool{"AWS::SQS::Queue": true, "AWS::SNS::Topic": true}
var resourceCloudTypes = map[string]bool{"AWS::S3::Bucket": true}
var resourceAPITypes = map[string]bool{"AWS::Serverless::Api": true}

func (p *Parser) ParseFile(path string, content []byte) ([]discovery.Discovery, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(content, &root); err != nil {
		return nil, err
	}
	doc := mappingRoot(&root)
	if doc == nil {
		return nil, nil
	}
	if mapGet(doc, "AWSTemplateFormatVersion") == nil {
		return nil, nil
	}

	isSAM := false
	if transform := mapGet(doc, "Transform"); transform != nil {
		isSAM = strings.Contains(nodeText(transform), "AWS::Serverless")
	}
	deploymentMethod := "cloudformation"
	if isSAM {
		deploymentMethod = "sam"
	}

	environment := environmentFromParameters(mapGet(doc, "Parameters"))

	var discoveries []discovery.Discovery
	resources := mapGet(doc, "Resources")
	if resources == nil {
		return discoveries, nil
	}
	for i := 0; i+1 < len(resources.Content); i += 2 {
		logicalName := resources.Content[i].Value
		resNode := resources.Content[i+1]
		resType := nodeText(mapGet(resNode, "Type"))
		props := mapGet(resNode, "Properties")

		loc := discovery.Location{File: path, Line: resources.Content[i].Line}

		switch {
		case resourceServiceTypes[resType]:
			attrs := map[string]interface{}{"deployment_method": deploymentMethod}
			if runtime := nodeText(mapGet(props, "Runtime")); runtime != "" {
				attrs["runtime"] = runtime
			}
			if handler := nodeText(mapGet(props, "Handler")); handler != "" {
				attrs["handler"] = handler
			}
			if environment != "" {
				attrs["environment"] = environment
			}
			discoveries = append(discoveries, discovery.NewService(loc, discovery.ServiceDiscovery{
				Name: logicalName, Language: "", Attributes: attrs,
			}))
		case resourceDatabaseTypes[resType]:
			name := nodeText(mapGet(props, "TableName"))
			if name == "" {
				name = logicalName
			}
			discoveries = append(discoveries, discovery.NewCloudResourceUsage(loc, discovery.CloudResourceUsageDiscovery{
				ResourceType: "dynamodb_table", Name: name,
			}))
		case resourceQueueTypes[resType]:
			resourceType := "sqs_queue"
			nameKey := "QueueName"
			if resType == "AWS::SNS::Topic" {
				resourceType = "sns_topic"
				nameKey = "TopicName"
			}
			name := nodeText(mapGet(props, nameKey))
			if name == "" {
				name = logicalName
			}
			discoveries = append(discoveries, discovery.NewCloudResourceUsage(loc, discovery.CloudResourceUsageDiscovery{
				ResourceType: resourceType, Name: name,
			}))
		case resourceCloudTypes[resType]:
			name := nodeText(mapGet(props, "BucketName"))
			if name == "" {
				name = logicalName
			}
			discoveries = append(discoveries, discovery.NewCloudResourceUsage(loc, discovery.CloudResourceUsageDiscovery{
				ResourceType: "s3_bucket", Name: name,
			}))
		case resourceAPITypes[resType]:
			discoveries = append(discoveries, discovery.NewCloudResourceUsage(loc, discovery.CloudResourceUsageDiscovery{
				ResourceType: "serverless_api", Name: logicalName,
			}))
		}
	}
	return discoveries, nil
}

// environmentFromParameters looks for a Parameters entry named Environment,
// Env, or Stage and returns its Default value (spec.md §4.2).
func environmentFromParameters(params *yaml.Node) string {
	if params == nil {
		return ""
	}
	for _, key := range []string{"Environment", "Env", "Stage"} {
		if entry := mapGet(params, key); entry != nil {
			if def := mapGet(entry, "Default"); def != nil {
				return nodeText(def)
			}
		}
	}
	return ""
}

// mappingRoot unwraps a document node down to its top-level mapping.
func mappingRoot(n *yaml.Node) *yaml.Node {
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		return mappingRoot(n.Content[0])
	}
	if n.Kind == yaml.MappingNode {
		return n
	}
	return nil
}

// mapGet looks up key in a mapping node's Content (flat key/value pairs).
func mapGet(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// nodeText renders a scalar or tagged-intrinsic node as its literal text;
// !Ref/!Sub/!GetAtt short forms are stored verbatim rather than evaluated
// (spec.md §4.2: "Intrinsic-function expressions are not evaluated; store
// their textual form").
func nodeText(n *yaml.Node) string {
	if n == nil {
		return ""
	}
	if n.Kind == yaml.ScalarNode {
		if n.Tag != "" && n.Tag != "!!str" && n.Tag != "!!int" && n.Tag != "!!bool" && n.Tag != "!!float" {
			return n.Tag + " " + n.Value
		}
		return n.Value
	}
	return ""
}

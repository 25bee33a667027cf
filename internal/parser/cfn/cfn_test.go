package cfn

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/garrettyarmo/forge-sub000/internal/discovery"
)

// TestSAMTemplateProducesThreeNodeTypes mirrors spec.md §8.2 Scenario 3: a
// SAM template with a function, a table, and a queue yields three
// discoveries, each tagged deployment_method=sam where applicable.
func TestSAMTemplateProducesThreeNodeTypes(t *testing.T) {
	src := `
AWSTemplateFormatVersion: '2010-09-09'
Transform: AWS::Serverless-2016-10-31
Resources:
  UserApiFn:
    Type: AWS::Serverless::Function
    Properties:
      Runtime: python3.11
  UsersTable:
    Type: AWS::DynamoDB::Table
    Properties:
      TableName: users
  OrdersQ:
    Type: AWS::SQS::Queue
    Properties:
      QueueName: orders
`
	p := New()
	require.True(t, Sniff([]byte(src)))
	discs, err := p.ParseFile("repo/template.yaml", []byte(src))
	require.NoError(t, err)
	require.Len(t, discs, 3)

	require.Equal(t, discovery.KindService, discs[0].Kind)
	require.Equal(t, "UserApiFn", discs[0].Service.Name)
	require.Equal(t, "sam", discs[0].Service.Attributes["deployment_method"])
	require.Equal(t, "python3.11", discs[0].Service.Attributes["runtime"])

	require.Equal(t, discovery.KindCloudResourceUsage, discs[1].Kind)
	require.Equal(t, "dynamodb_table", discs[1].CloudResourceUsage.ResourceType)
	require.Equal(t, "users", discs[1].CloudResourceUsage.Name)

	require.Equal(t, discovery.KindCloudResourceUsage, discs[2].Kind)
	require.Equal(t, "sqs_queue", discs[2].CloudResourceUsage.ResourceType)
	require.Equal(t, "orders", discs[2].CloudResourceUsage.Name)
}

func TestPlainCloudFormationDeploymentMethod(t *testing.T) {
	src := `
AWSTemplateFormatVersion: '2010-09-09'
Resources:
  ApiFn:
    Type: AWS::Lambda::Function
    Properties:
      Runtime: nodejs18.x
      Handler: index.handler
`
	p := New()
	discs, err := p.ParseFile("repo/template.yaml", []byte(src))
	require.NoError(t, err)
	require.Len(t, discs, 1)
	require.Equal(t, "cloudformation", discs[0].Service.Attributes["deployment_method"])
	require.Equal(t, "index.handler", discs[0].Service.Attributes["handler"])
}

func TestEnvironmentParameterSeedsAttribute(t *testing.T) {
	src := `
AWSTemplateFormatVersion: '2010-09-09'
Parameters:
  Stage:
    Type: String
    Default: production
Resources:
  ApiFn:
    Type: AWS::Lambda::Function
    Properties:
      Runtime: python3.11
`
	p := New()
	discs, err := p.ParseFile("repo/template.yaml", []byte(src))
	require.NoError(t, err)
	require.Len(t, discs, 1)
	require.Equal(t, "production", discs[0].Service.Attributes["environment"])
}

// TestNonTemplateYAMLIsIgnored ensures a YAML file lacking
// AWSTemplateFormatVersion produces no discoveries (spec.md §4.2).
func TestNonTemplateYAMLIsIgnored(t *testing.T) {
	src := `
name: not-a-template
steps:
  - run: echo hi
`
	require.False(t, Sniff([]byte(src)))
	p := New()
	discs, err := p.ParseFile("repo/.github/workflows/ci.yaml", []byte(src))
	require.NoError(t, err)
	require.Empty(t, discs)
}

func TestIntrinsicFunctionStoredAsText(t *testing.T) {
	src := `
AWSTemplateFormatVersion: '2010-09-09'
Resources:
  UsersTable:
    Type: AWS::DynamoDB::Table
    Properties:
      TableName: !Ref TableNameParam
`
	p := New()
	discs, err := p.ParseFile("repo/template.yaml", []byte(src))
	require.NoError(t, err)
	require.Len(t, discs, 1)
	require.Contains(t, discs[0].CloudResourceUsage.Name, "TableNameParam")
}

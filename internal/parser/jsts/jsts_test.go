package jsts

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/garrettyarmo/forge-sub000/internal/discovery"
)

func findKind(discs []discovery.Discovery, k discovery.Kind) []discovery.Discovery {
	var out []discovery.Discovery
	for _, d := range discs {
		if d.Kind == k {
			out = append(out, d)
		}
	}
	return out
}

// TestV3CommandWritesNamedTable mirrors spec.md §8.2 Scenario 1's JS half: a
// PutItemCommand sent via a v3 DynamoDBClient resolves to a Write access on
// the literal TableName argument.
func TestV3CommandWritesNamedTable(t *testing.T) {
	src := `
const { DynamoDBClient } = require('@aws-sdk/client-dynamodb');
const c = new DynamoDBClient({});
c.send(new PutItemCommand({TableName: 'users', Item: {}}));
`
	p := New()
	discs, err := p.ParseFile("svc-a/db.js", []byte(src))
	require.NoError(t, err)

	dbAccess := findKind(discs, discovery.KindDatabaseAccess)
	require.Len(t, dbAccess, 1)
	require.Equal(t, "users", dbAccess[0].DatabaseAccess.TableName)
	require.Equal(t, discovery.OpWrite, dbAccess[0].DatabaseAccess.Operation)
	require.Equal(t, discovery.DetectSDKv3Command, dbAccess[0].DatabaseAccess.DetectionMethod)
}

// TestImportOnlyIsolation covers spec.md §8.1: a file containing only an
// AWS SDK import must not emit a Database/resource discovery.
func TestImportOnlyIsolation(t *testing.T) {
	src := `const { DynamoDBClient } = require('@aws-sdk/client-dynamodb');`
	p := New()
	discs, err := p.ParseFile("svc/db.js", []byte(src))
	require.NoError(t, err)

	require.Empty(t, findKind(discs, discovery.KindDatabaseAccess))
	require.Empty(t, findKind(discs, discovery.KindQueueOperation))
	imports := findKind(discs, discovery.KindImport)
	require.Len(t, imports, 1)
	require.Equal(t, "@aws-sdk/client-dynamodb", imports[0].Import.Module)
}

// TestAxiosNonConfusion covers spec.md §8.1: axios.get must not be
// misclassified as a DynamoDB operation, and produces at most one ApiCall.
func TestAxiosNonConfusion(t *testing.T) {
	src := `axios.get('/x');`
	p := New()
	discs, err := p.ParseFile("svc/client.js", []byte(src))
	require.NoError(t, err)

	require.Empty(t, findKind(discs, discovery.KindDatabaseAccess))
	calls := findKind(discs, discovery.KindAPICall)
	require.LessOrEqual(t, len(calls), 1)
	require.Len(t, calls, 1)
	require.Equal(t, "/x", calls[0].APICall.Target)
	require.Equal(t, "GET", calls[0].APICall.Method)
}

func TestV2ClientQueuePublish(t *testing.T) {
	src := `
const AWS = require('aws-sdk');
const sqs = new AWS.SQS();
sqs.sendMessage({QueueUrl: 'https://sqs.example/orders', MessageBody: 'x'});
`
	p := New()
	discs, err := p.ParseFile("svc/queue.js", []byte(src))
	require.NoError(t, err)

	queueOps := findKind(discs, discovery.KindQueueOperation)
	require.Len(t, queueOps, 1)
	require.Equal(t, discovery.OpPublish, queueOps[0].QueueOperation.Operation)
	require.Equal(t, "https://sqs.example/orders", queueOps[0].QueueOperation.Name)
}

func TestUnnamedResourceEmitsEmptyName(t *testing.T) {
	src := `
const c = new DynamoDBClient({});
c.send(new GetItemCommand({Key: {id: '1'}}));
`
	p := New()
	discs, err := p.ParseFile("svc/db.js", []byte(src))
	require.NoError(t, err)

	dbAccess := findKind(discs, discovery.KindDatabaseAccess)
	require.Len(t, dbAccess, 1)
	require.Empty(t, dbAccess[0].DatabaseAccess.TableName)
	require.Equal(t, discovery.OpRead, dbAccess[0].DatabaseAccess.Operation)
}

func TestFetchCallDetected(t *testing.T) {
	src := `fetch('https://api.example.com/orders');`
	p := New()
	discs, err := p.ParseFile("svc/client.js", []byte(src))
	require.NoError(t, err)

	calls := findKind(discs, discovery.KindAPICall)
	require.Len(t, calls, 1)
	require.Equal(t, "https://api.example.com/orders", calls[0].APICall.Target)
}

func TestSupportedExtensions(t *testing.T) {
	p := New()
	exts := p.SupportedExtensions()
	require.Contains(t, exts, ".js")
	require.Contains(t, exts, ".ts")
	require.Contains(t, exts, ".tsx")
}

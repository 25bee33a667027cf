// Package discovery defines the tagged-union observations that language
// parsers emit. Parsers never mutate the graph directly (spec.md §4.1); they
// produce a flat slice of Discovery values that the builder folds into nodes
// and edges.
package discovery

import "strconv"

// Operation classifies a database or queue access.
type Operation string

const (
	OpRead      Operation = "Read"
	OpWrite     Operation = "Write"
	OpReadWrite Operation = "ReadWrite"
	OpPublish   Operation = "Publish"
	OpSubscribe Operation = "Subscribe"
	OpUnknown   Operation = "Unknown"
)

// DetectionMethod records which heuristic produced a discovery, surfaced as
// edge evidence/reason text for transparency.
type DetectionMethod string

const (
	DetectSDKv2Client    DetectionMethod = "aws_sdk_v2_client"
	DetectSDKv3Command   DetectionMethod = "aws_sdk_v3_command"
	DetectBoto3Client    DetectionMethod = "boto3_client"
	DetectBoto3TableCall DetectionMethod = "boto3_table_method"
	DetectHTTPClientCall DetectionMethod = "http_client_call"
	DetectIaCResource    DetectionMethod = "iac_resource_block"
)

// Location is the 1-based source position used as edge/node evidence.
type Location struct {
	File string
	Line int
}

// Evidence renders the location as a "file:line" string.
func (l Location) Evidence() string {
	if l.Line <= 0 {
		return l.File
	}
	return l.File + ":" + strconv.Itoa(l.Line)
}

// Kind is the tag of the Discovery union.
type Kind string

const (
	KindService            Kind = "Service"
	KindImport             Kind = "Import"
	KindAPICall            Kind = "ApiCall"
	KindDatabaseAccess     Kind = "DatabaseAccess"
	KindQueueOperation     Kind = "QueueOperation"
	KindCloudResourceUsage Kind = "CloudResourceUsage"
)

// Discovery is a flat tagged union; exactly one of the Kind-named fields is
// populated according to Kind. Location is always present.
type Discovery struct {
	Kind     Kind
	Location Location

	Service            *ServiceDiscovery
	Import             *ImportDiscovery
	APICall            *APICallDiscovery
	DatabaseAccess     *DatabaseAccessDiscovery
	QueueOperation     *QueueOperationDiscovery
	CloudResourceUsage *CloudResourceUsageDiscovery
}

// ServiceDiscovery describes the owning service itself, usually emitted once
// per repo/package from a manifest file (package.json, pyproject.toml, a
// Lambda/Terraform/CFN resource block).
type ServiceDiscovery struct {
	Name        string
	Language    string
	Framework   string
	EntryPoint  string
	Attributes  map[string]interface{}
}

// ImportDiscovery is a module import/require statement.
type ImportDiscovery struct {
	Module        string
	IsRelative    bool
	ImportedItems []string
}

// APICallDiscovery is an outbound HTTP call (axios/fetch/requests/httpx).
type APICallDiscovery struct {
	Target          string
	Method          string
	DetectionMethod DetectionMethod
}

// DatabaseAccessDiscovery is a database client operation.
type DatabaseAccessDiscovery struct {
	DBType          string
	TableName       string
	Operation       Operation
	DetectionMethod DetectionMethod
}

// QueueOperationDiscovery is a queue publish/subscribe operation.
type QueueOperationDiscovery struct {
	QueueType       string
	Name            string
	Operation       Operation
	DetectionMethod DetectionMethod
}

// CloudResourceUsageDiscovery is a generic cloud resource reference (S3,
// etc.) that doesn't fit the database/queue shapes.
type CloudResourceUsageDiscovery struct {
	ResourceType string
	Name         string
}

// NewService/NewImport/... are convenience constructors that also stamp Kind
// consistently, avoiding mismatched-tag bugs at call sites.

func NewService(loc Location, d ServiceDiscovery) Discovery {
	return Discovery{Kind: KindService, Location: loc, Service: &d}
}

func NewImport(loc Location, d ImportDiscovery) Discovery {
	return Discovery{Kind: KindImport, Location: loc, Import: &d}
}

func NewAPICall(loc Location, d APICallDiscovery) Discovery {
	return Discovery{Kind: KindAPICall, Location: loc, APICall: &d}
}

func NewDatabaseAccess(loc Location, d DatabaseAccessDiscovery) Discovery {
	return Discovery{Kind: KindDatabaseAccess, Location: loc, DatabaseAccess: &d}
}

func NewQueueOperation(loc Location, d QueueOperationDiscovery) Discovery {
	return Discovery{Kind: KindQueueOperation, Location: loc, QueueOperation: &d}
}

func NewCloudResourceUsage(loc Location, d CloudResourceUsageDiscovery) Discovery {
	return Discovery{Kind: KindCloudResourceUsage, Location: loc, CloudResourceUsage: &d}
}

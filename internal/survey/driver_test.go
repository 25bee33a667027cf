package survey

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/garrettyarmo/forge-sub000/internal/graph"
	"github.com/garrettyarmo/forge-sub000/internal/parser"
	"github.com/garrettyarmo/forge-sub000/internal/repoprovider"
	"github.com/garrettyarmo/forge-sub000/internal/repoprovider/local"
)

var fixedNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func gitCmd(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=forge-test", "GIT_AUTHOR_EMAIL=forge-test@example.com",
		"GIT_COMMITTER_NAME=forge-test", "GIT_COMMITTER_EMAIL=forge-test@example.com",
	)
	out, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "git %v: %s", args, out)
}

func writeServiceFixture(t *testing.T, dir string) {
	t.Helper()
	svc := filepath.Join(dir, "svc")
	require.NoError(t, os.MkdirAll(svc, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(svc, "requirements.txt"), []byte("flask\nboto3\n"), 0o644))
	py := `import boto3
t = boto3.resource('dynamodb').Table('users')
t.get_item(Key={'id': '1'})
`
	require.NoError(t, os.WriteFile(filepath.Join(svc, "app.py"), []byte(py), 0o644))
}

func newTestRepo(t *testing.T) string {
	t.Helper()
	requireGit(t)
	dir := t.TempDir()
	gitCmd(t, dir, "init")
	writeServiceFixture(t, dir)
	gitCmd(t, dir, "add", ".")
	gitCmd(t, dir, "commit", "-m", "initial")
	return dir
}

func baseConfig(t *testing.T, repoDir, graphPath, statePath string) Config {
	t.Helper()
	return Config{
		Registry:  parser.DefaultRegistry(),
		Provider:  local.New(),
		Repos:     []repoprovider.RepoRef{{FullName: repoDir, CloneURL: repoDir}},
		GraphPath: graphPath,
		StatePath: statePath,
		Now:       fixedNow,
	}
}

// TestRunFullSurveyBuildsGraph mirrors spec.md §8.2 scenario 1's single-side
// access pattern: a full survey of the fixture repo produces a service node
// and a database node connected by a Reads edge.
func TestRunFullSurveyBuildsGraph(t *testing.T) {
	repoDir := newTestRepo(t)
	workDir := t.TempDir()
	cfg := baseConfig(t, repoDir, filepath.Join(workDir, "graph.json"), filepath.Join(workDir, "state.json"))

	result, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, result.Repos, 1)
	require.NoError(t, result.Repos[0].Err)
	require.True(t, result.Repos[0].FullReparse)

	repoName := filepath.Base(repoDir)
	svcID := graph.MustNodeId(graph.NodeService, repoName, "svc")
	dbID := graph.MustNodeId(graph.NodeDatabase, repoName, "users")
	require.NotNil(t, result.Graph.Node(svcID))
	require.NotNil(t, result.Graph.Node(dbID))
	require.NotNil(t, result.Graph.Edge(graph.Key{Source: svcID, Target: dbID, Type: graph.EdgeReads}))
}

// TestRunIncrementalSkipsUnchangedRepo covers spec.md §8.2 scenario 5: a
// second incremental run against an unchanged commit reports the repo as
// skipped, with no error.
func TestRunIncrementalSkipsUnchangedRepo(t *testing.T) {
	repoDir := newTestRepo(t)
	workDir := t.TempDir()
	graphPath := filepath.Join(workDir, "graph.json")
	statePath := filepath.Join(workDir, "state.json")

	cfg := baseConfig(t, repoDir, graphPath, statePath)
	_, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	cfg.Incremental = true
	second, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, second.Repos, 1)
	require.True(t, second.Repos[0].Skipped)
	require.NoError(t, second.Repos[0].Err)
}

// TestRunIncrementalPicksUpAddedFile commits a new file after the first
// survey and checks the second incremental run reparses only the delta.
func TestRunIncrementalPicksUpAddedFile(t *testing.T) {
	repoDir := newTestRepo(t)
	workDir := t.TempDir()
	graphPath := filepath.Join(workDir, "graph.json")
	statePath := filepath.Join(workDir, "state.json")

	cfg := baseConfig(t, repoDir, graphPath, statePath)
	_, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	svc2 := filepath.Join(repoDir, "svc2")
	require.NoError(t, os.MkdirAll(svc2, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(svc2, "requirements.txt"), []byte("fastapi\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(svc2, "app.py"), []byte("import boto3\n"), 0o644))
	gitCmd(t, repoDir, "add", ".")
	gitCmd(t, repoDir, "commit", "-m", "add svc2")

	cfg.Incremental = true
	second, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, second.Repos, 1)
	require.False(t, second.Repos[0].Skipped)
	require.False(t, second.Repos[0].FullReparse)
	require.Equal(t, 2, second.Repos[0].FilesAdded)

	repoName := filepath.Base(repoDir)
	svc2ID := graph.MustNodeId(graph.NodeService, repoName, "svc2")
	require.NotNil(t, second.Graph.Node(svc2ID))
}

// TestAnnotationPreservedAcrossResurvey checks spec.md §3.1 invariant (e):
// a human-authored purpose survives a subsequent automated full survey.
func TestAnnotationPreservedAcrossResurvey(t *testing.T) {
	repoDir := newTestRepo(t)
	workDir := t.TempDir()
	graphPath := filepath.Join(workDir, "graph.json")
	statePath := filepath.Join(workDir, "state.json")

	cfg := baseConfig(t, repoDir, graphPath, statePath)
	first, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	repoName := filepath.Base(repoDir)
	svcID := graph.MustNodeId(graph.NodeService, repoName, "svc")
	svc := first.Graph.Node(svcID)
	require.NotNil(t, svc)
	svc.EnsureContext().Purpose = "handles user accounts"
	require.NoError(t, first.Graph.Save(graphPath))

	second, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	reloaded := second.Graph.Node(svcID)
	require.NotNil(t, reloaded)
	require.Equal(t, "handles user accounts", reloaded.Context.Purpose)
}

func TestApplyEnvironmentsFirstMatchWins(t *testing.T) {
	g := graph.New("forge", fixedNow)
	id := graph.MustNodeId(graph.NodeService, "payments-api", "payments-api")
	n, err := graph.NewNode(id, graph.NodeService, "payments-api", graph.Attributes{}, graph.NewMetadata(graph.SourceUnknown, fixedNow))
	require.NoError(t, err)
	require.NoError(t, g.UpsertNode(n))

	rules := []EnvironmentRule{
		{Name: "production", AWSAccountID: "111", Pattern: "payments-*"},
		{Name: "staging", Pattern: "*"},
	}
	applyEnvironments(g, rules, fixedNow)

	got := g.Node(id)
	require.Equal(t, "production", got.Attributes.Environment())
	require.Equal(t, "111", got.Attributes.AWSAccountID())
}

package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/garrettyarmo/forge-sub000/internal/config"
	"github.com/garrettyarmo/forge-sub000/internal/repoprovider"
)

func TestExcludedMatchesExactOrSubstring(t *testing.T) {
	require.True(t, excluded("acme/legacy-service", []string{"acme/legacy-service"}))
	require.True(t, excluded("acme/legacy-service", []string{"legacy"}))
	require.False(t, excluded("acme/payments-api", []string{"legacy"}))
}

func TestFilterRepoNamesEmptyWantsReturnsAll(t *testing.T) {
	surveyRepos = nil
	refs := []repoprovider.RepoRef{{FullName: "acme/a"}, {FullName: "acme/b"}}
	out := filterRepoNames(refs)
	require.Equal(t, refs, out)
}

func TestFilterRepoNamesMatchesFullNameOrBasename(t *testing.T) {
	surveyRepos = []string{"b"}
	t.Cleanup(func() { surveyRepos = nil })
	refs := []repoprovider.RepoRef{{FullName: "acme/a"}, {FullName: "acme/b"}}
	out := filterRepoNames(refs)
	require.Len(t, out, 1)
	require.Equal(t, "acme/b", out[0].FullName)
}

func TestEnvironmentRulesPreservesOrder(t *testing.T) {
	mappings := []config.EnvironmentMapping{
		{Name: "production", AWSAccountID: "111", Repos: "payments-*"},
		{Name: "staging", Repos: "*"},
	}
	rules := environmentRules(mappings)
	require.Len(t, rules, 2)
	require.Equal(t, "production", rules[0].Name)
	require.Equal(t, "111", rules[0].AWSAccountID)
	require.Equal(t, "payments-*", rules[0].Pattern)
	require.Equal(t, "staging", rules[1].Name)
}

func TestStateCompanionPathDerivesFromGraphPath(t *testing.T) {
	require.Equal(t, "/tmp/.forge/graph.state.json", stateCompanionPath("/tmp/.forge/graph.json"))
}

func TestBuildInterviewerNoneReturnsNil(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.Provider = ""
	i, err := buildInterviewer(cfg)
	require.NoError(t, err)
	require.Nil(t, i)
}

func TestBuildInterviewerUnknownProviderErrors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "bogus"
	_, err := buildInterviewer(cfg)
	require.Error(t, err)
}

func TestBuildInterviewerClaudeCLIBuildsClient(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "claude_cli"
	i, err := buildInterviewer(cfg)
	require.NoError(t, err)
	require.NotNil(t, i)
}

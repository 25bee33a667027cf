package survey

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadStateMissingFileReturnsEmpty(t *testing.T) {
	s, err := LoadState(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.Equal(t, StateVersion, s.Version)
	require.Empty(t, s.Repos)
}

func TestStateSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := EmptyState()
	s.Repos["acme/svc"] = RepoState{
		CommitSHA:      "deadbeef",
		LastSurveyed:   fixedNow,
		FileHashes:     map[string]string{"app.py": "abc123"},
		DiscoveryCount: 3,
	}
	require.NoError(t, s.Save(path))

	reloaded, err := LoadState(path)
	require.NoError(t, err)
	require.Equal(t, s.Repos["acme/svc"].CommitSHA, reloaded.Repos["acme/svc"].CommitSHA)
	require.Equal(t, s.Repos["acme/svc"].DiscoveryCount, reloaded.Repos["acme/svc"].DiscoveryCount)
	require.Equal(t, "abc123", reloaded.Repos["acme/svc"].FileHashes["app.py"])
}

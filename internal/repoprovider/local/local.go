// Package local implements repoprovider.Provider over directories the
// caller already has on disk (spec.md §6.1's `--repos` local-path mode).
package local

import (
	"context"
	"fmt"
	"os"

	"github.com/garrettyarmo/forge-sub000/internal/repoprovider"
)

// Provider is a pass-through repoprovider.Provider: every RepoRef.CloneURL
// is already a local filesystem path.
type Provider struct{}

// New returns a local-path provider.
func New() *Provider { return &Provider{} }

// ListRepos treats org as a single path and returns one RepoRef for it; the
// local provider has no notion of an organization beyond a directory.
func (p *Provider) ListRepos(_ context.Context, org string) ([]repoprovider.RepoRef, error) {
	info, err := os.Stat(org)
	if err != nil {
		return nil, fmt.Errorf("local: stat %s: %w", org, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("local: %s is not a directory", org)
	}
	return []repoprovider.RepoRef{{FullName: org, CloneURL: org}}, nil
}

// EnsureRepo verifies repo.CloneURL exists on disk and returns it unchanged.
// ref is ignored: local paths are surveyed at their current working-tree
// state, not at a specific commit.
func (p *Provider) EnsureRepo(_ context.Context, repo repoprovider.RepoRef, _ string) (string, error) {
	info, err := os.Stat(repo.CloneURL)
	if err != nil {
		return "", fmt.Errorf("local: stat %s: %w", repo.CloneURL, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("local: %s is not a directory", repo.CloneURL)
	}
	return repo.CloneURL, nil
}

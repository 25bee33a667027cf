// Package repoprovider implements the "Repo provider" external collaborator
// interface of spec.md §6.4: making repositories available at a local path
// with a valid working tree and git history.
package repoprovider

import "context"

// RepoRef identifies one repository a provider can resolve to a local path.
type RepoRef struct {
	FullName string
	CloneURL string
}

// Provider lists and materializes repositories locally.
type Provider interface {
	// ListRepos enumerates every repository under org.
	ListRepos(ctx context.Context, org string) ([]RepoRef, error)
	// EnsureRepo returns a local path with repo checked out at ref (the
	// empty string means the provider's default branch), cloning or
	// fetching as needed.
	EnsureRepo(ctx context.Context, repo RepoRef, ref string) (string, error)
}

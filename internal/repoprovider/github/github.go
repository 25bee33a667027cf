// Package github implements repoprovider.Provider against the GitHub API
// for listing and git (as a subprocess) for materializing repositories
// locally, grounded on the go-github + oauth2 client construction pattern
// used elsewhere in this ecosystem.
package github

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	gogithub "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/garrettyarmo/forge-sub000/internal/logging"
	"github.com/garrettyarmo/forge-sub000/internal/repoprovider"
)

// Provider lists repos via the GitHub REST API and caches working trees
// under cacheDir, cloning or fetching with the system git binary.
type Provider struct {
	client   *gogithub.Client
	cacheDir string
}

// New returns a Provider authenticated with token (may be empty for
// unauthenticated, rate-limited access to public repos), caching checkouts
// under cacheDir.
func New(token, cacheDir string) *Provider {
	var hc = gogithub.NewClient(nil)
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		tc := oauth2.NewClient(context.Background(), ts)
		hc = gogithub.NewClient(tc)
	}
	return &Provider{client: hc, cacheDir: cacheDir}
}

// ListRepos enumerates every non-archived repository under org (spec.md
// §6.4 "list_repos").
func (p *Provider) ListRepos(ctx context.Context, org string) ([]repoprovider.RepoRef, error) {
	opts := &gogithub.RepositoryListByOrgOptions{
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}
	var out []repoprovider.RepoRef
	for {
		repos, resp, err := p.client.Repositories.ListByOrg(ctx, org, opts)
		if err != nil {
			return nil, fmt.Errorf("github: list repos for %s: %w", org, err)
		}
		for _, r := range repos {
			if r.GetArchived() {
				continue
			}
			out = append(out, repoprovider.RepoRef{FullName: r.GetFullName(), CloneURL: r.GetCloneURL()})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// EnsureRepo clones repo into the cache directory if absent, or fetches and
// checks out ref if already present (spec.md §6.4 "ensure_repo").
func (p *Provider) EnsureRepo(ctx context.Context, repo repoprovider.RepoRef, ref string) (string, error) {
	dest := filepath.Join(p.cacheDir, sanitize(repo.FullName))
	if _, err := os.Stat(filepath.Join(dest, ".git")); err == nil {
		if err := p.fetch(ctx, dest); err != nil {
			return "", err
		}
	} else {
		if err := p.clone(ctx, repo.CloneURL, dest); err != nil {
			return "", err
		}
	}
	if ref != "" {
		if err := runGit(ctx, dest, "checkout", ref); err != nil {
			return "", fmt.Errorf("github: checkout %s in %s: %w", ref, repo.FullName, err)
		}
	}
	return dest, nil
}

func (p *Provider) clone(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("github: mkdir %s: %w", dest, err)
	}
	logging.Boot("cloning %s into %s", url, dest)
	if err := runGit(ctx, "", "clone", url, dest); err != nil {
		return fmt.Errorf("github: clone %s: %w", url, err)
	}
	return nil
}

func (p *Provider) fetch(ctx context.Context, dest string) error {
	if err := runGit(ctx, dest, "fetch", "--all"); err != nil {
		return fmt.Errorf("github: fetch in %s: %w", dest, err)
	}
	return nil
}

func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %v: %w: %s", args, err, out)
	}
	return nil
}

func sanitize(fullName string) string {
	out := make([]rune, 0, len(fullName))
	for _, r := range fullName {
		if r == '/' {
			out = append(out, '-')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/garrettyarmo/forge-sub000/internal/repoprovider"
)

func TestListReposReturnsSingleRefForDirectory(t *testing.T) {
	dir := t.TempDir()
	p := New()
	refs, err := p.ListRepos(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Equal(t, dir, refs[0].FullName)
	require.Equal(t, dir, refs[0].CloneURL)
}

func TestListReposRejectsMissingPath(t *testing.T) {
	p := New()
	_, err := p.ListRepos(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestListReposRejectsNonDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notadir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	p := New()
	_, err := p.ListRepos(context.Background(), file)
	require.Error(t, err)
}

func TestEnsureRepoReturnsCloneURLUnchanged(t *testing.T) {
	dir := t.TempDir()
	p := New()
	path, err := p.EnsureRepo(context.Background(), repoprovider.RepoRef{FullName: dir, CloneURL: dir}, "ignored-ref")
	require.NoError(t, err)
	require.Equal(t, dir, path)
}

func TestEnsureRepoRejectsMissingPath(t *testing.T) {
	p := New()
	missing := filepath.Join(t.TempDir(), "nope")
	_, err := p.EnsureRepo(context.Background(), repoprovider.RepoRef{FullName: missing, CloneURL: missing}, "")
	require.Error(t, err)
}

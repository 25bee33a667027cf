package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitializeRequiresWorkspace(t *testing.T) {
	require.Error(t, Initialize("", true, "debug", false, nil))
}

func TestInitializeWithoutDebugModeSkipsLogDirCreation(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, false, "info", false, nil))
	require.False(t, IsDebugMode())
}

func TestInitializeWithDebugModeCreatesLogDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, true, "debug", false, nil))
	t.Cleanup(CloseAll)
	require.True(t, IsDebugMode())

	logger := Get(CategoryParser)
	logger.Info("hello %s", "world")

	entries, err := filepath.Glob(filepath.Join(dir, ".forge", "logs", "*_parser.log"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestCategoryDisabledViaExplicitFalseIsNoOp(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, true, "debug", false, map[string]bool{"parser": false}))
	t.Cleanup(CloseAll)

	require.False(t, isCategoryEnabled(CategoryParser))
	require.True(t, isCategoryEnabled(CategoryBuilder))
}

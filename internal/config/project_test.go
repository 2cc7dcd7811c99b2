package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/greenledger/internal/config"
)

func makeProject(t *testing.T, root string) string {
	t.Helper()
	dir := filepath.Join(root, config.ProjectDirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return dir
}

func TestResolveProjectDir_FlagOverridesEnv(t *testing.T) {
	envDir := t.TempDir()
	flagDir := t.TempDir()
	t.Setenv("GREENLEDGER_PROJECT_DIR", envDir)

	got := config.ResolveProjectDir(context.Background(), flagDir, "/does/not/matter")
	assert.Equal(t, filepath.Join(flagDir, ".greenledger"), got)
}

func TestResolveProjectDir_EnvVarOverride(t *testing.T) {
	envDir := t.TempDir()
	t.Setenv("GREENLEDGER_PROJECT_DIR", envDir)

	got := config.ResolveProjectDir(context.Background(), "", "/does/not/matter")
	assert.Equal(t, filepath.Join(envDir, ".greenledger"), got)
	assert.True(t, filepath.IsAbs(got))
}

func TestResolveProjectDir_NoDoubleAppend(t *testing.T) {
	t.Setenv("GREENLEDGER_PROJECT_DIR", "")
	dir := filepath.Join(t.TempDir(), ".greenledger")

	assert.Equal(t, dir, config.ResolveProjectDir(context.Background(), dir, ""))
}

func TestResolveProjectDir_WalkUp(t *testing.T) {
	t.Setenv("GREENLEDGER_PROJECT_DIR", "")
	root := t.TempDir()
	makeProject(t, root)
	subDir := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(subDir, 0o755))

	got := config.ResolveProjectDir(context.Background(), "", subDir)
	assert.Equal(t, filepath.Join(root, ".greenledger"), got)
}

func TestResolveProjectDir_FileNamedLikeProjectIsSkipped(t *testing.T) {
	t.Setenv("GREENLEDGER_PROJECT_DIR", "")
	root := t.TempDir()
	makeProject(t, root)
	inner := filepath.Join(root, "inner")
	require.NoError(t, os.MkdirAll(inner, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(inner, config.ProjectDirName), nil, 0o600))

	got := config.ResolveProjectDir(context.Background(), "", inner)
	assert.Equal(t, filepath.Join(root, ".greenledger"), got)
}

func TestFindProject_None(t *testing.T) {
	_, err := config.FindProject(t.TempDir())
	// A .greenledger directory above the temp dir would be unusual but possible.
	if err != nil {
		require.ErrorIs(t, err, config.ErrNoProject)
	}
}

func TestResolvedProjectDir(t *testing.T) {
	t.Cleanup(func() { config.SetResolvedProjectDir("") })
	config.SetResolvedProjectDir("/srv/ledger/.greenledger")
	assert.Equal(t, "/srv/ledger/.greenledger", config.GetResolvedProjectDir())
}

func TestNewWithProjectDir(t *testing.T) {
	t.Setenv("GREENLEDGER_HOME", t.TempDir())
	t.Setenv("GREENLEDGER_OUTPUT_FORMAT", "")
	t.Setenv("GREENLEDGER_STORAGE_DRIVER", "")
	t.Setenv("GREENLEDGER_STORAGE_DSN", "")
	projectDir := makeProject(t, t.TempDir())

	ctx := context.Background()
	assert.Equal(t, "table", config.NewWithProjectDir(ctx, projectDir).Output.DefaultFormat, "no overlay file")

	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "config.yaml"), []byte(`
output:
  default_format: json
  precision: 1
storage:
  driver: sqlite
  batch_size: 10
`), 0o600))

	cfg := config.NewWithProjectDir(ctx, projectDir)
	assert.Equal(t, "json", cfg.Output.DefaultFormat)
	assert.Equal(t, filepath.Join(projectDir, "greenledger.db"), cfg.Storage.DSN)

	assert.Equal(t, "table", config.NewWithProjectDir(ctx, "").Output.DefaultFormat)

	t.Setenv("GREENLEDGER_OUTPUT_FORMAT", "ndjson")
	assert.Equal(t, "ndjson", config.NewWithProjectDir(ctx, projectDir).Output.DefaultFormat, "env wins")
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalConfig(t *testing.T) {
	stubHome(t)

	cfg := GetGlobalConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, "table", cfg.Output.DefaultFormat)
	assert.Same(t, cfg, GetGlobalConfig())

	ResetGlobalConfigForTest()
	assert.NotSame(t, cfg, GetGlobalConfig())
}

func TestInitGlobalConfigWithProjectDir(t *testing.T) {
	stubHome(t)
	projectDir := filepath.Join(t.TempDir(), ProjectDirName)
	require.NoError(t, os.MkdirAll(projectDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "config.yaml"),
		[]byte("output:\n  default_format: ndjson\n  precision: 3\n"), 0o600))

	InitGlobalConfigWithProjectDir(t.Context(), projectDir)
	cfg := GetGlobalConfig()
	assert.Equal(t, "ndjson", cfg.Output.DefaultFormat)
	assert.Equal(t, 3, cfg.Output.Precision)

	// already initialized: the second overlay is ignored
	InitGlobalConfigWithProjectDir(t.Context(), "")
	assert.Same(t, cfg, GetGlobalConfig())
}

func TestConfigGetters(t *testing.T) {
	stubHome(t)
	cfg := GetGlobalConfig()
	cfg.Output.DefaultFormat = "json"
	cfg.Logging.Level = "debug"
	cfg.Logging.File = "/tmp/test.log"

	assert.Equal(t, "json", GetDefaultOutputFormat())
	assert.Equal(t, "ndjson", GetOutputFormat("ndjson"))
	assert.Equal(t, "json", GetOutputFormat(""))
	assert.Equal(t, "/tmp/test.log", GetLogFile())
	assert.Equal(t, "debug", GetLoggingConfig().Level)
}

func TestGetConfigDir(t *testing.T) {
	t.Run("GREENLEDGER_HOME wins", func(t *testing.T) {
		home := stubHome(t)
		dir, err := GetConfigDir()
		require.NoError(t, err)
		assert.Equal(t, home, dir)
	})

	t.Run("falls back to the user home", func(t *testing.T) {
		tmpHome := t.TempDir()
		t.Setenv("GREENLEDGER_HOME", "")
		t.Setenv("HOME", tmpHome)
		t.Setenv("USERPROFILE", tmpHome)

		dir, err := GetConfigDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(tmpHome, ".greenledger"), dir)
	})
}

func TestEnsureSubDirs(t *testing.T) {
	home := stubHome(t)
	cfg := GetGlobalConfig()
	cfg.Logging.File = filepath.Join(home, "logs", "greenledger.log")

	require.NoError(t, EnsureSubDirs())

	for _, dir := range []string{home, filepath.Join(home, "reference"), filepath.Join(home, "logs")} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir(), dir)
	}
}

func TestEnsureLogDirError(t *testing.T) {
	home := stubHome(t)
	blocker := filepath.Join(home, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	cfg := GetGlobalConfig()
	cfg.Logging.File = filepath.Join(blocker, "subdir", "test.log")

	assert.Error(t, EnsureLogDir())
}

func TestInitLogger_WritesFile(t *testing.T) {
	home := stubHome(t)
	logFile := filepath.Join(home, "logs", "greenledger.log")
	GetGlobalConfig().Logging.File = logFile
	t.Cleanup(func() {
		CloseLogFile()
		_ = InitLogger("info", false)
	})

	require.NoError(t, InitLogger("debug", true))
	logger := GetLogger()
	logger.Debug().Msg("hello file")
	CloseLogFile()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/greenledger/internal/esg"
)

// stubHome points GREENLEDGER_HOME at a fresh directory and clears the
// environment overrides.
func stubHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("GREENLEDGER_HOME", home)
	for _, env := range []string{
		"GREENLEDGER_OUTPUT_FORMAT", "GREENLEDGER_LOG_LEVEL", "GREENLEDGER_LOG_FORMAT",
		"GREENLEDGER_LOG_FILE", "GREENLEDGER_GWP_SET", "GREENLEDGER_UNKNOWN_UNCERTAINTY",
		"GREENLEDGER_STORAGE_DRIVER", "GREENLEDGER_STORAGE_DSN", "GREENLEDGER_SERVER_ADDR",
		"GREENLEDGER_REFERENCE_PATH", "GREENLEDGER_INCLUDE_DRAFTS", "GREENLEDGER_PROJECT_DIR",
	} {
		t.Setenv(env, "")
	}
	ResetGlobalConfigForTest()
	t.Cleanup(ResetGlobalConfigForTest)
	return home
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	cfg.Storage.DSN = "unused.db"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, FormatTable, cfg.Output.DefaultFormat)
	assert.Equal(t, "ar4", cfg.Scoring.GWPSet)
	assert.InDelta(t, 2.0, cfg.Scoring.CoverageFactor, 0)
	assert.Equal(t, esg.DefaultWeights(), cfg.Scoring.ESGWeights)
}

func TestNew_UsesHomeDefaults(t *testing.T) {
	home := stubHome(t)

	cfg := New()
	assert.Equal(t, filepath.Join(home, "config.yaml"), cfg.ConfigPath())
	assert.Equal(t, filepath.Join(home, "greenledger.db"), cfg.Storage.DSN)
	require.NoError(t, cfg.Validate())
}

func TestSaveThenNew_RoundTrips(t *testing.T) {
	stubHome(t)

	cfg := New()
	cfg.Output.Precision = 4
	cfg.Scoring.GWPSet = "ar6"
	cfg.Server.ReadTimeout = 3 * time.Second
	require.NoError(t, cfg.Save())

	info, err := os.Stat(cfg.ConfigPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reloaded := New()
	assert.Equal(t, 4, reloaded.Output.Precision)
	assert.Equal(t, "ar6", reloaded.Scoring.GWPSet)
	assert.Equal(t, 3*time.Second, reloaded.Server.ReadTimeout)
}

func TestNew_PartialFileKeepsDefaults(t *testing.T) {
	home := stubHome(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte("output:\n  precision: 5\n"), 0o600))

	cfg := New()
	assert.Equal(t, 5, cfg.Output.Precision)
	assert.Equal(t, FormatTable, cfg.Output.DefaultFormat)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestNew_MalformedFileIgnored(t *testing.T) {
	home := stubHome(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte("output: [\n"), 0o600))

	cfg := New()
	assert.Equal(t, FormatTable, cfg.Output.DefaultFormat)
}

func TestNew_EnvironmentOverrides(t *testing.T) {
	stubHome(t)
	t.Setenv("GREENLEDGER_OUTPUT_FORMAT", "json")
	t.Setenv("GREENLEDGER_STORAGE_DRIVER", "memory")
	t.Setenv("GREENLEDGER_GWP_SET", "ar5")
	t.Setenv("GREENLEDGER_INCLUDE_DRAFTS", "true")

	cfg := New()
	assert.Equal(t, FormatJSON, cfg.Output.DefaultFormat)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "ar5", cfg.Scoring.GWPSet)
	assert.True(t, cfg.Scoring.IncludeDrafts)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "format", mutate: func(c *Config) { c.Output.DefaultFormat = "xml" }, want: "output.default_format"},
		{name: "precision", mutate: func(c *Config) { c.Output.Precision = 11 }, want: "output.precision"},
		{name: "log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, want: "logging.level"},
		{name: "gwp", mutate: func(c *Config) { c.Scoring.GWPSet = "sar" }, want: "scoring.gwp_set"},
		{name: "coverage", mutate: func(c *Config) { c.Scoring.CoverageFactor = 0 }, want: "scoring.coverage_factor"},
		{name: "policy", mutate: func(c *Config) { c.Scoring.UnknownUncertainty = "ignore" }, want: "scoring.unknown_uncertainty"},
		{
			name:   "weights",
			mutate: func(c *Config) { c.Scoring.ESGWeights = esg.Weights{Environment: 1, Social: 1} },
			want:   "scoring.esg_weights",
		},
		{name: "driver", mutate: func(c *Config) { c.Storage.Driver = "mongo" }, want: "storage.driver"},
		{name: "dsn", mutate: func(c *Config) { c.Storage.Driver = DriverPostgres; c.Storage.DSN = "" }, want: "storage.dsn"},
		{name: "batch", mutate: func(c *Config) { c.Storage.BatchSize = 0 }, want: "storage.batch_size"},
		{name: "addr", mutate: func(c *Config) { c.Server.Addr = "" }, want: "server.addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Storage.DSN = "x.db"
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSave_NoPath(t *testing.T) {
	require.Error(t, Default().Save())
}

func TestToLoggingConfig(t *testing.T) {
	lc := LoggingConfig{Level: "debug", Format: "json"}
	got := lc.ToLoggingConfig()
	assert.Equal(t, "stderr", got.Output)

	lc.File = "/var/log/greenledger.log"
	got = lc.ToLoggingConfig()
	assert.Equal(t, "file", got.Output)
	assert.Equal(t, lc.File, got.File)
}

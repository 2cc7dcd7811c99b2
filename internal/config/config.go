// Package config loads, validates and saves the greenledger configuration
// file at $GREENLEDGER_HOME/config.yaml (default ~/.greenledger/config.yaml).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rshade/greenledger/internal/esg"
	"github.com/rshade/greenledger/internal/greenops"
	"github.com/rshade/greenledger/internal/uncertainty"
)

// Supported output formats.
const (
	FormatTable  = "table"
	FormatJSON   = "json"
	FormatNDJSON = "ndjson"
)

// Supported storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	outputTypeFile = "file"

	defaultPrecision     = 2
	defaultServerAddr    = "127.0.0.1:8080"
	defaultReadTimeout   = 10 * time.Second
	defaultWriteTimeout  = 30 * time.Second
	defaultRefConstraint = ">= 1.0.0, < 2.0.0"
	maxPrecision         = 10
	configFileName       = "config.yaml"
	configFilePerm       = 0o600
	configDirPerm        = 0o700
)

// Config is the complete greenledger configuration.
type Config struct {
	Output    OutputConfig    `yaml:"output"    json:"output"`
	Logging   LoggingConfig   `yaml:"logging"   json:"logging"`
	Scoring   ScoringConfig   `yaml:"scoring"   json:"scoring"`
	Storage   StorageConfig   `yaml:"storage"   json:"storage"`
	Server    ServerConfig    `yaml:"server"    json:"server"`
	Reference ReferenceConfig `yaml:"reference" json:"reference"`

	configPath string
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format" json:"default_format"`
	Precision     int    `yaml:"precision"      json:"precision"`
}

// LoggingConfig controls the zerolog logger.
type LoggingConfig struct {
	Level  string `yaml:"level"          json:"level"`
	Format string `yaml:"format"         json:"format"`
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
}

// ScoringConfig holds the tunable constants of the scoring pipeline.
type ScoringConfig struct {
	// GWPSet names the Global Warming Potential table (ar4, ar5, ar6).
	GWPSet string `yaml:"gwp_set" json:"gwp_set"`
	// CoverageFactor is k in U = k × u_c.
	CoverageFactor float64 `yaml:"coverage_factor" json:"coverage_factor"`
	// UnknownUncertainty is "zero" or "invalidate".
	UnknownUncertainty string `yaml:"unknown_uncertainty" json:"unknown_uncertainty"`
	// IncludeDrafts counts unvalidated OCR drafts in totals.
	IncludeDrafts bool `yaml:"include_drafts" json:"include_drafts"`
	// ESGWeights are the pillar weights; they must sum to 1.
	ESGWeights esg.Weights `yaml:"esg_weights" json:"esg_weights"`
}

// StorageConfig selects the entry repository.
type StorageConfig struct {
	Driver string `yaml:"driver"          json:"driver"`
	// DSN is a file path for sqlite and a connection URL for postgres.
	DSN string `yaml:"dsn,omitempty"   json:"dsn,omitempty"`
	// BatchSize bounds the entries written per import batch.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr         string        `yaml:"addr"          json:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"  json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// ReferenceConfig locates the sector and taxonomy reference dataset.
type ReferenceConfig struct {
	// Path to a YAML dataset; empty uses the embedded one.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// Constraint is the semver range the dataset version must satisfy.
	Constraint string `yaml:"constraint" json:"constraint"`
}

// Default returns a Config holding only built-in defaults, without reading
// the file system or the environment.
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			DefaultFormat: FormatTable,
			Precision:     defaultPrecision,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Scoring: ScoringConfig{
			GWPSet:             greenops.DefaultGWPSet,
			CoverageFactor:     uncertainty.DefaultCoverageFactor,
			UnknownUncertainty: string(uncertainty.PolicyZero),
			ESGWeights:         esg.DefaultWeights(),
		},
		Storage: StorageConfig{
			Driver:    DriverSQLite,
			BatchSize: 100,
		},
		Server: ServerConfig{
			Addr:         defaultServerAddr,
			ReadTimeout:  defaultReadTimeout,
			WriteTimeout: defaultWriteTimeout,
		},
		Reference: ReferenceConfig{
			Constraint: defaultRefConstraint,
		},
	}
}

// New returns the effective configuration: defaults, overlaid by the config
// file when it exists, overlaid by GREENLEDGER_* environment variables. A
// malformed file is reported on the package logger and ignored.
func New() *Config {
	cfg := Default()

	dir, err := GetConfigDir()
	if err == nil {
		cfg.configPath = filepath.Join(dir, configFileName)
		if loadErr := cfg.Load(); loadErr != nil && !errors.Is(loadErr, os.ErrNotExist) {
			logger := GetLogger()
			logger.Warn().
				Str("component", "config").
				Err(loadErr).
				Str("path", cfg.configPath).
				Msg("ignoring unreadable configuration file")
		}
	}

	cfg.applyEnv()
	if cfg.Storage.DSN == "" && cfg.Storage.Driver == DriverSQLite && dir != "" {
		cfg.Storage.DSN = filepath.Join(dir, "greenledger.db")
	}
	return cfg
}

// ConfigPath returns the file Load and Save use.
func (c *Config) ConfigPath() string {
	return c.configPath
}

// SetConfigPath changes the file Load and Save use.
func (c *Config) SetConfigPath(path string) {
	c.configPath = path
}

// Load reads ConfigPath onto c. Sections absent from the file keep their
// current values.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.configPath)
	if err != nil {
		return err
	}
	if err = yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", c.configPath, err)
	}
	return nil
}

// Save writes c to ConfigPath, creating its directory.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.New("no configuration path set")
	}
	if err := os.MkdirAll(filepath.Dir(c.configPath), configDirPerm); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	if err = os.WriteFile(c.configPath, data, configFilePerm); err != nil {
		return fmt.Errorf("writing %s: %w", c.configPath, err)
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if !slices.Contains([]string{FormatTable, FormatJSON, FormatNDJSON}, c.Output.DefaultFormat) {
		return fmt.Errorf("output.default_format: unsupported format %q", c.Output.DefaultFormat)
	}
	if c.Output.Precision < 0 || c.Output.Precision > maxPrecision {
		return fmt.Errorf("output.precision: must be between 0 and %d, got %d", maxPrecision, c.Output.Precision)
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Scoring.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr: must not be empty")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return errors.New("server: timeouts must not be negative")
	}
	return nil
}

// Validate checks the logging section.
func (lc LoggingConfig) Validate() error {
	if !slices.Contains([]string{"trace", "debug", "info", "warn", "error"}, lc.Level) {
		return fmt.Errorf("logging.level: unsupported level %q", lc.Level)
	}
	if !slices.Contains([]string{"json", "console"}, lc.Format) {
		return fmt.Errorf("logging.format: unsupported format %q", lc.Format)
	}
	return nil
}

// Validate checks the scoring section.
func (sc ScoringConfig) Validate() error {
	if _, err := greenops.LookupGWPTable(sc.GWPSet); err != nil {
		return fmt.Errorf("scoring.gwp_set: %w", err)
	}
	if _, err := uncertainty.Expand(0, sc.CoverageFactor); err != nil {
		return fmt.Errorf("scoring.coverage_factor: %w", err)
	}
	if _, err := uncertainty.ParsePolicy(sc.UnknownUncertainty); err != nil {
		return fmt.Errorf("scoring.unknown_uncertainty: %w", err)
	}
	if err := sc.ESGWeights.Validate(); err != nil {
		return fmt.Errorf("scoring.esg_weights: %w", err)
	}
	return nil
}

// Validate checks the storage section.
func (sc StorageConfig) Validate() error {
	switch sc.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if sc.DSN == "" {
			return fmt.Errorf("storage.dsn: required for driver %q", sc.Driver)
		}
	default:
		return fmt.Errorf("storage.driver: unsupported driver %q", sc.Driver)
	}
	if sc.BatchSize <= 0 {
		return fmt.Errorf("storage.batch_size: must be positive, got %d", sc.BatchSize)
	}
	return nil
}

// applyEnv overlays GREENLEDGER_* environment variables.
func (c *Config) applyEnv() {
	setString := func(env string, dst *string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	setString("GREENLEDGER_OUTPUT_FORMAT", &c.Output.DefaultFormat)
	setString("GREENLEDGER_LOG_LEVEL", &c.Logging.Level)
	setString("GREENLEDGER_LOG_FORMAT", &c.Logging.Format)
	setString("GREENLEDGER_LOG_FILE", &c.Logging.File)
	setString("GREENLEDGER_GWP_SET", &c.Scoring.GWPSet)
	setString("GREENLEDGER_UNKNOWN_UNCERTAINTY", &c.Scoring.UnknownUncertainty)
	setString("GREENLEDGER_STORAGE_DRIVER", &c.Storage.Driver)
	setString("GREENLEDGER_STORAGE_DSN", &c.Storage.DSN)
	setString("GREENLEDGER_SERVER_ADDR", &c.Server.Addr)
	setString("GREENLEDGER_REFERENCE_PATH", &c.Reference.Path)

	if v := os.Getenv("GREENLEDGER_INCLUDE_DRAFTS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Scoring.IncludeDrafts = b
		}
	}
}

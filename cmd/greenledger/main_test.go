package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/greenledger/internal/cli"
	"github.com/rshade/greenledger/internal/config"
	"github.com/rshade/greenledger/internal/greenops"
	"github.com/rshade/greenledger/pkg/version"
)

func TestMainComponents(t *testing.T) {
	t.Run("version available", func(t *testing.T) {
		assert.NotEmpty(t, version.GetVersion())
		assert.NotEmpty(t, version.GetCommit())
	})

	t.Run("cli root command", func(t *testing.T) {
		root := cli.NewRootCmd(version.GetVersion())
		require.NotNil(t, root)
		assert.Equal(t, "greenledger", root.Use)
	})
}

func TestRun(t *testing.T) {
	t.Setenv("GREENLEDGER_HOME", t.TempDir())
	t.Setenv("GREENLEDGER_PROJECT_DIR", "")
	t.Setenv("GREENLEDGER_STORAGE_DRIVER", "memory")
	config.ResetGlobalConfigForTest()
	t.Cleanup(func() {
		config.ResetGlobalConfigForTest()
		config.SetResolvedProjectDir("")
	})

	require.NoError(t, run(t.Context(), []string{"config", "validate"}))

	err := run(t.Context(), []string{"entries", "add", "--scope", "scope9", "--category", "x"})
	require.Error(t, err)
	assert.Equal(t, exitValidation, exitCode(err))
}

func TestExitCode(t *testing.T) {
	validation := &greenops.ValidationError{Field: "quantity", Value: -1.0, Err: greenops.ErrNegativeQuantity}
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil error returns 0", err: nil, want: 0},
		{name: "validation error", err: validation, want: 2},
		{name: "wrapped validation error", err: fmt.Errorf("adding entry: %w", validation), want: 2},
		{name: "generic error", err: errors.New("store unavailable"), want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/bioadapt/internal/config"
)

func TestNewLogger_ScreenMovesLogsToFile(t *testing.T) {
	cfg := config.Default()
	cfg.Experiment.OutputFolder = t.TempDir()
	cfg.Logging.Output.Stdout = true
	cfg.Logging.Output.File = ""

	logger, err := newLogger(cfg, true)
	require.NoError(t, err)
	logger.Info(context.Background(), "screen is up")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(cfg.Experiment.OutputFolder, "bioadapt.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "screen is up")
	assert.True(t, cfg.Logging.Output.Stdout, "config is not mutated")
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "simulate", "report", "validate", "watch", "version"} {
		assert.Contains(t, names, want)
	}
}

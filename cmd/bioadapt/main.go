// Package main implements the bioadapt CLI: run adaptive learning sessions
// against a headset stream and inspect their results.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/bioadapt/internal/config"
	"github.com/fyrsmithlabs/bioadapt/internal/logging"
)

var (
	// configPath is an explicit config file; empty uses the default location.
	configPath string
	// version is set at build time.
	version = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bioadapt",
	Short: "Biosignal-adaptive learning experiments",
	Long: `bioadapt runs spaced-retrieval learning sessions whose scheduling adapts to a
classifier reading the subject's EEG headset.

A session presents a training phase that calibrates the classifier, seeds a
study list, then runs test rounds where each item's next pool is chosen from
the subject's answer and the classifier's confidence.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/bioadapt/config.yaml)")
}

// loadConfig reads the configuration named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. With the subject screen up, stdout
// belongs to the screen, so logs move to a file in the output folder.
func newLogger(cfg *config.Config, screen bool) (*logging.Logger, error) {
	lc := cfg.Logging
	if screen && lc.Output.Stdout {
		lc.Output.Stdout = false
		if lc.Output.File == "" {
			lc.Output.File = filepath.Join(cfg.Experiment.OutputFolder, "bioadapt.log")
		}
	}
	return logging.NewLogger(&lc, nil)
}

package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/bioadapt/internal/monitor"
)

var (
	watchURL      string
	watchInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a running session from another terminal",
	Long: `Follow a running session from another terminal.

Polls the monitor endpoint of a run started with monitor.enabled and draws
the pool sizes, phase and recent classifier confidence.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchURL, "url", "", "monitor base URL (default from config)")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "poll interval")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	url := watchURL
	if url == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		url = fmt.Sprintf("http://%s:%d", cfg.Monitor.Host, cfg.Monitor.Port)
	}
	p := tea.NewProgram(monitor.NewModel(url, watchInterval), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil && cmd.Context().Err() == nil {
		return fmt.Errorf("running monitor: %w", err)
	}
	return nil
}

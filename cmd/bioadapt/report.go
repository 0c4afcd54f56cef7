package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/bioadapt/internal/experiment"
	"github.com/fyrsmithlabs/bioadapt/internal/runstore"
)

var (
	reportFormat string
	reportTrials bool
)

var reportCmd = &cobra.Command{
	Use:   "report [session-id]",
	Short: "Show stored sessions",
	Long: `Show stored sessions.

Without an argument every session in the run store is listed. With a session
id the session summary and its trial totals are shown.`,
	Example: `  bioadapt report
  bioadapt report 0b6f3c0e-3c1f-4d0e-9b2c-8d1f6b1a2e77 --trials
  bioadapt report 0b6f3c0e-3c1f-4d0e-9b2c-8d1f6b1a2e77 --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "table", "output format: table, json or yaml")
	reportCmd.Flags().BoolVar(&reportTrials, "trials", false, "include every trial record")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	switch reportFormat {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown format %q", reportFormat)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := runstore.Open(cfg.Runstore, zap.NewNop())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		sessions, err := store.Sessions(ctx)
		if err != nil {
			return err
		}
		return writeSessions(out, reportFormat, sessions)
	}

	report, err := store.Load(ctx, args[0], reportTrials)
	if err != nil {
		return err
	}
	return writeReport(out, reportFormat, report)
}

func writeSessions(w io.Writer, format string, sessions []experiment.SessionSummary) error {
	switch format {
	case "json":
		return writeJSON(w, sessions)
	case "yaml":
		return writeYAML(w, sessions)
	}
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions recorded.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tSUBJECT\tPHASE\tROUNDS\tSCORED\tPROMOTED\tSTARTED")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			s.SessionID, s.Subject, s.Phase, s.RoundsCompleted, s.ScoredTrials, s.Promotions,
			s.StartedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func writeReport(w io.Writer, format string, r runstore.Report) error {
	switch format {
	case "json":
		return writeJSON(w, r)
	case "yaml":
		return writeYAML(w, r)
	}

	s := r.Summary
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Session:\t%s\n", s.SessionID)
	fmt.Fprintf(tw, "Subject:\t%s\n", s.Subject)
	fmt.Fprintf(tw, "Experiment:\t%s\n", s.Experiment)
	fmt.Fprintf(tw, "Phase:\t%s\n", s.Phase)
	if s.AbortReason != "" {
		fmt.Fprintf(tw, "Aborted:\t%s\n", s.AbortReason)
	}
	fmt.Fprintf(tw, "Rounds:\t%d\n", s.RoundsCompleted)
	fmt.Fprintf(tw, "Duration:\t%s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Second))
	fmt.Fprintf(tw, "Scored:\t%d (%d correct)\n", r.Totals.Scored, r.Totals.Correct)
	fmt.Fprintf(tw, "Restudied:\t%d\n", r.Totals.Restudied)
	fmt.Fprintf(tw, "Training:\t%d\n", r.Totals.Training)
	fmt.Fprintf(tw, "Artifacts:\t%d\n", r.Totals.Artifacts)
	fmt.Fprintf(tw, "Promoted:\t%d\n", r.Totals.Promoted)
	fmt.Fprintf(tw, "Mean confidence:\t%.3f\n", r.Totals.MeanConfidence)
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(r.Trials) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROUND\tKIND\tSTIMULUS\tCORRECT\tCONFIDENCE\tFROM\tTO\tARTIFACT")
	for _, t := range r.Trials {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
			t.Round, t.Kind, t.Stimulus, optBool(t.Correct), optFloat(t.Confidence), dash(string(t.From)), dash(string(t.To)), t.Artifact)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func optBool(b *bool) string {
	if b == nil {
		return "-"
	}
	return strconv.FormatBool(*b)
}

func optFloat(f *float64) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'f', 3, 64)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

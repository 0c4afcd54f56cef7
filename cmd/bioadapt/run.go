package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bioadapt/internal/experiment"
)

var (
	runHeadless       bool
	runAccuracy       float64
	runSubject        string
	runConnectTimeout time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a learning session",
	Long: `Run a learning session for one subject.

The session waits for the headset to report connected, calibrates the
classifier on the training lists, then runs study and test rounds on the
subject screen. Trial records go to the run store, sample logs go to the
output folder.

With --headless no screen is drawn and answers are simulated, which is
useful for checking a configuration against the mock headset.`,
	RunE: runSession,
}

func init() {
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "run without a subject screen, simulating answers")
	runCmd.Flags().Float64Var(&runAccuracy, "accuracy", 0.7, "simulated answer accuracy with --headless")
	runCmd.Flags().StringVar(&runSubject, "subject", "", "subject name (overrides config)")
	runCmd.Flags().DurationVar(&runConnectTimeout, "connect-timeout", 30*time.Second, "how long to wait for the headset")
	rootCmd.AddCommand(runCmd)
}

func runSession(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runSubject != "" {
		cfg.Experiment.SubjectName = runSubject
	}
	if cfg.Experiment.SubjectName == "" {
		if runHeadless {
			cfg.Experiment.SubjectName = "anonymous"
		} else if cfg.Experiment.SubjectName, err = askSubject(cmd); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg, !runHeadless)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	stim, err := loadStimuli(ctx, cfg)
	if err != nil {
		return err
	}

	sess, err := newSession(ctx, cfg, logger, sessionOptions{
		Headless:         runHeadless,
		HeadlessAccuracy: runAccuracy,
		ConnectTimeout:   runConnectTimeout,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.close(); err != nil {
			logger.Warn(ctx, "closing session", zap.Error(err))
		}
	}()

	summary, err := sess.run(ctx, stim)
	printSummary(cmd, summary)
	if errors.Is(err, experiment.ErrSensorDisconnected) {
		return fmt.Errorf("session %s stopped: %w", sess.id, err)
	}
	return err
}

// askSubject prompts for the subject name on the terminal.
func askSubject(cmd *cobra.Command) (string, error) {
	var name string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Subject name").
			Description("Used in log file names and the run store.").
			Value(&name).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("subject name is required")
				}
				if strings.ContainsAny(s, `/\`) {
					return errors.New("subject name cannot contain path separators")
				}
				return nil
			}),
	))
	if err := form.RunWithContext(cmd.Context()); err != nil {
		return "", fmt.Errorf("reading subject name: %w", err)
	}
	return strings.TrimSpace(name), nil
}

func printSummary(cmd *cobra.Command, s experiment.SessionSummary) {
	if s.SessionID == "" {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "session %s (%s)\n", s.SessionID, s.Phase)
	fmt.Fprintf(out, "  rounds:     %d\n", s.RoundsCompleted)
	fmt.Fprintf(out, "  scored:     %d\n", s.ScoredTrials)
	fmt.Fprintf(out, "  promotions: %d\n", s.Promotions)
	fmt.Fprintf(out, "  artifacts:  %d\n", s.ArtifactTrials)
	if s.AbortReason != "" {
		fmt.Fprintf(out, "  aborted:    %s\n", s.AbortReason)
	}
}

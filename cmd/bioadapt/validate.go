package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/bioadapt/internal/stimuli"
)

var validateWatch bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config and stimulus files",
	Long: `Check the config and stimulus files.

The config is loaded and validated, then every stimulus list is read and
checked against the block layout. With --watch the stimulus files are
re-checked whenever they change, until interrupted.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateWatch, "watch", false, "re-check stimulus files on change")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Fprintln(out, "config ok")

	logger, err := newLogger(cfg, false)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	w, err := stimuli.NewWatcher(cfg.Experiment.Files, cfg.Experiment.NumBlocks, cfg.Experiment.BlockSize, logger.Underlying())
	if err != nil {
		return err
	}
	if !validateWatch {
		r := w.Check(ctx)
		printResult(out, r)
		return r.Err
	}

	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()
	for r := range w.Results() {
		printResult(out, r)
	}
	return <-errc
}

func printResult(w io.Writer, r stimuli.Result) {
	stamp := r.At.Format("15:04:05")
	if r.Err != nil {
		fmt.Fprintf(w, "%s stimuli invalid: %v\n", stamp, r.Err)
		return
	}
	fmt.Fprintf(w, "%s stimuli ok: %d items, %d + %d training\n",
		stamp, len(r.Stimuli.Items), len(r.Stimuli.Class1), len(r.Stimuli.Class2))
}

package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"reviewharvest/internal/journal"
	"reviewharvest/internal/logging"
	"reviewharvest/internal/metrics"
	"reviewharvest/internal/pipeline"
	"reviewharvest/internal/preflight"
	"reviewharvest/internal/stages"
)

var stageDescriptions = map[string]string{
	stages.NameAcquire:     "Fetch new uploads from the channel playlist into a dated raw artifact",
	stages.NameExtract:     "Keep album reviews from raw artifacts and attach their scores",
	stages.NameTranscripts: "Download transcripts for processed reviews",
	stages.NameEnrich:      "Attach Spotify album, track, and artist data to processed reviews",
}

func newStageCommands(ctx *commandContext) []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(stages.Names))
	for _, name := range stages.Names {
		var format string
		cmd := &cobra.Command{
			Use:   name,
			Short: stageDescriptions[name],
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runStages(cmd, ctx, []string{name}, format)
			},
		}
		cmd.Flags().StringVarP(&format, "format", "f", "table", "Summary format: table, json, or yaml")
		cmds = append(cmds, cmd)
	}
	return cmds
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "run [stage...]",
		Short: "Run the pipeline stages in order (all stages by default)",
		Long: "Run executes acquire, extract, transcripts, and enrich in order.\n" +
			"Naming stages restricts the run to them; they still execute in pipeline order.\n" +
			"The first stage failure stops the run. Completed work is never repeated.",
		ValidArgs: stages.Names,
		Args:      cobra.OnlyValidArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages(cmd, ctx, args, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Summary format: table, json, or yaml")
	return cmd
}

func runStages(cmd *cobra.Command, ctx *commandContext, names []string, formatValue string) error {
	format, err := parseFormat(formatValue)
	if err != nil {
		return err
	}
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	if check := preflight.CheckDirectoryAccess("Data directory", cfg.Paths.DataDir); !check.Passed {
		return fmt.Errorf("preflight: %s", check.Detail)
	}

	var recorder *metrics.Recorder
	var observer pipeline.Observer
	if cfg.Metrics.Enabled {
		recorder = metrics.New()
		observer = recorder
	}

	runners, err := pipeline.BuildStages(pipeline.Deps{Config: cfg, Logger: logger, Observer: observer}, names)
	if err != nil {
		return err
	}

	layout := stages.NewLayout(cfg.Paths.DataDir)
	runCtx := cmd.Context()
	hist, err := journal.Open(runCtx, layout.HistoryDB())
	if err != nil {
		return fmt.Errorf("open run journal: %w", err)
	}
	defer hist.Close()

	runner := &pipeline.Runner{
		Stages:   runners,
		LockPath: layout.LockPath(),
		Journal:  hist,
		Observer: observer,
		Logger:   logger,
	}
	report, runErr := runner.Run(runCtx)

	if recorder != nil {
		if err := recorder.WriteTextfile(cfg.MetricsPath()); err != nil {
			logging.WarnWithContext(logger, "metrics textfile not written", "metrics_write_failed",
				logging.Error(err),
				logging.String("path", cfg.MetricsPath()),
				logging.String(logging.FieldImpact, "dashboards show the previous run"),
			)
		}
	}

	if errors.Is(runErr, pipeline.ErrLocked) {
		return runErr
	}
	if err := printReport(cmd, format, report); err != nil {
		return err
	}
	return runErr
}

func printReport(cmd *cobra.Command, format outputFormat, report pipeline.Report) error {
	if handled, err := writeStructured(cmd, format, report); handled {
		return err
	}

	rows := make([][]string, 0, len(report.Results))
	for _, res := range report.Results {
		status := "ok"
		if res.Stage == report.Failed {
			status = "failed"
		}
		rows = append(rows, []string{
			res.Stage,
			strconv.Itoa(res.Fetched),
			strconv.Itoa(res.Accepted),
			strconv.Itoa(res.Skipped),
			strconv.Itoa(res.Failed),
			res.Duration.Round(time.Millisecond).String(),
			status,
		})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable(
		"Run "+report.RunID,
		[]string{"Stage", "Fetched", "Accepted", "Skipped", "Failed", "Duration", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))
	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reviewharvest/internal/backoff"
	"reviewharvest/internal/journal"
	"reviewharvest/internal/ledger"
	"reviewharvest/internal/pager"
	"reviewharvest/internal/skipcache"
	"reviewharvest/internal/stages"
)

type checkpointView struct {
	Pages     int       `json:"pages" yaml:"pages"`
	Items     int       `json:"items" yaml:"items"`
	Complete  bool      `json:"complete" yaml:"complete"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

type artifactCounts struct {
	Raw         int `json:"raw" yaml:"raw"`
	Processed   int `json:"processed" yaml:"processed"`
	Transcripts int `json:"transcripts" yaml:"transcripts"`
	Features    int `json:"features" yaml:"features"`
}

type statusView struct {
	DataDir         string          `json:"data_dir" yaml:"data_dir"`
	AcquireLedger   int             `json:"acquire_ledger" yaml:"acquire_ledger"`
	ExtractLedger   int             `json:"extract_ledger" yaml:"extract_ledger"`
	TranscriptSkips int             `json:"transcript_skips" yaml:"transcript_skips"`
	PendingAcquire  *checkpointView `json:"pending_acquire,omitempty" yaml:"pending_acquire,omitempty"`
	Artifacts       artifactCounts  `json:"artifacts" yaml:"artifacts"`
	Runs            []journal.Entry `json:"runs" yaml:"runs"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var format string
	var limit int
	var stageFilter string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show persisted pipeline state and recent stage runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseFormat(format)
			if err != nil {
				return err
			}
			if stageFilter != "" {
				if err := validateStageName(stageFilter); err != nil {
					return err
				}
			}
			layout, err := ctx.layout()
			if err != nil {
				return err
			}
			view, err := collectStatus(cmd, layout, journal.Filter{Stage: stageFilter, Limit: limit})
			if err != nil {
				return err
			}
			if handled, err := writeStructured(cmd, outFormat, view); handled {
				return err
			}
			renderStatus(cmd, view)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json, or yaml")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of recent stage runs to show")
	cmd.Flags().StringVar(&stageFilter, "stage", "", "Only show runs of this stage")
	return cmd
}

func validateStageName(name string) error {
	if slices.Contains(stages.Names, name) {
		return nil
	}
	return fmt.Errorf("unknown stage %q (valid: %s)", name, strings.Join(stages.Names, ", "))
}

func collectStatus(cmd *cobra.Command, layout stages.Layout, filter journal.Filter) (statusView, error) {
	view := statusView{DataDir: layout.DataDir}

	acquire, err := ledger.Load(layout.AcquireLedger())
	if err != nil {
		return view, err
	}
	view.AcquireLedger = acquire.Len()
	extract, err := ledger.Load(layout.ExtractLedger())
	if err != nil {
		return view, err
	}
	view.ExtractLedger = extract.Len()

	skips, err := skipcache.Open(layout.TranscriptSkipCache(), nil)
	if err != nil {
		return view, err
	}
	view.TranscriptSkips = skips.Count()

	fetcher := pager.NewFetcher[json.RawMessage](layout.AcquireCheckpoint(), 0, backoff.Policy{}, nil)
	if cp, ok, err := fetcher.Load(); err != nil {
		return view, err
	} else if ok {
		view.PendingAcquire = &checkpointView{
			Pages:     cp.Pages,
			Items:     len(cp.Items),
			Complete:  cp.Complete,
			UpdatedAt: cp.UpdatedAt,
		}
	}

	counts := []struct {
		dir     string
		pattern string
		dst     *int
	}{
		{layout.RawDir(), "*.json", &view.Artifacts.Raw},
		{layout.ProcessedDir(), "*_processed.json", &view.Artifacts.Processed},
		{layout.TranscriptsDir(), "*_transcript.json", &view.Artifacts.Transcripts},
		{layout.FeaturesDir(), "*.json", &view.Artifacts.Features},
	}
	for _, c := range counts {
		matches, err := filepath.Glob(filepath.Join(c.dir, c.pattern))
		if err != nil {
			return view, err
		}
		*c.dst = len(matches)
	}

	hist, err := journal.Open(cmd.Context(), layout.HistoryDB())
	if err != nil {
		return view, fmt.Errorf("open run journal: %w", err)
	}
	defer hist.Close()
	view.Runs, err = hist.Recent(cmd.Context(), filter)
	if err != nil {
		return view, err
	}
	if view.Runs == nil {
		view.Runs = []journal.Entry{}
	}
	return view, nil
}

func renderStatus(cmd *cobra.Command, view statusView) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	fmt.Fprintln(out, renderSectionHeader("State", colorize))
	fmt.Fprintln(out, renderStatusLine("Data directory", statusInfo, view.DataDir, colorize))
	fmt.Fprintln(out, renderStatusLine("Acquired videos", statusInfo, strconv.Itoa(view.AcquireLedger), colorize))
	fmt.Fprintln(out, renderStatusLine("Extracted reviews", statusInfo, strconv.Itoa(view.ExtractLedger), colorize))
	fmt.Fprintln(out, renderStatusLine("Transcript skips", statusInfo, strconv.Itoa(view.TranscriptSkips), colorize))
	if cp := view.PendingAcquire; cp != nil {
		msg := fmt.Sprintf("%d pages, %d videos buffered (updated %s)", cp.Pages, cp.Items, cp.UpdatedAt.Format(time.RFC3339))
		if cp.Complete {
			msg += "; walk complete, output pending"
		}
		fmt.Fprintln(out, renderStatusLine("Pending acquire", statusWarn, msg, colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Pending acquire", statusOK, "none", colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Artifacts", statusInfo, fmt.Sprintf("raw=%d processed=%d transcripts=%d features=%d",
		view.Artifacts.Raw, view.Artifacts.Processed, view.Artifacts.Transcripts, view.Artifacts.Features), colorize))
	fmt.Fprintln(out)

	rows := make([][]string, 0, len(view.Runs))
	for _, e := range view.Runs {
		duration := "-"
		if e.FinishedAt != nil {
			duration = e.Duration().Round(time.Millisecond).String()
		}
		rows = append(rows, []string{
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			e.Stage,
			string(e.Status),
			strconv.Itoa(e.Accepted),
			strconv.Itoa(e.Skipped),
			strconv.Itoa(e.Failed),
			duration,
			shortRunID(e.RunID),
		})
	}
	fmt.Fprintln(out, renderTable(
		"Recent runs",
		[]string{"Started", "Stage", "Status", "Accepted", "Skipped", "Failed", "Duration", "Run"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

package stages

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reviewharvest/internal/backoff"
	"reviewharvest/internal/fileutil"
	"reviewharvest/internal/ledger"
	"reviewharvest/internal/logging"
	"reviewharvest/internal/pager"
	"reviewharvest/internal/youtube"
)

// Acquire walks the uploads playlist and writes every video not seen by a
// previous run to a dated raw artifact.
type Acquire struct {
	Source    pager.PageSource[youtube.Video]
	Layout    Layout
	Policy    backoff.Policy
	PageSize  int
	StartDate time.Time
	Logger    *slog.Logger
	Observer  Observer

	now func() time.Time
}

// Name implements Runner.
func (a *Acquire) Name() string { return NameAcquire }

// SetLogger implements LoggerAware.
func (a *Acquire) SetLogger(logger *slog.Logger) { a.Logger = logger }

// Run fetches all pages, filters them against the acquire ledger, and writes
// the new videos. The output is written before the ledger is persisted and
// the checkpoint is cleared last, so a crash at any point loses nothing.
func (a *Acquire) Run(ctx context.Context) (Result, error) {
	logger := loggerOrNop(a.Logger)
	t := newTally(NameAcquire, a.Observer)
	if a.Source == nil {
		return *t.result, fmt.Errorf("acquire: page source is required")
	}

	led, err := ledger.Load(a.Layout.AcquireLedger())
	if err != nil {
		return *t.result, err
	}
	fetcher := pager.NewFetcher[youtube.Video](a.Layout.AcquireCheckpoint(), a.PageSize, a.Policy, logger)
	videos, err := fetcher.Fetch(ctx, a.Source)
	if err != nil {
		return *t.result, fmt.Errorf("acquire: %w", err)
	}
	t.result.Fetched = len(videos)

	fresh := make([]youtube.Video, 0, len(videos))
	for _, v := range videos {
		switch {
		case v.ID == "":
			t.skipped(ReasonMissingID)
		case led.Record(v.ID):
			fresh = append(fresh, v)
			t.accepted()
		default:
			t.skipped(ReasonKnown)
		}
	}

	out := a.Layout.RawArtifact(a.StartDate, a.clock())
	if err := fileutil.WriteJSONAtomic(out, fresh); err != nil {
		return *t.result, fmt.Errorf("acquire: write raw artifact: %w", err)
	}
	t.result.Artifacts = append(t.result.Artifacts, out)
	if err := led.Persist(a.Layout.AcquireLedger()); err != nil {
		return *t.result, fmt.Errorf("acquire: %w", err)
	}
	if err := fetcher.Clear(); err != nil {
		return *t.result, fmt.Errorf("acquire: %w", err)
	}

	logger.Info("raw artifact written",
		logging.String(logging.FieldEventType, "raw_artifact_written"),
		logging.String("path", out),
		logging.Int("fetched", len(videos)),
		logging.Int("new", len(fresh)),
		logging.Int("ledger_size", led.Len()),
	)
	return *t.result, nil
}

func (a *Acquire) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

func loggerOrNop(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return logging.NewNop()
	}
	return logger
}

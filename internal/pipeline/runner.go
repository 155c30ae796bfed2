package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"reviewharvest/internal/journal"
	"reviewharvest/internal/logging"
	"reviewharvest/internal/services"
	"reviewharvest/internal/stages"
)

// ErrLocked is returned when another process holds the run lock.
var ErrLocked = errors.New("another reviewharvest run holds the lock")

// Observer extends stages.Observer with run-level events.
type Observer interface {
	stages.Observer
	StageFailed(stage string)
	StageSucceeded(stage string, unixSeconds float64)
	RateLimitWait(api string)
}

// Journal persists one row per stage run.
type Journal interface {
	Begin(ctx context.Context, runID, stage string) (int64, error)
	Finish(ctx context.Context, id int64, status journal.Status, counts journal.Counts, runErr error) error
	MarkAbandoned(ctx context.Context) (int64, error)
}

// Report summarizes a pipeline run.
type Report struct {
	RunID   string          `json:"run_id"`
	Results []stages.Result `json:"results"`
	Failed  string          `json:"failed_stage,omitempty"`
	Elapsed time.Duration   `json:"elapsed"`
}

// Runner executes stages in order.
type Runner struct {
	Stages   []stages.Runner
	LockPath string
	Journal  Journal
	Observer Observer
	Logger   *slog.Logger

	newRunID func() string
	now      func() time.Time
}

// Run acquires the lock and executes every stage. It stops at the first
// stage error and returns it along with the results gathered so far.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	start := r.clock()
	report := Report{RunID: r.runID()}
	if strings.TrimSpace(r.LockPath) == "" {
		return report, errors.New("pipeline: lock path is required")
	}

	lock := flock.New(r.LockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return report, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return report, fmt.Errorf("%w (%s)", ErrLocked, r.LockPath)
	}
	defer func() { _ = lock.Unlock() }()

	ctx = services.WithRunID(ctx, report.RunID)
	logger := logging.WithContext(ctx, r.Logger)

	if r.Journal != nil {
		if n, err := r.Journal.MarkAbandoned(ctx); err != nil {
			logging.WarnWithContext(logger, "could not close abandoned journal rows", "journal_cleanup_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "stale runs stay marked running in status output"),
			)
		} else if n > 0 {
			logger.Info("closed abandoned stage runs",
				logging.String(logging.FieldEventType, "journal_abandoned"),
				logging.Int("count", int(n)),
			)
		}
	}

	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("stages", len(r.Stages)),
	)

	for _, st := range r.Stages {
		res, err := r.runStage(ctx, st)
		report.Results = append(report.Results, res)
		if err != nil {
			report.Failed = st.Name()
			report.Elapsed = r.clock().Sub(start)
			return report, fmt.Errorf("stage %s: %w", st.Name(), err)
		}
	}

	report.Elapsed = r.clock().Sub(start)
	logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

func (r *Runner) runStage(ctx context.Context, st stages.Runner) (stages.Result, error) {
	name := st.Name()
	stageCtx := services.WithStage(ctx, name)
	stageLogger := logging.WithContext(stageCtx, r.Logger)
	if aware, ok := st.(stages.LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	stageLogger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	var journalID int64
	if r.Journal != nil {
		id, err := r.Journal.Begin(stageCtx, runIDFrom(ctx), name)
		if err != nil {
			return stages.Result{Stage: name}, fmt.Errorf("journal: %w", err)
		}
		journalID = id
	}

	started := r.clock()
	res, runErr := st.Run(stageCtx)
	res.Stage = name
	res.Duration = r.clock().Sub(started)

	status := statusFor(runErr)
	if r.Journal != nil {
		// The stage context may be cancelled; the journal row must still close.
		finishCtx := context.WithoutCancel(stageCtx)
		if err := r.Journal.Finish(finishCtx, journalID, status, countsOf(res), runErr); err != nil {
			logging.WarnWithContext(stageLogger, "could not record stage result", "journal_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "status output will show this run as incomplete"),
			)
		}
	}

	if runErr != nil {
		if r.Observer != nil {
			r.Observer.StageFailed(name)
		}
		logging.ErrorWithContext(stageLogger, "stage failed", "stage_failure",
			logging.String("status", string(status)),
			logging.String("outcome", string(services.Classify(runErr))),
			logging.Int("accepted", res.Accepted),
			logging.Error(runErr),
			logging.String(logging.FieldErrorHint, "rerun the stage; completed work is cached and will not repeat"),
		)
		return res, runErr
	}

	if r.Observer != nil {
		r.Observer.StageSucceeded(name, float64(r.clock().Unix()))
	}
	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("fetched", res.Fetched),
		logging.Int("accepted", res.Accepted),
		logging.Int("skipped", res.Skipped),
		logging.Int("failed", res.Failed),
		logging.Duration("duration", res.Duration),
	)
	return res, nil
}

func statusFor(err error) journal.Status {
	switch {
	case err == nil:
		return journal.StatusCompleted
	case errors.Is(err, context.Canceled):
		return journal.StatusCancelled
	default:
		return journal.StatusFailed
	}
}

func countsOf(res stages.Result) journal.Counts {
	return journal.Counts{
		Fetched:  res.Fetched,
		Accepted: res.Accepted,
		Skipped:  res.Skipped,
		Failed:   res.Failed,
	}
}

func runIDFrom(ctx context.Context) string {
	id, _ := services.RunIDFromContext(ctx)
	return id
}

func (r *Runner) runID() string {
	if r.newRunID != nil {
		return r.newRunID()
	}
	return uuid.NewString()
}

func (r *Runner) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

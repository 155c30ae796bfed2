package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

// Status is the final state of a stage run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Counts are the per-item tallies of a stage run.
type Counts struct {
	Fetched  int
	Accepted int
	Skipped  int
	Failed   int
}

// Entry is one journaled stage run.
type Entry struct {
	ID           int64      `json:"id" yaml:"id"`
	RunID        string     `json:"run_id" yaml:"run_id"`
	Stage        string     `json:"stage" yaml:"stage"`
	Status       Status     `json:"status" yaml:"status"`
	StartedAt    time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Fetched      int        `json:"fetched" yaml:"fetched"`
	Accepted     int        `json:"accepted" yaml:"accepted"`
	Skipped      int        `json:"skipped" yaml:"skipped"`
	Failed       int        `json:"failed" yaml:"failed"`
	ErrorMessage string     `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (e Entry) Duration() time.Duration {
	if e.FinishedAt == nil {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

// Journal is a SQLite-backed run history.
type Journal struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var entryColumns = []string{
	"id", "run_id", "stage", "status", "started_at", "finished_at",
	"fetched", "accepted", "skipped", "failed", "error_message",
}

// Open creates or opens the journal database at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("journal path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	j := &Journal{db: db, path: path, now: time.Now}
	if err := j.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Begin opens a running entry for stage and returns its ID.
func (j *Journal) Begin(ctx context.Context, runID, stage string) (int64, error) {
	query, args, err := sq.Insert("stage_runs").
		Columns("run_id", "stage", "status", "started_at").
		Values(runID, stage, string(StatusRunning), formatTime(j.now())).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}
	res, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert stage run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Finish closes entry id with its final status, counts, and error.
func (j *Journal) Finish(ctx context.Context, id int64, status Status, counts Counts, runErr error) error {
	var message any
	if runErr != nil {
		message = runErr.Error()
	}
	query, args, err := sq.Update("stage_runs").
		Set("status", string(status)).
		Set("finished_at", formatTime(j.now())).
		Set("fetched", counts.Fetched).
		Set("accepted", counts.Accepted).
		Set("skipped", counts.Skipped).
		Set("failed", counts.Failed).
		Set("error_message", message).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	res, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update stage run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("stage run %d not found", id)
	}
	return nil
}

// Filter narrows Recent.
type Filter struct {
	Stage string
	RunID string
	Limit int
}

// Recent returns journal entries, newest first.
func (j *Journal) Recent(ctx context.Context, filter Filter) ([]Entry, error) {
	builder := sq.Select(entryColumns...).From("stage_runs").OrderBy("started_at DESC", "id DESC")
	if filter.Stage != "" {
		builder = builder.Where(sq.Eq{"stage": filter.Stage})
	}
	if filter.RunID != "" {
		builder = builder.Where(sq.Eq{"run_id": filter.RunID})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stage runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stage runs: %w", err)
	}
	return entries, nil
}

// LastCompleted returns the most recent completed run of stage.
func (j *Journal) LastCompleted(ctx context.Context, stage string) (Entry, bool, error) {
	query, args, err := sq.Select(entryColumns...).
		From("stage_runs").
		Where(sq.Eq{"stage": stage, "status": string(StatusCompleted)}).
		OrderBy("started_at DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return Entry{}, false, fmt.Errorf("build select: %w", err)
	}
	entry, err := scanEntry(j.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

// MarkAbandoned closes entries left running by a process that died.
func (j *Journal) MarkAbandoned(ctx context.Context) (int64, error) {
	query, args, err := sq.Update("stage_runs").
		Set("status", string(StatusFailed)).
		Set("finished_at", formatTime(j.now())).
		Set("error_message", "process exited before the stage finished").
		Where(sq.Eq{"status": string(StatusRunning)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}
	res, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mark abandoned runs: %w", err)
	}
	return res.RowsAffected()
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		entry       Entry
		status      string
		startedRaw  string
		finishedRaw sql.NullString
		message     sql.NullString
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.RunID,
		&entry.Stage,
		&status,
		&startedRaw,
		&finishedRaw,
		&entry.Fetched,
		&entry.Accepted,
		&entry.Skipped,
		&entry.Failed,
		&message,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scan stage run: %w", err)
	}
	entry.Status = Status(status)
	entry.StartedAt = parseTime(startedRaw)
	if finishedRaw.Valid && finishedRaw.String != "" {
		finished := parseTime(finishedRaw.String)
		entry.FinishedAt = &finished
	}
	entry.ErrorMessage = message.String
	return entry, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

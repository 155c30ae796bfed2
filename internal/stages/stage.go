package stages

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"reviewharvest/internal/fileutil"
	"reviewharvest/internal/youtube"
)

// Stage names used in logs, metrics, and the run journal.
const (
	NameAcquire     = "acquire"
	NameExtract     = "extract"
	NameTranscripts = "transcripts"
	NameEnrich      = "enrich"
)

// Names lists the stages in pipeline order.
var Names = []string{NameAcquire, NameExtract, NameTranscripts, NameEnrich}

// Skip reasons reported to the Observer.
const (
	ReasonKnown          = "already_seen"
	ReasonNotReview      = "not_review"
	ReasonMissingID      = "missing_id"
	ReasonExists         = "output_exists"
	ReasonCachedNegative = "cached_negative"
	ReasonNoMatch        = "no_match"
)

// Runner is implemented by every stage.
type Runner interface {
	Name() string
	Run(ctx context.Context) (Result, error)
}

// LoggerAware is implemented by stages that accept a run-scoped logger.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}

// Result summarizes one stage run.
type Result struct {
	Stage     string        `json:"stage"`
	Fetched   int           `json:"fetched"`
	Accepted  int           `json:"accepted"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Artifacts []string      `json:"artifacts,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Observer receives per-item outcomes, typically to update metrics.
type Observer interface {
	ItemAccepted(stage string)
	ItemSkipped(stage, reason string)
	ItemFailed(stage string)
}

type nopObserver struct{}

func (nopObserver) ItemAccepted(string)        {}
func (nopObserver) ItemSkipped(string, string) {}
func (nopObserver) ItemFailed(string)          {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}

type tally struct {
	result   *Result
	observer Observer
}

func newTally(stage string, observer Observer) *tally {
	return &tally{result: &Result{Stage: stage}, observer: observerOrNop(observer)}
}

func (t *tally) accepted() {
	t.result.Accepted++
	t.observer.ItemAccepted(t.result.Stage)
}

func (t *tally) skipped(reason string) {
	t.result.Skipped++
	t.observer.ItemSkipped(t.result.Stage, reason)
}

func (t *tally) failed() {
	t.result.Failed++
	t.observer.ItemFailed(t.result.Stage)
}

// listArtifacts returns the JSON files in dir sorted by name. A missing
// directory has no artifacts.
func listArtifacts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func readVideos(path string) ([]youtube.Video, error) {
	var videos []youtube.Video
	if _, err := fileutil.ReadJSON(path, &videos); err != nil {
		return nil, err
	}
	return videos, nil
}

// processedVideos yields every video across the processed artifacts once,
// in artifact order.
func processedVideos(layout Layout) ([]youtube.Video, error) {
	paths, err := listArtifacts(layout.ProcessedDir())
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []youtube.Video
	for _, path := range paths {
		videos, err := readVideos(path)
		if err != nil {
			return nil, err
		}
		for _, v := range videos {
			if _, dup := seen[v.ID]; dup {
				continue
			}
			seen[v.ID] = struct{}{}
			out = append(out, v)
		}
	}
	return out, nil
}

package stages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"reviewharvest/internal/fileutil"
	"reviewharvest/internal/ledger"
	"reviewharvest/internal/logging"
	"reviewharvest/internal/scores"
	"reviewharvest/internal/textutil"
	"reviewharvest/internal/youtube"
)

// ScoreField is the key the extracted scores are stored under.
const ScoreField = "album_score"

// Extract keeps the album reviews from every raw artifact, attaches the
// scores found in each description, and writes one processed artifact per
// raw artifact.
type Extract struct {
	Layout Layout
	// Keyword selects reviews by title, case-insensitively. Empty means
	// textutil.ReviewMarker.
	Keyword  string
	Logger   *slog.Logger
	Observer Observer
}

// Name implements Runner.
func (e *Extract) Name() string { return NameExtract }

// SetLogger implements LoggerAware.
func (e *Extract) SetLogger(logger *slog.Logger) { e.Logger = logger }

// Run processes every raw artifact. Items are gated by the extract ledger,
// which is persisted once after all artifacts are written. An existing
// processed artifact is only ever extended with items it does not already
// hold, so a rerun after a crash never duplicates or drops output.
func (e *Extract) Run(ctx context.Context) (Result, error) {
	logger := loggerOrNop(e.Logger)
	t := newTally(NameExtract, e.Observer)
	keyword := strings.TrimSpace(e.Keyword)
	if keyword == "" {
		keyword = textutil.ReviewMarker
	}

	led, err := ledger.Load(e.Layout.ExtractLedger())
	if err != nil {
		return *t.result, err
	}
	rawPaths, err := listArtifacts(e.Layout.RawDir())
	if err != nil {
		return *t.result, err
	}

	for _, rawPath := range rawPaths {
		if err := ctx.Err(); err != nil {
			return *t.result, err
		}
		videos, err := readVideos(rawPath)
		if err != nil {
			return *t.result, fmt.Errorf("extract: %w", err)
		}
		t.result.Fetched += len(videos)

		accepted := make([]youtube.Video, 0)
		for _, v := range videos {
			switch {
			case v.ID == "":
				t.skipped(ReasonMissingID)
				continue
			case !textutil.ContainsFold(v.Title, keyword):
				t.skipped(ReasonNotReview)
				continue
			case !led.IsNew(v.ID):
				t.skipped(ReasonKnown)
				continue
			}
			scored, err := v.Set(ScoreField, scores.Extract(v.Description))
			if err != nil {
				return *t.result, fmt.Errorf("extract: %s: %w", v.ID, err)
			}
			led.Record(v.ID)
			accepted = append(accepted, scored)
			t.accepted()
		}

		out := e.Layout.ProcessedArtifact(rawPath)
		written, err := mergeProcessed(out, accepted)
		if err != nil {
			return *t.result, fmt.Errorf("extract: %w", err)
		}
		if written {
			t.result.Artifacts = append(t.result.Artifacts, out)
			logger.Info("processed artifact written",
				logging.String(logging.FieldEventType, "processed_artifact_written"),
				logging.String("raw", rawPath),
				logging.String("path", out),
				logging.Int("accepted", len(accepted)),
			)
		}
	}

	if err := led.Persist(e.Layout.ExtractLedger()); err != nil {
		return *t.result, fmt.Errorf("extract: %w", err)
	}
	return *t.result, nil
}

// mergeProcessed writes accepted to path, preserving any items already in an
// existing artifact. It reports whether the file changed.
func mergeProcessed(path string, accepted []youtube.Video) (bool, error) {
	var existing []youtube.Video
	found, err := fileutil.ReadJSON(path, &existing)
	if err != nil {
		return false, err
	}
	if !found {
		if accepted == nil {
			accepted = []youtube.Video{}
		}
		return true, fileutil.WriteJSONAtomic(path, accepted)
	}

	present := make(map[string]struct{}, len(existing))
	for _, v := range existing {
		present[v.ID] = struct{}{}
	}
	merged := existing
	for _, v := range accepted {
		if _, ok := present[v.ID]; ok {
			continue
		}
		merged = append(merged, v)
	}
	if len(merged) == len(existing) {
		return false, nil
	}
	return true, fileutil.WriteJSONAtomic(path, merged)
}

package stages

import (
	"context"
	"fmt"
	"log/slog"

	"reviewharvest/internal/backoff"
	"reviewharvest/internal/fileutil"
	"reviewharvest/internal/logging"
	"reviewharvest/internal/services"
	"reviewharvest/internal/skipcache"
	"reviewharvest/internal/youtube"
)

// Transcripts downloads a transcript for every processed video that does not
// have one yet.
type Transcripts struct {
	Fetcher  youtube.TranscriptFetcher
	Skip     *skipcache.Cache
	Layout   Layout
	Policy   backoff.Policy
	Logger   *slog.Logger
	Observer Observer
}

// Name implements Runner.
func (s *Transcripts) Name() string { return NameTranscripts }

// SetLogger implements LoggerAware.
func (s *Transcripts) SetLogger(logger *slog.Logger) { s.Logger = logger }

// Run checks, in order, for an existing transcript file, a cached negative,
// and only then calls the API. Durable negatives are cached immediately;
// other failures are logged and retried on the next run.
func (s *Transcripts) Run(ctx context.Context) (Result, error) {
	logger := loggerOrNop(s.Logger)
	t := newTally(NameTranscripts, s.Observer)
	if s.Fetcher == nil || s.Skip == nil {
		return *t.result, fmt.Errorf("transcripts: fetcher and skip cache are required")
	}

	videos, err := processedVideos(s.Layout)
	if err != nil {
		return *t.result, fmt.Errorf("transcripts: %w", err)
	}
	t.result.Fetched = len(videos)

	for _, v := range videos {
		if err := ctx.Err(); err != nil {
			return *t.result, err
		}
		if v.ID == "" {
			t.skipped(ReasonMissingID)
			continue
		}
		itemCtx := services.WithVideoID(ctx, v.ID)
		itemLogger := logging.WithContext(itemCtx, logger)

		out := s.Layout.TranscriptArtifact(v.ID)
		exists, err := fileutil.Exists(out)
		if err != nil {
			return *t.result, fmt.Errorf("transcripts: probe %s: %w", out, err)
		}
		if exists {
			t.skipped(ReasonExists)
			continue
		}
		if entry, ok := s.Skip.Lookup(v.ID); ok {
			itemLogger.Debug("transcript skipped by cache", logging.String("reason", entry.Reason))
			t.skipped(ReasonCachedNegative)
			continue
		}

		segments, err := backoff.Retry(itemCtx, s.Policy, func(ctx context.Context) ([]youtube.Segment, error) {
			return s.Fetcher.FetchTranscript(ctx, v.ID)
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return *t.result, ctxErr
			}
			if reason, ok := youtube.NegativeReason(err); ok {
				if cerr := s.Skip.RecordNegative(v.ID, reason); cerr != nil {
					return *t.result, fmt.Errorf("transcripts: %w", cerr)
				}
				itemLogger.Info("transcript unavailable",
					logging.String(logging.FieldEventType, "transcript_unavailable"),
					logging.String("reason", reason),
				)
				t.skipped(reason)
				continue
			}
			if services.Classify(err) == services.OutcomeFatal {
				logging.ErrorWithContext(itemLogger, "transcript fetch aborted stage", "transcript_fetch_fatal",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check the watch url and network access"),
				)
				return *t.result, fmt.Errorf("transcripts: %s: %w", v.ID, err)
			}
			logging.WarnWithContext(itemLogger, "transcript fetch failed", "transcript_fetch_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "rerun the transcripts stage; the video will be retried"),
			)
			t.failed()
			continue
		}

		if segments == nil {
			segments = []youtube.Segment{}
		}
		if err := fileutil.WriteJSONAtomic(out, segments); err != nil {
			return *t.result, fmt.Errorf("transcripts: write %s: %w", out, err)
		}
		itemLogger.Info("transcript saved",
			logging.String(logging.FieldEventType, "transcript_saved"),
			logging.Int("segments", len(segments)),
		)
		t.accepted()
	}
	return *t.result, nil
}

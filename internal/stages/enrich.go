package stages

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reviewharvest/internal/backoff"
	"reviewharvest/internal/fileutil"
	"reviewharvest/internal/logging"
	"reviewharvest/internal/services"
	"reviewharvest/internal/spotify"
	"reviewharvest/internal/textutil"
	"reviewharvest/internal/youtube"
)

// Features is the catalog artifact written for one review.
type Features struct {
	VideoID         string                  `json:"video_id"`
	Title           string                  `json:"title"`
	SearchQuery     string                  `json:"search_query"`
	MatchConfidence float64                 `json:"match_confidence"`
	Album           spotify.Album           `json:"album"`
	Tracks          []spotify.Track         `json:"tracks"`
	AudioFeatures   []spotify.AudioFeatures `json:"audio_features,omitempty"`
	Artist          *spotify.Artist         `json:"artist,omitempty"`
	FetchedAt       time.Time               `json:"fetched_at"`
}

// Enrich looks up the reviewed album of every processed video in the catalog
// and writes its tracks and artist profile. Misses are not cached; a video
// without an artifact is simply tried again next run.
type Enrich struct {
	Catalog spotify.Catalog
	Layout  Layout
	Policy  backoff.Policy
	// AudioFeatures requests per-track audio analysis. Failures there are
	// tolerated and the artifact is written without it.
	AudioFeatures bool
	Logger        *slog.Logger
	Observer      Observer

	now func() time.Time
}

// Name implements Runner.
func (e *Enrich) Name() string { return NameEnrich }

// SetLogger implements LoggerAware.
func (e *Enrich) SetLogger(logger *slog.Logger) { e.Logger = logger }

// Run enriches every processed video lacking a features artifact.
func (e *Enrich) Run(ctx context.Context) (Result, error) {
	logger := loggerOrNop(e.Logger)
	t := newTally(NameEnrich, e.Observer)
	if e.Catalog == nil {
		return *t.result, fmt.Errorf("enrich: catalog client is required")
	}

	videos, err := processedVideos(e.Layout)
	if err != nil {
		return *t.result, fmt.Errorf("enrich: %w", err)
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
		out := e.Layout.FeaturesArtifact(v.ID)
		exists, err := fileutil.Exists(out)
		if err != nil {
			return *t.result, fmt.Errorf("enrich: probe %s: %w", out, err)
		}
		if exists {
			t.skipped(ReasonExists)
			continue
		}

		itemCtx := services.WithVideoID(ctx, v.ID)
		itemLogger := logging.WithContext(itemCtx, logger)
		features, err := e.lookup(itemCtx, itemLogger, v)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return *t.result, ctxErr
			}
			if services.Classify(err) == services.OutcomeFatal {
				logging.ErrorWithContext(itemLogger, "catalog lookup aborted stage", "catalog_lookup_fatal",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check spotify credentials and reachability"),
				)
				return *t.result, fmt.Errorf("enrich: %s: %w", v.ID, err)
			}
			logging.WarnWithContext(itemLogger, "catalog lookup failed", "catalog_lookup_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "rerun the enrich stage; the video will be retried"),
			)
			t.failed()
			continue
		}
		if features == nil {
			t.skipped(ReasonNoMatch)
			continue
		}
		if err := fileutil.WriteJSONAtomic(out, features); err != nil {
			return *t.result, fmt.Errorf("enrich: write %s: %w", out, err)
		}
		itemLogger.Info("catalog features saved",
			logging.String(logging.FieldEventType, "catalog_features_saved"),
			logging.String("album", features.Album.Name),
			logging.Int("tracks", len(features.Tracks)),
			logging.Any("match_confidence", features.MatchConfidence),
		)
		t.accepted()
	}
	return *t.result, nil
}

// lookup returns nil without error when the search has no match.
func (e *Enrich) lookup(ctx context.Context, logger *slog.Logger, v youtube.Video) (*Features, error) {
	query := textutil.SearchKey(v.Title)
	if query == "" {
		return nil, services.Wrap(services.ErrItem, NameEnrich, "search key", "title is empty", nil)
	}
	albums, err := backoff.Retry(ctx, e.Policy, func(ctx context.Context) ([]spotify.Album, error) {
		return e.Catalog.SearchAlbums(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	if len(albums) == 0 {
		logger.Info("no catalog match",
			logging.String(logging.FieldEventType, "catalog_no_match"),
			logging.String("query", query),
		)
		return nil, nil
	}

	album := albums[0]
	tracks, err := backoff.Retry(ctx, e.Policy, func(ctx context.Context) ([]spotify.Track, error) {
		return e.Catalog.AlbumTracks(ctx, album.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("album tracks %s: %w", album.ID, err)
	}

	features := &Features{
		VideoID:     v.ID,
		Title:       v.Title,
		SearchQuery: query,
		Album:       album,
		Tracks:      tracks,
		FetchedAt:   e.clock().UTC(),
	}
	artistName := ""
	if ref, ok := album.PrimaryArtist(); ok {
		artistName = ref.Name
		artist, err := backoff.Retry(ctx, e.Policy, func(ctx context.Context) (*spotify.Artist, error) {
			return e.Catalog.Artist(ctx, ref.ID)
		})
		if err != nil {
			return nil, fmt.Errorf("artist %s: %w", ref.ID, err)
		}
		features.Artist = artist
	}
	features.MatchConfidence = textutil.MatchConfidence(query, artistName, album.Name)

	if e.AudioFeatures && len(tracks) > 0 {
		ids := make([]string, 0, len(tracks))
		for _, track := range tracks {
			if track.ID != "" {
				ids = append(ids, track.ID)
			}
		}
		audio, err := backoff.Retry(ctx, e.Policy, func(ctx context.Context) ([]spotify.AudioFeatures, error) {
			return e.Catalog.AudioFeatures(ctx, ids)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			logger.Debug("audio features unavailable", logging.Error(err))
		} else {
			features.AudioFeatures = audio
		}
	}
	return features, nil
}

func (e *Enrich) clock() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

package pipeline

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"reviewharvest/internal/config"
	"reviewharvest/internal/logging"
	"reviewharvest/internal/skipcache"
	"reviewharvest/internal/spotify"
	"reviewharvest/internal/stages"
	"reviewharvest/internal/youtube"
)

// Deps carries the shared collaborators stage construction needs.
type Deps struct {
	Config   *config.Config
	Logger   *slog.Logger
	Observer Observer
	// HTTPClient overrides the client used for every API. Nil builds one per
	// API with the configured timeout.
	HTTPClient *http.Client
}

// ResolveStages validates names and returns them in pipeline order. An empty
// list selects every stage.
func ResolveStages(names []string) ([]string, error) {
	if len(names) == 0 {
		return slices.Clone(stages.Names), nil
	}
	for _, name := range names {
		if !slices.Contains(stages.Names, name) {
			return nil, fmt.Errorf("unknown stage %q (valid: %v)", name, stages.Names)
		}
	}
	ordered := make([]string, 0, len(names))
	for _, name := range stages.Names {
		if slices.Contains(names, name) {
			ordered = append(ordered, name)
		}
	}
	return ordered, nil
}

// BuildStages constructs the named stages from configuration. Credentials are
// only required for the stages that call the corresponding API.
func BuildStages(deps Deps, names []string) ([]stages.Runner, error) {
	cfg := deps.Config
	if cfg == nil {
		return nil, fmt.Errorf("pipeline: config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	ordered, err := ResolveStages(names)
	if err != nil {
		return nil, err
	}

	layout := stages.NewLayout(cfg.Paths.DataDir)
	if err := layout.Ensure(); err != nil {
		return nil, err
	}
	interval := cfg.RateLimitInterval()

	runners := make([]stages.Runner, 0, len(ordered))
	for _, name := range ordered {
		var runner stages.Runner
		switch name {
		case stages.NameAcquire:
			runner, err = buildAcquire(deps, layout, interval, logger)
		case stages.NameExtract:
			runner = &stages.Extract{
				Layout:   layout,
				Keyword:  cfg.Extract.TitleKeyword,
				Logger:   logger,
				Observer: deps.Observer,
			}
		case stages.NameTranscripts:
			runner, err = buildTranscripts(deps, layout, interval, logger)
		case stages.NameEnrich:
			runner, err = buildEnrich(deps, layout, interval, logger)
		}
		if err != nil {
			return nil, fmt.Errorf("build %s stage: %w", name, err)
		}
		runners = append(runners, runner)
	}
	return runners, nil
}

func buildAcquire(deps Deps, layout stages.Layout, interval time.Duration, logger *slog.Logger) (stages.Runner, error) {
	cfg := deps.Config
	if err := cfg.RequireYouTube(); err != nil {
		return nil, err
	}
	startDate, err := cfg.StartTime()
	if err != nil {
		return nil, fmt.Errorf("parse acquire.start_date: %w", err)
	}
	client, err := youtube.New(cfg.YouTube.APIKey, cfg.YouTube.BaseURL, youtubeOptions(deps)...)
	if err != nil {
		return nil, err
	}
	return &stages.Acquire{
		Source:    &youtube.PlaylistSource{Lister: client, PlaylistID: cfg.UploadsPlaylistID()},
		Layout:    layout,
		Policy:    NewPolicy(APIYouTube, interval, logger, deps.Observer),
		PageSize:  cfg.YouTube.PageSize,
		StartDate: startDate,
		Logger:    logger,
		Observer:  deps.Observer,
	}, nil
}

func buildTranscripts(deps Deps, layout stages.Layout, interval time.Duration, logger *slog.Logger) (stages.Runner, error) {
	cfg := deps.Config
	client, err := youtube.NewTranscriptClient(cfg.YouTube.WatchURL, cfg.Transcripts.Languages, youtubeOptions(deps)...)
	if err != nil {
		return nil, err
	}
	cache, err := skipcache.Open(layout.TranscriptSkipCache(), logger)
	if err != nil {
		return nil, err
	}
	return &stages.Transcripts{
		Fetcher:  client,
		Skip:     cache,
		Layout:   layout,
		Policy:   NewPolicy(APITranscript, interval, logger, deps.Observer),
		Logger:   logger,
		Observer: deps.Observer,
	}, nil
}

func buildEnrich(deps Deps, layout stages.Layout, interval time.Duration, logger *slog.Logger) (stages.Runner, error) {
	cfg := deps.Config
	if err := cfg.RequireSpotify(); err != nil {
		return nil, err
	}
	opts := []spotify.Option{
		spotify.WithTimeout(time.Duration(cfg.Spotify.TimeoutSeconds) * time.Second),
		spotify.WithMarket(cfg.Spotify.Market),
	}
	if deps.HTTPClient != nil {
		opts = append(opts, spotify.WithHTTPClient(deps.HTTPClient))
	}
	client, err := spotify.New(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.BaseURL, cfg.Spotify.AuthURL, opts...)
	if err != nil {
		return nil, err
	}
	return &stages.Enrich{
		Catalog:       client,
		Layout:        layout,
		Policy:        NewPolicy(APISpotify, interval, logger, deps.Observer),
		AudioFeatures: cfg.Spotify.AudioFeatures,
		Logger:        logger,
		Observer:      deps.Observer,
	}, nil
}

func youtubeOptions(deps Deps) []youtube.Option {
	opts := []youtube.Option{youtube.WithTimeout(time.Duration(deps.Config.YouTube.TimeoutSeconds) * time.Second)}
	if deps.HTTPClient != nil {
		opts = append(opts, youtube.WithHTTPClient(deps.HTTPClient))
	}
	return opts
}

package preflight

import (
	"context"

	"reviewharvest/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name" yaml:"name"`
	Passed bool   `json:"passed" yaml:"passed"`
	Detail string `json:"detail" yaml:"detail"`
}

// Options selects which checks RunAll performs.
type Options struct {
	// Online performs authenticated requests against both APIs.
	Online bool
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckYouTubeCredentials(cfg),
		CheckSpotifyCredentials(cfg),
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	if opts.Online {
		if results[1].Passed {
			results = append(results, CheckYouTubeAPI(ctx, cfg))
		}
		if results[2].Passed {
			results = append(results, CheckSpotifyAPI(ctx, cfg))
		}
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

package pipeline

import (
	"context"
	"log/slog"
	"time"

	"reviewharvest/internal/backoff"
	"reviewharvest/internal/logging"
)

// API names used for rate-limit accounting.
const (
	APIYouTube    = "youtube"
	APITranscript = "youtube_transcript"
	APISpotify    = "spotify"
)

// NewPolicy returns the fixed-interval backoff for api. Every wait is counted
// on observer when it is non-nil and logged with the run, stage and video
// tags carried by the waiting call's context.
func NewPolicy(api string, interval time.Duration, logger *slog.Logger, observer Observer) backoff.Policy {
	if interval <= 0 {
		interval = backoff.DefaultInterval
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return backoff.Policy{
		Interval: interval,
		OnWait: func(ctx context.Context, attempt int, err error) {
			if observer != nil {
				observer.RateLimitWait(api)
			}
			logging.WarnWithContext(logging.WithContext(ctx, logger), "rate limited; waiting before retry", "rate_limit_wait",
				logging.String("api", api),
				logging.Int("attempt", attempt),
				logging.Duration("wait", interval),
				logging.Error(err),
				logging.String(logging.FieldImpact, "stage paused until the quota recovers"),
				logging.String(logging.FieldErrorHint, "lower request volume or raise the API quota"),
			)
		},
	}
}

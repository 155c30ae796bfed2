// Package pager walks a token-paginated API and checkpoints every page so an
// interrupted walk resumes without re-requesting pages it already holds.
package pager

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reviewharvest/internal/backoff"
	"reviewharvest/internal/fileutil"
	"reviewharvest/internal/logging"
)

// MaxPageSize is the largest page the listing APIs accept.
const MaxPageSize = 50

// Page is one response from a PageSource.
type Page[T any] struct {
	Items     []T
	NextToken string
}

// PageSource fetches a single page. An empty token requests the first page.
type PageSource[T any] interface {
	FetchPage(ctx context.Context, token string, maxResults int) (Page[T], error)
}

// PageSourceFunc adapts a function to PageSource.
type PageSourceFunc[T any] func(ctx context.Context, token string, maxResults int) (Page[T], error)

// FetchPage calls f.
func (f PageSourceFunc[T]) FetchPage(ctx context.Context, token string, maxResults int) (Page[T], error) {
	return f(ctx, token, maxResults)
}

// Checkpoint is the persisted progress of a walk.
type Checkpoint[T any] struct {
	NextToken string    `json:"next_token,omitempty"`
	Pages     int       `json:"pages"`
	Complete  bool      `json:"complete"`
	UpdatedAt time.Time `json:"updated_at"`
	Items     []T       `json:"items"`
}

// Fetcher accumulates every page from a source into a checkpoint file.
type Fetcher[T any] struct {
	// CheckpointPath is where progress is persisted after each page.
	CheckpointPath string
	// PageSize is clamped to [1, MaxPageSize]; zero means MaxPageSize.
	PageSize int
	// Policy wraps every page request.
	Policy backoff.Policy
	Logger *slog.Logger

	now func() time.Time
}

// NewFetcher returns a fetcher that checkpoints to path.
func NewFetcher[T any](path string, pageSize int, policy backoff.Policy, logger *slog.Logger) *Fetcher[T] {
	return &Fetcher[T]{
		CheckpointPath: path,
		PageSize:       pageSize,
		Policy:         policy,
		Logger:         logger,
	}
}

// Fetch returns every item the source yields, resuming from an existing
// checkpoint when one is present. The checkpoint is left on disk; callers
// remove it with Clear once their own output is durable. On error the
// checkpoint reflects the last fully fetched page.
func (f *Fetcher[T]) Fetch(ctx context.Context, source PageSource[T]) ([]T, error) {
	logger := f.logger()
	cp, found, err := f.Load()
	if err != nil {
		return nil, err
	}
	if found {
		if cp.Complete {
			logger.Info("checkpoint complete; reusing buffered items",
				logging.String(logging.FieldEventType, "checkpoint_reused"),
				logging.Int("items", len(cp.Items)),
				logging.Int("pages", cp.Pages),
			)
			return cp.Items, nil
		}
		logger.Info("resuming paged fetch from checkpoint",
			logging.String(logging.FieldEventType, "checkpoint_resumed"),
			logging.Int("items", len(cp.Items)),
			logging.Int("pages", cp.Pages),
		)
	} else {
		cp = &Checkpoint[T]{}
	}

	size := f.pageSize()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		token := cp.NextToken
		page, err := backoff.Retry(ctx, f.Policy, func(ctx context.Context) (Page[T], error) {
			return source.FetchPage(ctx, token, size)
		})
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", cp.Pages+1, err)
		}

		cp.Items = append(cp.Items, page.Items...)
		cp.Pages++
		cp.NextToken = page.NextToken
		cp.Complete = page.NextToken == ""
		if err := f.save(cp); err != nil {
			return nil, err
		}
		logger.Debug("page fetched",
			logging.Int("page", cp.Pages),
			logging.Int("page_items", len(page.Items)),
			logging.Int("total_items", len(cp.Items)),
			logging.Bool("has_next", !cp.Complete),
		)
		if cp.Complete {
			return cp.Items, nil
		}
	}
}

// Load reads the checkpoint. The boolean is false when none exists.
func (f *Fetcher[T]) Load() (*Checkpoint[T], bool, error) {
	var cp Checkpoint[T]
	found, err := fileutil.ReadJSON(f.CheckpointPath, &cp)
	if err != nil {
		return nil, false, fmt.Errorf("load checkpoint: %w", err)
	}
	if !found {
		return nil, false, nil
	}
	return &cp, true, nil
}

// Clear removes the checkpoint. A missing checkpoint is not an error.
func (f *Fetcher[T]) Clear() error {
	if err := fileutil.RemoveIfExists(f.CheckpointPath); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

func (f *Fetcher[T]) save(cp *Checkpoint[T]) error {
	cp.UpdatedAt = f.clock().UTC()
	if err := fileutil.WriteJSONAtomic(f.CheckpointPath, cp); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (f *Fetcher[T]) pageSize() int {
	switch {
	case f.PageSize <= 0, f.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return f.PageSize
	}
}

func (f *Fetcher[T]) clock() time.Time {
	if f.now != nil {
		return f.now()
	}
	return time.Now()
}

func (f *Fetcher[T]) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return logging.NewNop()
}

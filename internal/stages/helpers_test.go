package stages

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reviewharvest/internal/backoff"
	"reviewharvest/internal/pager"
	"reviewharvest/internal/youtube"
)

func video(t *testing.T, id, title, description string) youtube.Video {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":         id,
		"kind":       "youtube#video",
		"snippet":    map[string]any{"title": title, "description": description},
		"statistics": map[string]any{"viewCount": "42"},
	})
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	var v youtube.Video
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}
	return v
}

func noWait() backoff.Policy {
	return backoff.Policy{Sleep: func(context.Context, time.Duration) error { return nil }}
}

type staticSource struct {
	pages map[string]pager.Page[youtube.Video]
	calls []string
}

func (s *staticSource) FetchPage(_ context.Context, token string, _ int) (pager.Page[youtube.Video], error) {
	s.calls = append(s.calls, token)
	return s.pages[token], nil
}

func writeVideos(t *testing.T, path string, videos []youtube.Video) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data, err := json.Marshal(videos)
	if err != nil {
		t.Fatalf("marshal videos: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write videos: %v", err)
	}
}

func loadVideos(t *testing.T, path string) []youtube.Video {
	t.Helper()
	videos, err := readVideos(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return videos
}

type countingObserver struct {
	accepted int
	skipped  map[string]int
	failed   int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{skipped: make(map[string]int)}
}

func (o *countingObserver) ItemAccepted(string)            { o.accepted++ }
func (o *countingObserver) ItemSkipped(_ string, r string) { o.skipped[r]++ }
func (o *countingObserver) ItemFailed(string)              { o.failed++ }

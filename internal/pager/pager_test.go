package pager

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"reviewharvest/internal/backoff"
	"reviewharvest/internal/services"
)

type scriptedSource struct {
	pages  map[string]Page[string]
	fail   map[string]error
	tokens []string
	sizes  []int
}

func (s *scriptedSource) FetchPage(_ context.Context, token string, maxResults int) (Page[string], error) {
	s.tokens = append(s.tokens, token)
	s.sizes = append(s.sizes, maxResults)
	if err, ok := s.fail[token]; ok {
		delete(s.fail, token)
		return Page[string]{}, err
	}
	page, ok := s.pages[token]
	if !ok {
		return Page[string]{}, errors.New("unexpected token " + token)
	}
	return page, nil
}

func threePages() map[string]Page[string] {
	return map[string]Page[string]{
		"":   {Items: []string{"a", "b"}, NextToken: "T2"},
		"T2": {Items: []string{"c"}, NextToken: "T3"},
		"T3": {Items: []string{"d", "e"}},
	}
}

func noWait() backoff.Policy {
	return backoff.Policy{Sleep: func(context.Context, time.Duration) error { return nil }}
}

func TestFetchCollectsAllPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	src := &scriptedSource{pages: threePages()}
	f := NewFetcher[string](path, 0, noWait(), nil)

	items, err := f.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	want := []string{"a", "b", "c", "d", "e"}
	if len(items) != len(want) {
		t.Fatalf("items = %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("items = %v, want %v", items, want)
		}
	}
	if len(src.tokens) != 3 {
		t.Fatalf("requests = %d, want 3", len(src.tokens))
	}
	for _, size := range src.sizes {
		if size != MaxPageSize {
			t.Fatalf("page size = %d, want %d", size, MaxPageSize)
		}
	}

	cp, found, err := f.Load()
	if err != nil || !found {
		t.Fatalf("Load = %v, %v; want checkpoint left for caller", found, err)
	}
	if !cp.Complete || cp.Pages != 3 || len(cp.Items) != 5 {
		t.Fatalf("checkpoint = %+v", cp)
	}
}

func TestFetchResumesFromCheckpointToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	src := &scriptedSource{
		pages: threePages(),
		fail:  map[string]error{"T3": errors.New("connection reset")},
	}
	f := NewFetcher[string](path, 0, noWait(), nil)

	if _, err := f.Fetch(context.Background(), src); err == nil {
		t.Fatal("expected first run to fail on T3")
	}
	cp, found, err := f.Load()
	if err != nil || !found {
		t.Fatalf("Load after failure = %v, %v", found, err)
	}
	if cp.NextToken != "T3" || cp.Pages != 2 || len(cp.Items) != 3 {
		t.Fatalf("checkpoint after failure = %+v", cp)
	}

	src.tokens = nil
	items, err := f.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("resumed Fetch: %v", err)
	}
	if len(src.tokens) != 1 || src.tokens[0] != "T3" {
		t.Fatalf("resumed requests = %v, want [T3]", src.tokens)
	}
	if len(items) != 5 {
		t.Fatalf("items = %v, want 5 without duplicates", items)
	}
}

func TestFetchCompleteCheckpointSkipsRequests(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	src := &scriptedSource{pages: threePages()}
	f := NewFetcher[string](path, 0, noWait(), nil)
	if _, err := f.Fetch(context.Background(), src); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	src.tokens = nil
	items, err := f.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if len(src.tokens) != 0 {
		t.Fatalf("expected no requests, got %v", src.tokens)
	}
	if len(items) != 5 {
		t.Fatalf("items = %d, want 5", len(items))
	}
}

func TestFetchClearStartsOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	src := &scriptedSource{pages: threePages()}
	f := NewFetcher[string](path, 0, noWait(), nil)
	if _, err := f.Fetch(context.Background(), src); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if err := f.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := f.Clear(); err != nil {
		t.Fatalf("second Clear: %v", err)
	}

	src.tokens = nil
	if _, err := f.Fetch(context.Background(), src); err != nil {
		t.Fatalf("Fetch after clear: %v", err)
	}
	if len(src.tokens) != 3 || src.tokens[0] != "" {
		t.Fatalf("requests = %v, want full walk", src.tokens)
	}
}

func TestFetchRetriesRateLimitedPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	src := &scriptedSource{
		pages: threePages(),
		fail:  map[string]error{"T2": services.Wrap(services.ErrRateLimited, "acquire", "list", "quota", nil)},
	}
	waits := 0
	policy := noWait()
	policy.OnWait = func(context.Context, int, error) { waits++ }
	f := NewFetcher[string](path, 10, policy, nil)

	items, err := f.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if waits != 1 {
		t.Fatalf("waits = %d, want 1", waits)
	}
	if len(items) != 5 {
		t.Fatalf("items = %d, want 5", len(items))
	}
	want := []string{"", "T2", "T2", "T3"}
	if len(src.tokens) != len(want) {
		t.Fatalf("tokens = %v, want %v", src.tokens, want)
	}
	if src.sizes[0] != 10 {
		t.Fatalf("page size = %d, want 10", src.sizes[0])
	}
}

func TestFetchSinglePage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	src := PageSourceFunc[string](func(_ context.Context, token string, _ int) (Page[string], error) {
		if token != "" {
			t.Fatalf("unexpected token %q", token)
		}
		return Page[string]{Items: []string{"only"}}, nil
	})
	f := NewFetcher[string](path, 0, noWait(), nil)
	items, err := f.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 1 || items[0] != "only" {
		t.Fatalf("items = %v", items)
	}
}

func TestPageSizeClamp(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, MaxPageSize},
		{-1, MaxPageSize},
		{51, MaxPageSize},
		{1, 1},
		{25, 25},
	}
	for _, tt := range tests {
		f := &Fetcher[string]{PageSize: tt.in}
		if got := f.pageSize(); got != tt.want {
			t.Errorf("pageSize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

package stages

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"reviewharvest/internal/ledger"
	"reviewharvest/internal/youtube"
)

func scoresOf(t *testing.T, v youtube.Video) []string {
	t.Helper()
	var got []string
	found, err := v.Field(ScoreField, &got)
	if err != nil || !found {
		t.Fatalf("album_score missing on %s: %v", v.ID, err)
	}
	return got
}

func TestExtractFiltersAndScores(t *testing.T) {
	layout := NewLayout(t.TempDir())
	raw := filepath.Join(layout.RawDir(), "video_data_a_to_b.json")
	writeVideos(t, raw, []youtube.Video{
		video(t, "r1", "Artist - Record ALBUM REVIEW", "decent 7/10"),
		video(t, "r2", "Weekly Track Roundup", "9/10"),
		video(t, "r3", "Other - LP album review", "no score here"),
	})

	result, err := (&Extract{Layout: layout}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Accepted != 2 || result.Skipped != 1 {
		t.Fatalf("result = %+v", result)
	}

	processed := loadVideos(t, layout.ProcessedArtifact(raw))
	if len(processed) != 2 || processed[0].ID != "r1" || processed[1].ID != "r3" {
		t.Fatalf("processed = %+v", processed)
	}
	if got := scoresOf(t, processed[0]); !slices.Equal(got, []string{"7/10", "7/10"}) {
		t.Fatalf("r1 scores = %v", got)
	}
	if got := scoresOf(t, processed[1]); len(got) != 0 {
		t.Fatalf("r3 scores = %v, want empty", got)
	}

	led, err := ledger.Load(layout.ExtractLedger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if led.Len() != 2 || led.IsNew("r1") || !led.IsNew("r2") {
		t.Fatalf("extract ledger len = %d", led.Len())
	}

	// The raw input is never rewritten.
	rawVideos := loadVideos(t, raw)
	if found, _ := rawVideos[0].Field(ScoreField, new([]string)); found {
		t.Fatal("raw artifact was mutated")
	}
}

func TestExtractRerunLeavesOutputUntouched(t *testing.T) {
	layout := NewLayout(t.TempDir())
	raw := filepath.Join(layout.RawDir(), "video_data_a_to_b.json")
	writeVideos(t, raw, []youtube.Video{video(t, "r1", "X ALBUM REVIEW", "strong 8/10")})

	stage := &Extract{Layout: layout}
	if _, err := stage.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	out := layout.ProcessedArtifact(raw)
	before, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	result, err := stage.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if result.Accepted != 0 || len(result.Artifacts) != 0 {
		t.Fatalf("second result = %+v", result)
	}
	after, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(before) != string(after) {
		t.Fatal("processed artifact rewritten on rerun")
	}
}

func TestExtractDeduplicatesAcrossRawArtifacts(t *testing.T) {
	layout := NewLayout(t.TempDir())
	first := filepath.Join(layout.RawDir(), "video_data_1.json")
	second := filepath.Join(layout.RawDir(), "video_data_2.json")
	writeVideos(t, first, []youtube.Video{video(t, "r1", "X ALBUM REVIEW", "")})
	writeVideos(t, second, []youtube.Video{
		video(t, "r1", "X ALBUM REVIEW", ""),
		video(t, "r2", "Y ALBUM REVIEW", ""),
	})

	result, err := (&Extract{Layout: layout}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Accepted != 2 {
		t.Fatalf("accepted = %d, want 2", result.Accepted)
	}
	if got := loadVideos(t, layout.ProcessedArtifact(second)); len(got) != 1 || got[0].ID != "r2" {
		t.Fatalf("second processed = %+v", got)
	}
}

func TestExtractRecoversFromLostLedger(t *testing.T) {
	layout := NewLayout(t.TempDir())
	raw := filepath.Join(layout.RawDir(), "video_data_a_to_b.json")
	writeVideos(t, raw, []youtube.Video{
		video(t, "r1", "X ALBUM REVIEW", ""),
		video(t, "r2", "Y ALBUM REVIEW", ""),
	})
	// Simulate a crash after r1 was written but before the ledger persisted.
	partial, err := video(t, "r1", "X ALBUM REVIEW", "").Set(ScoreField, []string{})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	writeVideos(t, layout.ProcessedArtifact(raw), []youtube.Video{partial})

	if _, err := (&Extract{Layout: layout}).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := loadVideos(t, layout.ProcessedArtifact(raw))
	if len(got) != 2 || got[0].ID != "r1" || got[1].ID != "r2" {
		t.Fatalf("processed = %+v, want r1 and r2 once each", got)
	}
}

func TestExtractCustomKeyword(t *testing.T) {
	layout := NewLayout(t.TempDir())
	raw := filepath.Join(layout.RawDir(), "video_data_a_to_b.json")
	writeVideos(t, raw, []youtube.Video{
		video(t, "r1", "X ALBUM REVIEW", ""),
		video(t, "r2", "Y EP Review", ""),
	})
	result, err := (&Extract{Layout: layout, Keyword: "ep review"}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Accepted != 1 {
		t.Fatalf("accepted = %d, want 1", result.Accepted)
	}
}

func TestExtractNoRawArtifacts(t *testing.T) {
	layout := NewLayout(t.TempDir())
	result, err := (&Extract{Layout: layout}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Fetched != 0 || result.Accepted != 0 {
		t.Fatalf("result = %+v", result)
	}
}

package stages

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// rawTimestampLayout matches the ISO-8601 stamps used in raw artifact names.
const rawTimestampLayout = "2006-01-02T15:04:05.000000Z"

// Layout names every file the pipeline reads or writes under a data directory.
type Layout struct {
	DataDir string
}

// NewLayout returns the layout rooted at dataDir.
func NewLayout(dataDir string) Layout {
	return Layout{DataDir: dataDir}
}

func (l Layout) AcquireLedger() string { return filepath.Join(l.DataDir, "checksums", "acquire.txt") }

func (l Layout) ExtractLedger() string { return filepath.Join(l.DataDir, "checksums", "extract.txt") }

func (l Layout) AcquireCheckpoint() string {
	return filepath.Join(l.DataDir, "cache", "acquire_checkpoint.json")
}

func (l Layout) TranscriptSkipCache() string {
	return filepath.Join(l.DataDir, "cache", "transcript_skip.json")
}

func (l Layout) RawDir() string { return filepath.Join(l.DataDir, "raw") }

func (l Layout) ProcessedDir() string { return filepath.Join(l.DataDir, "processed") }

func (l Layout) TranscriptsDir() string { return filepath.Join(l.DataDir, "transcripts") }

func (l Layout) FeaturesDir() string { return filepath.Join(l.DataDir, "spotify_features") }

func (l Layout) HistoryDB() string { return filepath.Join(l.DataDir, "history.db") }

func (l Layout) LockPath() string { return filepath.Join(l.DataDir, ".reviewharvest.lock") }

// RawArtifact returns the dated output path of one acquire run.
func (l Layout) RawArtifact(start, end time.Time) string {
	name := fmt.Sprintf("video_data_%s_to_%s.json",
		start.UTC().Format(time.RFC3339), end.UTC().Format(rawTimestampLayout))
	return filepath.Join(l.RawDir(), name)
}

// ProcessedArtifact returns the processed counterpart of a raw artifact.
func (l Layout) ProcessedArtifact(rawPath string) string {
	base := filepath.Base(rawPath)
	ext := filepath.Ext(base)
	return filepath.Join(l.ProcessedDir(), strings.TrimSuffix(base, ext)+"_processed"+ext)
}

func (l Layout) TranscriptArtifact(videoID string) string {
	return filepath.Join(l.TranscriptsDir(), videoID+"_transcript.json")
}

func (l Layout) FeaturesArtifact(videoID string) string {
	return filepath.Join(l.FeaturesDir(), videoID+".json")
}

// Ensure creates every directory in the layout.
func (l Layout) Ensure() error {
	dirs := []string{
		filepath.Dir(l.AcquireLedger()),
		filepath.Dir(l.AcquireCheckpoint()),
		l.RawDir(),
		l.ProcessedDir(),
		l.TranscriptsDir(),
		l.FeaturesDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

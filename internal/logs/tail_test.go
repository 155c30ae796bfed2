package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reviewharvest/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reviewharvest.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	result, err := logs.Tail(path, 2, logs.Filter{})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(result.Lines) != 2 || result.Lines[0] != "b" || result.Lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
	if result.Offset != 6 {
		t.Fatalf("expected offset 6, got %d", result.Offset)
	}
}

func TestTailMissingFile(t *testing.T) {
	result, err := logs.Tail(filepath.Join(t.TempDir(), "absent.log"), 10, logs.Filter{})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(result.Lines) != 0 || result.Offset != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestTailLeavesPartialLine(t *testing.T) {
	path := writeLog(t, "done\npart")
	result, err := logs.Tail(path, 0, logs.Filter{})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(result.Lines) != 1 || result.Offset != 5 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestFilterMatchesBothFormats(t *testing.T) {
	content := `2024-05-01T12:00:00Z INFO stage started run_id=r1 stage=acquire event_type=stage_start
2024-05-01T12:00:01Z INFO stage started run_id=r2 stage=extract event_type=stage_start
{"time":"2024-05-01T12:00:02Z","level":"INFO","msg":"transcript saved","run_id":"r1","stage":"transcripts","video_id":"v1"}
{"time":"2024-05-01T12:00:03Z","level":"INFO","msg":"transcript saved","run_id":"r2","stage":"transcripts","video_id":"v2"}
`
	path := writeLog(t, content)

	byRun, err := logs.Tail(path, 0, logs.Filter{RunID: "r1"})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(byRun.Lines) != 2 {
		t.Fatalf("expected 2 lines for r1, got %#v", byRun.Lines)
	}

	byVideo, err := logs.Tail(path, 0, logs.Filter{VideoID: "v2"})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(byVideo.Lines) != 1 {
		t.Fatalf("expected 1 line for v2, got %#v", byVideo.Lines)
	}

	combined := logs.Filter{RunID: "r2", Stage: "extract"}
	if !combined.Match("x INFO msg run_id=r2 stage=extract") {
		t.Fatal("expected console line to match")
	}
	if combined.Match("x INFO msg run_id=r2 stage=extracted") {
		t.Fatal("prefix of a value must not match")
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := writeLog(t, "start\n")
	initial, err := logs.Tail(path, 1, logs.Filter{})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	got := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, initial.Offset, logs.Filter{}, 20*time.Millisecond, func(line string) {
			got <- line
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case line := <-got:
		if line != "later" {
			t.Fatalf("unexpected line %q", line)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not emit the appended line")
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not stop after cancel")
	}
}

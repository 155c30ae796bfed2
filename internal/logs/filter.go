package logs

import (
	"encoding/json"
	"strings"

	"reviewharvest/internal/logging"
)

// Filter selects log lines by their standardized fields. Empty fields match
// everything.
type Filter struct {
	RunID   string
	Stage   string
	VideoID string
}

func (f Filter) empty() bool {
	return f.RunID == "" && f.Stage == "" && f.VideoID == ""
}

func (f Filter) wanted() map[string]string {
	wanted := make(map[string]string, 3)
	if f.RunID != "" {
		wanted[logging.FieldRunID] = f.RunID
	}
	if f.Stage != "" {
		wanted[logging.FieldStage] = f.Stage
	}
	if f.VideoID != "" {
		wanted[logging.FieldVideoID] = f.VideoID
	}
	return wanted
}

// Match reports whether line carries every field the filter names.
func (f Filter) Match(line string) bool {
	if f.empty() {
		return true
	}
	wanted := f.wanted()

	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		var fields map[string]any
		if err := json.Unmarshal([]byte(trimmed), &fields); err == nil {
			for key, want := range wanted {
				got, ok := fields[key].(string)
				if !ok || got != want {
					return false
				}
			}
			return true
		}
	}

	padded := " " + trimmed + " "
	for key, want := range wanted {
		if !strings.Contains(padded, " "+key+"="+want+" ") {
			return false
		}
	}
	return true
}

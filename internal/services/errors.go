package services

import (
	"errors"
	"fmt"
	"strings"
)

// Markers classify failures into the four outcomes a stage distinguishes.
var (
	// ErrRateLimited marks a transient throttling response. The backoff
	// policy retries these and they never surface as stage failures.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnavailable marks a durable "no result" answer from an API.
	ErrUnavailable = errors.New("unavailable")
	// ErrItem marks a failure scoped to a single item. The item is logged,
	// skipped, and stays eligible for the next run.
	ErrItem = errors.New("item failure")
	// ErrConfiguration marks missing or malformed credentials and settings.
	ErrConfiguration = errors.New("configuration error")
	// ErrExternal marks an unexpected response from an external service.
	ErrExternal = errors.New("external service error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Outcome names the handling class of a stage error.
type Outcome string

const (
	OutcomeRetryable Outcome = "retryable"
	OutcomeNegative  Outcome = "negative"
	OutcomeItem      Outcome = "item"
	OutcomeFatal     Outcome = "fatal"
)

// Classify maps an error onto the handling class the stages apply to it.
// Unmarked errors are stage-fatal.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return OutcomeRetryable
	case errors.Is(err, ErrUnavailable):
		return OutcomeNegative
	case errors.Is(err, ErrItem):
		return OutcomeItem
	default:
		return OutcomeFatal
	}
}

// IsItemLocal reports whether err should skip only the current item.
func IsItemLocal(err error) bool {
	return Classify(err) == OutcomeItem
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

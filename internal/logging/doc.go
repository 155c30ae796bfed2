// Package logging assembles structured slog loggers and formatting helpers used
// across reviewharvest.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so stage code automatically tags log lines
// with run IDs, stage names, and video IDs. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
package logging

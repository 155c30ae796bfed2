// Package pipeline runs the harvest stages in order under a single-instance
// lock.
//
// A run gets a UUID that tags every log line, the journal rows, and the
// stage contexts. Stages execute strictly sequentially; the first stage-fatal
// error stops the run and leaves each stage's resumable state on disk for the
// next attempt.
package pipeline

// Package stages implements the four ingestion stages: Acquire, Extract,
// Transcripts, and Enrich.
//
// Each stage is a struct built from explicit dependencies and run with
// Run(ctx). Stages communicate only through files under a Layout, so any
// stage can be rerun on its own. Every stage is idempotent: rerunning it
// without new upstream data emits nothing new.
//
// Item-level failures are logged and counted, and the item stays eligible
// for the next run. A returned error means the stage could not continue; any
// resumable state (paging checkpoint, skip cache) is left in place.
package stages

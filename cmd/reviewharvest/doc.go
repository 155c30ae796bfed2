// Command reviewharvest incrementally harvests album-review videos from a
// YouTube channel, extracts their scores, downloads transcripts, and enriches
// each review with Spotify catalog data.
//
// Each stage can run on its own ("reviewharvest acquire") or the whole
// pipeline can run in order ("reviewharvest run"). All state lives under
// paths.data_dir; rerunning any command only processes what is new.
package main

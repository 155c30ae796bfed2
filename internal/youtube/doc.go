// Package youtube talks to the YouTube Data API v3 and to the public watch
// page for caption tracks.
//
// Client lists playlist items and resolves them to full video resources.
// PlaylistSource adapts that pair of calls to pager.PageSource so an uploads
// playlist can be walked resumably. TranscriptClient reads the caption track
// list embedded in a watch page and downloads the timed text for one of the
// preferred languages.
//
// Throttling responses are returned wrapped in services.ErrRateLimited so the
// caller's backoff policy can retry them. Videos without usable captions
// return ErrTranscriptsDisabled or ErrNoTranscriptFound, both of which wrap
// services.ErrUnavailable.
package youtube

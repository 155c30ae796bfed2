// Package spotify is a small Spotify Web API client covering the catalog
// calls used to enrich album reviews: album search, album tracks, audio
// features, and artist profiles.
//
// Requests authenticate with an app token from the client-credentials grant.
// The token is cached until shortly before it expires.
package spotify

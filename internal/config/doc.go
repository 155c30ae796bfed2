// Package config loads, normalizes, and validates reviewharvest configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// YOUTUBE_DATA_API_KEY, SPOTIFY_CLIENT_ID, and SPOTIFY_SECRET. A .env file in
// the working directory is loaded before the environment is consulted.
//
// Always obtain settings through this package so the stages receive sanitized
// paths, canonical log formats, and clear validation errors.
package config

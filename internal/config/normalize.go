package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeYouTube()
	c.normalizeSpotify()
	c.normalizeStages()
	if err := c.normalizeMetrics(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeYouTube() {
	c.YouTube.APIKey = strings.TrimSpace(c.YouTube.APIKey)
	if c.YouTube.APIKey == "" {
		if value, ok := os.LookupEnv("YOUTUBE_DATA_API_KEY"); ok {
			c.YouTube.APIKey = strings.TrimSpace(value)
		}
	}
	c.YouTube.BaseURL = strings.TrimRight(strings.TrimSpace(c.YouTube.BaseURL), "/")
	if c.YouTube.BaseURL == "" {
		c.YouTube.BaseURL = defaultYouTubeBaseURL
	}
	c.YouTube.WatchURL = strings.TrimRight(strings.TrimSpace(c.YouTube.WatchURL), "/")
	if c.YouTube.WatchURL == "" {
		c.YouTube.WatchURL = defaultYouTubeWatchURL
	}
	c.YouTube.ChannelID = strings.TrimSpace(c.YouTube.ChannelID)
	c.YouTube.PlaylistID = strings.TrimSpace(c.YouTube.PlaylistID)
	if c.YouTube.PageSize <= 0 {
		c.YouTube.PageSize = defaultYouTubePageSize
	}
	if c.YouTube.TimeoutSeconds <= 0 {
		c.YouTube.TimeoutSeconds = defaultYouTubeTimeoutSeconds
	}
}

func (c *Config) normalizeSpotify() {
	c.Spotify.ClientID = strings.TrimSpace(c.Spotify.ClientID)
	if c.Spotify.ClientID == "" {
		if value, ok := os.LookupEnv("SPOTIFY_CLIENT_ID"); ok {
			c.Spotify.ClientID = strings.TrimSpace(value)
		}
	}
	c.Spotify.ClientSecret = strings.TrimSpace(c.Spotify.ClientSecret)
	if c.Spotify.ClientSecret == "" {
		if value, ok := os.LookupEnv("SPOTIFY_SECRET"); ok {
			c.Spotify.ClientSecret = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("SPOTIFY_CLIENT_SECRET"); ok {
			c.Spotify.ClientSecret = strings.TrimSpace(value)
		}
	}
	c.Spotify.BaseURL = strings.TrimRight(strings.TrimSpace(c.Spotify.BaseURL), "/")
	if c.Spotify.BaseURL == "" {
		c.Spotify.BaseURL = defaultSpotifyBaseURL
	}
	c.Spotify.AuthURL = strings.TrimSpace(c.Spotify.AuthURL)
	if c.Spotify.AuthURL == "" {
		c.Spotify.AuthURL = defaultSpotifyAuthURL
	}
	c.Spotify.Market = strings.ToUpper(strings.TrimSpace(c.Spotify.Market))
	if c.Spotify.TimeoutSeconds <= 0 {
		c.Spotify.TimeoutSeconds = defaultSpotifyTimeoutSeconds
	}
}

func (c *Config) normalizeStages() {
	c.Acquire.StartDate = strings.TrimSpace(c.Acquire.StartDate)
	if c.Acquire.StartDate == "" {
		c.Acquire.StartDate = defaultAcquireStartDate
	}
	c.Extract.TitleKeyword = strings.ToLower(strings.TrimSpace(c.Extract.TitleKeyword))
	if c.Extract.TitleKeyword == "" {
		c.Extract.TitleKeyword = defaultExtractTitleKeyword
	}
	langs := make([]string, 0, len(c.Transcripts.Languages))
	seen := make(map[string]struct{}, len(c.Transcripts.Languages))
	for _, lang := range c.Transcripts.Languages {
		normalized := strings.ToLower(strings.TrimSpace(lang))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		langs = append(langs, normalized)
	}
	if len(langs) == 0 {
		langs = []string{defaultTranscriptLanguageCode}
	}
	c.Transcripts.Languages = langs
	if c.RateLimit.IntervalSeconds <= 0 {
		c.RateLimit.IntervalSeconds = defaultRateLimitInterval
	}
}

func (c *Config) normalizeMetrics() error {
	if strings.TrimSpace(c.Metrics.TextfilePath) == "" {
		return nil
	}
	var err error
	if c.Metrics.TextfilePath, err = expandPath(c.Metrics.TextfilePath); err != nil {
		return fmt.Errorf("metrics.textfile_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

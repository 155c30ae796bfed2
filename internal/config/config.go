package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// YouTube contains configuration for the YouTube Data API and transcript retrieval.
type YouTube struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	WatchURL       string `toml:"watch_url"`
	ChannelID      string `toml:"channel_id"`
	PlaylistID     string `toml:"playlist_id"`
	PageSize       int    `toml:"page_size"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Spotify contains configuration for the Spotify Web API catalog lookups.
type Spotify struct {
	ClientID       string `toml:"client_id"`
	ClientSecret   string `toml:"client_secret"`
	BaseURL        string `toml:"base_url"`
	AuthURL        string `toml:"auth_url"`
	Market         string `toml:"market"`
	AudioFeatures  bool   `toml:"audio_features"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Acquire contains configuration for the acquisition stage.
type Acquire struct {
	// StartDate is the lower bound stamped into raw artifact names (RFC 3339).
	StartDate string `toml:"start_date"`
}

// Extract contains configuration for the extraction stage.
type Extract struct {
	TitleKeyword string `toml:"title_keyword"`
}

// Transcripts contains configuration for transcript retrieval.
type Transcripts struct {
	Languages []string `toml:"languages"`
}

// RateLimit controls the fixed backoff applied to throttled API calls.
type RateLimit struct {
	IntervalSeconds int `toml:"interval_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics contains configuration for the Prometheus textfile export.
type Metrics struct {
	Enabled      bool   `toml:"enabled"`
	TextfilePath string `toml:"textfile_path"`
}

// Config encapsulates all configuration values for reviewharvest.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - YouTube: listing, detail, and transcript endpoints plus the API key
//   - Spotify: catalog search credentials and options
//   - Acquire / Extract / Transcripts: per-stage knobs
//   - RateLimit: fixed sleep between throttled retries
//   - Logging: log format and level
//   - Metrics: Prometheus textfile export
type Config struct {
	Paths       Paths       `toml:"paths"`
	YouTube     YouTube     `toml:"youtube"`
	Spotify     Spotify     `toml:"spotify"`
	Acquire     Acquire     `toml:"acquire"`
	Extract     Extract     `toml:"extract"`
	Transcripts Transcripts `toml:"transcripts"`
	RateLimit   RateLimit   `toml:"rate_limit"`
	Logging     Logging     `toml:"logging"`
	Metrics     Metrics     `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file in the working directory is read
// first so credentials can live outside the TOML file; variables already present in
// the environment win over the .env file.
func Load(path string) (*Config, string, bool, error) {
	if err := loadDotEnv(); err != nil {
		return nil, "", false, err
	}

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func loadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load .env: %w", err)
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reviewharvest.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RequireYouTube reports whether the YouTube Data API credentials are present.
func (c *Config) RequireYouTube() error {
	if strings.TrimSpace(c.YouTube.APIKey) == "" {
		return fmt.Errorf("youtube.api_key is required. Set YOUTUBE_DATA_API_KEY or edit %s", c.configHint())
	}
	if c.UploadsPlaylistID() == "" {
		return errors.New("youtube.channel_id or youtube.playlist_id must be set")
	}
	return nil
}

// RequireSpotify reports whether the Spotify client credentials are present.
func (c *Config) RequireSpotify() error {
	if strings.TrimSpace(c.Spotify.ClientID) == "" || strings.TrimSpace(c.Spotify.ClientSecret) == "" {
		return fmt.Errorf("spotify.client_id and spotify.client_secret are required. Set SPOTIFY_CLIENT_ID/SPOTIFY_SECRET or edit %s", c.configHint())
	}
	return nil
}

func (c *Config) configHint() string {
	path, err := DefaultConfigPath()
	if err != nil {
		return defaultConfigPath
	}
	return path
}

// UploadsPlaylistID returns the playlist that lists every upload of the channel.
// An explicit playlist wins; otherwise a "UC" channel ID maps onto its "UU"
// uploads playlist.
func (c *Config) UploadsPlaylistID() string {
	if id := strings.TrimSpace(c.YouTube.PlaylistID); id != "" {
		return id
	}
	channel := strings.TrimSpace(c.YouTube.ChannelID)
	if len(channel) < 3 {
		return ""
	}
	return "UU" + channel[2:]
}

// RateLimitInterval returns the fixed backoff between throttled retries.
func (c *Config) RateLimitInterval() time.Duration {
	return time.Duration(c.RateLimit.IntervalSeconds) * time.Second
}

// StartTime parses the acquisition start date.
func (c *Config) StartTime() (time.Time, error) {
	return time.Parse(time.RFC3339, c.Acquire.StartDate)
}

// MetricsPath returns the textfile path used for metrics export.
func (c *Config) MetricsPath() string {
	if strings.TrimSpace(c.Metrics.TextfilePath) != "" {
		return c.Metrics.TextfilePath
	}
	return filepath.Join(c.Paths.DataDir, "metrics.prom")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

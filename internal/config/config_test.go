package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"reviewharvest/internal/config"
)

func TestLoadDefaultConfigUsesEnvCredentialsAndExpandsPaths(t *testing.T) {
	t.Setenv("YOUTUBE_DATA_API_KEY", "yt-key")
	t.Setenv("SPOTIFY_CLIENT_ID", "sp-id")
	t.Setenv("SPOTIFY_SECRET", "sp-secret")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "reviewharvest")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.YouTube.APIKey != "yt-key" {
		t.Fatalf("expected YouTube key from env, got %q", cfg.YouTube.APIKey)
	}
	if cfg.Spotify.ClientID != "sp-id" || cfg.Spotify.ClientSecret != "sp-secret" {
		t.Fatalf("expected Spotify credentials from env, got %q/%q", cfg.Spotify.ClientID, cfg.Spotify.ClientSecret)
	}
	if cfg.YouTube.PageSize != 50 {
		t.Fatalf("unexpected page size: %d", cfg.YouTube.PageSize)
	}
	if cfg.RateLimitInterval() != 100*time.Second {
		t.Fatalf("unexpected rate limit interval: %v", cfg.RateLimitInterval())
	}
	if cfg.UploadsPlaylistID() != "UUt7fwAhXDy3oNFTAzF2o8Pw" {
		t.Fatalf("unexpected uploads playlist: %q", cfg.UploadsPlaylistID())
	}
	if len(cfg.Transcripts.Languages) != 1 || cfg.Transcripts.Languages[0] != "en" {
		t.Fatalf("unexpected transcript languages: %v", cfg.Transcripts.Languages)
	}
	if err := cfg.RequireYouTube(); err != nil {
		t.Fatalf("RequireYouTube: %v", err)
	}
	if err := cfg.RequireSpotify(); err != nil {
		t.Fatalf("RequireSpotify: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
	if cfg.MetricsPath() != filepath.Join(wantData, "metrics.prom") {
		t.Fatalf("unexpected metrics path: %q", cfg.MetricsPath())
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("YOUTUBE_DATA_API_KEY", "env-key")
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "reviewharvest.toml")

	type payload struct {
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
		YouTube struct {
			APIKey     string `toml:"api_key"`
			PlaylistID string `toml:"playlist_id"`
			PageSize   int    `toml:"page_size"`
		} `toml:"youtube"`
		Transcripts struct {
			Languages []string `toml:"languages"`
		} `toml:"transcripts"`
		RateLimit struct {
			IntervalSeconds int `toml:"interval_seconds"`
		} `toml:"rate_limit"`
	}
	custom := payload{}
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	custom.YouTube.APIKey = "file-key"
	custom.YouTube.PlaylistID = "PLcustom"
	custom.YouTube.PageSize = 25
	custom.Transcripts.Languages = []string{" EN ", "de", "en"}
	custom.RateLimit.IntervalSeconds = 5
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.YouTube.APIKey != "file-key" {
		t.Fatalf("expected file key to win over env fallback, got %q", cfg.YouTube.APIKey)
	}
	if cfg.UploadsPlaylistID() != "PLcustom" {
		t.Fatalf("expected explicit playlist, got %q", cfg.UploadsPlaylistID())
	}
	if cfg.YouTube.PageSize != 25 {
		t.Fatalf("expected page size 25, got %d", cfg.YouTube.PageSize)
	}
	if got := strings.Join(cfg.Transcripts.Languages, ","); got != "en,de" {
		t.Fatalf("expected normalized languages, got %q", got)
	}
	if cfg.RateLimitInterval() != 5*time.Second {
		t.Fatalf("unexpected interval: %v", cfg.RateLimitInterval())
	}
}

func TestValidateRejectsOversizedPage(t *testing.T) {
	cfg := config.Default()
	cfg.YouTube.PageSize = 51
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected page size validation error")
	}
}

func TestValidateRejectsBadStartDate(t *testing.T) {
	cfg := config.Default()
	cfg.Acquire.StartDate = "last tuesday"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected start date validation error")
	}
}

func TestRequireCredentials(t *testing.T) {
	cfg := config.Default()
	if err := cfg.RequireYouTube(); err == nil {
		t.Fatal("expected missing youtube key error")
	}
	if err := cfg.RequireSpotify(); err == nil {
		t.Fatal("expected missing spotify credentials error")
	}
	cfg.YouTube.APIKey = "k"
	cfg.YouTube.ChannelID = ""
	if err := cfg.RequireYouTube(); err == nil {
		t.Fatal("expected missing channel error")
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Extract.TitleKeyword != "album review" {
		t.Fatalf("unexpected title keyword: %q", cfg.Extract.TitleKeyword)
	}
}

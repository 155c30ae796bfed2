package config

const (
	defaultConfigPath             = "~/.config/reviewharvest/config.toml"
	defaultDataDir                = "~/.local/share/reviewharvest"
	defaultLogDir                 = "~/.local/share/reviewharvest/logs"
	defaultYouTubeBaseURL         = "https://www.googleapis.com/youtube/v3"
	defaultYouTubeWatchURL        = "https://www.youtube.com"
	defaultYouTubeChannelID       = "UCt7fwAhXDy3oNFTAzF2o8Pw"
	defaultYouTubePageSize        = 50
	defaultYouTubeTimeoutSeconds  = 30
	defaultSpotifyBaseURL         = "https://api.spotify.com/v1"
	defaultSpotifyAuthURL         = "https://accounts.spotify.com/api/token"
	defaultSpotifyTimeoutSeconds  = 15
	defaultAcquireStartDate       = "2010-03-08T00:00:00Z"
	defaultExtractTitleKeyword    = "album review"
	defaultRateLimitInterval      = 100
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	maxYouTubePageSize            = 50
	defaultTranscriptLanguageCode = "en"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		YouTube: YouTube{
			BaseURL:        defaultYouTubeBaseURL,
			WatchURL:       defaultYouTubeWatchURL,
			ChannelID:      defaultYouTubeChannelID,
			PageSize:       defaultYouTubePageSize,
			TimeoutSeconds: defaultYouTubeTimeoutSeconds,
		},
		Spotify: Spotify{
			BaseURL:        defaultSpotifyBaseURL,
			AuthURL:        defaultSpotifyAuthURL,
			AudioFeatures:  true,
			TimeoutSeconds: defaultSpotifyTimeoutSeconds,
		},
		Acquire: Acquire{
			StartDate: defaultAcquireStartDate,
		},
		Extract: Extract{
			TitleKeyword: defaultExtractTitleKeyword,
		},
		Transcripts: Transcripts{
			Languages: []string{defaultTranscriptLanguageCode},
		},
		RateLimit: RateLimit{
			IntervalSeconds: defaultRateLimitInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

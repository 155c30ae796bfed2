package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"reviewharvest/internal/config"
	"reviewharvest/internal/services"
	"reviewharvest/internal/spotify"
	"reviewharvest/internal/youtube"
)

const onlineCheckTimeout = 15 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckYouTubeCredentials verifies the API key and playlist are configured.
func CheckYouTubeCredentials(cfg *config.Config) Result {
	const name = "YouTube credentials"
	if err := cfg.RequireYouTube(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "playlist " + cfg.UploadsPlaylistID()}
}

// CheckSpotifyCredentials verifies the client credentials are configured.
func CheckSpotifyCredentials(cfg *config.Config) Result {
	const name = "Spotify credentials"
	if err := cfg.RequireSpotify(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "client id set"}
}

// CheckYouTubeAPI lists a single playlist item to prove the key and playlist work.
func CheckYouTubeAPI(ctx context.Context, cfg *config.Config) Result {
	const name = "YouTube Data API"

	client, err := youtube.New(cfg.YouTube.APIKey, cfg.YouTube.BaseURL, youtube.WithTimeout(onlineCheckTimeout))
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	checkCtx, cancel := context.WithTimeout(ctx, onlineCheckTimeout)
	defer cancel()

	resp, err := client.ListPlaylistItems(checkCtx, cfg.UploadsPlaylistID(), "", 1)
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("reachable (%d videos listed)", resp.PageInfo.TotalResults)}
}

// CheckSpotifyAPI exchanges the client credentials for a token.
func CheckSpotifyAPI(ctx context.Context, cfg *config.Config) Result {
	const name = "Spotify Web API"

	client, err := spotify.New(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.BaseURL, cfg.Spotify.AuthURL,
		spotify.WithTimeout(onlineCheckTimeout))
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	checkCtx, cancel := context.WithTimeout(ctx, onlineCheckTimeout)
	defer cancel()

	if err := client.Authenticate(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "token issued"}
}

// summarizeError produces a human-readable summary for API check failures.
func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (API unreachable)"
	}
	if services.Classify(err) == services.OutcomeRetryable {
		return "rate limited; credentials not verified"
	}
	if errors.Is(err, services.ErrConfiguration) {
		return "credentials rejected: " + err.Error()
	}
	return err.Error()
}

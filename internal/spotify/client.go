package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"reviewharvest/internal/services"
)

const (
	searchLimit      = 10
	tracksPageLimit  = 50
	maxFeatureIDs    = 100
	tokenExpiryGrace = time.Minute
)

// Catalog defines the Spotify calls the enrich stage depends on.
type Catalog interface {
	SearchAlbums(ctx context.Context, query string) ([]Album, error)
	AlbumTracks(ctx context.Context, albumID string) ([]Track, error)
	AudioFeatures(ctx context.Context, trackIDs []string) ([]AudioFeatures, error)
	Artist(ctx context.Context, artistID string) (*Artist, error)
}

// Client provides access to the Spotify Web API.
type Client struct {
	clientID     string
	clientSecret string
	baseURL      string
	authURL      string
	market       string
	httpClient   *http.Client
	now          func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

var _ Catalog = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithMarket restricts search results to an ISO 3166-1 country.
func WithMarket(market string) Option {
	return func(c *Client) {
		c.market = strings.ToUpper(strings.TrimSpace(market))
	}
}

// New creates a Spotify client.
func New(clientID, clientSecret, baseURL, authURL string, opts ...Option) (*Client, error) {
	clientID = strings.TrimSpace(clientID)
	clientSecret = strings.TrimSpace(clientSecret)
	if clientID == "" || clientSecret == "" {
		return nil, services.Wrap(services.ErrConfiguration, "spotify", "new client", "client id and secret required", nil)
	}
	baseURL = strings.TrimSpace(baseURL)
	authURL = strings.TrimSpace(authURL)
	if baseURL == "" || authURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "spotify", "new client", "base and auth urls required", nil)
	}
	client := &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      strings.TrimRight(baseURL, "/"),
		authURL:      authURL,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SearchAlbums searches the catalog for albums matching query, best first.
func (c *Client) SearchAlbums(ctx context.Context, query string) ([]Album, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrItem, "spotify", "search", "query must not be empty", nil)
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "album")
	params.Set("limit", strconv.Itoa(searchLimit))
	if c.market != "" {
		params.Set("market", c.market)
	}
	var payload searchResponse
	if err := c.get(ctx, "search", c.baseURL+"/search?"+params.Encode(), &payload); err != nil {
		return nil, err
	}
	return payload.Albums.Items, nil
}

// AlbumTracks returns every track on the album, following pagination.
func (c *Client) AlbumTracks(ctx context.Context, albumID string) ([]Track, error) {
	albumID = strings.TrimSpace(albumID)
	if albumID == "" {
		return nil, services.Wrap(services.ErrItem, "spotify", "album tracks", "album id must not be empty", nil)
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(tracksPageLimit))
	next := c.baseURL + "/albums/" + url.PathEscape(albumID) + "/tracks?" + params.Encode()

	var tracks []Track
	for next != "" {
		var page tracksPage
		if err := c.get(ctx, "album tracks", next, &page); err != nil {
			return nil, err
		}
		tracks = append(tracks, page.Items...)
		next = page.Next
	}
	return tracks, nil
}

// AudioFeatures returns the audio features for up to 100 tracks. Tracks
// without an analysis are omitted.
func (c *Client) AudioFeatures(ctx context.Context, trackIDs []string) ([]AudioFeatures, error) {
	if len(trackIDs) == 0 {
		return nil, nil
	}
	if len(trackIDs) > maxFeatureIDs {
		trackIDs = trackIDs[:maxFeatureIDs]
	}
	params := url.Values{}
	params.Set("ids", strings.Join(trackIDs, ","))
	var payload audioFeaturesResponse
	if err := c.get(ctx, "audio features", c.baseURL+"/audio-features?"+params.Encode(), &payload); err != nil {
		return nil, err
	}
	features := make([]AudioFeatures, 0, len(payload.AudioFeatures))
	for _, f := range payload.AudioFeatures {
		if f != nil {
			features = append(features, *f)
		}
	}
	return features, nil
}

// Artist fetches an artist profile.
func (c *Client) Artist(ctx context.Context, artistID string) (*Artist, error) {
	artistID = strings.TrimSpace(artistID)
	if artistID == "" {
		return nil, services.Wrap(services.ErrItem, "spotify", "artist", "artist id must not be empty", nil)
	}
	var artist Artist
	if err := c.get(ctx, "artist", c.baseURL+"/artists/"+url.PathEscape(artistID), &artist); err != nil {
		return nil, err
	}
	return &artist, nil
}

func (c *Client) get(ctx context.Context, operation, endpoint string, dst any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return services.Wrap(services.ErrItem, "spotify", operation,
			fmt.Sprintf("request failed (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
		if resp.StatusCode == http.StatusUnauthorized {
			c.invalidateToken()
		}
		return classifyStatus(operation, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return services.Wrap(services.ErrItem, "spotify", operation, "decode response", err)
	}
	return nil
}

// classifyStatus maps a non-200 response onto the error markers. Catalog
// failures only ever affect the current item.
func classifyStatus(operation string, status int, body []byte) error {
	message := fmt.Sprintf("status %d", status)
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
		message += ": " + parsed.Error.Message
	}
	switch status {
	case http.StatusTooManyRequests:
		return services.Wrap(services.ErrRateLimited, "spotify", operation, message, nil)
	case http.StatusNotFound:
		return services.Wrap(services.ErrUnavailable, "spotify", operation, message, nil)
	default:
		return services.Wrap(services.ErrItem, "spotify", operation, message, nil)
	}
}

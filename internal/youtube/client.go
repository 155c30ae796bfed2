package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reviewharvest/internal/services"
)

// MaxResults is the largest page playlistItems.list accepts.
const MaxResults = 50

const videoParts = "id,statistics,contentDetails,snippet"

// PlaylistItem is the subset of a playlistItems.list entry needed to resolve
// the underlying video.
type PlaylistItem struct {
	ID      string `json:"id"`
	Snippet struct {
		Title      string `json:"title"`
		ResourceID struct {
			Kind    string `json:"kind"`
			VideoID string `json:"videoId"`
		} `json:"resourceId"`
	} `json:"snippet"`
}

// PlaylistItemsResponse is one page of playlistItems.list.
type PlaylistItemsResponse struct {
	Items         []PlaylistItem `json:"items"`
	NextPageToken string         `json:"nextPageToken"`
	PageInfo      struct {
		TotalResults   int `json:"totalResults"`
		ResultsPerPage int `json:"resultsPerPage"`
	} `json:"pageInfo"`
}

// VideoIDs returns the video IDs referenced by the page, in order.
func (r *PlaylistItemsResponse) VideoIDs() []string {
	ids := make([]string, 0, len(r.Items))
	for _, item := range r.Items {
		if id := strings.TrimSpace(item.Snippet.ResourceID.VideoID); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

type videosResponse struct {
	Items []Video `json:"items"`
}

// Lister defines the Data API calls the acquire stage depends on.
type Lister interface {
	ListPlaylistItems(ctx context.Context, playlistID, pageToken string, maxResults int) (*PlaylistItemsResponse, error)
	ListVideos(ctx context.Context, ids []string) ([]Video, error)
}

// Client calls the YouTube Data API v3 with an API key.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ Lister = (*Client)(nil)

// Option configures a Client or TranscriptClient.
type Option func(*http.Client) *http.Client

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(current *http.Client) *http.Client {
		if client != nil {
			return client
		}
		return current
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(current *http.Client) *http.Client {
		if d > 0 {
			current.Timeout = d
		}
		return current
	}
}

// New creates a Data API client.
func New(apiKey, baseURL string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "youtube", "new client", "api key required", nil)
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "youtube", "new client", "base url required", nil)
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: buildHTTPClient(opts),
	}, nil
}

func buildHTTPClient(opts []Option) *http.Client {
	client := &http.Client{Timeout: 30 * time.Second}
	for _, opt := range opts {
		client = opt(client)
	}
	return client
}

// ListPlaylistItems fetches one page of a playlist. An empty pageToken
// requests the first page.
func (c *Client) ListPlaylistItems(ctx context.Context, playlistID, pageToken string, maxResults int) (*PlaylistItemsResponse, error) {
	playlistID = strings.TrimSpace(playlistID)
	if playlistID == "" {
		return nil, errors.New("playlist id must not be empty")
	}
	if maxResults <= 0 || maxResults > MaxResults {
		maxResults = MaxResults
	}
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("playlistId", playlistID)
	params.Set("maxResults", strconv.Itoa(maxResults))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var payload PlaylistItemsResponse
	if err := c.get(ctx, "playlistItems", params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// ListVideos resolves up to MaxResults video IDs to full resources. IDs the
// API does not return (deleted or private videos) are silently absent.
func (c *Client) ListVideos(ctx context.Context, ids []string) ([]Video, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxResults {
		return nil, fmt.Errorf("videos.list accepts at most %d ids, got %d", MaxResults, len(ids))
	}
	params := url.Values{}
	params.Set("part", videoParts)
	params.Set("id", strings.Join(ids, ","))
	params.Set("maxResults", strconv.Itoa(MaxResults))

	var payload videosResponse
	if err := c.get(ctx, "videos", params, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

func (c *Client) get(ctx context.Context, resource string, params url.Values, dst any) error {
	params.Set("key", c.apiKey)
	endpoint := c.baseURL + "/" + resource + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return services.Wrap(services.ErrExternal, "youtube", resource+".list",
			fmt.Sprintf("request failed (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return classifyAPIError(resource+".list", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return services.Wrap(services.ErrExternal, "youtube", resource+".list", "decode response", err)
	}
	return nil
}

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
			Domain string `json:"domain"`
		} `json:"errors"`
	} `json:"error"`
}

var quotaReasons = map[string]bool{
	"quotaExceeded":         true,
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"dailyLimitExceeded":    true,
}

// classifyAPIError maps a non-200 Data API response onto the error markers.
// 429 is always throttling. A 403 is throttling when its reason names a
// quota, or when the body carries no reason at all.
func classifyAPIError(operation string, status int, body []byte) error {
	var parsed apiErrorBody
	_ = json.Unmarshal(body, &parsed)
	reason := ""
	if len(parsed.Error.Errors) > 0 {
		reason = parsed.Error.Errors[0].Reason
	}
	message := fmt.Sprintf("status %d", status)
	if reason != "" {
		message += " reason=" + reason
	}
	if parsed.Error.Message != "" {
		message += ": " + parsed.Error.Message
	}

	switch {
	case status == http.StatusTooManyRequests:
		return services.Wrap(services.ErrRateLimited, "youtube", operation, message, nil)
	case status == http.StatusForbidden && (reason == "" || quotaReasons[reason]):
		return services.Wrap(services.ErrRateLimited, "youtube", operation, message, nil)
	case status == http.StatusBadRequest && reason == "keyInvalid",
		status == http.StatusUnauthorized:
		return services.Wrap(services.ErrConfiguration, "youtube", operation, message, nil)
	default:
		return services.Wrap(services.ErrExternal, "youtube", operation, message, nil)
	}
}

package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"reviewharvest/internal/services"
)

// Durable negatives. Callers record these in a skip cache.
var (
	ErrTranscriptsDisabled = fmt.Errorf("%w: transcripts disabled", services.ErrUnavailable)
	ErrNoTranscriptFound   = fmt.Errorf("%w: no transcript found", services.ErrUnavailable)
)

// NegativeReason returns the skip-cache reason for a durable negative, or
// false when err is not one.
func NegativeReason(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrTranscriptsDisabled):
		return "transcripts_disabled", true
	case errors.Is(err, ErrNoTranscriptFound):
		return "no_transcript_found", true
	default:
		return "", false
	}
}

// Segment is one timed caption line.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// TranscriptFetcher returns the transcript of a single video.
type TranscriptFetcher interface {
	FetchTranscript(ctx context.Context, videoID string) ([]Segment, error)
}

// TranscriptClient scrapes caption tracks from the watch page.
type TranscriptClient struct {
	watchURL   string
	languages  []string
	httpClient *http.Client
}

var _ TranscriptFetcher = (*TranscriptClient)(nil)

// NewTranscriptClient creates a transcript client. languages lists the
// preferred caption languages in order; empty means English.
func NewTranscriptClient(watchURL string, languages []string, opts ...Option) (*TranscriptClient, error) {
	watchURL = strings.TrimSpace(watchURL)
	if watchURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "youtube", "new transcript client", "watch url required", nil)
	}
	langs := make([]string, 0, len(languages))
	for _, lang := range languages {
		if lang = strings.ToLower(strings.TrimSpace(lang)); lang != "" {
			langs = append(langs, lang)
		}
	}
	if len(langs) == 0 {
		langs = []string{"en"}
	}
	return &TranscriptClient{
		watchURL:   strings.TrimRight(watchURL, "/"),
		languages:  langs,
		httpClient: buildHTTPClient(opts),
	}, nil
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	Captions *struct {
		Renderer *struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

// FetchTranscript downloads the transcript for videoID in the first
// preferred language that has one. Manually created tracks win over
// generated ones within a language.
func (c *TranscriptClient) FetchTranscript(ctx context.Context, videoID string) ([]Segment, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return nil, services.Wrap(services.ErrItem, "youtube", "transcript", "video id must not be empty", nil)
	}
	player, err := c.playerResponse(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if status := player.PlayabilityStatus.Status; status != "" && status != "OK" {
		return nil, services.Wrap(services.ErrItem, "youtube", "watch page",
			fmt.Sprintf("video %s not playable: %s %s", videoID, status, player.PlayabilityStatus.Reason), nil)
	}
	if player.Captions == nil || player.Captions.Renderer == nil || len(player.Captions.Renderer.CaptionTracks) == 0 {
		return nil, ErrTranscriptsDisabled
	}
	track, ok := selectTrack(player.Captions.Renderer.CaptionTracks, c.languages)
	if !ok {
		return nil, ErrNoTranscriptFound
	}
	return c.timedText(ctx, track.BaseURL)
}

func selectTrack(tracks []captionTrack, languages []string) (captionTrack, bool) {
	for _, lang := range languages {
		var generated *captionTrack
		for i := range tracks {
			if !strings.EqualFold(tracks[i].LanguageCode, lang) {
				continue
			}
			if tracks[i].Kind != "asr" {
				return tracks[i], true
			}
			if generated == nil {
				generated = &tracks[i]
			}
		}
		if generated != nil {
			return *generated, true
		}
	}
	return captionTrack{}, false
}

const playerResponseMarker = "ytInitialPlayerResponse"

func (c *TranscriptClient) playerResponse(ctx context.Context, videoID string) (*playerResponse, error) {
	params := url.Values{}
	params.Set("v", videoID)
	params.Set("hl", "en")
	body, err := c.fetch(ctx, "watch page", c.watchURL+"/watch?"+params.Encode())
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, services.Wrap(services.ErrItem, "youtube", "watch page", "parse html", err)
	}
	if doc.Find("div.g-recaptcha, form#captcha-form").Length() > 0 {
		return nil, services.Wrap(services.ErrRateLimited, "youtube", "watch page", "captcha challenge", nil)
	}

	var script string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if strings.Contains(text, playerResponseMarker) {
			script = text
			return false
		}
		return true
	})
	if script == "" {
		return nil, services.Wrap(services.ErrItem, "youtube", "watch page",
			fmt.Sprintf("player response missing for %s", videoID), nil)
	}
	return decodePlayerResponse(script)
}

// decodePlayerResponse reads the first JSON object assigned to the marker.
// The decoder stops at the end of that object, ignoring trailing script.
func decodePlayerResponse(script string) (*playerResponse, error) {
	idx := strings.Index(script, playerResponseMarker)
	rest := script[idx+len(playerResponseMarker):]
	brace := strings.Index(rest, "{")
	if brace < 0 {
		return nil, services.Wrap(services.ErrItem, "youtube", "watch page", "player response has no object", nil)
	}
	var player playerResponse
	if err := json.NewDecoder(strings.NewReader(rest[brace:])).Decode(&player); err != nil {
		return nil, services.Wrap(services.ErrItem, "youtube", "watch page", "decode player response", err)
	}
	return &player, nil
}

type timedTextDoc struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Body  string `xml:",chardata"`
	} `xml:"text"`
}

func (c *TranscriptClient) timedText(ctx context.Context, baseURL string) ([]Segment, error) {
	trackURL := strings.ReplaceAll(baseURL, "&fmt=srv3", "")
	body, err := c.fetch(ctx, "timedtext", trackURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var doc timedTextDoc
	if err := xml.NewDecoder(body).Decode(&doc); err != nil {
		return nil, services.Wrap(services.ErrItem, "youtube", "timedtext", "decode caption xml", err)
	}
	segments := make([]Segment, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		text := strings.TrimSpace(html.UnescapeString(t.Body))
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Text:     text,
			Start:    parseSeconds(t.Start),
			Duration: parseSeconds(t.Dur),
		})
	}
	return segments, nil
}

func (c *TranscriptClient) fetch(ctx context.Context, operation, target string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept-Language", "en-US")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, services.Wrap(services.ErrItem, "youtube", operation,
			fmt.Sprintf("request failed (latency=%v)", latency), err)
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return resp.Body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, services.Wrap(services.ErrRateLimited, "youtube", operation, "status 429", nil)
	default:
		resp.Body.Close()
		return nil, services.Wrap(services.ErrItem, "youtube", operation,
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
}

func parseSeconds(value string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return f
}

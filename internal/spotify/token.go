package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reviewharvest/internal/services"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// accessToken returns a cached app token, requesting a new one when the
// cached token is missing or about to expire.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrExternal, "spotify", "token", "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", services.Wrap(services.ErrRateLimited, "spotify", "token", "status 429", nil)
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnauthorized:
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", services.Wrap(services.ErrConfiguration, "spotify", "token",
			fmt.Sprintf("credentials rejected (status %d)", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return "", services.Wrap(services.ErrExternal, "spotify", "token",
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", services.Wrap(services.ErrExternal, "spotify", "token", "decode response", err)
	}
	if payload.AccessToken == "" {
		return "", services.Wrap(services.ErrExternal, "spotify", "token", "empty access token", nil)
	}
	lifetime := time.Duration(payload.ExpiresIn) * time.Second
	if lifetime > tokenExpiryGrace {
		lifetime -= tokenExpiryGrace
	}
	c.token = payload.AccessToken
	c.tokenExpiry = c.now().Add(lifetime)
	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// Authenticate exchanges the client credentials for an app token.
func (c *Client) Authenticate(ctx context.Context) error {
	_, err := c.accessToken(ctx)
	return err
}

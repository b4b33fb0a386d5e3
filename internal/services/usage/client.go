// Package usage fetches usage data from the claude.ai API and supervises
// the background polling loop for the active account.
package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/linuxlewis/claude-usage/internal/models"
)

const (
	baseURL        = "https://claude.ai/api/organizations"
	clientPlatform = "web_claude_ai"
	sessionCookie  = "sessionKey"
)

// AuthError means the stored credentials were rejected (401/403). It is
// surfaced as a persistent expired state requiring user action, never
// retried automatically within a tick.
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication rejected with status %d", e.StatusCode)
}

// HTTPError is any other non-2xx response. Transient; the next tick retries.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("usage request failed with status %d", e.StatusCode)
}

// ErrInvalidResponse marks a 2xx response whose body could not be decoded.
var ErrInvalidResponse = errors.New("invalid usage response")

// Client performs single usage fetches. It is stateless; credentials are
// passed per call.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a usage client. A nil httpClient uses the default
// transport, whose timeout is the only one applied.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient}
}

// FetchUsage performs one usage round-trip. On success it returns the
// parsed snapshot and, when the server rotated the session, the new
// session key ("" when the cookie was not rotated).
func (c *Client) FetchUsage(ctx context.Context, sessionKey, orgID string) (*models.UsageSnapshot, string, error) {
	url := fmt.Sprintf("%s/%s/usage", baseURL, orgID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create usage request: %w", err)
	}
	req.Header.Set("accept", "*/*")
	req.Header.Set("content-type", "application/json")
	req.Header.Set("anthropic-client-platform", clientPlatform)
	req.Header.Set("Cookie", sessionCookie+"="+sessionKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("usage request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, "", &AuthError{StatusCode: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &HTTPError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read usage response: %w", err)
	}

	snap, err := decodeSnapshot(body)
	if err != nil {
		return nil, "", err
	}

	return snap, rotatedSessionKey(resp.Header), nil
}

// decodeSnapshot parses the response body, requiring the session and
// weekly windows to be present.
func decodeSnapshot(body []byte) (*models.UsageSnapshot, error) {
	var raw struct {
		FiveHour          *models.UsageLimit `json:"five_hour"`
		SevenDay          *models.UsageLimit `json:"seven_day"`
		SevenDaySonnet    *models.UsageLimit `json:"seven_day_sonnet"`
		SevenDayOpus      *models.UsageLimit `json:"seven_day_opus"`
		SevenDayOauthApps *models.UsageLimit `json:"seven_day_oauth_apps"`
		SevenDayCowork    *models.UsageLimit `json:"seven_day_cowork"`
		IguanaNecktie     *models.UsageLimit `json:"iguana_necktie"`
		ExtraUsage        *models.UsageLimit `json:"extra_usage"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if raw.FiveHour == nil || raw.SevenDay == nil {
		return nil, fmt.Errorf("%w: missing required limit windows", ErrInvalidResponse)
	}

	return &models.UsageSnapshot{
		FiveHour:          *raw.FiveHour,
		SevenDay:          *raw.SevenDay,
		SevenDaySonnet:    raw.SevenDaySonnet,
		SevenDayOpus:      raw.SevenDayOpus,
		SevenDayOauthApps: raw.SevenDayOauthApps,
		SevenDayCowork:    raw.SevenDayCowork,
		IguanaNecktie:     raw.IguanaNecktie,
		ExtraUsage:        raw.ExtraUsage,
	}, nil
}

// rotatedSessionKey scans Set-Cookie headers for a sessionKey assignment.
// Absence is not an error; the server rotates the cookie at its own pace.
func rotatedSessionKey(header http.Header) string {
	for _, cookie := range header.Values("Set-Cookie") {
		// Only the first segment carries the name=value pair; the rest
		// are attributes like Path and Expires.
		pair, _, _ := strings.Cut(cookie, ";")
		if value, ok := strings.CutPrefix(strings.TrimSpace(pair), sessionCookie+"="); ok {
			return value
		}
	}
	return ""
}

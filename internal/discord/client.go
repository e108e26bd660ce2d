// Package discord is a minimal client for the chat service's REST API.
package discord

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

	"github.com/InfiniteCod3/chatplugins/internal/model"
)

// MaxPageSize is the largest page the messages endpoint serves.
const MaxPageSize = 100

// ErrMissingToken is returned when no user token is configured.
var ErrMissingToken = errors.New("discord token is not configured")

// RateLimitError is returned for HTTP 429. RetryAfter is zero when the server
// gave no hint.
type RateLimitError struct {
	RetryAfter time.Duration
	Global     bool
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (retry after %s, global=%t)", e.RetryAfter, e.Global)
}

// StatusError is returned for any other non-success status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("discord request failed: status=%d body=%s", e.StatusCode, e.Body)
}

// Client talks to the remote message API.
type Client struct {
	apiBase    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for apiBase (e.g. "https://discord.com/api/v9").
func NewClient(apiBase, token string, requestTimeout time.Duration) *Client {
	return &Client{
		apiBase: strings.TrimRight(apiBase, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// HasToken reports whether a token is configured.
func (c *Client) HasToken() bool {
	return c.token != ""
}

// GetMessages returns up to limit messages older than before, newest first.
// An empty before starts from the most recent message.
func (c *Client) GetMessages(ctx context.Context, channelID string, limit int, before string) ([]model.Message, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if before != "" {
		params.Set("before", before)
	}

	var messages []model.Message
	path := "/channels/" + url.PathEscape(channelID) + "/messages?" + params.Encode()
	if err := c.get(ctx, path, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// GetRelationships returns the current user's relationships.
func (c *Client) GetRelationships(ctx context.Context) ([]model.Relationship, error) {
	var rels []model.Relationship
	if err := c.get(ctx, "/users/@me/relationships", &rels); err != nil {
		return nil, err
	}
	return rels, nil
}

// GetNotes returns the current user's notes keyed by user ID.
func (c *Client) GetNotes(ctx context.Context) (map[string]string, error) {
	notes := map[string]string{}
	if err := c.get(ctx, "/users/@me/notes", &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if c.token == "" {
		return ErrMissingToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read discord response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return parseRateLimit(resp.Header, body)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 400)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse discord response: %w", err)
	}
	return nil
}

type rateLimitBody struct {
	RetryAfter float64 `json:"retry_after"`
	Global     bool    `json:"global"`
}

// parseRateLimit prefers the JSON body hint (fractional seconds) over the
// Retry-After header (whole seconds).
func parseRateLimit(h http.Header, body []byte) *RateLimitError {
	rl := &RateLimitError{}
	var parsed rateLimitBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.RetryAfter > 0 {
		rl.RetryAfter = time.Duration(parsed.RetryAfter * float64(time.Second))
		rl.Global = parsed.Global
		return rl
	}
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			rl.RetryAfter = time.Duration(secs * float64(time.Second))
		}
	}
	return rl
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}

package avatar

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// The upstream caps talk scripts; longer replies are truncated before
// submission.
const maxScriptChars = 500

// Client talks to the avatar video generation API
type Client struct {
	authHeader   string
	baseURL      string
	pollInterval time.Duration
	maxWait      time.Duration
	client       *http.Client
}

// NewClient creates a new avatar API client
func NewClient(apiKey, baseURL string, pollInterval, maxWait time.Duration) *Client {
	return &Client{
		authHeader:   "Basic " + base64.StdEncoding.EncodeToString([]byte(apiKey)),
		baseURL:      baseURL,
		pollInterval: pollInterval,
		maxWait:      maxWait,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
}

// Talk is the state of a video generation job
type Talk struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	ResultURL string `json:"result_url"`
}

type createTalkRequest struct {
	Script    talkScript `json:"script"`
	SourceURL string     `json:"source_url,omitempty"`
}

type talkScript struct {
	Type  string `json:"type"`
	Input string `json:"input"`
}

// CreateTalk submits a new video generation job for the given text
func (c *Client) CreateTalk(ctx context.Context, text string) (*Talk, error) {
	if len(text) > maxScriptChars {
		text = text[:maxScriptChars]
	}

	body, err := json.Marshal(createTalkRequest{
		Script: talkScript{Type: "text", Input: text},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal talk request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/talks", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.authHeader)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("avatar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return nil, fmt.Errorf("avatar request failed with status %d: %s", resp.StatusCode, string(msg))
	}

	var talk Talk
	if err := json.NewDecoder(resp.Body).Decode(&talk); err != nil {
		return nil, fmt.Errorf("failed to decode talk response: %w", err)
	}
	return &talk, nil
}

// GetTalk fetches the current state of a job
func (c *Client) GetTalk(ctx context.Context, id string) (*Talk, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/talks/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("avatar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return nil, fmt.Errorf("avatar request failed with status %d: %s", resp.StatusCode, string(msg))
	}

	var talk Talk
	if err := json.NewDecoder(resp.Body).Decode(&talk); err != nil {
		return nil, fmt.Errorf("failed to decode talk response: %w", err)
	}
	return &talk, nil
}

// WaitForDone polls a job until it completes and returns the video URL
func (c *Client) WaitForDone(ctx context.Context, id string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.maxWait)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("avatar generation timed out: %w", ctx.Err())
		case <-ticker.C:
			talk, err := c.GetTalk(ctx, id)
			if err != nil {
				return "", err
			}
			switch talk.Status {
			case "done":
				return talk.ResultURL, nil
			case "error", "rejected":
				return "", fmt.Errorf("avatar generation failed with status %q", talk.Status)
			}
		}
	}
}

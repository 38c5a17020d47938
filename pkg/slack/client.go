// Package slack delivers push summaries to squad channels through Slack
// incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client posts messages to Slack incoming webhooks. Each squad carries its
// own webhook URL, so the client itself is stateless.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a webhook client. A non-positive timeout defaults to 10
// seconds.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

type webhookPayload struct {
	Text string `json:"text"`
}

// Post sends a text message to the given webhook URL. Slack answers non-2xx
// with a short plain-text reason, which is folded into the error.
func (c *Client) Post(ctx context.Context, webhookURL, text string) error {
	if webhookURL == "" {
		return fmt.Errorf("webhook URL is empty")
	}

	body, err := json.Marshal(webhookPayload{Text: text})
	if err != nil {
		return fmt.Errorf("failed to encode slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, string(reason))
	}
	return nil
}

// SummaryMessage formats the per-site metric summary. The layout is frozen:
// downstream Slack workflows parse these lines.
func SummaryMessage(siteName, roas, mc string) string {
	return fmt.Sprintf("*%s*\nROAS: %s\nMC: %s", siteName, roas, mc)
}

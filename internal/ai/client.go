// Package ai implements the HTTP client that triggers server-side AI jobs
// (document summarization). The trigger is fire-and-acknowledge: a 202 means
// the job was accepted and its progress is tracked through the persisted
// summary status, not through this connection.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dkontos/go-study-sync/internal/retry"
)

// Client talks to the AI processing endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a Client for the AI service at baseURL. A nil httpClient
// falls back to a client with a conservative timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// StartSummary asks the backend to summarize a document. Client errors (4xx
// other than auth) are permanent: retrying the same request cannot succeed,
// so the read-retry policy must not loop on them.
func (c *Client) StartSummary(ctx context.Context, documentID, language string) error {
	body, err := json.Marshal(map[string]string{
		"document_id": documentID,
		"language":    language,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/summaries", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ai: start summary: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return retry.Auth(fmt.Errorf("ai: start summary: status %d", resp.StatusCode))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return retry.Permanent(fmt.Errorf("ai: start summary: status %d", resp.StatusCode))
	default:
		return fmt.Errorf("ai: start summary: status %d", resp.StatusCode)
	}
}

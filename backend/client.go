// Package backend provides the HTTP transport to the persistence backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/CoachForgeHQ/coachforge-go/models"
)

// CommitError represents a failed commit of one entity.
type CommitError struct {
	StatusCode int
	URL        string
	Message    string
}

// Error returns the extracted backend message without status decoration.
func (e *CommitError) Error() string {
	return e.Message
}

// Committer commits a single pending change to the persistence backend. The
// orchestrator depends on this interface so tests can substitute an
// instrumented transport.
type Committer interface {
	Commit(ctx context.Context, pc *models.PendingChange, payload map[string]any) error
}

// Client commits pending changes over HTTP. Each change carries its own
// fully-resolved endpoint and verb, decided by the registering editor; the
// client is payload-agnostic.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend client. Relative endpoints are resolved against
// baseURL. Timeout is the only cancellation at this layer; a save run has no
// user-facing abort.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Commit sends one entity's payload to its registered endpoint.
func (c *Client) Commit(ctx context.Context, pc *models.PendingChange, payload map[string]any) error {
	url := c.resolveURL(pc.APIEndpoint)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload for %s %s: %w", pc.EntityType, pc.EntityID, err)
	}

	req, err := http.NewRequestWithContext(ctx, pc.HTTPMethod, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request for %s %s: %w", pc.EntityType, pc.EntityID, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("commit request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &CommitError{
			StatusCode: resp.StatusCode,
			URL:        url,
			Message:    extractErrorMessage(resp),
		}
	}

	// Drain so the connection can be reused.
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) resolveURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.baseURL + endpoint
}

// extractErrorMessage pulls the best available message from an error
// response: structured error body first, then plain text body, then a generic
// status-code string.
func extractErrorMessage(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err == nil && len(body) > 0 {
		var structured struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if jsonErr := json.Unmarshal(body, &structured); jsonErr == nil {
			if structured.Error != "" {
				return structured.Error
			}
			if structured.Message != "" {
				return structured.Message
			}
		}
		if text := strings.TrimSpace(string(body)); text != "" {
			return text
		}
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}

// Package tasklink resolves external task references against a tracker's
// HTTP API.
package tasklink

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/louisbranch/attain.works/internal/platform/errors"
)

const defaultTimeout = 10 * time.Second

// Client checks task existence against a tracker base URL. The tracker
// is expected to answer GET {base}/tasks/{key} with 200 for known tasks
// and 404 for unknown ones.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a tasklink client for the given tracker base URL.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("tracker base url is required")
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("parse tracker base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: trimmed, httpClient: httpClient}, nil
}

// TaskExists reports whether the tracker knows the task key. Transport
// failures and unexpected statuses surface as lookup errors so callers
// can distinguish "missing" from "unknown".
func (c *Client) TaskExists(ctx context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, apperrors.New(apperrors.CodeCriterionTaskKeyRequired, "task key is required")
	}

	endpoint := c.baseURL + "/tasks/" + url.PathEscape(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build task lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, apperrors.WrapWithMetadata(
			apperrors.CodeTaskLookupFailed,
			"task lookup request failed",
			map[string]string{"TaskKey": key},
			err,
		)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, apperrors.WithMetadata(
			apperrors.CodeTaskLookupFailed,
			fmt.Sprintf("task lookup returned status %d", resp.StatusCode),
			map[string]string{"TaskKey": key, "Status": fmt.Sprintf("%d", resp.StatusCode)},
		)
	}
}

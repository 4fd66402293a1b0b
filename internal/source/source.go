package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/auditpump/auditpump/internal/config"
	"github.com/auditpump/auditpump/internal/utils/logger"
	"go.uber.org/zap"
)

// DefaultPageLimit is the page size requested from the audit-log API
const DefaultPageLimit = 100

// Event is a single audit-log record. The poller never interprets event
// content beyond the two identity fields; everything else is passed through
// to the sink unmodified.
type Event map[string]any

// ID returns the event_id field, or "" when absent
func (e Event) ID() string {
	id, _ := e["event_id"].(string)
	return id
}

// SavedTime returns the event_saved_time field, or "" when absent
func (e Event) SavedTime() string {
	t, _ := e["event_saved_time"].(string)
	return t
}

// Page is one page of audit-log events. NextCursor is empty when the source
// has no further pages, meaning the poller has caught up to the live edge.
type Page struct {
	Events     []Event
	NextCursor string
}

// TokenProvider supplies the current auth token for API requests
type TokenProvider interface {
	Token() string
}

// Client fetches audit-log pages from the remote API
type Client struct {
	settings   *config.Settings
	tokens     TokenProvider
	httpClient *http.Client
}

// NewClient creates an audit-log client. The fetch timeout bounds each
// request so a hung endpoint surfaces as a transient failure instead of
// stalling the poll loop.
func NewClient(settings *config.Settings, tokens TokenProvider) *Client {
	return &Client{
		settings: settings,
		tokens:   tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type logsResponse struct {
	Data       []Event `json:"data"`
	Pagination struct {
		NextCursor string `json:"next_cursor"`
	} `json:"pagination"`
}

// FetchPage fetches one page of audit logs starting at the given cursor.
// An empty cursor fetches from the beginning. The cursor is opaque and is
// passed through to the API unmodified.
//
// Returns ErrTokenExpired when the API rejects the token, so the caller can
// refresh and retry the same cursor. Every other failure is a
// *TransientError.
func (c *Client) FetchPage(ctx context.Context, cursor string) (*Page, error) {
	logger.Info("Fetching audit logs", zap.String("cursor", truncateCursor(cursor)))
	start := time.Now()

	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", DefaultPageLimit))
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.settings.AuditLogsURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("X-Auth-Token", c.tokens.Token())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("Audit logs request failed",
			zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	logger.Info("Audit logs request completed",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("status", resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusOK:
		var body logsResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, &TransientError{Err: fmt.Errorf("failed to decode response: %w", err)}
		}
		logger.Info("Received events from API", zap.Int("count", len(body.Data)))
		return &Page{Events: body.Data, NextCursor: body.Pagination.NextCursor}, nil

	case resp.StatusCode == http.StatusUnauthorized:
		logger.Warn("Token rejected by audit logs API, refresh required")
		return nil, ErrTokenExpired

	default:
		return nil, &TransientError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unexpected status %d from audit logs API", resp.StatusCode),
		}
	}
}

// truncateCursor shortens opaque cursors for log readability
func truncateCursor(cursor string) string {
	if cursor == "" {
		return "<none>"
	}
	if len(cursor) > 20 {
		return cursor[:20] + "..."
	}
	return cursor
}

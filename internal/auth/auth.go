package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/auditpump/auditpump/internal/config"
	"github.com/auditpump/auditpump/internal/storage"
	"github.com/auditpump/auditpump/internal/utils/logger"
	"go.uber.org/zap"
)

// AuthError indicates the authentication exchange itself failed. It is not
// retried internally; the caller decides whether to retry.
type AuthError struct {
	// Status is the HTTP status code, or 0 for connection-level failures
	Status int
	Err    error
}

// Error implements the error interface
func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("auth exchange failed (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("auth exchange failed: %v", e.Err)
}

// Unwrap returns the underlying error
func (e *AuthError) Unwrap() error {
	return e.Err
}

// Client holds the current auth token and performs the identity exchange
// when a new one is needed. Exactly one token is live at a time; every
// successful refresh overwrites the persisted token.
type Client struct {
	settings   *config.Settings
	store      storage.Store
	httpClient *http.Client
	token      string
}

// New creates an auth client, loading any previously persisted token from
// the store.
func New(ctx context.Context, settings *config.Settings, store storage.Store) (*Client, error) {
	token, err := store.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	if token == "" {
		logger.Debug("No persisted auth token found")
	}
	return &Client{
		settings: settings,
		store:    store,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		token: token,
	}, nil
}

// Token returns the currently cached token. May be "" before the first
// successful exchange.
func (c *Client) Token() string {
	return c.token
}

// EnsureValidToken returns the cached token, fetching a new one only when no
// token is cached. A stale cached token is not detected here; staleness is
// discovered via a 401 from the audit-log API.
func (c *Client) EnsureValidToken(ctx context.Context) (string, error) {
	if c.token == "" {
		logger.Info("No auth token available, requesting new token")
		return c.RefreshToken(ctx)
	}
	return c.token, nil
}

// RefreshToken unconditionally performs a fresh authentication exchange,
// replaces the cached token and persists it.
func (c *Client) RefreshToken(ctx context.Context) (string, error) {
	logger.Info("Requesting auth token", zap.String("url", c.settings.AuthURL))
	start := time.Now()

	body, err := json.Marshal(c.authRequest())
	if err != nil {
		return "", &AuthError{Err: fmt.Errorf("failed to marshal auth request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.settings.AuthURL, bytes.NewReader(body))
	if err != nil {
		return "", &AuthError{Err: fmt.Errorf("failed to build auth request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("Auth request failed",
			zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return "", &AuthError{Err: err}
	}
	defer resp.Body.Close()

	logger.Info("Auth request completed",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode != http.StatusCreated {
		return "", &AuthError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unexpected status %d from identity API", resp.StatusCode),
		}
	}

	token := resp.Header.Get("X-Subject-Token")
	if token == "" {
		return "", &AuthError{Err: fmt.Errorf("identity API returned no X-Subject-Token header")}
	}

	c.token = token
	if err := c.store.SetToken(ctx, token); err != nil {
		return "", fmt.Errorf("failed to persist token: %w", err)
	}

	logger.Info("Auth token successfully obtained")
	return token, nil
}

// authRequest builds the identity API password-auth payload
func (c *Client) authRequest() map[string]any {
	return map[string]any{
		"auth": map[string]any{
			"identity": map[string]any{
				"methods": []string{"password"},
				"password": map[string]any{
					"user": map[string]any{
						"name":     c.settings.Username,
						"domain":   map[string]any{"name": c.settings.AccountID},
						"password": c.settings.Password,
					},
				},
			},
			"scope": map[string]any{
				"domain": map[string]any{"name": c.settings.AccountID},
			},
		},
	}
}

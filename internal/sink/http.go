package sink

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/auditpump/auditpump/internal/source"
	"github.com/auditpump/auditpump/internal/utils/logger"
	"go.uber.org/zap"
)

// HTTPSink POSTs each event individually to a configured endpoint with
// Basic Auth. Same partial-failure semantics as the syslog sink: the batch
// errors if any event fails.
type HTTPSink struct {
	url        string
	username   string
	password   string
	httpClient *http.Client
}

// NewHTTPSink creates an HTTP sink. URLs without a scheme get "http://"
// prepended. TLS verification can be disabled for endpoints with
// self-signed certificates.
func NewHTTPSink(url, username, password string, verifyTLS bool) *HTTPSink {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
		logger.Debug("Added http scheme to sink URL", zap.String("url", url))
	}

	transport := http.DefaultTransport
	if !verifyTLS {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &HTTPSink{
		url:      url,
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
	}
}

// AddEvents POSTs each event in the batch individually
func (s *HTTPSink) AddEvents(ctx context.Context, events []source.Event) error {
	logger.Info("Sending batch via HTTP",
		zap.Int("count", len(events)), zap.String("url", s.url))

	sent := 0
	for _, event := range events {
		if err := s.send(ctx, event); err != nil {
			logger.Error("Failed to send event via HTTP", zap.Error(err))
			continue
		}
		sent++
	}

	logger.Info("HTTP batch send completed",
		zap.Int("sent", sent), zap.Int("total", len(events)))

	if sent < len(events) {
		return fmt.Errorf("only %d/%d events sent via HTTP", sent, len(events))
	}
	return nil
}

// send POSTs one event with Basic Auth
func (s *HTTPSink) send(ctx context.Context, event source.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(s.username, s.password)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return nil
	default:
		return fmt.Errorf("unexpected status %d from sink endpoint", resp.StatusCode)
	}
}

// Close is a no-op; connections are pooled by the HTTP client
func (s *HTTPSink) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

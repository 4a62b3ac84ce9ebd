// Package fabric is a client for the Fabric REST API.
//
// It builds pattern execution requests, sends them to a running
// `fabric --serve` instance and folds the Server-Sent-Events response of
// POST /chat into a single Result. Every failure is reported as one of the
// typed errors declared in errors.go so callers can tell transport, protocol
// and data problems apart with errors.As.
package fabric

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"fabricmcp/internal/logging"
)

const (
	// DefaultBaseURL is where `fabric --serve` listens by default.
	DefaultBaseURL = "http://127.0.0.1:8080"
	// DefaultTimeout bounds a whole request, including reading the stream.
	DefaultTimeout = 30 * time.Second

	apiKeyHeader  = "X-API-Key"
	maxErrorBody  = 64 * 1024
	redactedValue = "[REDACTED_BY_MCP_SERVER]"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client // optional; Timeout is ignored when set
	Logger     *logging.AppLogger
}

// Client talks to one Fabric API instance. It is meant to be created per
// invocation and released with Close.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.AppLogger

	closeOnce sync.Once
}

// NewClient creates a Client, filling unset options with defaults.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.GetDefault()
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

// BaseURL returns the API root this client sends requests to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases idle connections held by the client. It is safe to call
// more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.httpClient.CloseIdleConnections()
		c.logger.Debug("Fabric client closed", "baseURL", c.baseURL)
	})
	return nil
}

// PatternDetails describes a single pattern.
type PatternDetails struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Pattern     string `json:"pattern"`
}

// ModelCatalog lists the models Fabric knows about, grouped by vendor.
type ModelCatalog struct {
	Models  []string            `json:"models"`
	Vendors map[string][]string `json:"vendors"`
}

// Strategy is a prompt strategy (e.g. chain-of-thought) Fabric can apply.
type Strategy struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

// RunPattern executes a pattern through POST /chat and aggregates the
// streamed response.
func (c *Client) RunPattern(ctx context.Context, req *ChatRequest) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	resp, endpoint, err := c.do(ctx, http.MethodPost, "/chat", bytes.NewReader(body), "text/event-stream")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	result, err := AggregateReader(resp.Body, endpoint)
	if err != nil {
		c.logger.Debug("Stream aggregation failed", "endpoint", endpoint, "error", err)
		return nil, classifyTransportError(err, endpoint)
	}

	c.logger.Debug("Pattern run completed",
		"pattern", req.Prompt().PatternName,
		"outputLength", len(result.OutputText),
		"format", result.OutputFormat,
	)
	return result, nil
}

// ListPatterns returns the names of all available patterns.
func (c *Client) ListPatterns(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.getJSON(ctx, "/patterns/names", &names); err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// GetPattern returns the details of a single pattern.
func (c *Client) GetPattern(ctx context.Context, name string) (*PatternDetails, error) {
	var details PatternDetails
	if err := c.getJSON(ctx, "/patterns/"+url.PathEscape(name), &details); err != nil {
		return nil, err
	}
	if details.Name == "" {
		details.Name = name
	}
	return &details, nil
}

// ListModels returns the configured models grouped by vendor.
func (c *Client) ListModels(ctx context.Context) (*ModelCatalog, error) {
	var catalog ModelCatalog
	if err := c.getJSON(ctx, "/models/names", &catalog); err != nil {
		return nil, err
	}
	if catalog.Models == nil {
		catalog.Models = []string{}
	}
	if catalog.Vendors == nil {
		catalog.Vendors = map[string][]string{}
	}
	return &catalog, nil
}

// ListStrategies returns the prompt strategies installed in Fabric.
func (c *Client) ListStrategies(ctx context.Context) ([]Strategy, error) {
	var strategies []Strategy
	if err := c.getJSON(ctx, "/strategies", &strategies); err != nil {
		return nil, err
	}
	if strategies == nil {
		strategies = []Strategy{}
	}
	return strategies, nil
}

// GetConfiguration returns Fabric's configuration with secret values
// redacted.
func (c *Client) GetConfiguration(ctx context.Context) (map[string]string, error) {
	var raw map[string]any
	if err := c.getJSON(ctx, "/config", &raw); err != nil {
		return nil, err
	}
	return RedactConfiguration(raw), nil
}

// RedactConfiguration stringifies configuration values and replaces
// non-empty secrets (keys containing API_KEY, TOKEN or SECRET) with a marker.
func RedactConfiguration(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		s := ""
		if v != nil {
			s = fmt.Sprint(v)
		}
		if isSecretKey(k) && s != "" {
			s = redactedValue
		}
		out[k] = s
	}
	return out
}

func isSecretKey(key string) bool {
	upper := strings.ToUpper(key)
	for _, marker := range []string{"API_KEY", "APIKEY", "TOKEN", "SECRET"} {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, endpoint, err := c.do(ctx, http.MethodGet, path, nil, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransportError(err, endpoint)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &MalformedDataError{Data: string(data), Err: err}
	}
	return nil
}

// do sends a request and returns the response when the status is 2xx. Any
// other status is drained into an *APIStatusError.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, accept string) (*http.Response, string, error) {
	endpoint := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, endpoint, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	c.logger.Debug("Sending request to Fabric API", "method", method, "endpoint", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, endpoint, classifyTransportError(err, endpoint)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &APIStatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(data)),
		}
		c.logger.Warn("Fabric API returned an error status", "endpoint", endpoint, "status", resp.StatusCode)
		return nil, endpoint, statusErr
	}

	return resp, endpoint, nil
}

// classifyTransportError maps low-level failures onto TimeoutError and
// ConnectionError. Errors that are already classified pass through, except
// that a broken stream caused by the client deadline becomes a TimeoutError.
func classifyTransportError(err error, endpoint string) error {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		if isTimeout(connErr.Err) {
			return &TimeoutError{URL: endpoint, Err: connErr.Err}
		}
		return err
	}
	var classified classifiedError
	if errors.As(err, &classified) {
		return err
	}
	if isTimeout(err) {
		return &TimeoutError{URL: endpoint, Err: err}
	}
	return &ConnectionError{URL: endpoint, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

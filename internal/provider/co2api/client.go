// Package co2api is a client for the external CO₂ backend: transport search,
// authentication, user accounts, simulations, history and the admin catalogue.
package co2api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/transportco2/transportco2/internal/provider/resilience"
	"github.com/transportco2/transportco2/internal/ranking"
)

const (
	// ProviderName identifies the backend in the resilience registry.
	ProviderName = "co2api"

	// DefaultTimeout bounds each attempt.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxResponseBytes caps a successful response body.
	DefaultMaxResponseBytes = 8 << 20

	maxErrorBody = 4 << 10
)

// ErrResponseTooLarge indicates a success body above the configured cap.
var ErrResponseTooLarge = errors.New("co2api: response too large")

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestObserver is told about every backend call once it finishes.
type RequestObserver interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
}

// ClientConfig configures the backend client.
type ClientConfig struct {
	// BaseURL is the backend root, e.g. http://localhost:8080 (required).
	BaseURL string

	// HTTPClient overrides the resilient default.
	HTTPClient HTTPDoer

	Timeout    time.Duration
	MaxRetries uint64

	// Registry tracks backend health for readiness checks (optional).
	Registry *resilience.Registry

	// Observer records call latency and outcome (optional).
	Observer RequestObserver

	// MaxResponseBytes caps successful response bodies. Defaults to
	// DefaultMaxResponseBytes.
	MaxResponseBytes int64

	Logger zerolog.Logger
}

// Client talks to the CO₂ backend.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	observer   RequestObserver
	maxBody    int64
	logger     zerolog.Logger
}

// NewClient creates a backend client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		if cfg.Timeout > 0 {
			clientCfg.Timeout = cfg.Timeout
		} else {
			clientCfg.Timeout = DefaultTimeout
		}
		if cfg.MaxRetries > 0 {
			clientCfg.MaxRetries = cfg.MaxRetries
		}
		clientCfg.Registry = cfg.Registry
		logger := cfg.Logger.With().Str("provider", ProviderName).Logger()
		clientCfg.Breaker.Logger = &logger
		httpClient = resilience.NewClient(clientCfg)
	}

	maxBody := cfg.MaxResponseBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxResponseBytes
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		observer:   cfg.Observer,
		maxBody:    maxBody,
		logger:     cfg.Logger,
	}
}

// SearchTransports fetches the candidate options between two places. The
// endpoint is public, so no token is sent.
func (c *Client) SearchTransports(ctx context.Context, origin, destination string) ([]ranking.RawOption, error) {
	q := url.Values{}
	q.Set("origine", origin)
	q.Set("destination", destination)

	var options []ranking.RawOption
	if err := c.do(ctx, "search", http.MethodGet, "/transports/search?"+q.Encode(), "", nil, &options); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("origin", origin).
		Str("destination", destination).
		Int("option_count", len(options)).
		Msg("received transport options")

	return options, nil
}

// do sends a JSON request and decodes a JSON response into out (when non-nil).
func (c *Client) do(ctx context.Context, op, method, path, token string, in, out any) error {
	start := time.Now()
	err := c.send(ctx, op, method, path, token, in, out)
	if c.observer != nil {
		c.observer.RecordRequest(ProviderName, op, time.Since(start), err)
	}
	return err
}

func (c *Client) send(ctx context.Context, op, method, path, token string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("co2api %s: marshaling request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("co2api %s: creating request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("op", op).Msg("co2 backend request failed")
		return &Error{Op: op, Message: "backend unreachable", Err: ErrUnavailable}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errorFromStatus(op, resp.StatusCode, msg)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: "reading response", Err: ErrUnavailable}
	}
	if int64(len(raw)) > c.maxBody {
		c.logger.Error().Str("op", op).Int64("limit", c.maxBody).Msg("co2 backend response too large")
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: fmt.Sprintf("response exceeds %d bytes", c.maxBody), Err: ErrResponseTooLarge}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("co2api %s: decoding response: %w", op, err)
	}
	return nil
}

// errorFromStatus maps a non-2xx backend response to an *Error.
func errorFromStatus(op string, status int, body []byte) error {
	msg := backendMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}

	var sentinel error
	switch {
	case status == http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case status == http.StatusForbidden:
		sentinel = ErrForbidden
	case status == http.StatusNotFound:
		sentinel = ErrNotFound
	case status == http.StatusConflict:
		sentinel = ErrConflict
	case status == http.StatusTooManyRequests:
		sentinel = ErrRateLimited
	case status >= 500:
		sentinel = ErrUnavailable
	default:
		sentinel = ErrBadRequest
	}

	return &Error{Op: op, StatusCode: status, Message: msg, Err: sentinel}
}

// backendMessage extracts a human-readable message. The backend answers
// either with a JSON error object or with a plain string.
func backendMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	var be backendError
	if err := json.Unmarshal(trimmed, &be); err == nil {
		if be.Message != "" {
			return be.Message
		}
		if be.Error != "" {
			return be.Error
		}
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	return string(trimmed)
}

// IsUnavailable reports whether err means the backend could not serve the call.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, resilience.ErrCircuitOpen)
}

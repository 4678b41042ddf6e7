package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrCircuitOpen is returned without calling upstream while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrBodyNotReplayable is returned when a request must be retried but its
	// body cannot be rewound.
	ErrBodyNotReplayable = errors.New("request body cannot be replayed")
)

// ClientConfig configures a resilient client.
type ClientConfig struct {
	Name string

	// Timeout bounds each individual attempt.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint64

	InitialInterval time.Duration
	MaxInterval     time.Duration

	// RetryUnsafeMethods allows POST and PATCH to be retried. Off by default
	// since the backend does not deduplicate writes.
	RetryUnsafeMethods bool

	Breaker BreakerConfig

	// Registry, when set, receives the client and its success/failure events.
	Registry *Registry

	// Transport overrides the underlying round tripper (tests).
	Transport http.RoundTripper
}

// DefaultClientConfig returns the settings used for the CO₂ backend.
func DefaultClientConfig(name string) ClientConfig {
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Breaker:         DefaultBreakerConfig(name),
	}
}

// Client executes requests through a circuit breaker with exponential backoff.
// 5xx responses count as failures; 4xx responses are returned as-is.
type Client struct {
	name       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	cfg        ClientConfig
}

// NewClient creates a resilient client and registers it when a registry is
// configured.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 2 * time.Second
	}
	if cfg.Breaker.Name == "" {
		b := DefaultBreakerConfig(cfg.Name)
		b.Logger = cfg.Breaker.Logger
		cfg.Breaker = b
	}

	c := &Client{
		name: cfg.Name,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		breaker: NewBreaker[*http.Response](cfg.Breaker), //nolint:bodyclose // type parameter
		cfg:     cfg,
	}

	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

// Name returns the client name.
func (c *Client) Name() string {
	return c.name
}

// Do executes req. On exhausted retries against a 5xx, the last 5xx response
// is returned with a nil error so callers can map the status themselves.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if c.cfg.MaxRetries > 0 && (c.cfg.RetryUnsafeMethods || isIdempotent(req.Method)) {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = c.cfg.InitialInterval
		bo.MaxInterval = c.cfg.MaxInterval
		bo.MaxElapsedTime = 0
		policy = backoff.WithMaxRetries(bo, c.cfg.MaxRetries)
	}

	var (
		last    *http.Response
		attempt int
	)

	operation := func() error {
		attempt++
		attemptReq, err := rewind(ctx, req, attempt)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // closed by caller or below
			r, err := c.httpClient.Do(attemptReq)
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= http.StatusInternalServerError {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if last != nil {
				_ = last.Body.Close()
			}
			last = resp
			return err
		}

		if last != nil {
			_ = last.Body.Close()
		}
		last = resp
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(policy, ctx))
	c.record(last, err)

	if err != nil {
		var serverErr *ServerError
		if last != nil && errors.As(err, &serverErr) {
			return last, nil
		}
		if last != nil {
			_ = last.Body.Close()
		}
		return nil, err
	}
	return last, nil
}

func (c *Client) record(resp *http.Response, err error) {
	if c.cfg.Registry == nil {
		return
	}
	switch {
	case err != nil:
		c.cfg.Registry.RecordFailure(c.name, err)
	case resp != nil && resp.StatusCode >= http.StatusInternalServerError:
		c.cfg.Registry.RecordFailure(c.name, &ServerError{StatusCode: resp.StatusCode})
	default:
		c.cfg.Registry.RecordSuccess(c.name)
	}
}

// rewind prepares the request for the given attempt. Bodies are re-obtained
// through GetBody on every retry.
func rewind(ctx context.Context, req *http.Request, attempt int) (*http.Request, error) {
	clone := req.Clone(ctx)
	if attempt == 1 || req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, ErrBodyNotReplayable
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewind body: %w", err)
	}
	clone.Body = body
	return clone, nil
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// ServerError is a 5xx response from upstream.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("upstream server error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// State returns the breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Counts returns the breaker counters.
func (c *Client) Counts() gobreaker.Counts {
	return c.breaker.Counts()
}

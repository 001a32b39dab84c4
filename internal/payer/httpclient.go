package payer

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/clearwell-health/therabill/pkg/logging"
)

const (
	defaultMaxAttempts    = 3
	defaultBaseBackoff    = time.Second
	defaultAttemptTimeout = 30 * time.Second
)

// Request describes one outbound payer HTTP call. The body is held as a
// byte slice so it can be replayed across retry attempts.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Result is the raw outcome of a payer HTTP call. Non-2xx statuses other
// than retried 5xx are returned here, not as errors; the adapter decides
// how to classify them.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// RetryClient is the retrying HTTP transport shared by all adapters:
// up to 3 attempts with exponential backoff (1s, 2s) and a 30s per-attempt
// timeout. Only 5xx and transport failures are retried; 4xx responses are
// client errors, not transient, and return immediately. Exhausting retries
// raises a typed SERVICE_UNAVAILABLE error carrying the payer code.
type RetryClient struct {
	payerCode      string
	httpClient     *http.Client
	maxAttempts    int
	baseBackoff    time.Duration
	attemptTimeout time.Duration
	logger         *logging.Logger
}

// RetryClientOption customizes a RetryClient.
type RetryClientOption func(*RetryClient)

// WithHTTPClient swaps the underlying transport (used by tests).
func WithHTTPClient(hc *http.Client) RetryClientOption {
	return func(c *RetryClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBackoff overrides retry pacing.
func WithBackoff(base time.Duration) RetryClientOption {
	return func(c *RetryClient) {
		if base > 0 {
			c.baseBackoff = base
		}
	}
}

// WithMaxAttempts overrides the attempt budget.
func WithMaxAttempts(n int) RetryClientOption {
	return func(c *RetryClient) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithAttemptTimeout overrides the per-attempt timeout.
func WithAttemptTimeout(d time.Duration) RetryClientOption {
	return func(c *RetryClient) {
		if d > 0 {
			c.attemptTimeout = d
		}
	}
}

func NewRetryClient(payerCode string, logger *logging.Logger, opts ...RetryClientOption) *RetryClient {
	if logger == nil {
		logger = logging.Default()
	}
	c := &RetryClient{
		payerCode:      payerCode,
		httpClient:     &http.Client{},
		maxAttempts:    defaultMaxAttempts,
		baseBackoff:    defaultBaseBackoff,
		attemptTimeout: defaultAttemptTimeout,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do executes the request with the retry policy. The caller's context is
// threaded through every attempt and the backoff sleeps, so cancellation
// aborts mid-retry.
func (c *RetryClient) Do(ctx context.Context, req Request) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		res, err := c.attempt(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			c.logger.Warn("payer request retry",
				"payer", c.payerCode,
				"url", req.URL,
				"attempt", attempt+1,
				"error", err,
			)
			if attempt < c.maxAttempts-1 {
				if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
					return nil, sleepErr
				}
			}
			continue
		}
		if res.StatusCode >= 500 && res.StatusCode <= 599 {
			lastErr = NewAPIError(c.payerCode, res.StatusCode, string(res.Body))
			c.logger.Warn("payer request retry",
				"payer", c.payerCode,
				"url", req.URL,
				"attempt", attempt+1,
				"status", res.StatusCode,
			)
			if attempt < c.maxAttempts-1 {
				if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
					return nil, sleepErr
				}
			}
			continue
		}
		// 2xx and 4xx both return to the adapter without retry.
		return res, nil
	}
	return nil, NewServiceUnavailable(c.payerCode, lastErr)
}

func (c *RetryClient) attempt(ctx context.Context, req Request) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	var bodyReader io.Reader
	if req.Body != nil {
		bodyReader = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, err
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Result{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func (c *RetryClient) sleep(ctx context.Context, attempt int) error {
	delay := c.baseBackoff * time.Duration(1<<attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

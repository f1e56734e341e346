// Package external holds the clients for the vendor APIs EquityLens depends
// on: the Anthropic Messages API for report generation and Stripe for
// checkout and webhook verification. Every outbound call goes through
// BaseClient so breaker state, retry budgets, and error codes stay uniform
// across vendors.
package external

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"equitylens/internal/types"
)

// RetryPolicy bounds how often and how long a BaseClient re-attempts a call.
// MaxRetries is the number of re-attempts after the first; zero means the
// request is made exactly once.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy is the policy used when a vendor client has no special
// cost or latency constraints.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, MinWait: 500 * time.Millisecond, MaxWait: 10 * time.Second}
}

// BaseClient is the shared transport for vendor clients. It owns a circuit
// breaker per vendor, replays request bodies across retries, and converts
// transport-level failures into AppErrors with upstream codes.
type BaseClient struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	policy     RetryPolicy
	userAgent  string
	sleep      func(time.Duration)
}

// BaseClientOption customizes a BaseClient at construction.
type BaseClientOption func(*BaseClient)

// WithSleepFunc replaces the inter-retry sleep. Tests use this to run retry
// paths without real delays.
func WithSleepFunc(fn func(time.Duration)) BaseClientOption {
	return func(c *BaseClient) { c.sleep = fn }
}

// NewBaseClient builds a BaseClient around httpClient. The breaker is named
// per vendor so one flapping provider cannot open the breaker for another.
func NewBaseClient(httpClient *http.Client, breakerName string, policy RetryPolicy, userAgent string, opts ...BaseClientOption) *BaseClient {
	c := &BaseClient{
		httpClient: httpClient,
		policy:     policy,
		userAgent:  userAgent,
		sleep:      time.Sleep,
	}
	c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures > 5 },
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends req through the breaker and retry loop. Responses with status
// 429 or >= 500 count as failures and are retried up to the policy budget;
// any other status is handed back to the caller untouched (the caller closes
// the body). When the budget is exhausted or the breaker is open, Do returns
// an AppError with an upstream_ code and no response.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	c.decorate(req)

	body, err := snapshotBody(req)
	if err != nil {
		return nil, err
	}

	attempts := c.policy.MaxRetries + 1
	var failedResp *http.Response
	var failure error

	for attempt := 0; attempt < attempts; attempt++ {
		restoreBody(req, body)

		resp, execErr := c.breaker.Execute(func() (*http.Response, error) {
			return c.send(req)
		})
		if execErr == nil {
			return resp, nil
		}

		failure = execErr
		breakerOpen := errors.Is(execErr, gobreaker.ErrOpenState) || errors.Is(execErr, gobreaker.ErrTooManyRequests)

		lastAttempt := attempt == attempts-1 || breakerOpen
		if resp != nil {
			if lastAttempt {
				failedResp = resp
			} else {
				resp.Body.Close()
			}
		}
		if breakerOpen {
			break
		}
		if !lastAttempt {
			c.sleep(c.backoff(attempt, resp))
		}
	}

	if failedResp != nil {
		failedResp.Body.Close()
	}
	return nil, c.classify(failedResp, failure)
}

// send performs one HTTP exchange. It reports 429 and 5xx as errors so the
// breaker counts them, but returns the response alongside so the retry loop
// can read Retry-After.
func (c *BaseClient) send(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return resp, fmt.Errorf("upstream status %d", resp.StatusCode)
	}
	return resp, nil
}

func (c *BaseClient) decorate(req *http.Request) {
	if id := types.GetRequestID(req.Context()); id != "" {
		req.Header.Set("X-Request-Id", id)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

// snapshotBody drains the request body once so every retry attempt can send
// an identical payload. Bodiless requests pass through as nil.
func snapshotBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	defer req.Body.Close()
	b, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to buffer request body", err)
	}
	return b, nil
}

func restoreBody(req *http.Request, body []byte) {
	if body == nil {
		return
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
}

// backoff picks the wait before the next attempt. A parseable Retry-After
// header wins; otherwise exponential growth from MinWait with full jitter,
// capped at MaxWait.
func (c *BaseClient) backoff(attempt int, resp *http.Response) time.Duration {
	if wait, ok := retryAfter(resp, c.policy.MaxWait); ok {
		if wait < c.policy.MinWait {
			return c.policy.MinWait
		}
		return wait
	}

	ceiling := float64(c.policy.MinWait) * math.Pow(2, float64(attempt))
	if max := float64(c.policy.MaxWait); ceiling > max {
		ceiling = max
	}
	floor := float64(c.policy.MinWait)
	if ceiling <= floor {
		return c.policy.MinWait
	}
	return time.Duration(floor + rand.Float64()*(ceiling-floor))
}

func retryAfter(resp *http.Response, cap time.Duration) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return minDuration(time.Duration(secs)*time.Second, cap), true
	}
	if at, err := http.ParseTime(header); err == nil {
		return minDuration(time.Until(at), cap), true
	}
	return 0, false
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// classify maps a terminal transport failure to a domain error code.
func (c *BaseClient) classify(resp *http.Response, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "circuit breaker open for upstream service", err)
	}
	if resp != nil {
		if resp.StatusCode == http.StatusTooManyRequests {
			return types.NewAppError(types.ErrCodeUpstreamRateLimited, "upstream rate limit exceeded", err)
		}
		if resp.StatusCode >= 500 {
			return types.NewAppError(types.ErrCodeUpstreamUnavailable, fmt.Sprintf("upstream returned %d after retries", resp.StatusCode), err)
		}
	}
	return types.NewAppError(types.ErrCodeUpstreamUnavailable, "upstream request failed", err)
}

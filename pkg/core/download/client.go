// Package download implements the rate-limited, retrying EDGAR fetcher.
//
// All concurrent workers share a single token bucket: the request-rate
// ceiling is a server-wide constraint, not a per-worker one.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"edgarbulk/pkg/models"
)

// ErrMissingUserAgent is returned before any network I/O when the client
// was constructed without an identification header.
var ErrMissingUserAgent = errors.New("download: user agent is required")

// ErrAttemptsExhausted marks a transient failure that outlived the retry
// budget. Callers report it as a server-side error, distinct from fatal
// client-side failures.
var ErrAttemptsExhausted = errors.New("attempts exhausted")

// Soft-block banners SEC serves with HTTP 200 when it throttles a client.
// A body containing one of these must be treated as a transient failure.
var softBlockMarkers = []string{
	"Undeclared Automated Tool",
	"Request Rate Threshold Exceeded",
	"automated tool",
}

// Options configures a Client. Zero values fall back to SEC-safe defaults.
type Options struct {
	UserAgent   string
	RatePerSec  float64
	Burst       int
	MaxAttempts int
	MaxBackoff  time.Duration
	Timeout     time.Duration
	ProxyURL    string
}

// Client fetches EDGAR URLs to local cache paths.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	userAgent   string
	maxAttempts int
	maxBackoff  time.Duration
	log         *zap.Logger

	// sleep is swappable in tests so backoff does not wall-clock.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient builds a Client. Returns ErrMissingUserAgent when the
// identification header is absent.
func NewClient(opts Options, log *zap.Logger) (*Client, error) {
	if strings.TrimSpace(opts.UserAgent) == "" {
		return nil, ErrMissingUserAgent
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 8
	}
	if opts.Burst <= 0 {
		opts.Burst = 8
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 20
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 128 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.ProxyURL != "" {
		proxy, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		limiter:     rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
		userAgent:   opts.UserAgent,
		maxAttempts: opts.MaxAttempts,
		maxBackoff:  opts.MaxBackoff,
		log:         log,
		sleep:       sleepCtx,
	}, nil
}

// Fetch downloads url to destPath. If destPath already exists with
// non-zero size, it returns AlreadyCached without any network access.
// On every failure path no partial file is left behind.
func (c *Client) Fetch(ctx context.Context, rawURL, destPath string) (models.Outcome, error) {
	if fi, err := os.Stat(destPath); err == nil && fi.Size() > 0 {
		return models.Outcome{Status: models.OutcomeAlreadyCached, BytesWritten: fi.Size()}, nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return models.Outcome{Status: models.OutcomeFatalFailure}, fmt.Errorf("failed to create cache dir: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := Backoff(attempt, c.maxBackoff)
			c.log.Debug("retrying download",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			if err := c.sleep(ctx, delay); err != nil {
				return models.Outcome{Status: models.OutcomeFatalFailure}, err
			}
		}

		n, retryAfter, err := c.fetchOnce(ctx, rawURL, destPath)
		if err == nil {
			return models.Outcome{Status: models.OutcomeSuccess, BytesWritten: n}, nil
		}
		if ctx.Err() != nil {
			return models.Outcome{Status: models.OutcomeFatalFailure}, ctx.Err()
		}
		if !isTransient(err) {
			return models.Outcome{Status: models.OutcomeFatalFailure}, err
		}
		lastErr = err

		// SEC occasionally sends Retry-After with a 429; honor it when it
		// exceeds our own backoff.
		if retryAfter > 0 {
			if err := c.sleep(ctx, retryAfter); err != nil {
				return models.Outcome{Status: models.OutcomeFatalFailure}, err
			}
		}
	}

	return models.Outcome{Status: models.OutcomeFatalFailure},
		fmt.Errorf("download %s: %w: %v", rawURL, ErrAttemptsExhausted, lastErr)
}

// transientError marks a failure as retry-eligible.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	// Timeouts count as transient, not fatal.
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}

// fetchOnce performs a single rate-limited attempt. The returned duration
// is a parsed Retry-After hint (zero when absent).
func (c *Client) fetchOnce(ctx context.Context, rawURL, destPath string) (int64, time.Duration, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, 0, &transientError{err: err}
	}
	defer resp.Body.Close()

	retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to body handling
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return 0, retryAfter, &transientError{err: fmt.Errorf("server returned status %d", resp.StatusCode)}
	default:
		return 0, 0, fmt.Errorf("server returned status %d for %s", resp.StatusCode, rawURL)
	}

	tmp := destPath + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	n, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmp)
		if copyErr == nil {
			copyErr = closeErr
		}
		return 0, 0, &transientError{err: fmt.Errorf("failed to write body: %w", copyErr)}
	}

	// A 200 body can still be a throttling banner. Sniff the head of the
	// file before accepting it.
	if blocked, err := isSoftBlocked(tmp); err != nil {
		os.Remove(tmp)
		return 0, 0, err
	} else if blocked {
		os.Remove(tmp)
		return 0, retryAfter, &transientError{err: errors.New("soft-block banner in 200 response")}
	}

	if err := os.Rename(tmp, destPath); err != nil {
		os.Remove(tmp)
		return 0, 0, fmt.Errorf("failed to move %s into place: %w", tmp, err)
	}
	return n, 0, nil
}

// isSoftBlocked reads the head of a downloaded file and checks it against
// the known throttling banners.
func isSoftBlocked(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, 4096)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	body := string(head[:n])
	for _, marker := range softBlockMarkers {
		if strings.Contains(body, marker) {
			return true, nil
		}
	}
	return false, nil
}

// Backoff computes the retry delay for an attempt: min(cap, 2^attempt)
// seconds. Delays are non-decreasing across attempts.
func Backoff(attempt int, max time.Duration) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > max {
		return max
	}
	return d
}

func parseRetryAfter(val string) time.Duration {
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(val); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

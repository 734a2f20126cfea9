package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"edgarbulk/pkg/models"
)

func newTestClient(t *testing.T, opts Options) *Client {
	t.Helper()
	if opts.UserAgent == "" {
		opts.UserAgent = "edgarbulk test test@example.com"
	}
	c, err := NewClient(opts, nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	// Tests must not wall-clock on backoff sleeps.
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c
}

func TestNewClient_RequiresUserAgent(t *testing.T) {
	if _, err := NewClient(Options{}, nil); err != ErrMissingUserAgent {
		t.Fatalf("expected ErrMissingUserAgent, got %v", err)
	}
}

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("request carried no User-Agent")
		}
		w.Write([]byte("filing body"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "filing.txt")
	c := newTestClient(t, Options{})

	out, err := c.Fetch(context.Background(), srv.URL, dest)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if out.Status != models.OutcomeSuccess {
		t.Errorf("expected success, got %v", out.Status)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("dest file missing: %v", err)
	}
	if string(data) != "filing body" {
		t.Errorf("unexpected body %q", data)
	}
}

func TestFetch_Idempotence(t *testing.T) {
	var requests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		w.Write([]byte("cached"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "filing.txt")
	c := newTestClient(t, Options{})

	if _, err := c.Fetch(context.Background(), srv.URL, dest); err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}
	out, err := c.Fetch(context.Background(), srv.URL, dest)
	if err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if out.Status != models.OutcomeAlreadyCached {
		t.Errorf("expected AlreadyCached, got %v", out.Status)
	}
	if n := atomic.LoadInt64(&requests); n != 1 {
		t.Errorf("expected exactly 1 network request, observed %d", n)
	}
}

func TestFetch_RetriesTransientStatus(t *testing.T) {
	var requests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&requests, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok after retries"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "filing.txt")
	c := newTestClient(t, Options{MaxAttempts: 5, RatePerSec: 1000, Burst: 1000})

	out, err := c.Fetch(context.Background(), srv.URL, dest)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if out.Status != models.OutcomeSuccess {
		t.Errorf("expected success, got %v", out.Status)
	}
	if n := atomic.LoadInt64(&requests); n != 3 {
		t.Errorf("expected 3 requests, observed %d", n)
	}
}

func TestFetch_SoftBlockBannerIsTransient(t *testing.T) {
	var requests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&requests, 1)
		if n == 1 {
			// SEC serves the throttle banner with HTTP 200.
			w.Write([]byte("<html>Your Request Rate Threshold Exceeded</html>"))
			return
		}
		w.Write([]byte("real filing"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "filing.txt")
	c := newTestClient(t, Options{MaxAttempts: 3, RatePerSec: 1000, Burst: 1000})

	out, err := c.Fetch(context.Background(), srv.URL, dest)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if out.Status != models.OutcomeSuccess {
		t.Errorf("expected success after banner retry, got %v", out.Status)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "real filing" {
		t.Errorf("banner body leaked into cache: %q", data)
	}
}

func TestFetch_ExhaustedAttemptsLeavesNoPartialFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "filing.txt")
	c := newTestClient(t, Options{MaxAttempts: 3, RatePerSec: 1000, Burst: 1000})

	out, err := c.Fetch(context.Background(), srv.URL, dest)
	if err == nil {
		t.Fatal("expected error after exhausted attempts")
	}
	if out.Status != models.OutcomeFatalFailure {
		t.Errorf("expected fatal failure, got %v", out.Status)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("partial file left behind after failure")
	}
	if _, statErr := os.Stat(dest + ".part"); !os.IsNotExist(statErr) {
		t.Error("temp file left behind after failure")
	}
}

func TestFetch_NotFoundIsFatalWithoutRetry(t *testing.T) {
	var requests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "filing.txt")
	c := newTestClient(t, Options{MaxAttempts: 5, RatePerSec: 1000, Burst: 1000})

	if _, err := c.Fetch(context.Background(), srv.URL, dest); err == nil {
		t.Fatal("expected error for 404")
	}
	if n := atomic.LoadInt64(&requests); n != 1 {
		t.Errorf("404 should not be retried, observed %d requests", n)
	}
}

func TestBackoff_MonotoneAndCapped(t *testing.T) {
	max := 10 * time.Second
	prev := time.Duration(0)
	for attempt := 1; attempt <= 40; attempt++ {
		d := Backoff(attempt, max)
		if d < prev {
			t.Fatalf("backoff decreased at attempt %d: %v < %v", attempt, d, prev)
		}
		if d > max {
			t.Fatalf("backoff exceeded cap at attempt %d: %v", attempt, d)
		}
		prev = d
	}
}

func TestFetch_RateBound(t *testing.T) {
	var mu sync.Mutex
	var stamps []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	// 5 requests/sec, burst 1: 10 requests from 5 workers should spread
	// out so no 1-second window sees more than 5+burst requests.
	c := newTestClient(t, Options{RatePerSec: 5, Burst: 1})
	dir := t.TempDir()

	var wg sync.WaitGroup
	for w := 0; w < 5; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 2; i++ {
				dest := filepath.Join(dir, "w", string(rune('a'+w)), string(rune('a'+i)))
				if _, err := c.Fetch(context.Background(), srv.URL, dest); err != nil {
					t.Errorf("fetch failed: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	window := time.Second
	for i := range stamps {
		count := 0
		for j := range stamps {
			if stamps[j].Sub(stamps[i]) >= 0 && stamps[j].Sub(stamps[i]) < window {
				count++
			}
		}
		if count > 6 { // rate 5 + burst 1
			t.Fatalf("observed %d requests within %v window", count, window)
		}
	}
}

// Package fetch opens report and reference sources by scheme: a local path,
// an http(s) URL with retry and rate limiting, or an ftp URL. Callers get an
// io.ReadCloser either way, so centrally hosted reference workbooks work the
// same as local files.
package fetch

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options configures the fetcher.
type Options struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	RateLimit  rate.Limit
	Burst      int
}

// Fetcher retrieves sources. Local paths bypass the limiter entirely.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	opts    Options
}

// New creates a Fetcher with the given options.
func New(opts Options) *Fetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "chassis-cli/1.0"
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 10
	}
	if opts.Burst == 0 {
		opts.Burst = 10
	}
	return &Fetcher{
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(opts.RateLimit, opts.Burst),
		opts:    opts,
	}
}

// Open returns a reader for the source. The caller must close it.
func (f *Fetcher) Open(ctx context.Context, source string) (io.ReadCloser, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return f.openHTTP(ctx, source)
	case strings.HasPrefix(source, "ftp://"):
		return f.openFTP(ctx, source)
	default:
		file, err := os.Open(source)
		if err != nil {
			return nil, eris.Wrapf(err, "fetch: open %s", source)
		}
		return file, nil
	}
}

// ReadAll fetches the source fully into memory. Spreadsheet parsing needs
// the whole file anyway.
func (f *Fetcher) ReadAll(ctx context.Context, source string) ([]byte, error) {
	rc, err := f.Open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: read %s", source)
	}
	return data, nil
}

func (f *Fetcher) openHTTP(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	var lastErr error
	for attempt := range f.opts.MaxRetries {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetch: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "fetch: create request")
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = err
			zap.L().Warn("http request failed, retrying",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			f.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = eris.Errorf("fetch: http %d from %s", resp.StatusCode, rawURL)
			zap.L().Warn("retryable http status",
				zap.String("url", rawURL),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			f.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, eris.Errorf("fetch: unexpected status %d from %s", resp.StatusCode, rawURL)
		}

		return resp.Body, nil
	}

	return nil, eris.Wrap(lastErr, "fetch: all retries exhausted")
}

func (f *Fetcher) backoff(ctx context.Context, attempt int) {
	base := time.Second
	maxBackoff := 30 * time.Second
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	d += time.Duration(rand.Int64N(int64(d) / 2))

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// parseSourceURL validates a URL source. Exposed for ftp.go.
func parseSourceURL(rawURL, scheme string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: parse url %s", rawURL)
	}
	if u.Scheme != scheme {
		return nil, eris.Errorf("fetch: expected %s scheme, got %q", scheme, u.Scheme)
	}
	return u, nil
}

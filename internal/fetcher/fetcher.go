// Package fetcher is the outbound HTTP client shared by the archive lookup
// and the snapshot download.
package fetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"wayback-news/internal/config"
	"wayback-news/internal/observability"
)

// ErrDisallowed is returned when robots.txt forbids the URL.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

type Fetcher struct {
	client      *http.Client
	cfg         *config.Config
	logger      *observability.Logger
	backoff     backoff
	robotsCache *RobotsCache // nil when robots.enabled is false
	rateLimiter *RateLimiter
}

type FetchResponse struct {
	StatusCode int
	Body       []byte
	URL        string
	Headers    http.Header
}

func NewFetcher(cfg *config.Config, logger *observability.Logger) *Fetcher {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.GetConnectTimeout(),
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.HTTP.MaxIdleConnections,
		MaxIdleConnsPerHost: cfg.HTTP.MaxIdleConnectionsPerHost,
		IdleConnTimeout:     cfg.GetIdleConnectionTimeout(),
	}

	f := &Fetcher{
		client:      &http.Client{Timeout: cfg.GetTotalTimeout(), Transport: transport},
		cfg:         cfg,
		logger:      logger,
		backoff:     newBackoff(cfg),
		rateLimiter: NewRateLimiter(cfg.RateLimit.MaxConcurrentPerHost, cfg.RateLimit.RPM),
	}
	if cfg.Robots.Enabled {
		f.robotsCache = NewRobotsCache(cfg.GetRobotsCacheTTL(), cfg.HTTP.UserAgent, logger)
	}
	return f
}

// Fetch GETs urlStr. Network errors, 5xx and 429 are retried up to
// http.max_retries times; any other non-2xx status fails at once. Failed
// statuses surface as *StatusError.
func (f *Fetcher) Fetch(ctx context.Context, urlStr string) (*FetchResponse, error) {
	target, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if target.Host == "" {
		return nil, fmt.Errorf("invalid URL: missing host in %q", urlStr)
	}

	if err := f.checkRobots(ctx, target); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= f.cfg.HTTP.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := f.wait(ctx, attempt, urlStr, lastErr); err != nil {
				return nil, err
			}
		}

		resp, err := f.fetchOnce(ctx, target.Host, urlStr)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
		case retryable(resp.StatusCode):
			lastErr = &StatusError{URL: urlStr, StatusCode: resp.StatusCode}
		case resp.StatusCode/100 != 2:
			return nil, &StatusError{URL: urlStr, StatusCode: resp.StatusCode}
		default:
			return resp, nil
		}
	}

	return nil, fmt.Errorf("fetch failed after %d retries: %w", f.cfg.HTTP.MaxRetries, lastErr)
}

func retryable(status int) bool {
	return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
}

func (f *Fetcher) checkRobots(ctx context.Context, target *url.URL) error {
	if f.robotsCache == nil {
		return nil
	}
	allowed, err := f.robotsCache.IsAllowed(ctx, target, f.client)
	if err != nil {
		return fmt.Errorf("robots.txt check failed: %w", err)
	}
	if !allowed {
		return fmt.Errorf("%w: %s", ErrDisallowed, target)
	}
	return nil
}

func (f *Fetcher) wait(ctx context.Context, attempt int, urlStr string, cause error) error {
	d := f.backoff.delay(attempt)
	f.logger.Debug("Retrying request",
		"url", urlStr,
		"attempt", attempt,
		"backoff", d.String(),
		"error", cause.Error(),
	)

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, host, urlStr string) (*FetchResponse, error) {
	release, err := f.rateLimiter.Acquire(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}
	defer release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.cfg.HTTP.UserAgent)
	req.Header.Set("Accept-Language", f.cfg.HTTP.AcceptLanguage)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.logger.Warn("Failed to close response body", "url", urlStr, "error", err.Error())
		}
	}()

	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", urlStr, err)
	}

	f.logger.Debug("Response received",
		"url", urlStr,
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
		"body_size", len(body),
	)

	return &FetchResponse{
		StatusCode: resp.StatusCode,
		Body:       body,
		URL:        resp.Request.URL.String(),
		Headers:    resp.Header,
	}, nil
}

// readBody decodes gzip itself since Accept-Encoding is set explicitly.
func readBody(resp *http.Response) ([]byte, error) {
	if resp.Header.Get("Content-Encoding") != "gzip" {
		return io.ReadAll(resp.Body)
	}

	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = zr.Close() }()
	return io.ReadAll(zr)
}

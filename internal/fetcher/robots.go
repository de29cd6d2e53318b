package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"wayback-news/internal/observability"
)

const maxRobotsBodyBytes = 512 * 1024

type RobotsCache struct {
	cache     map[string]*RobotsTxt
	ttl       time.Duration
	userAgent string
	mu        sync.RWMutex
	logger    *observability.Logger
}

type RobotsTxt struct {
	data      *robotstxt.RobotsData
	expiresAt time.Time
}

func NewRobotsCache(ttl time.Duration, userAgent string, logger *observability.Logger) *RobotsCache {
	return &RobotsCache{
		cache:     make(map[string]*RobotsTxt),
		ttl:       ttl,
		userAgent: userAgent,
		logger:    logger,
	}
}

// IsAllowed reports whether u may be fetched by our user agent. An
// unreachable or unparsable robots.txt allows everything; a 5xx answer
// disallows everything until the entry expires.
func (rc *RobotsCache) IsAllowed(ctx context.Context, u *url.URL, client *http.Client) (bool, error) {
	host := strings.ToLower(u.Host)

	rc.mu.RLock()
	cached, exists := rc.cache[host]
	rc.mu.RUnlock()

	if exists && time.Now().Before(cached.expiresAt) {
		return cached.data.TestAgent(u.RequestURI(), rc.userAgent), nil
	}

	data := rc.fetchRobots(ctx, u, client)

	rc.mu.Lock()
	rc.cache[host] = &RobotsTxt{
		data:      data,
		expiresAt: time.Now().Add(rc.ttl),
	}
	rc.mu.Unlock()

	return data.TestAgent(u.RequestURI(), rc.userAgent), nil
}

func (rc *RobotsCache) fetchRobots(ctx context.Context, u *url.URL, client *http.Client) *robotstxt.RobotsData {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		return allowAll()
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := client.Do(req)
	if err != nil {
		rc.logger.Debug("robots.txt unavailable", "url", robotsURL, "error", err.Error())
		return allowAll()
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			rc.logger.Warn("Failed to close response body", "url", robotsURL, "error", err.Error())
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes))
	if err != nil {
		return allowAll()
	}

	return parseRobots(resp.StatusCode, body)
}

// parseRobots interprets a robots.txt response: 2xx bodies are parsed, 4xx
// allows everything, 5xx disallows everything.
func parseRobots(status int, body []byte) *robotstxt.RobotsData {
	data, err := robotstxt.FromStatusAndBytes(status, body)
	if err != nil {
		return allowAll()
	}
	return data
}

func allowAll() *robotstxt.RobotsData {
	data, _ := robotstxt.FromStatusAndBytes(http.StatusNotFound, nil)
	return data
}

// Package archive talks to the web archive: it resolves the snapshot closest
// to a timestamp and downloads archived pages.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"wayback-news/internal/config"
	"wayback-news/internal/fetcher"
	"wayback-news/internal/observability"
)

// ErrMalformedResponse marks an availability response that cannot be interpreted.
var ErrMalformedResponse = errors.New("malformed availability response")

// Getter is the HTTP surface the archive needs; *fetcher.Fetcher satisfies it.
type Getter interface {
	Fetch(ctx context.Context, urlStr string) (*fetcher.FetchResponse, error)
}

type Snapshot struct {
	URL       string
	Timestamp string
	Status    string
	Available bool
}

// Resolution is the outcome of an availability lookup. Found is false when
// the archive holds no capture of the URL near the timestamp.
type Resolution struct {
	Found    bool
	Snapshot Snapshot
}

func NotFound() Resolution {
	return Resolution{}
}

func Found(s Snapshot) Resolution {
	return Resolution{Found: true, Snapshot: s}
}

type availabilityResponse struct {
	URL               string          `json:"url"`
	ArchivedSnapshots json.RawMessage `json:"archived_snapshots"`
}

type archivedSnapshots struct {
	Closest *closestSnapshot `json:"closest"`
}

type closestSnapshot struct {
	URL       *string `json:"url"`
	Timestamp string  `json:"timestamp"`
	Status    string  `json:"status"`
	Available bool    `json:"available"`
}

type Resolver struct {
	getter   Getter
	endpoint string
	logger   *observability.Logger
}

func NewResolver(cfg *config.Config, getter Getter, logger *observability.Logger) *Resolver {
	return &Resolver{
		getter:   getter,
		endpoint: cfg.Archive.AvailabilityURL,
		logger:   logger,
	}
}

// Closest asks the availability service for the capture of siteURL nearest
// to timestamp (compact digits).
func (r *Resolver) Closest(ctx context.Context, siteURL, timestamp string) (Resolution, error) {
	lookupURL, err := r.lookupURL(siteURL, timestamp)
	if err != nil {
		return Resolution{}, err
	}

	resp, err := r.getter.Fetch(ctx, lookupURL)
	if err != nil {
		return Resolution{}, fmt.Errorf("availability lookup for %s: %w", siteURL, err)
	}

	res, err := decodeAvailability(resp.Body)
	if err != nil {
		return Resolution{}, fmt.Errorf("availability lookup for %s: %w", siteURL, err)
	}

	r.logger.Debug("Availability resolved",
		"site", siteURL,
		"timestamp", timestamp,
		"found", res.Found,
		"snapshot_url", res.Snapshot.URL,
	)

	return res, nil
}

func (r *Resolver) lookupURL(siteURL, timestamp string) (string, error) {
	u, err := url.Parse(r.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid availability endpoint: %w", err)
	}
	q := u.Query()
	q.Set("url", siteURL)
	q.Set("timestamp", timestamp)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func decodeAvailability(body []byte) (Resolution, error) {
	var payload availabilityResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return Resolution{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if len(payload.ArchivedSnapshots) == 0 {
		return Resolution{}, fmt.Errorf("%w: archived_snapshots missing", ErrMalformedResponse)
	}

	var snapshots *archivedSnapshots
	if err := json.Unmarshal(payload.ArchivedSnapshots, &snapshots); err != nil {
		return Resolution{}, fmt.Errorf("%w: archived_snapshots: %v", ErrMalformedResponse, err)
	}

	// null and {} both mean no capture
	if snapshots == nil || snapshots.Closest == nil {
		return NotFound(), nil
	}
	closest := snapshots.Closest
	if closest.URL == nil || *closest.URL == "" {
		return Resolution{}, fmt.Errorf("%w: closest.url missing", ErrMalformedResponse)
	}

	return Found(Snapshot{
		URL:       *closest.URL,
		Timestamp: closest.Timestamp,
		Status:    closest.Status,
		Available: closest.Available,
	}), nil
}

// Timestep extracts the archive's timestamp segment from a snapshot URL: the
// path component right after one of prefixes, up to the next "/".
func Timestep(snapshotURL string, prefixes []string) (string, error) {
	for _, prefix := range prefixes {
		_, rest, ok := strings.Cut(snapshotURL, prefix)
		if !ok {
			continue
		}
		step, _, _ := strings.Cut(rest, "/")
		if step == "" {
			break
		}
		return step, nil
	}
	return "", fmt.Errorf("no timestep in snapshot URL %q", snapshotURL)
}

package archive

import (
	"context"
	"fmt"
)

// PageRenderer renders a page in a browser; *fetcher.Renderer satisfies it.
type PageRenderer interface {
	Render(ctx context.Context, urlStr string) (string, error)
}

// SnapshotFetcher downloads archived pages, through a headless browser when
// one is configured.
type SnapshotFetcher struct {
	getter   Getter
	renderer PageRenderer
}

// NewSnapshotFetcher uses plain HTTP when renderer is nil.
func NewSnapshotFetcher(getter Getter, renderer PageRenderer) *SnapshotFetcher {
	return &SnapshotFetcher{getter: getter, renderer: renderer}
}

func (s *SnapshotFetcher) FetchPage(ctx context.Context, snapshotURL string) (string, error) {
	if s.renderer != nil {
		html, err := s.renderer.Render(ctx, snapshotURL)
		if err != nil {
			return "", fmt.Errorf("render snapshot: %w", err)
		}
		return html, nil
	}

	resp, err := s.getter.Fetch(ctx, snapshotURL)
	if err != nil {
		return "", fmt.Errorf("fetch snapshot: %w", err)
	}
	return string(resp.Body), nil
}

package storage

import (
	"context"
	"time"

	"wayback-news/internal/scraper"
)

// SnapshotRecord is one resolved source of a pipeline run.
type SnapshotRecord struct {
	Source             string
	RequestedTimestamp string // compact digits as sent to the archive
	Timestep           string
	SnapshotURL        string
	Keywords           string // comma-joined, as requested
	Mode               string
	Articles           []scraper.Article
	CheckSum           string // SHA256 of source|timestep|articles
	CapturedAt         time.Time
}

// Repository records query history. It is never read to answer a request.
type Repository interface {
	// SaveSnapshot stores rec unless a record with the same checksum exists.
	SaveSnapshot(ctx context.Context, rec *SnapshotRecord) (isNew bool, err error)

	// CountBySource returns how many distinct snapshots were stored for source.
	CountBySource(ctx context.Context, source string) (int, error)

	Close() error
}

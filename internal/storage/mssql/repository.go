package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"wayback-news/internal/observability"
	"wayback-news/internal/storage"
)

const schema = `
IF OBJECT_ID(N'TblSnapshots', N'U') IS NULL
CREATE TABLE TblSnapshots (
	[UID]                INT IDENTITY(1,1) PRIMARY KEY,
	[Source]             NVARCHAR(64)   NOT NULL,
	[RequestedTimestamp] NVARCHAR(32)   NOT NULL,
	[Timestep]           NVARCHAR(32)   NOT NULL,
	[SnapshotURL]        NVARCHAR(2048) NOT NULL,
	[Keywords]           NVARCHAR(1024) NOT NULL,
	[Mode]               NVARCHAR(8)    NOT NULL,
	[ArticleCount]       INT            NOT NULL,
	[CapturedAt]         DATETIME2      NULL,
	[CheckSum]           CHAR(64)       NOT NULL UNIQUE,
	[CreatedAt]          DATETIME2      NOT NULL DEFAULT SYSUTCDATETIME()
);
IF OBJECT_ID(N'TblSnapshotArticles', N'U') IS NULL
CREATE TABLE TblSnapshotArticles (
	[UID]          INT IDENTITY(1,1) PRIMARY KEY,
	[Snapshot_UID] INT            NOT NULL REFERENCES TblSnapshots([UID]),
	[SequenceNum]  INT            NOT NULL,
	[Title]        NVARCHAR(1024) NOT NULL,
	[Link]         NVARCHAR(2048) NOT NULL
);`

type Repository struct {
	db             *sql.DB
	commandTimeout time.Duration
	logger         *observability.Logger
}

var _ storage.Repository = (*Repository)(nil)

func NewRepository(dsn string, commandTimeout time.Duration, logger *observability.Logger) (*Repository, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewRepositoryWithDB(db, commandTimeout, logger), nil
}

// NewRepositoryWithDB wraps an already opened handle.
func NewRepositoryWithDB(db *sql.DB, commandTimeout time.Duration, logger *observability.Logger) *Repository {
	return &Repository{
		db:             db,
		commandTimeout: commandTimeout,
		logger:         logger,
	}
}

// EnsureSchema creates the history tables when they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveSnapshot inserts the snapshot and its articles in one transaction.
// A snapshot whose checksum is already stored is skipped.
func (r *Repository) SaveSnapshot(ctx context.Context, rec *storage.SnapshotRecord) (isNew bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.Error("Failed to rollback transaction", "error", err.Error())
		}
	}()

	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM TblSnapshots WHERE CheckSum = @CheckSum`,
		sql.Named("CheckSum", rec.CheckSum),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query database: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	var capturedAt sql.NullTime
	if !rec.CapturedAt.IsZero() {
		capturedAt = sql.NullTime{Time: rec.CapturedAt, Valid: true}
	}

	var snapshotUID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO TblSnapshots
			([Source], [RequestedTimestamp], [Timestep], [SnapshotURL], [Keywords], [Mode], [ArticleCount], [CapturedAt], [CheckSum])
		OUTPUT INSERTED.[UID]
		VALUES (@Source, @RequestedTimestamp, @Timestep, @SnapshotURL, @Keywords, @Mode, @ArticleCount, @CapturedAt, @CheckSum)`,
		sql.Named("Source", strings.ToLower(rec.Source)),
		sql.Named("RequestedTimestamp", rec.RequestedTimestamp),
		sql.Named("Timestep", rec.Timestep),
		sql.Named("SnapshotURL", rec.SnapshotURL),
		sql.Named("Keywords", rec.Keywords),
		sql.Named("Mode", rec.Mode),
		sql.Named("ArticleCount", len(rec.Articles)),
		sql.Named("CapturedAt", capturedAt),
		sql.Named("CheckSum", rec.CheckSum),
	).Scan(&snapshotUID)
	if err != nil {
		return false, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if len(rec.Articles) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO TblSnapshotArticles ([Snapshot_UID], [SequenceNum], [Title], [Link])
			VALUES (@SnapshotUID, @SequenceNum, @Title, @Link)`)
		if err != nil {
			return false, fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() {
			if err := stmt.Close(); err != nil {
				r.logger.Error("Failed to close statement", "error", err.Error())
			}
		}()

		for i, a := range rec.Articles {
			_, err := stmt.ExecContext(ctx,
				sql.Named("SnapshotUID", snapshotUID),
				sql.Named("SequenceNum", i),
				sql.Named("Title", a.Title),
				sql.Named("Link", a.Link),
			)
			if err != nil {
				return false, fmt.Errorf("failed to insert article %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	committed = true

	return true, nil
}

// CountBySource returns the number of stored snapshots for a source.
func (r *Repository) CountBySource(ctx context.Context, source string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM TblSnapshots WHERE [Source] = @Source`,
		sql.Named("Source", strings.ToLower(source)),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to query database: %w", err)
	}

	return count, nil
}

// Close closes the database handle.
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

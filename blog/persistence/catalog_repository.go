package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dfryer1193/cms/blog/domain"
	"github.com/dfryer1193/cms/shared/db"
)

var _ domain.PostCatalog = (*SQLiteCatalogRepository)(nil)

const defaultListLimit = 10

// SQLiteCatalogRepository implements domain.PostCatalog using SQL database (SQLite)
type SQLiteCatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a new SQLiteCatalogRepository from a standard sql.DB
func NewCatalogRepository(db *sql.DB) *SQLiteCatalogRepository {
	return &SQLiteCatalogRepository{
		db: db,
	}
}

const deleteAllEntriesQuery = `DELETE FROM catalog`

const insertEntryQuery = `
	INSERT INTO catalog (slug, title, snippet, html_path, published_at)
	VALUES (?, ?, ?, ?, ?)
`

// ReplaceAll swaps the whole catalog for entries in a single transaction
func (r *SQLiteCatalogRepository) ReplaceAll(ctx context.Context, entries []*domain.CatalogEntry) error {
	for _, e := range entries {
		if e == nil {
			return fmt.Errorf("catalog entry cannot be nil")
		}
		if e.Slug == "" {
			return fmt.Errorf("catalog entry slug cannot be empty")
		}
	}

	return db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, r.db)

		if _, err := executor.ExecContext(txCtx, deleteAllEntriesQuery); err != nil {
			return fmt.Errorf("failed to clear catalog: %w", err)
		}

		for _, e := range entries {
			_, err := executor.ExecContext(txCtx, insertEntryQuery,
				e.Slug,
				e.Title,
				e.Snippet,
				e.HTMLPath,
				e.Published.UTC(),
			)
			if err != nil {
				return fmt.Errorf("failed to insert catalog entry %s: %w", e.Slug, err)
			}
		}

		return nil
	})
}

const getEntryQuery = `
	SELECT slug, title, snippet, html_path, published_at
	FROM catalog
	WHERE slug = ?
`

// GetEntry retrieves a single entry by slug
func (r *SQLiteCatalogRepository) GetEntry(ctx context.Context, slug string) (*domain.CatalogEntry, error) {
	if slug == "" {
		return nil, fmt.Errorf("slug cannot be empty")
	}

	var row entryRow
	err := db.GetExecutor(ctx, r.db).QueryRowContext(ctx, getEntryQuery, slug).Scan(
		&row.Slug,
		&row.Title,
		&row.Snippet,
		&row.HTMLPath,
		&row.PublishedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catalog entry %s: %w", slug, domain.ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get catalog entry: %w", err)
	}

	return row.toDomain(), nil
}

const listEntriesQuery = `
	SELECT slug, title, snippet, html_path, published_at
	FROM catalog
	ORDER BY published_at DESC, slug ASC
	LIMIT ? OFFSET ?
`

// ListEntries retrieves entries ordered by publish date, newest first
func (r *SQLiteCatalogRepository) ListEntries(ctx context.Context, limit, offset int) ([]*domain.CatalogEntry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := db.GetExecutor(ctx, r.db).QueryContext(ctx, listEntriesQuery, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*domain.CatalogEntry, 0)
	for rows.Next() {
		var row entryRow
		err := rows.Scan(
			&row.Slug,
			&row.Title,
			&row.Snippet,
			&row.HTMLPath,
			&row.PublishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
		}
		entries = append(entries, row.toDomain())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate catalog entries: %w", err)
	}

	return entries, nil
}

// entryRow is a private struct used to scan database rows
type entryRow struct {
	Slug        string
	Title       string
	Snippet     string
	HTMLPath    string
	PublishedAt time.Time
}

func (er *entryRow) toDomain() *domain.CatalogEntry {
	return &domain.CatalogEntry{
		Slug:      er.Slug,
		Title:     er.Title,
		Snippet:   er.Snippet,
		HTMLPath:  er.HTMLPath,
		Published: er.PublishedAt.UTC(),
	}
}

package domain

import (
	"context"
	"time"
)

// Post represents a blog post parsed from a source document.
// A Post only exists if the whole header parsed; there is no partially-valid Post.
type Post struct {
	Title     string
	Published time.Time
	Content   string
}

// Summary is the result of a single publish run.
type Summary struct {
	Published int
	Warnings  []string
}

// CatalogEntry is the indexed metadata of one published post.
type CatalogEntry struct {
	Slug      string
	Title     string
	Snippet   string
	HTMLPath  string
	Published time.Time
}

// PostCatalog stores the metadata of the posts produced by the last publish run.
type PostCatalog interface {
	// ReplaceAll drops every existing entry and stores entries in their place
	ReplaceAll(ctx context.Context, entries []*CatalogEntry) error
	GetEntry(ctx context.Context, slug string) (*CatalogEntry, error)
	ListEntries(ctx context.Context, limit int, offset int) ([]*CatalogEntry, error)
}

package application

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dfryer1193/cms/blog/domain"
	"github.com/rs/zerolog/log"
)

const artifactExt = ".html"

// ErrorPolicy decides what a publish run does when a single document fails
type ErrorPolicy string

const (
	// AbortOnError stops the whole run on the first failing document
	AbortOnError ErrorPolicy = "abort"
	// SkipAndWarn records a warning for the failing document and keeps going
	SkipAndWarn ErrorPolicy = "skip_and_warn"
)

// ParseErrorPolicy converts a configuration value into an ErrorPolicy; empty means AbortOnError
func ParseErrorPolicy(value string) (ErrorPolicy, error) {
	switch ErrorPolicy(strings.TrimSpace(value)) {
	case "", AbortOnError:
		return AbortOnError, nil
	case SkipAndWarn:
		return SkipAndWarn, nil
	default:
		return "", fmt.Errorf("unknown document error policy %q, expected %q or %q", value, AbortOnError, SkipAndWarn)
	}
}

// PublishConfig holds the directories and policy for one publish run
type PublishConfig struct {
	SourceDir       string
	TargetDir       string
	OnDocumentError ErrorPolicy
}

type PublishService struct {
	markdown MarkdownRenderer
	catalog  domain.PostCatalog
}

// NewPublishService creates a PublishService. catalog may be nil, in which case no index is kept.
func NewPublishService(markdown MarkdownRenderer, catalog domain.PostCatalog) *PublishService {
	return &PublishService{
		markdown: markdown,
		catalog:  catalog,
	}
}

// Publish rebuilds cfg.TargetDir from every document in cfg.SourceDir.
// The target directory is removed and recreated on every run; documents are processed one
// at a time in file name order. Only empty posts and, under SkipAndWarn, failing documents
// are reported as warnings; every other failure aborts the run.
func (s *PublishService) Publish(ctx context.Context, cfg PublishConfig) (*domain.Summary, error) {
	sourceDir := filepath.Clean(cfg.SourceDir)
	targetDir := filepath.Clean(cfg.TargetDir)
	if err := checkTargetDir(sourceDir, targetDir); err != nil {
		return nil, err
	}

	// os.ReadDir sorts by file name, which keeps artifact and warning order stable
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, &domain.DirectoryError{Op: "reading the source", Path: sourceDir, Err: err}
	}

	if err := os.RemoveAll(targetDir); err != nil {
		return nil, &domain.DirectoryError{Op: "cleaning the publish", Path: targetDir, Err: err}
	}

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return nil, &domain.DirectoryError{Op: "creating the publish", Path: targetDir, Err: err}
	}

	summary := &domain.Summary{Warnings: []string{}}
	var catalogEntries []*domain.CatalogEntry
	// Documents sharing a base name write the same artifact; the catalog follows the last one
	slugIndex := make(map[string]int)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			log.Debug().Str("document", name).Msg("Skipping directory in source directory")
			continue
		}

		catalogEntry, warnings, err := s.publishDocument(sourceDir, targetDir, name)
		if err != nil {
			if cfg.OnDocumentError != SkipAndWarn {
				return nil, fmt.Errorf("failed to publish %s: %w", name, err)
			}

			warn := fmt.Sprintf("skipped '%s': %v", name, err)
			log.Warn().Err(err).Str("document", name).Msg("Skipping document that failed to publish")
			summary.Warnings = append(summary.Warnings, warn)
			continue
		}

		summary.Warnings = append(summary.Warnings, warnings...)
		summary.Published++
		if i, ok := slugIndex[catalogEntry.Slug]; ok {
			log.Warn().Str("document", name).Str("artifact", catalogEntry.HTMLPath).Msg("Document overwrote an artifact published earlier in this run")
			catalogEntries[i] = catalogEntry
			continue
		}
		slugIndex[catalogEntry.Slug] = len(catalogEntries)
		catalogEntries = append(catalogEntries, catalogEntry)
	}

	if s.catalog != nil {
		if err := s.catalog.ReplaceAll(ctx, catalogEntries); err != nil {
			return nil, fmt.Errorf("failed to rebuild the post catalog: %w", err)
		}
	}

	log.Info().Int("published", summary.Published).Int("warnings", len(summary.Warnings)).Str("target", targetDir).Msg("Publish run finished")

	return summary, nil
}

// checkTargetDir rejects a target that is, or contains, the source directory, since the
// target is removed before publishing
func checkTargetDir(sourceDir string, targetDir string) error {
	absSource, err := filepath.Abs(sourceDir)
	if err != nil {
		return &domain.DirectoryError{Op: "resolving the source", Path: sourceDir, Err: err}
	}
	absTarget, err := filepath.Abs(targetDir)
	if err != nil {
		return &domain.DirectoryError{Op: "resolving the publish", Path: targetDir, Err: err}
	}

	rel, err := filepath.Rel(absTarget, absSource)
	if err != nil {
		return nil
	}

	switch {
	case rel == ".":
		return &domain.DirectoryError{Op: "publishing into source", Path: targetDir, Err: fmt.Errorf("source and target directories are the same")}
	case rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)):
		return &domain.DirectoryError{Op: "publishing into source", Path: targetDir, Err: fmt.Errorf("target directory contains the source directory %s", sourceDir)}
	}

	return nil
}

// publishDocument parses, renders and writes a single source document
func (s *PublishService) publishDocument(sourceDir string, targetDir string, name string) (*domain.CatalogEntry, []string, error) {
	sourcePath := filepath.Join(sourceDir, name)
	source, err := os.Open(sourcePath)
	if err != nil {
		return nil, nil, &domain.IOError{Op: "opening", Path: sourcePath, Err: err}
	}
	defer source.Close()

	post, err := ParsePost(source)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", sourcePath, err)
	}

	var warnings []string
	if post.Content == "" {
		warn := fmt.Sprintf("post '%s' is empty", name)
		log.Warn().Str("document", name).Msg("Post is empty")
		warnings = append(warnings, warn)
	}

	result, err := s.markdown.Render([]byte(post.Content))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to render %s: %w", sourcePath, err)
	}

	artifactName := ArtifactName(name)
	artifactPath := filepath.Join(targetDir, artifactName)
	if err := os.WriteFile(artifactPath, result.HTMLContent, 0644); err != nil {
		return nil, nil, &domain.IOError{Op: "writing", Path: artifactPath, Err: err}
	}

	return &domain.CatalogEntry{
		Slug:      strings.TrimSuffix(artifactName, artifactExt),
		Title:     post.Title,
		Snippet:   result.Snippet,
		HTMLPath:  artifactName,
		Published: post.Published,
	}, warnings, nil
}

// ArtifactName returns the file name of the HTML artifact for a source document
// Example: "hello-world.md" -> "hello-world.html"
func ArtifactName(sourceName string) string {
	base := strings.TrimSuffix(sourceName, filepath.Ext(sourceName))
	if base == "" {
		base = sourceName
	}
	return base + artifactExt
}

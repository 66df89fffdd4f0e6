package application

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/dfryer1193/cms/blog/domain"
	"github.com/rs/zerolog/log"
)

// SyncConfig describes which remote directory is copied into which local source directory
type SyncConfig struct {
	RemoteDir string
	// Ref is a branch, tag or commit SHA; the default branch is used when empty
	Ref       string
	SourceDir string
}

// SyncService copies source documents from a remote repository into the local source directory
type SyncService struct {
	sourceRepo domain.SourceRepository
}

func NewSyncService(sourceRepo domain.SourceRepository) *SyncService {
	return &SyncService{
		sourceRepo: sourceRepo,
	}
}

// Sync downloads every markdown document under cfg.RemoteDir and writes it into cfg.SourceDir.
// Existing local files with the same name are overwritten; other local files are left alone.
// It returns the number of documents written.
func (s *SyncService) Sync(ctx context.Context, cfg SyncConfig) (int, error) {
	ref := cfg.Ref
	if ref == "" {
		branch, err := s.sourceRepo.GetDefaultBranchName(ctx)
		if err != nil {
			return 0, fmt.Errorf("could not resolve the default branch: %w", err)
		}
		ref = branch
	}

	paths, err := s.sourceRepo.ListDocuments(ctx, cfg.RemoteDir, ref)
	if err != nil {
		return 0, fmt.Errorf("failed to list documents in %s: %w", s.sourceRepo.GetRepoFullName(), err)
	}

	if err := os.MkdirAll(cfg.SourceDir, 0755); err != nil {
		return 0, &domain.DirectoryError{Op: "creating the source", Path: cfg.SourceDir, Err: err}
	}

	synced := 0
	for _, p := range paths {
		if !isSourceDocument(p) {
			continue
		}

		content, err := s.sourceRepo.GetFileContents(ctx, p, ref)
		if err != nil {
			return synced, fmt.Errorf("failed to fetch %s: %w", p, err)
		}

		localPath := filepath.Join(cfg.SourceDir, path.Base(p))
		if err := os.WriteFile(localPath, content, 0644); err != nil {
			return synced, &domain.IOError{Op: "writing", Path: localPath, Err: err}
		}

		log.Debug().Str("path", p).Str("ref", ref).Msg("Synced source document")
		synced++
	}

	log.Info().Int("synced", synced).Str("repo", s.sourceRepo.GetRepoFullName()).Str("ref", ref).Msg("Sync finished")

	return synced, nil
}

// isSourceDocument checks if a remote path names a markdown document
func isSourceDocument(p string) bool {
	base := path.Base(p)
	return path.Ext(base) == ".md" && base != ".md"
}

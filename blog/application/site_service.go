package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/dfryer1193/cms/blog/domain"
)

// SiteService runs an optional sync followed by a publish, one rebuild at a time
type SiteService struct {
	mu        sync.Mutex
	syncer    *SyncService
	publisher *PublishService

	syncCfg    SyncConfig
	publishCfg PublishConfig
}

// NewSiteService creates a SiteService; syncer may be nil when there is no remote repository
func NewSiteService(syncer *SyncService, syncCfg SyncConfig, publisher *PublishService, publishCfg PublishConfig) *SiteService {
	return &SiteService{
		syncer:     syncer,
		publisher:  publisher,
		syncCfg:    syncCfg,
		publishCfg: publishCfg,
	}
}

// Rebuild syncs the source directory (when a remote is configured) and republishes it.
// Concurrent callers wait for the rebuild in progress to finish before starting their own.
// Cancelling ctx does not stop a rebuild: the publish directory and the catalog are only
// consistent once the whole run has finished.
func (s *SiteService) Rebuild(ctx context.Context) (*domain.Summary, error) {
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.syncer != nil {
		if _, err := s.syncer.Sync(ctx, s.syncCfg); err != nil {
			return nil, fmt.Errorf("failed to sync sources: %w", err)
		}
	}

	summary, err := s.publisher.Publish(ctx, s.publishCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to publish: %w", err)
	}

	return summary, nil
}

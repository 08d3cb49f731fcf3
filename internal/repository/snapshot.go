package repository

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/trial-match-server/internal/domain"
)

// CatalogSource loads the full trial catalog. Satisfied by TrialRepository.
type CatalogSource interface {
	GetCatalog(ctx context.Context) ([]domain.TrialDefinition, error)
}

const snapshotKey = "catalog"

// SnapshotCache serves read-only catalog snapshots for matching runs. A run
// sees one immutable snapshot for its whole duration; catalog writes become
// visible when the entry expires or Invalidate is called.
type SnapshotCache struct {
	source CatalogSource
	cache  *expirable.LRU[string, []domain.TrialDefinition]
	log    *logrus.Logger
}

// NewSnapshotCache creates a snapshot cache with the given TTL.
func NewSnapshotCache(source CatalogSource, ttl time.Duration, logger *logrus.Logger) *SnapshotCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SnapshotCache{
		source: source,
		cache:  expirable.NewLRU[string, []domain.TrialDefinition](1, nil, ttl),
		log:    logger,
	}
}

// Snapshot returns the current catalog snapshot, loading it from the source
// on a cold or expired cache.
func (s *SnapshotCache) Snapshot(ctx context.Context) ([]domain.TrialDefinition, error) {
	if cached, ok := s.cache.Get(snapshotKey); ok {
		return cached, nil
	}

	catalog, err := s.source.GetCatalog(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Add(snapshotKey, catalog)

	s.log.WithField("trials", len(catalog)).Debug("Catalog snapshot refreshed")
	return catalog, nil
}

// Invalidate drops the cached snapshot so the next run reloads.
func (s *SnapshotCache) Invalidate() {
	s.cache.Remove(snapshotKey)
}

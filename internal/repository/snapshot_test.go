package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trial-match-server/internal/domain"
)

type fakeCatalogSource struct {
	catalog []domain.TrialDefinition
	err     error
	loads   int
}

func (f *fakeCatalogSource) GetCatalog(_ context.Context) ([]domain.TrialDefinition, error) {
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	return f.catalog, nil
}

func TestSnapshotCache_ServesCached(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	source := &fakeCatalogSource{catalog: []domain.TrialDefinition{{ID: "NCT001", Title: "t"}}}
	cache := NewSnapshotCache(source, time.Minute, logger)

	first, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, second, 1)
	assert.Equal(t, 1, source.loads, "second read must hit the cache")
}

func TestSnapshotCache_Invalidate(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	source := &fakeCatalogSource{catalog: []domain.TrialDefinition{{ID: "NCT001", Title: "t"}}}
	cache := NewSnapshotCache(source, time.Minute, logger)

	_, err := cache.Snapshot(context.Background())
	require.NoError(t, err)

	cache.Invalidate()
	_, err = cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, source.loads)
}

func TestSnapshotCache_SourceError(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	source := &fakeCatalogSource{err: errors.New("connection refused")}
	cache := NewSnapshotCache(source, time.Minute, logger)

	_, err := cache.Snapshot(context.Background())
	assert.Error(t, err)
}

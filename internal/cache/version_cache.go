// Package cache provides a read-through LRU decorator for version
// storage. Committed versions are immutable, so cached (document,
// version) records can never go stale; the tip and version listings are
// always answered by the underlying store, which stays the single source
// of truth.
package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rpattn/draftsync/internal/domain"
	"github.com/rpattn/draftsync/internal/repository"
)

// DefaultSize is the cache capacity used when none is configured.
const DefaultSize = 1024

type versionKey struct {
	documentID string
	version    int64
}

// VersionCache wraps a VersionRepository with an LRU over immutable
// version records.
type VersionCache struct {
	inner repository.VersionRepository
	lru   *lru.Cache[versionKey, domain.DocumentVersion]
}

// NewVersionCache builds the decorator. Size falls back to DefaultSize
// when non-positive.
func NewVersionCache(inner repository.VersionRepository, size int) (*VersionCache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	cached, err := lru.New[versionKey, domain.DocumentVersion](size)
	if err != nil {
		return nil, err
	}
	return &VersionCache{inner: inner, lru: cached}, nil
}

// GetLatest always consults the store; the tip is shared mutable state
// and must never be answered from process memory.
func (c *VersionCache) GetLatest(ctx context.Context, documentID string) (*domain.DocumentVersion, error) {
	return c.inner.GetLatest(ctx, documentID)
}

// Commit passes through and seeds the cache with the new immutable
// version.
func (c *VersionCache) Commit(ctx context.Context, documentID string, expectedPriorVersion int64, changes domain.ChangeSet, authorID string) (domain.DocumentVersion, error) {
	version, err := c.inner.Commit(ctx, documentID, expectedPriorVersion, changes, authorID)
	if err != nil {
		return domain.DocumentVersion{}, err
	}
	c.lru.Add(versionKey{documentID, version.Version}, version)
	return version, nil
}

// Get answers from the cache when possible and reads through otherwise.
func (c *VersionCache) Get(ctx context.Context, documentID string, version int64) (*domain.DocumentVersion, error) {
	key := versionKey{documentID, version}
	if cached, ok := c.lru.Get(key); ok {
		return &cached, nil
	}

	loaded, err := c.inner.Get(ctx, documentID, version)
	if err != nil {
		return nil, err
	}
	if loaded != nil {
		c.lru.Add(key, *loaded)
	}
	return loaded, nil
}

// List passes through; orderings and limits belong to the store.
func (c *VersionCache) List(ctx context.Context, documentID string, limit int) ([]domain.DocumentVersion, error) {
	return c.inner.List(ctx, documentID, limit)
}

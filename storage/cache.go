package storage

import (
	"bytes"
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultCacheTTL is how long a cached blob lives.
	DefaultCacheTTL = 10 * time.Minute

	// MaxCachedBlob is the largest blob the cache keeps.
	MaxCachedBlob = 1 << 20
)

// CachingStore keeps recently read or written blobs in an expiring LRU.
// Blobs are immutable under their CID, so a cached entry is never stale.
type CachingStore struct {
	Store Store
	cache *expirable.LRU[string, []byte]
}

var _ Store = (*CachingStore)(nil)

// NewCachingStore caches up to entries blobs from s for ttl. A non-positive
// ttl uses DefaultCacheTTL.
func NewCachingStore(s Store, entries int, ttl time.Duration) *CachingStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachingStore{
		Store: s,
		cache: expirable.NewLRU[string, []byte](entries, nil, ttl),
	}
}

func (c *CachingStore) Put(ctx context.Context, data []byte) (string, error) {
	id, err := c.Store.Put(ctx, data)
	if err != nil {
		return "", err
	}
	c.add(id, data)
	return id, nil
}

func (c *CachingStore) Get(ctx context.Context, cid string) ([]byte, error) {
	if data, ok := c.cache.Get(cid); ok {
		return bytes.Clone(data), nil
	}
	data, err := c.Store.Get(ctx, cid)
	if err != nil {
		return nil, err
	}
	c.add(cid, data)
	return data, nil
}

func (c *CachingStore) Pin(ctx context.Context, cid string) error {
	return c.Store.Pin(ctx, cid)
}

func (c *CachingStore) Has(ctx context.Context, cid string) (bool, error) {
	if c.cache.Contains(cid) {
		return true, nil
	}
	return c.Store.Has(ctx, cid)
}

// Len returns the number of cached blobs.
func (c *CachingStore) Len() int { return c.cache.Len() }

func (c *CachingStore) add(cid string, data []byte) {
	if len(data) > MaxCachedBlob {
		return
	}
	c.cache.Add(cid, bytes.Clone(data))
}

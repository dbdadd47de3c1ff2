package storage

import (
	"context"
	"errors"
	"fmt"
)

// TieredStore reads from a primary store first and falls back to remote
// stores in priority order (e.g. local FileStore -> Kubo node). Blobs found
// remotely are verified against their CID and cached into the primary.
// Writes and pins go to the primary only.
type TieredStore struct {
	Primary   Store
	Fallbacks []Store
}

var _ Store = (*TieredStore)(nil)

// NewTieredStore creates a TieredStore.
func NewTieredStore(primary Store, fallbacks ...Store) *TieredStore {
	return &TieredStore{Primary: primary, Fallbacks: fallbacks}
}

func (t *TieredStore) Put(ctx context.Context, data []byte) (string, error) {
	return t.Primary.Put(ctx, data)
}

func (t *TieredStore) Pin(ctx context.Context, cid string) error {
	return t.Primary.Pin(ctx, cid)
}

// Get tries the primary, then each fallback. Only ErrNotFound moves on to
// the next tier; other primary errors are real failures.
func (t *TieredStore) Get(ctx context.Context, cid string) ([]byte, error) {
	data, err := t.Primary.Get(ctx, cid)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("storage: primary: %w", err)
	}

	var lastErr error
	for _, fb := range t.Fallbacks {
		data, err := fb.Get(ctx, cid)
		if err != nil {
			lastErr = err
			continue
		}
		if VerifyCID(cid, data) != nil {
			continue
		}
		_, _ = t.Primary.Put(ctx, data) // best-effort cache
		return data, nil
	}

	if lastErr != nil && !errors.Is(lastErr, ErrNotFound) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, cid)
}

func (t *TieredStore) Has(ctx context.Context, cid string) (bool, error) {
	ok, err := t.Primary.Has(ctx, cid)
	if err != nil || ok {
		return ok, err
	}
	for _, fb := range t.Fallbacks {
		if ok, err := fb.Has(ctx, cid); err == nil && ok {
			return true, nil
		}
	}
	return false, nil
}

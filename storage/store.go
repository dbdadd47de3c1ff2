// Package storage provides content-addressed blob storage for encrypted
// file content. Every backend addresses blobs by a CIDv1 (raw codec,
// sha2-256 multihash) computed from the stored bytes, so the same bytes
// get the same identifier no matter which backend holds them.
package storage

import "context"

// Store is a content-addressed blob store.
type Store interface {
	// Put stores data and returns its CID. Storing the same bytes twice
	// returns the same CID.
	Put(ctx context.Context, data []byte) (string, error)

	// Get returns the bytes addressed by cid, or ErrNotFound.
	Get(ctx context.Context, cid string) ([]byte, error)

	// Pin asks the store to retain cid indefinitely.
	Pin(ctx context.Context, cid string) error

	// Has reports whether the store holds cid.
	Has(ctx context.Context, cid string) (bool, error)
}

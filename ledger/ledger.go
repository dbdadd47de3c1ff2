package ledger

import "context"

// Client is an append/remove-only per-owner record store.
//
// List returns an empty slice, not an error, for an owner with no records.
// RemoveAt returns the post-removal listing so callers need not re-read.
// Mutations are not idempotent and must not be retried blindly.
type Client interface {
	Append(ctx context.Context, owner string, rec FileRecord) (Receipt, error)
	List(ctx context.Context, owner string) ([]FileRecord, error)
	RemoveAt(ctx context.Context, owner string, index int) ([]FileRecord, error)
	ClearAll(ctx context.Context, owner string) error
}

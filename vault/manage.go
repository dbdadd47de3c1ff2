package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfsorg/filevault-go/catalog"
	"github.com/bitfsorg/filevault-go/ledger"
)

// List returns owner's records. An owner with no records gets an empty slice.
func (v *Vault) List(ctx context.Context, owner string) (recs []ledger.FileRecord, err error) {
	start := time.Now()
	defer func() { v.metrics.observe(opList, start, err) }()

	if owner == "" {
		return nil, fmt.Errorf("%w: owner is empty", ErrInvalidInput)
	}
	err = v.call(ctx, func(ctx context.Context) error {
		var err error
		recs, err = v.ledger.List(ctx, owner)
		return err
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// RemoveAt removes the record at index from owner's ledger and returns the
// remaining records. The blob is left in the store.
func (v *Vault) RemoveAt(ctx context.Context, owner string, index int) (recs []ledger.FileRecord, err error) {
	start := time.Now()
	defer func() { v.metrics.observe(opRemove, start, err) }()

	if owner == "" {
		return nil, fmt.Errorf("%w: owner is empty", ErrInvalidInput)
	}
	return v.removeAt(ctx, owner, index)
}

// RemoveByCID removes the most recent record for cid.
func (v *Vault) RemoveByCID(ctx context.Context, owner, cid string) (recs []ledger.FileRecord, err error) {
	start := time.Now()
	defer func() { v.metrics.observe(opRemove, start, err) }()

	if owner == "" || cid == "" {
		return nil, fmt.Errorf("%w: owner and cid are required", ErrInvalidInput)
	}

	var current []ledger.FileRecord
	err = v.call(ctx, func(ctx context.Context) error {
		var err error
		current, err = v.ledger.List(ctx, owner)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("vault: list records: %w", err)
	}
	index, ok := catalog.Find(current, catalog.ByCID(cid))
	if !ok {
		return nil, fmt.Errorf("%w: no record for cid %s", ErrNotFound, cid)
	}
	return v.removeAt(ctx, owner, index)
}

func (v *Vault) removeAt(ctx context.Context, owner string, index int) ([]ledger.FileRecord, error) {
	var recs []ledger.FileRecord
	err := v.call(ctx, func(ctx context.Context) error {
		var err error
		recs, err = v.ledger.RemoveAt(ctx, owner, index)
		return err
	})
	if err != nil {
		return nil, err
	}
	v.log.Info("record removed", "owner", owner, "index", index, "remaining", len(recs))
	return recs, nil
}

// ClearAll removes every record for owner. Blobs are left in the store.
func (v *Vault) ClearAll(ctx context.Context, owner string) (err error) {
	start := time.Now()
	defer func() { v.metrics.observe(opClear, start, err) }()

	if owner == "" {
		return fmt.Errorf("%w: owner is empty", ErrInvalidInput)
	}
	err = v.call(ctx, func(ctx context.Context) error {
		return v.ledger.ClearAll(ctx, owner)
	})
	if err != nil {
		return err
	}
	v.log.Info("records cleared", "owner", owner)
	return nil
}

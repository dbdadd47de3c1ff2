package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfsorg/filevault-go/catalog"
	"github.com/bitfsorg/filevault-go/ledger"
	"github.com/bitfsorg/filevault-go/seal"
	"github.com/bitfsorg/filevault-go/storage"
)

// FetchResult is a decrypted file and the record it was found through.
type FetchResult struct {
	Data     []byte
	FileName string
	FileType string
	Record   ledger.FileRecord
}

// Fetch lists owner's records, resolves sel, downloads the blob and
// decrypts it.
//
// An owner with no records, an unresolvable selector and a blob missing from
// the store are all ErrNotFound. Ledger read failures are ErrReadFailed.
func (v *Vault) Fetch(ctx context.Context, owner string, sel catalog.Selector) (res *FetchResult, err error) {
	start := time.Now()
	defer func() { v.metrics.observe(opFetch, start, err) }()

	if owner == "" {
		return nil, fmt.Errorf("%w: owner is empty", ErrInvalidInput)
	}

	var recs []ledger.FileRecord
	err = v.call(ctx, func(ctx context.Context) error {
		var err error
		recs, err = v.ledger.List(ctx, owner)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("vault: list records: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: no records for owner %s", ErrNotFound, owner)
	}

	rec, ok := catalog.Resolve(recs, sel)
	if !ok {
		return nil, fmt.Errorf("%w: no record for %s", ErrNotFound, sel)
	}
	v.log.Debug("record resolved", "owner", owner, "selector", sel.String(), "cid", rec.CID, "index", rec.Index)

	var ciphertext []byte
	err = v.call(ctx, func(ctx context.Context) error {
		var err error
		ciphertext, err = v.store.Get(ctx, rec.CID)
		return err
	})
	switch {
	case errors.Is(err, storage.ErrNotFound):
		v.log.Warn("blob missing for record", "owner", owner, "cid", rec.CID, "index", rec.Index)
		return nil, fmt.Errorf("%w: blob missing for record %s: %w", ErrNotFound, rec.CID, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	plaintext, err := v.cipher.Decrypt(owner, ciphertext)
	switch {
	case errors.Is(err, seal.ErrIntegrity), errors.Is(err, seal.ErrInvalidCiphertext):
		return nil, fmt.Errorf("%w: %s: %w", ErrIntegrity, rec.CID, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrDecryptFailed, err)
	}

	return &FetchResult{
		Data:     plaintext,
		FileName: rec.FileName,
		FileType: rec.FileType,
		Record:   rec,
	}, nil
}

// FetchByCID fetches the most recent record for cid.
func (v *Vault) FetchByCID(ctx context.Context, owner, cid string) (*FetchResult, error) {
	return v.Fetch(ctx, owner, catalog.ByCID(cid))
}

// FetchAt fetches the record currently at index.
func (v *Vault) FetchAt(ctx context.Context, owner string, index int) (*FetchResult, error) {
	return v.Fetch(ctx, owner, catalog.ByIndex(index))
}

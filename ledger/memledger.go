package ledger

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/bsv-blockchain/go-sdk/chainhash"
)

// MemLedger is an in-memory Client for tests and ephemeral vaults.
// The Fail* fields inject errors.
type MemLedger struct {
	mu      sync.Mutex
	records map[string][]FileRecord
	nonce   uint64

	FailAppend error
	FailList   error
	FailRemove error
}

var _ Client = (*MemLedger)(nil)

// NewMemLedger creates an empty MemLedger.
func NewMemLedger() *MemLedger {
	return &MemLedger{records: make(map[string][]FileRecord)}
}

func (m *MemLedger) Append(ctx context.Context, owner string, rec FileRecord) (Receipt, error) {
	if owner == "" {
		return Receipt{}, ErrEmptyOwner
	}
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAppend != nil {
		return Receipt{}, fmt.Errorf("%w: %w", ErrWriteFailed, m.FailAppend)
	}

	m.nonce++
	rec.Owner = owner
	rec.Index = 0
	payload, err := EncodeOp(Op{Kind: OpAppend, Owner: owner, Nonce: m.nonce, Record: rec})
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	m.records[owner] = append(m.records[owner], rec)
	return Receipt{TxID: opTxID(payload), Confirmed: true}, nil
}

func (m *MemLedger) List(ctx context.Context, owner string) ([]FileRecord, error) {
	if owner == "" {
		return nil, ErrEmptyOwner
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailList != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, m.FailList)
	}
	return withIndexes(slices.Clone(m.records[owner])), nil
}

func (m *MemLedger) RemoveAt(ctx context.Context, owner string, index int) ([]FileRecord, error) {
	if owner == "" {
		return nil, ErrEmptyOwner
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailRemove != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, m.FailRemove)
	}

	recs := m.records[owner]
	if index < 0 || index >= len(recs) {
		return nil, fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(recs))
	}
	recs = slices.Delete(recs, index, index+1)
	m.records[owner] = recs
	return withIndexes(slices.Clone(recs)), nil
}

func (m *MemLedger) ClearAll(ctx context.Context, owner string) error {
	if owner == "" {
		return ErrEmptyOwner
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailRemove != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, m.FailRemove)
	}
	delete(m.records, owner)
	return nil
}

// opTxID derives a transaction identifier from an op payload as the
// byte-reversed hex of its double SHA-256, like a chain txid.
func opTxID(payload []byte) string {
	return chainhash.DoubleHashH(payload).String()
}

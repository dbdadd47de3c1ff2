package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"

	"github.com/bitfsorg/filevault-go/network"
	"github.com/bitfsorg/filevault-go/tx"
)

// DefaultPollInterval is how often Confirm asks the node for tx status.
const DefaultPollInterval = 5 * time.Second

// AnchoredOptions configures an AnchoredLedger.
type AnchoredOptions struct {
	// FeeRate in sat/KB. Zero means tx.DefaultFeeRate.
	FeeRate uint64

	// Mainnet selects the address encoding of the funding key.
	Mainnet bool

	// PollInterval for Confirm. Zero means DefaultPollInterval.
	PollInterval time.Duration
}

// AnchoredLedger writes every mutation as an OP_RETURN transaction funded by
// a single P2PKH key, then applies it to a local BoltLedger index which
// serves reads.
//
// A mutation is broadcast at most once. If broadcast fails the index is left
// untouched; if the index write fails after broadcast, the op is still on
// chain and the error says so.
type AnchoredLedger struct {
	chain   network.BlockchainService
	index   *BoltLedger
	key     *ec.PrivateKey
	address string
	pkh     []byte
	feeRate uint64
	poll    time.Duration

	mu      sync.Mutex
	spent   map[string]struct{}
	pending []*tx.UTXO
}

var _ Client = (*AnchoredLedger)(nil)

// NewAnchoredLedger creates an AnchoredLedger. The index is owned by the
// caller and must outlive the ledger.
func NewAnchoredLedger(chain network.BlockchainService, index *BoltLedger, key *ec.PrivateKey, opts AnchoredOptions) (*AnchoredLedger, error) {
	if chain == nil || index == nil || key == nil {
		return nil, fmt.Errorf("ledger: anchored ledger needs chain, index and key")
	}
	addr, err := script.NewAddressFromPublicKey(key.PubKey(), opts.Mainnet)
	if err != nil {
		return nil, fmt.Errorf("ledger: funding address: %w", err)
	}
	feeRate := opts.FeeRate
	if feeRate == 0 {
		feeRate = tx.DefaultFeeRate
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &AnchoredLedger{
		chain:   chain,
		index:   index,
		key:     key,
		address: addr.AddressString,
		pkh:     addr.PublicKeyHash,
		feeRate: feeRate,
		poll:    poll,
		spent:   make(map[string]struct{}),
	}, nil
}

// Address returns the funding address that must hold UTXOs.
func (a *AnchoredLedger) Address() string { return a.address }

// Init registers the funding address with the node so ListUnspent sees it.
func (a *AnchoredLedger) Init(ctx context.Context) error {
	if err := a.chain.ImportAddress(ctx, a.address); err != nil {
		return fmt.Errorf("ledger: import funding address: %w", err)
	}
	return nil
}

// Append anchors rec and adds it to owner's list. The receipt is not
// confirmed until Confirm reports it mined.
func (a *AnchoredLedger) Append(ctx context.Context, owner string, rec FileRecord) (Receipt, error) {
	if owner == "" {
		return Receipt{}, ErrEmptyOwner
	}
	rec.Owner = owner
	rec.Index = 0
	op := Op{Kind: OpAppend, Owner: owner, Nonce: uint64(a.index.now().UnixNano()), Record: rec}
	txid, err := a.apply(ctx, op)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{TxID: txid}, nil
}

// List reads owner's records from the local index.
func (a *AnchoredLedger) List(ctx context.Context, owner string) ([]FileRecord, error) {
	return a.index.List(ctx, owner)
}

// RemoveAt anchors the removal of the record at index.
func (a *AnchoredLedger) RemoveAt(ctx context.Context, owner string, index int) ([]FileRecord, error) {
	if owner == "" {
		return nil, ErrEmptyOwner
	}
	if index < 0 {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	op := Op{Kind: OpRemove, Owner: owner, Nonce: uint64(a.index.now().UnixNano()), Index: uint32(index)}
	if _, err := a.apply(ctx, op); err != nil {
		return nil, err
	}
	return a.index.List(ctx, owner)
}

// ClearAll anchors the removal of every record for owner.
func (a *AnchoredLedger) ClearAll(ctx context.Context, owner string) error {
	if owner == "" {
		return ErrEmptyOwner
	}
	op := Op{Kind: OpClear, Owner: owner, Nonce: uint64(a.index.now().UnixNano())}
	_, err := a.apply(ctx, op)
	return err
}

// Confirm polls the node until txid is mined or ctx ends.
func (a *AnchoredLedger) Confirm(ctx context.Context, txid string) (Receipt, error) {
	ticker := time.NewTicker(a.poll)
	defer ticker.Stop()

	for {
		status, err := a.chain.GetTxStatus(ctx, txid)
		switch {
		case err == nil && status.Confirmed:
			return Receipt{TxID: txid, Confirmed: true}, nil
		case err != nil && !errors.Is(err, network.ErrTxNotFound):
			return Receipt{TxID: txid}, fmt.Errorf("%w: tx status: %w", ErrReadFailed, err)
		}

		select {
		case <-ctx.Done():
			return Receipt{TxID: txid}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Verify fetches txid from the node and decodes the op it carries.
func (a *AnchoredLedger) Verify(ctx context.Context, txid string) (Op, error) {
	raw, err := a.chain.GetRawTx(ctx, txid)
	if err != nil {
		return Op{}, fmt.Errorf("%w: fetch tx: %w", ErrReadFailed, err)
	}
	sdkTx, err := transaction.NewTransactionFromBytes(raw)
	if err != nil {
		return Op{}, fmt.Errorf("%w: parse tx: %w", ErrInvalidPayload, err)
	}
	for _, out := range sdkTx.Outputs {
		payload, err := tx.ParseRecordScript(out.LockingScript)
		if err != nil {
			continue
		}
		return DecodeOp(payload)
	}
	return Op{}, fmt.Errorf("%w: %s carries no record output", ErrInvalidPayload, txid)
}

// apply anchors op on chain and then commits it to the index. A removal's
// target record is resolved under a.mu so the anchored op and the index
// delete name the same record.
func (a *AnchoredLedger) apply(ctx context.Context, op Op) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if op.Kind == OpRemove {
		target, err := a.index.lookup(op.Owner, int(op.Index))
		if err != nil {
			return "", err
		}
		op.Record = target
	}
	payload, err := EncodeOp(op)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	txid, err := a.broadcast(ctx, payload)
	if err != nil {
		return "", err
	}
	if _, err := a.index.commit(op, payload, txid); err != nil {
		return "", fmt.Errorf("%w (tx %s broadcast)", err, txid)
	}
	return txid, nil
}

// broadcast funds, signs and sends a record tx. Callers hold a.mu.
func (a *AnchoredLedger) broadcast(ctx context.Context, payload []byte) (string, error) {
	available, err := a.spendable(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	inputs, err := tx.SelectInputs(available, len(payload), a.feeRate)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	rtx, err := tx.BuildRecordTx(payload, inputs, a.pkh, a.feeRate)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	rawHex, err := tx.SignRecordTx(rtx, inputs)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if _, err := a.chain.BroadcastTx(ctx, rawHex); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	for _, in := range inputs {
		a.spent[in.Outpoint()] = struct{}{}
	}
	a.pending = pruneSpent(a.pending, a.spent)
	if rtx.ChangeUTXO != nil {
		rtx.ChangeUTXO.PrivateKey = a.key
		a.pending = append(a.pending, rtx.ChangeUTXO)
	}
	return tx.TxIDString(rtx.TxID), nil
}

// spendable merges the node's view of the funding address with locally
// tracked change, excluding outpoints already spent by this ledger.
func (a *AnchoredLedger) spendable(ctx context.Context) ([]*tx.UTXO, error) {
	listed, err := a.chain.ListUnspent(ctx, a.address)
	if err != nil {
		return nil, fmt.Errorf("list unspent: %w", err)
	}

	seen := make(map[string]struct{}, len(listed))
	var out []*tx.UTXO
	for _, u := range listed {
		utxo, err := tx.NewUTXOFromHex(u.TxID, u.Vout, u.Amount, u.ScriptPubKey, a.key)
		if err != nil {
			return nil, err
		}
		op := utxo.Outpoint()
		seen[op] = struct{}{}
		if _, ok := a.spent[op]; ok {
			continue
		}
		out = append(out, utxo)
	}

	// Once the node stops listing a spent outpoint it no longer needs tracking.
	for op := range a.spent {
		if _, ok := seen[op]; !ok {
			delete(a.spent, op)
		}
	}

	// Local change the node already lists is served from the listing.
	kept := a.pending[:0]
	for _, p := range a.pending {
		if _, ok := seen[p.Outpoint()]; ok {
			continue
		}
		kept = append(kept, p)
		out = append(out, p)
	}
	a.pending = kept
	return out, nil
}

func pruneSpent(utxos []*tx.UTXO, spent map[string]struct{}) []*tx.UTXO {
	kept := utxos[:0]
	for _, u := range utxos {
		if _, ok := spent[u.Outpoint()]; !ok {
			kept = append(kept, u)
		}
	}
	return kept
}

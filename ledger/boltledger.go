package ledger

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketOwners = []byte("owners")
	bucketTxLog  = []byte("txlog")
)

// LogEntry is one committed mutation in the audit log.
type LogEntry struct {
	TxID    string
	Kind    OpKind
	Owner   string
	Payload []byte
	Time    time.Time
}

// BoltLedger is a Client backed by a local bbolt database.
//
// Each owner has a nested bucket under "owners" whose keys are big-endian
// sequence numbers, so cursor order is append order. Every mutation also
// appends a LogEntry to "txlog".
type BoltLedger struct {
	db  *bbolt.DB
	now func() time.Time
}

var _ Client = (*BoltLedger)(nil)

// OpenBoltLedger opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltLedger(dbPath string) (*BoltLedger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("ledger: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketOwners, bucketTxLog} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: create buckets: %w", err)
	}

	return &BoltLedger{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (b *BoltLedger) Close() error { return b.db.Close() }

// seqKey encodes a sequence number as an 8-byte big-endian key for sorted storage.
func seqKey(n uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, n)
	return k
}

// encodeGob serializes a value using gob encoding.
func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob deserializes gob-encoded data into a value.
func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// Append stores rec at the end of owner's list. The receipt is confirmed
// once the bbolt transaction has committed.
func (b *BoltLedger) Append(ctx context.Context, owner string, rec FileRecord) (Receipt, error) {
	if owner == "" {
		return Receipt{}, ErrEmptyOwner
	}
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	rec.Owner = owner
	rec.Index = 0
	op := Op{Kind: OpAppend, Owner: owner, Nonce: uint64(b.now().UnixNano()), Record: rec}
	payload, err := EncodeOp(op)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	txid := opTxID(payload)

	if _, err := b.commit(op, payload, txid); err != nil {
		return Receipt{}, err
	}
	return Receipt{TxID: txid, Confirmed: true}, nil
}

// List returns owner's records in append order with read-time indexes.
func (b *BoltLedger) List(ctx context.Context, owner string) ([]FileRecord, error) {
	if owner == "" {
		return nil, ErrEmptyOwner
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var recs []FileRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		recs, err = listOwner(tx, owner)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	return recs, nil
}

// RemoveAt deletes the record currently at index and returns the new listing.
func (b *BoltLedger) RemoveAt(ctx context.Context, owner string, index int) ([]FileRecord, error) {
	if owner == "" {
		return nil, ErrEmptyOwner
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index < 0 {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	target, err := b.lookup(owner, index)
	if err != nil {
		return nil, err
	}

	op := Op{Kind: OpRemove, Owner: owner, Nonce: uint64(b.now().UnixNano()), Index: uint32(index), Record: target}
	payload, err := EncodeOp(op)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return b.commit(op, payload, opTxID(payload))
}

// ClearAll deletes every record for owner.
func (b *BoltLedger) ClearAll(ctx context.Context, owner string) error {
	if owner == "" {
		return ErrEmptyOwner
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	op := Op{Kind: OpClear, Owner: owner, Nonce: uint64(b.now().UnixNano())}
	payload, err := EncodeOp(op)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	_, err = b.commit(op, payload, opTxID(payload))
	return err
}

// History returns the audit log in commit order.
func (b *BoltLedger) History() ([]LogEntry, error) {
	var entries []LogEntry
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTxLog).ForEach(func(_, v []byte) error {
			var e LogEntry
			if err := decodeGob(v, &e); err != nil {
				return fmt.Errorf("decode log entry: %w", err)
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	return entries, nil
}

// commit applies op and logs it under txid in a single bbolt transaction.
// It returns owner's listing after the mutation. Index errors are returned
// unwrapped; everything else is ErrWriteFailed.
func (b *BoltLedger) commit(op Op, payload []byte, txid string) ([]FileRecord, error) {
	var after []FileRecord
	err := b.db.Update(func(tx *bbolt.Tx) error {
		owners := tx.Bucket(bucketOwners)

		switch op.Kind {
		case OpAppend:
			ob, err := owners.CreateBucketIfNotExists([]byte(op.Owner))
			if err != nil {
				return fmt.Errorf("create owner bucket: %w", err)
			}
			seq, err := ob.NextSequence()
			if err != nil {
				return fmt.Errorf("next sequence: %w", err)
			}
			data, err := encodeGob(op.Record)
			if err != nil {
				return fmt.Errorf("encode record: %w", err)
			}
			if err := ob.Put(seqKey(seq), data); err != nil {
				return fmt.Errorf("put record: %w", err)
			}

		case OpRemove:
			ob := owners.Bucket([]byte(op.Owner))
			key := nthKey(ob, int(op.Index))
			if key == nil {
				return ErrIndexOutOfRange
			}
			if op.Record.CID != "" {
				var cur FileRecord
				if err := decodeGob(ob.Get(key), &cur); err != nil {
					return fmt.Errorf("decode record: %w", err)
				}
				if cur.CID != op.Record.CID {
					return fmt.Errorf("%w: position %d holds %s, op names %s", ErrStaleIndex, op.Index, cur.CID, op.Record.CID)
				}
			}
			if err := ob.Delete(key); err != nil {
				return fmt.Errorf("delete record: %w", err)
			}

		case OpClear:
			err := owners.DeleteBucket([]byte(op.Owner))
			if err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return fmt.Errorf("delete owner bucket: %w", err)
			}
		}

		if err := appendLog(tx, LogEntry{TxID: txid, Kind: op.Kind, Owner: op.Owner, Payload: payload, Time: b.now().UTC()}); err != nil {
			return err
		}

		var err error
		after, err = listOwner(tx, op.Owner)
		return err
	})
	if errors.Is(err, ErrIndexOutOfRange) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, op.Index)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return after, nil
}

// lookup returns the record currently at index, or ErrIndexOutOfRange.
func (b *BoltLedger) lookup(owner string, index int) (FileRecord, error) {
	var rec FileRecord
	var found bool
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		rec, found, err = recordAt(tx, owner, index)
		return err
	})
	if err != nil {
		return FileRecord{}, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	if !found {
		return FileRecord{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return rec, nil
}

// nthKey returns the key at position n in cursor order, or nil.
func nthKey(ob *bbolt.Bucket, n int) []byte {
	if ob == nil || n < 0 {
		return nil
	}
	c := ob.Cursor()
	i := 0
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		if i == n {
			return k
		}
		i++
	}
	return nil
}

// recordAt returns the record at position n without modifying anything.
func recordAt(tx *bbolt.Tx, owner string, n int) (FileRecord, bool, error) {
	ob := tx.Bucket(bucketOwners).Bucket([]byte(owner))
	key := nthKey(ob, n)
	if key == nil {
		return FileRecord{}, false, nil
	}
	var rec FileRecord
	if err := decodeGob(ob.Get(key), &rec); err != nil {
		return FileRecord{}, false, fmt.Errorf("decode record: %w", err)
	}
	rec.Index = n
	return rec, true, nil
}

func listOwner(tx *bbolt.Tx, owner string) ([]FileRecord, error) {
	recs := []FileRecord{}
	ob := tx.Bucket(bucketOwners).Bucket([]byte(owner))
	if ob == nil {
		return recs, nil
	}
	err := ob.ForEach(func(_, v []byte) error {
		var rec FileRecord
		if err := decodeGob(v, &rec); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return withIndexes(recs), nil
}

func appendLog(tx *bbolt.Tx, e LogEntry) error {
	lb := tx.Bucket(bucketTxLog)
	seq, err := lb.NextSequence()
	if err != nil {
		return fmt.Errorf("next log sequence: %w", err)
	}
	data, err := encodeGob(e)
	if err != nil {
		return fmt.Errorf("encode log entry: %w", err)
	}
	return lb.Put(seqKey(seq), data)
}

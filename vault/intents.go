package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/bitfsorg/filevault-go/ledger"
)

var bucketIntents = []byte("intents")

// Intent is a blob uploaded for an owner whose ledger record has not been
// confirmed written.
type Intent struct {
	ID         string    `json:"id"`
	Owner      string    `json:"owner"`
	CID        string    `json:"cid"`
	FileName   string    `json:"file_name"`
	ReservedAt time.Time `json:"reserved_at"`
}

// Orphan is a pending intent whose CID has no record in the owner's ledger.
type Orphan = Intent

// IntentLog is a bbolt-backed log of uploads awaiting their ledger record.
//
// Put reserves an intent after the upload and commits it after the append.
// An intent still pending after Put returns marks a possible orphaned blob.
type IntentLog struct {
	db  *bbolt.DB
	now func() time.Time
}

// OpenIntentLog opens or creates the intent log at path.
func OpenIntentLog(path string) (*IntentLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("vault: create intent log directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("vault: open intent log: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketIntents)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("vault: create intent bucket: %w", err)
	}
	return &IntentLog{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (l *IntentLog) Close() error { return l.db.Close() }

// Reserve records a pending intent and returns its id.
func (l *IntentLog) Reserve(owner, cid, fileName string) (string, error) {
	in := Intent{
		ID:         uuid.NewString(),
		Owner:      owner,
		CID:        cid,
		FileName:   fileName,
		ReservedAt: l.now().UTC(),
	}
	data, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("vault: encode intent: %w", err)
	}
	err = l.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIntents).Put([]byte(in.ID), data)
	})
	if err != nil {
		return "", fmt.Errorf("vault: reserve intent: %w", err)
	}
	return in.ID, nil
}

// Commit removes a pending intent.
func (l *IntentLog) Commit(id string) error {
	err := l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketIntents)
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrUnknownIntent, id)
		}
		return b.Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("vault: commit intent: %w", err)
	}
	return nil
}

// Pending returns all pending intents, oldest first.
func (l *IntentLog) Pending() ([]Intent, error) {
	var out []Intent
	err := l.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIntents).ForEach(func(_, v []byte) error {
			var in Intent
			if err := json.Unmarshal(v, &in); err != nil {
				return fmt.Errorf("decode intent: %w", err)
			}
			out = append(out, in)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("vault: read intents: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReservedAt.Before(out[j].ReservedAt)
	})
	return out, nil
}

// RecordLister lists an owner's ledger records. *Vault implements it.
type RecordLister interface {
	List(ctx context.Context, owner string) ([]ledger.FileRecord, error)
}

// Reconcile checks every pending intent against its owner's ledger. Intents
// whose CID is recorded are committed; the rest are returned as orphans and
// stay pending.
//
// Run it while no Put is in flight, since an in-flight Put looks orphaned
// until its append returns.
func (l *IntentLog) Reconcile(ctx context.Context, records RecordLister) ([]Orphan, error) {
	pending, err := l.Pending()
	if err != nil {
		return nil, err
	}

	recorded := make(map[string]map[string]bool)
	var orphans []Orphan
	for _, in := range pending {
		cids, ok := recorded[in.Owner]
		if !ok {
			recs, err := records.List(ctx, in.Owner)
			if err != nil {
				return nil, fmt.Errorf("vault: reconcile %s: %w", in.Owner, err)
			}
			cids = make(map[string]bool, len(recs))
			for _, r := range recs {
				cids[r.CID] = true
			}
			recorded[in.Owner] = cids
		}

		if !cids[in.CID] {
			orphans = append(orphans, in)
			continue
		}
		if err := l.Commit(in.ID); err != nil {
			return nil, err
		}
	}
	return orphans, nil
}

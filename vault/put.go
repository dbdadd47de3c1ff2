package vault

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bitfsorg/filevault-go/ledger"
)

// DefaultFileName is recorded when a PutRequest has no file name.
const DefaultFileName = "unnamed"

// PutRequest describes one upload.
type PutRequest struct {
	Owner       string
	FileName    string
	FileType    string
	Data        []byte
	Description string

	// Score is optional; nil records 0.
	Score *float64
}

// PutResult is the store receipt.
type PutResult struct {
	Receipt     ledger.Receipt
	Owner       string
	CID         string
	FileName    string
	FileType    string
	Description string
	Date        string

	// FileSize is in megabytes and Score is the caller's score, both as
	// they read back after fixed-point rounding.
	FileSize float64
	Score    float64

	// ScaledSize and ScaledScore are the integers written to the ledger.
	ScaledSize  int64
	ScaledScore int64
}

// Put encrypts req.Data for req.Owner, uploads the ciphertext, pins it and
// appends a record to the owner's ledger.
//
// If the append fails after the upload, the blob stays in the store and the
// error is a *RecordingError carrying its CID. The ledger append is never
// retried.
func (v *Vault) Put(ctx context.Context, req PutRequest) (res *PutResult, err error) {
	start := time.Now()
	defer func() { v.metrics.observe(opPut, start, err) }()

	score, err := validatePut(req)
	if err != nil {
		return nil, err
	}
	name := req.FileName
	if name == "" {
		name = DefaultFileName
	}
	log := v.log.With("owner", req.Owner, "file", name)

	ciphertext, err := v.cipher.Encrypt(req.Owner, req.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAbortEncryption, err)
	}

	var cid string
	err = v.call(ctx, func(ctx context.Context) error {
		var err error
		cid, err = v.store.Put(ctx, ciphertext)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	log = log.With("cid", cid)
	log.Debug("blob uploaded", "bytes", len(ciphertext))

	if err := v.call(ctx, func(ctx context.Context) error { return v.store.Pin(ctx, cid) }); err != nil {
		v.metrics.pinFailures.Inc()
		log.Warn("pin failed", "error", err)
	} else {
		log.Debug("blob pinned")
	}

	var intentID string
	if v.intents != nil {
		intentID, err = v.intents.Reserve(req.Owner, cid, name)
		if err != nil {
			v.metrics.orphans.Inc()
			log.Error("intent reservation failed, blob orphaned", "error", err)
			return nil, &RecordingError{CID: cid, Err: err}
		}
	}

	rec := ledger.FileRecord{
		CID:                cid,
		FileName:           name,
		FileType:           req.FileType,
		FileSize:           ledger.Scale(ledger.SizeMB(len(req.Data))),
		ContentDescription: req.Description,
		Date:               ledger.FormatDate(v.now()),
		Score:              ledger.Scale(score),
	}

	var receipt ledger.Receipt
	err = v.call(ctx, func(ctx context.Context) error {
		var err error
		receipt, err = v.ledger.Append(ctx, req.Owner, rec)
		return err
	})
	if err != nil {
		v.metrics.orphans.Inc()
		log.Error("ledger append failed, blob orphaned", "intent", intentID, "error", err)
		return nil, &RecordingError{CID: cid, Err: err}
	}

	if intentID != "" {
		if err := v.intents.Commit(intentID); err != nil {
			log.Warn("commit intent", "intent", intentID, "error", err)
		}
	}

	log.Info("file stored", "txid", receipt.TxID, "confirmed", receipt.Confirmed)
	return &PutResult{
		Receipt:     receipt,
		Owner:       req.Owner,
		CID:         cid,
		FileName:    name,
		FileType:    req.FileType,
		Description: req.Description,
		Date:        rec.Date,
		FileSize:    rec.SizeMB(),
		Score:       rec.ScoreValue(),
		ScaledSize:  rec.FileSize,
		ScaledScore: rec.Score,
	}, nil
}

// validatePut checks req and returns the score to record.
func validatePut(req PutRequest) (float64, error) {
	switch {
	case req.Owner == "":
		return 0, fmt.Errorf("%w: owner is empty", ErrInvalidInput)
	case req.FileType == "":
		return 0, fmt.Errorf("%w: file type is empty", ErrInvalidInput)
	case len(req.Data) == 0:
		return 0, fmt.Errorf("%w: data is empty", ErrInvalidInput)
	}
	if req.Score == nil {
		return 0, nil
	}
	s := *req.Score
	if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
		return 0, fmt.Errorf("%w: score %v", ErrInvalidInput, s)
	}
	if !ledger.Scalable(s) {
		return 0, fmt.Errorf("%w: score %v is too large to record", ErrInvalidInput, s)
	}
	return s, nil
}

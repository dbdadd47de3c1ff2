// Package vault stores and retrieves owner-encrypted files. Content goes to a
// content-addressed blob store and metadata to a per-owner ledger.
//
// A Vault keeps no state between calls besides its collaborators, so
// concurrent calls for the same owner are not ordered relative to each other.
// Index selectors are read-time positions and shift after any removal; prefer
// selecting by CID.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bitfsorg/filevault-go/ledger"
	"github.com/bitfsorg/filevault-go/seal"
	"github.com/bitfsorg/filevault-go/storage"
)

// DefaultCallTimeout bounds each blob store and ledger call.
const DefaultCallTimeout = 30 * time.Second

// Vault ties a cipher, a blob store and a ledger together.
type Vault struct {
	store   storage.Store
	ledger  ledger.Client
	cipher  seal.Cipher
	log     *slog.Logger
	timeout time.Duration
	now     func() time.Time
	reg     prometheus.Registerer
	metrics *metrics
	intents *IntentLog
}

// Option configures a Vault.
type Option func(*Vault)

// WithCipher sets the content cipher. The default is seal.Legacy.
func WithCipher(c seal.Cipher) Option {
	return func(v *Vault) { v.cipher = c }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(v *Vault) { v.log = l }
}

// WithCallTimeout bounds every external call. Non-positive values keep the
// default.
func WithCallTimeout(d time.Duration) Option {
	return func(v *Vault) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithClock sets the clock used for record dates.
func WithClock(now func() time.Time) Option {
	return func(v *Vault) { v.now = now }
}

// WithMetrics registers the pipeline collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(v *Vault) { v.reg = reg }
}

// WithIntentLog records an intent between upload and ledger append so
// orphaned blobs can be found later with IntentLog.Reconcile.
func WithIntentLog(l *IntentLog) Option {
	return func(v *Vault) { v.intents = l }
}

// New creates a Vault over store and records.
func New(store storage.Store, records ledger.Client, opts ...Option) *Vault {
	v := &Vault{
		store:   store,
		ledger:  records,
		cipher:  seal.Legacy{},
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout: DefaultCallTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.metrics = newMetrics(v.reg)
	return v
}

// call runs fn under the per-call timeout. A deadline hit by this timeout, or
// by the caller's own deadline, is joined with ErrTimeout.
func (v *Vault) call(ctx context.Context, fn func(ctx context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	err := fn(cctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

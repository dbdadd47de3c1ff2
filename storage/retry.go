package storage

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retrying wraps a Store and retries Put and Get with exponential backoff.
// Both are idempotent for a content-addressed store. Pin and Has are passed
// through once.
type Retrying struct {
	Store Store

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint64

	// InitialInterval is the first backoff delay; zero uses 100ms.
	InitialInterval time.Duration

	// OnRetry, if set, is called before each retry.
	OnRetry func(op string, err error, wait time.Duration)
}

var _ Store = (*Retrying)(nil)

// NewRetrying wraps s with up to maxRetries retries.
func NewRetrying(s Store, maxRetries uint64) *Retrying {
	return &Retrying{Store: s, MaxRetries: maxRetries}
}

func (r *Retrying) Put(ctx context.Context, data []byte) (string, error) {
	var id string
	err := r.do(ctx, "put", func() error {
		var err error
		id, err = r.Store.Put(ctx, data)
		return err
	})
	return id, err
}

func (r *Retrying) Get(ctx context.Context, cid string) ([]byte, error) {
	var data []byte
	err := r.do(ctx, "get", func() error {
		var err error
		data, err = r.Store.Get(ctx, cid)
		return err
	})
	return data, err
}

func (r *Retrying) Pin(ctx context.Context, cid string) error {
	return r.Store.Pin(ctx, cid)
}

func (r *Retrying) Has(ctx context.Context, cid string) (bool, error) {
	return r.Store.Has(ctx, cid)
}

func (r *Retrying) do(ctx context.Context, op string, fn func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.InitialInterval
	if eb.InitialInterval <= 0 {
		eb.InitialInterval = 100 * time.Millisecond
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, r.MaxRetries), ctx)

	operation := func() error {
		err := fn()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		if r.OnRetry != nil {
			r.OnRetry(op, err, wait)
		}
	}
	return backoff.RetryNotify(operation, policy, notify)
}

// retryable reports whether err is a transient failure worth retrying.
func retryable(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidCID),
		errors.Is(err, ErrCIDMismatch),
		errors.Is(err, ErrEmptyContent),
		errors.Is(err, ErrTooLarge),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

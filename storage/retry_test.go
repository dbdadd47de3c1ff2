package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails the first n Put/Get calls with err.
type flakyStore struct {
	*MemStore
	failures atomic.Int32
	calls    atomic.Int32
	err      error
}

func (f *flakyStore) Put(ctx context.Context, data []byte) (string, error) {
	f.calls.Add(1)
	if f.failures.Add(-1) >= 0 {
		return "", f.err
	}
	return f.MemStore.Put(ctx, data)
}

func (f *flakyStore) Get(ctx context.Context, cid string) ([]byte, error) {
	f.calls.Add(1)
	if f.failures.Add(-1) >= 0 {
		return nil, f.err
	}
	return f.MemStore.Get(ctx, cid)
}

func newFlaky(n int32, err error) *flakyStore {
	f := &flakyStore{MemStore: NewMemStore(), err: err}
	f.failures.Store(n)
	return f
}

func TestRetrying_RecoversFromTransientPut(t *testing.T) {
	flaky := newFlaky(2, ErrUnavailable)
	var retries []string
	r := &Retrying{Store: flaky, MaxRetries: 3, InitialInterval: time.Millisecond,
		OnRetry: func(op string, err error, _ time.Duration) {
			retries = append(retries, op)
			assert.ErrorIs(t, err, ErrUnavailable)
		}}

	id, err := r.Put(context.Background(), []byte("data"))
	require.NoError(t, err)
	want, _ := ComputeCID([]byte("data"))
	assert.Equal(t, want, id)
	assert.Equal(t, int32(3), flaky.calls.Load())
	assert.Equal(t, []string{"put", "put"}, retries)
}

func TestRetrying_GivesUp(t *testing.T) {
	flaky := newFlaky(10, ErrUnavailable)
	r := &Retrying{Store: flaky, MaxRetries: 2, InitialInterval: time.Millisecond}

	_, err := r.Put(context.Background(), []byte("data"))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), flaky.calls.Load())
}

func TestRetrying_NotFoundIsPermanent(t *testing.T) {
	flaky := newFlaky(0, nil)
	r := &Retrying{Store: flaky, MaxRetries: 5, InitialInterval: time.Millisecond}

	id, _ := ComputeCID([]byte("absent"))
	_, err := r.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), flaky.calls.Load())
}

func TestRetrying_GetAfterTransient(t *testing.T) {
	flaky := newFlaky(0, nil)
	id, err := flaky.MemStore.Put(context.Background(), []byte("blob"))
	require.NoError(t, err)
	flaky.failures.Store(1)
	flaky.err = ErrIOFailure

	r := NewRetrying(flaky, 2)
	r.InitialInterval = time.Millisecond
	got, err := r.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []byte("blob"), got)
}

func TestRetrying_StopsOnContextDeadline(t *testing.T) {
	flaky := newFlaky(1000, ErrUnavailable)
	r := &Retrying{Store: flaky, MaxRetries: 1000, InitialInterval: 5 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := r.Put(ctx, []byte("data"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrUnavailable))
	assert.Less(t, flaky.calls.Load(), int32(1000))
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(ErrUnavailable))
	assert.True(t, retryable(ErrIOFailure))
	assert.False(t, retryable(ErrNotFound))
	assert.False(t, retryable(ErrCIDMismatch))
	assert.False(t, retryable(ErrInvalidCID))
	assert.False(t, retryable(ErrTooLarge))
	assert.False(t, retryable(context.Canceled))
}

package grpcstore

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/bitfsorg/filevault-go/storage"
)

// startServer serves store over an in-memory listener and returns a connected client.
func startServer(t *testing.T, store storage.Store) *Client {
	t.Helper()
	return startServerLimit(t, store, 0)
}

// startServerLimit is startServer with maxMsg applied on both ends.
func startServerLimit(t *testing.T, store storage.Store, maxMsg int) *Client {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer(ServerOptions(maxMsg)...)
	RegisterBlobStoreServer(srv, &Server{Store: store})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	client, err := Dial("passthrough:///bufnet", DialOptions{
		Timeout:     5 * time.Second,
		MaxMsgBytes: maxMsg,
		Extra:       []grpc.DialOption{grpc.WithContextDialer(dialer)},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGRPCStore_FileStoreRoundTrip(t *testing.T) {
	fs, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	defer fs.Close()

	client := startServer(t, fs)
	ctx := context.Background()

	payload := []byte("hello grpcstore")
	id, err := client.Put(ctx, payload)
	require.NoError(t, err)
	want, _ := storage.ComputeCID(payload)
	assert.Equal(t, want, id)

	ok, err := client.Has(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := client.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NoError(t, client.Pin(ctx, id))
	pinned, err := fs.Pinned(id)
	require.NoError(t, err)
	assert.True(t, pinned)
}

func TestGRPCStore_IdempotentPut(t *testing.T) {
	client := startServer(t, storage.NewMemStore())
	ctx := context.Background()

	a, err := client.Put(ctx, []byte("same"))
	require.NoError(t, err)
	b, err := client.Put(ctx, []byte("same"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGRPCStore_NotFound(t *testing.T) {
	client := startServer(t, storage.NewMemStore())
	ctx := context.Background()
	id, _ := storage.ComputeCID([]byte("absent"))

	_, err := client.Get(ctx, id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	ok, err := client.Has(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, client.Pin(ctx, id), storage.ErrNotFound)
}

func TestGRPCStore_InvalidCID(t *testing.T) {
	client := startServer(t, storage.NewMemStore())
	ctx := context.Background()

	_, err := client.Get(ctx, "not-a-cid")
	assert.ErrorIs(t, err, storage.ErrInvalidCID)

	err = client.Pin(ctx, "not-a-cid")
	assert.ErrorIs(t, err, storage.ErrInvalidCID)
}

func TestGRPCStore_EmptyPut(t *testing.T) {
	client := startServer(t, storage.NewMemStore())
	_, err := client.Put(context.Background(), nil)
	assert.ErrorIs(t, err, storage.ErrEmptyContent)
}

func TestGRPCStore_BackendUnavailable(t *testing.T) {
	mem := storage.NewMemStore()
	mem.FailPut = storage.ErrUnavailable
	client := startServer(t, mem)

	_, err := client.Put(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, storage.ErrUnavailable)
}

func TestServer_MissingStore(t *testing.T) {
	var s *Server
	_, err := s.Put(context.Background(), nil)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestMapRPC(t *testing.T) {
	assert.Nil(t, mapRPC(nil))
	assert.ErrorIs(t, mapRPC(status.Error(codes.NotFound, "x")), storage.ErrNotFound)
	assert.ErrorIs(t, mapRPC(status.Error(codes.DataLoss, "x")), storage.ErrCIDMismatch)
	assert.ErrorIs(t, mapRPC(status.Error(codes.Unavailable, "x")), storage.ErrUnavailable)
	assert.ErrorIs(t, mapRPC(status.Error(codes.DeadlineExceeded, "x")), context.DeadlineExceeded)
	assert.ErrorIs(t, mapRPC(status.Error(codes.Internal, "x")), storage.ErrIOFailure)
	assert.ErrorIs(t, mapRPC(status.Error(codes.ResourceExhausted, "x")), storage.ErrTooLarge)
}

func TestMapErr(t *testing.T) {
	assert.Equal(t, codes.NotFound, status.Code(mapErr(storage.ErrNotFound)))
	assert.Equal(t, codes.InvalidArgument, status.Code(mapErr(storage.ErrInvalidCID)))
	assert.Equal(t, codes.DataLoss, status.Code(mapErr(storage.ErrCIDMismatch)))
	assert.Equal(t, codes.Unavailable, status.Code(mapErr(storage.ErrUnavailable)))
	assert.Equal(t, codes.Internal, status.Code(mapErr(storage.ErrIOFailure)))
	assert.Equal(t, codes.ResourceExhausted, status.Code(mapErr(storage.ErrTooLarge)))
}

func TestGRPCStore_BlobLargerThanGRPCDefault(t *testing.T) {
	ctx := context.Background()
	fs, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })
	client := startServer(t, fs)

	data := bytes.Repeat([]byte{0x5a}, 5<<20)
	id, err := client.Put(ctx, data)
	require.NoError(t, err)

	got, err := client.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestGRPCStore_OverLimitIsPermanent(t *testing.T) {
	mem := storage.NewMemStore()
	client := startServerLimit(t, mem, 1<<20)

	r := storage.NewRetrying(client, 3)
	var retries int
	r.OnRetry = func(string, error, time.Duration) { retries++ }

	_, err := r.Put(context.Background(), make([]byte, 2<<20))
	assert.ErrorIs(t, err, storage.ErrTooLarge)
	assert.Zero(t, retries, "an oversized blob is not retried")
	assert.Zero(t, mem.Len())
}

package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKubo emulates the subset of the Kubo RPC API KuboStore uses.
type fakeKubo struct {
	mu     sync.Mutex
	blocks map[string][]byte
	pins   map[string]bool
	// corrupt makes block/get return wrong bytes.
	corrupt bool
	// wrongKey makes block/put report a different CID.
	wrongKey bool
	// remote holds blocks only the network has; offline reads miss them.
	remote map[string][]byte
	// stallNetwork makes online block/get for unknown blocks hang until
	// the request is abandoned, as Kubo does while searching peers.
	stallNetwork bool
	// gets records the offline flag of each block/get.
	gets []string
}

func newFakeKubo(t *testing.T) (*fakeKubo, *httptest.Server) {
	t.Helper()
	fk := &fakeKubo{blocks: make(map[string][]byte), pins: make(map[string]bool), remote: make(map[string][]byte)}
	srv := httptest.NewServer(fk)
	t.Cleanup(srv.Close)
	return fk, srv
}

func (f *fakeKubo) notFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(kuboError{Message: "block was not found locally (offline)", Type: "error"})
}

func (f *fakeKubo) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	arg := r.URL.Query().Get("arg")

	switch r.URL.Path {
	case "/api/v0/block/put":
		if r.URL.Query().Get("cid-codec") != "raw" || r.URL.Query().Get("mhtype") != "sha2-256" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		if len(data) > 1<<20 && r.URL.Query().Get("allow-big-block") != "true" {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(kuboError{
				Message: "produced block is over 1MiB: big blocks can't be exchanged with other peers. consider using UnixFS for automatic chunking of bigger files, or pass --allow-big-block to override",
				Type:    "error",
			})
			return
		}
		id, _ := ComputeCID(data)
		f.blocks[id] = data
		key := id
		if f.wrongKey {
			key, _ = ComputeCID([]byte("something else"))
		}
		_ = json.NewEncoder(w).Encode(blockStat{Key: key, Size: int64(len(data))})
	case "/api/v0/block/get":
		offline := r.URL.Query().Get("offline") == "true"
		f.gets = append(f.gets, strconv.FormatBool(offline))
		data, ok := f.blocks[arg]
		if !ok && !offline {
			data, ok = f.remote[arg]
			if !ok && f.stallNetwork {
				f.mu.Unlock()
				<-r.Context().Done()
				f.mu.Lock()
				return
			}
		}
		if !ok {
			f.notFound(w)
			return
		}
		if f.corrupt {
			data = []byte("corrupted")
		}
		_, _ = w.Write(data)
	case "/api/v0/block/stat":
		data, ok := f.blocks[arg]
		if !ok {
			f.notFound(w)
			return
		}
		_ = json.NewEncoder(w).Encode(blockStat{Key: arg, Size: int64(len(data))})
	case "/api/v0/pin/add":
		if _, ok := f.blocks[arg]; !ok {
			f.notFound(w)
			return
		}
		f.pins[arg] = true
		_ = json.NewEncoder(w).Encode(map[string][]string{"Pins": {arg}})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestKuboStore_RoundTrip(t *testing.T) {
	fk, srv := newFakeKubo(t)
	k := NewKuboStore(srv.URL+"/", srv.Client())
	ctx := context.Background()

	id, err := k.Put(ctx, []byte("ciphertext"))
	require.NoError(t, err)
	want, _ := ComputeCID([]byte("ciphertext"))
	assert.Equal(t, want, id)

	got, err := k.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("ciphertext"), got)

	ok, err := k.Has(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, k.Pin(ctx, id))
	assert.True(t, fk.pins[id])
}

func TestKuboStore_NotFound(t *testing.T) {
	_, srv := newFakeKubo(t)
	k := NewKuboStore(srv.URL, srv.Client())
	ctx := context.Background()
	id, _ := ComputeCID([]byte("absent"))

	_, err := k.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := k.Has(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, k.Pin(ctx, id), ErrNotFound)
}

func TestKuboStore_CIDMismatch(t *testing.T) {
	fk, srv := newFakeKubo(t)
	k := NewKuboStore(srv.URL, srv.Client())
	ctx := context.Background()

	fk.wrongKey = true
	_, err := k.Put(ctx, []byte("data"))
	assert.ErrorIs(t, err, ErrCIDMismatch)

	fk.wrongKey = false
	id, err := k.Put(ctx, []byte("data"))
	require.NoError(t, err)

	fk.corrupt = true
	_, err = k.Get(ctx, id)
	assert.ErrorIs(t, err, ErrCIDMismatch)
}

func TestKuboStore_Unavailable(t *testing.T) {
	k := NewKuboStore("http://127.0.0.1:1", nil)
	_, err := k.Put(context.Background(), []byte("data"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestKuboStore_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"Message":"repo locked","Code":0,"Type":"error"}`))
	}))
	defer srv.Close()

	k := NewKuboStore(srv.URL, srv.Client())
	_, err := k.Put(context.Background(), []byte("data"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "repo locked")
}

func TestKuboStore_InvalidCID(t *testing.T) {
	k := NewKuboStore("http://unused", nil)
	_, err := k.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvalidCID)
}

func TestKuboStore_BigBlock(t *testing.T) {
	_, srv := newFakeKubo(t)
	k := NewKuboStore(srv.URL, srv.Client())
	ctx := context.Background()

	data := make([]byte, 3<<20)
	for i := range data {
		data[i] = byte(i)
	}
	id, err := k.Put(ctx, data)
	require.NoError(t, err)
	want, _ := ComputeCID(data)
	assert.Equal(t, want, id)

	got, err := k.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestKuboStore_BlockTooLargeIsPermanent(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "true", r.URL.Query().Get("allow-big-block"))
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"Message":"produced block is over 1MiB","Code":0,"Type":"error"}`))
	}))
	defer srv.Close()

	r := NewRetrying(NewKuboStore(srv.URL, srv.Client()), 3)
	r.InitialInterval = time.Millisecond
	_, err := r.Put(context.Background(), []byte("data"))
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, 1, calls)
}

func TestKuboStore_GetFallsBackToNetwork(t *testing.T) {
	fk, srv := newFakeKubo(t)
	k := NewKuboStore(srv.URL, srv.Client())

	data := []byte("held by a peer")
	id, _ := ComputeCID(data)
	fk.remote[id] = data

	got, err := k.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, []string{"true", "false"}, fk.gets, "local blockstore first, then the network")
}

func TestKuboStore_NetworkSearchIsBounded(t *testing.T) {
	fk, srv := newFakeKubo(t)
	fk.stallNetwork = true
	k := NewKuboStore(srv.URL, srv.Client())
	k.FetchTimeout = 50 * time.Millisecond

	id, _ := ComputeCID([]byte("nobody has this"))
	start := time.Now()
	_, err := k.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)

	// With the network search disabled only the local blockstore is asked.
	fk.mu.Lock()
	fk.gets = nil
	fk.mu.Unlock()
	k.FetchTimeout = -1
	_, err = k.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"true"}, fk.gets)
}

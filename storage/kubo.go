package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MaxContentResponseSize is the maximum allowed response body size for blob
// fetches (1 GB).
const MaxContentResponseSize = 1 << 30

// DefaultFetchTimeout bounds the network search for a block the node does
// not hold locally.
const DefaultFetchTimeout = 10 * time.Second

// KuboStore implements Store against the HTTP RPC API of an IPFS Kubo node
// (e.g. "http://127.0.0.1:5001"). Blocks are written with the raw codec and
// sha2-256 so the node returns the same CID as ComputeCID.
//
// Get asks the node's local blockstore first. Only a local miss goes to the
// IPFS network, bounded by FetchTimeout; a block the network does not produce
// in that window is reported as ErrNotFound.
type KuboStore struct {
	baseURL string
	client  *http.Client

	// FetchTimeout bounds the network search in Get. Negative disables it,
	// so Get only consults the local blockstore.
	FetchTimeout time.Duration
}

var _ Store = (*KuboStore)(nil)

// kuboError is the JSON error body Kubo returns with non-2xx responses.
type kuboError struct {
	Message string `json:"Message"`
	Code    int    `json:"Code"`
	Type    string `json:"Type"`
}

// blockStat maps the JSON returned by block/put and block/stat.
type blockStat struct {
	Key  string `json:"Key"`
	Size int64  `json:"Size"`
}

// NewKuboStore creates a client for the Kubo RPC API at baseURL.
// A nil client uses one with a 30 second timeout.
func NewKuboStore(baseURL string, client *http.Client) *KuboStore {
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		}
	}
	return &KuboStore{baseURL: strings.TrimRight(baseURL, "/"), client: client, FetchTimeout: DefaultFetchTimeout}
}

// Put uploads data with block/put and checks the node's CID against the
// locally computed one.
func (k *KuboStore) Put(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyContent
	}
	expected, err := ComputeCID(data)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "blob")
	if err != nil {
		return "", fmt.Errorf("storage: kubo multipart: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("storage: kubo multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("storage: kubo multipart: %w", err)
	}

	q := url.Values{}
	q.Set("cid-codec", "raw")
	q.Set("mhtype", "sha2-256")
	q.Set("pin", "false")
	// Kubo refuses blocks over 1 MiB without it. Blobs are stored as a
	// single raw block so the CID stays ComputeCID(data).
	q.Set("allow-big-block", "true")

	resp, err := k.post(ctx, "block/put", q, mw.FormDataContentType(), &body)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var stat blockStat
	if err := json.NewDecoder(resp.Body).Decode(&stat); err != nil {
		return "", fmt.Errorf("%w: decode block/put: %w", ErrUnavailable, err)
	}
	got, err := ParseCID(stat.Key)
	if err != nil {
		return "", err
	}
	if got != expected {
		return "", fmt.Errorf("%w: node returned %s, want %s", ErrCIDMismatch, got, expected)
	}
	return got, nil
}

// Get fetches the block for cid and verifies the returned bytes.
func (k *KuboStore) Get(ctx context.Context, cid string) ([]byte, error) {
	id, err := ParseCID(cid)
	if err != nil {
		return nil, err
	}

	data, err := k.getBlock(ctx, id, true)
	if !errors.Is(err, ErrNotFound) || k.FetchTimeout < 0 {
		return data, err
	}

	wait := k.FetchTimeout
	if wait == 0 {
		wait = DefaultFetchTimeout
	}
	fctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	data, err = k.getBlock(fctx, id, false)
	if err != nil && ctx.Err() == nil && errors.Is(fctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %s not found locally or on the network within %s", ErrNotFound, id, wait)
	}
	return data, err
}

// getBlock calls block/get. offline restricts the node to its local
// blockstore.
func (k *KuboStore) getBlock(ctx context.Context, id string, offline bool) ([]byte, error) {
	q := url.Values{"arg": {id}}
	if offline {
		q.Set("offline", "true")
	}
	resp, err := k.post(ctx, "block/get", q, "", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxContentResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read block: %w", ErrUnavailable, err)
	}
	if err := VerifyCID(id, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Pin calls pin/add for cid.
func (k *KuboStore) Pin(ctx context.Context, cid string) error {
	id, err := ParseCID(cid)
	if err != nil {
		return err
	}
	resp, err := k.post(ctx, "pin/add", url.Values{"arg": {id}}, "", nil)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// Has calls block/stat with offline=true so a missing block fails fast
// instead of being searched for on the network.
func (k *KuboStore) Has(ctx context.Context, cid string) (bool, error) {
	id, err := ParseCID(cid)
	if err != nil {
		return false, err
	}
	resp, err := k.post(ctx, "block/stat", url.Values{"arg": {id}, "offline": {"true"}}, "", nil)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return true, nil
}

// post issues a Kubo RPC call. Kubo requires POST for every endpoint.
// Non-2xx responses are decoded into ErrNotFound or ErrUnavailable.
func (k *KuboStore) post(ctx context.Context, endpoint string, q url.Values, contentType string, body io.Reader) (*http.Response, error) {
	u := k.baseURL + "/api/v0/" + endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return nil, fmt.Errorf("storage: kubo request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := k.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, ctxErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var kerr kuboError
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &kerr) == nil && kerr.Message != "" {
		msg = kerr.Message
	}
	if isKuboNotFound(msg) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	if isKuboTooLarge(msg) {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, msg)
	}
	return nil, fmt.Errorf("%w: %s: HTTP %d: %s", ErrUnavailable, endpoint, resp.StatusCode, msg)
}

func isKuboTooLarge(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "over 1mib") || strings.Contains(msg, "allow-big-block")
}

func isKuboNotFound(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "not found") || strings.Contains(msg, "blockservice: key not found")
}

package grpcstore

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/bitfsorg/filevault-go/storage"
)

// Client implements storage.Store over the BlobStore gRPC service.
type Client struct {
	cc     *grpc.ClientConn
	client BlobStoreClient

	// Timeout applies per RPC when non-zero, in addition to any caller deadline.
	Timeout time.Duration
}

var _ storage.Store = (*Client)(nil)

// DefaultMaxMsgBytes is the message size limit used when none is given. It
// bounds the largest blob either side will send or accept.
const DefaultMaxMsgBytes = 64 << 20

// DialOptions configures Dial.
type DialOptions struct {
	// Timeout applies per RPC when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes. Zero means
	// DefaultMaxMsgBytes.
	MaxMsgBytes int

	// Extra dial options, e.g. grpc.WithContextDialer for tests.
	Extra []grpc.DialOption
}

// Dial connects to a BlobStore server at target. The connection is
// established lazily on the first RPC.
func Dial(target string, opts DialOptions) (*Client, error) {
	limit := opts.MaxMsgBytes
	if limit <= 0 {
		limit = DefaultMaxMsgBytes
	}
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(limit),
			grpc.MaxCallSendMsgSize(limit),
		),
	}
	dialOpts = append(dialOpts, opts.Extra...)

	cc, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewBlobStoreClient(cc), Timeout: opts.Timeout}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// Put uploads data and checks the server's CID against the local one.
func (c *Client) Put(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", storage.ErrEmptyContent
	}
	expected, err := storage.ComputeCID(data)
	if err != nil {
		return "", err
	}

	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Put(ctx, wrapperspb.Bytes(data))
	if err != nil {
		return "", mapRPC(err)
	}
	id, err := storage.ParseCID(reply.GetValue())
	if err != nil {
		return "", err
	}
	if id != expected {
		return "", storage.ErrCIDMismatch
	}
	return id, nil
}

// Get fetches cid and verifies the returned bytes hash to it.
func (c *Client) Get(ctx context.Context, cid string) ([]byte, error) {
	id, err := storage.ParseCID(cid)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Get(ctx, wrapperspb.String(id))
	if err != nil {
		return nil, mapRPC(err)
	}
	b := reply.GetValue()
	if err := storage.VerifyCID(id, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *Client) Pin(ctx context.Context, cid string) error {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	_, err := c.client.Pin(ctx, wrapperspb.String(cid))
	return mapRPC(err)
}

func (c *Client) Has(ctx context.Context, cid string) (bool, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Has(ctx, wrapperspb.String(cid))
	if err != nil {
		return false, mapRPC(err)
	}
	return reply.GetValue(), nil
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}

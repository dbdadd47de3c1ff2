package grpcstore

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/bitfsorg/filevault-go/storage"
)

// ServerOptions sets the server's message size limits to maxMsgBytes, or
// DefaultMaxMsgBytes when it is not positive. Pass the result to
// grpc.NewServer.
func ServerOptions(maxMsgBytes int) []grpc.ServerOption {
	if maxMsgBytes <= 0 {
		maxMsgBytes = DefaultMaxMsgBytes
	}
	return []grpc.ServerOption{
		grpc.MaxRecvMsgSize(maxMsgBytes),
		grpc.MaxSendMsgSize(maxMsgBytes),
	}
}

// Server exposes a storage.Store over the BlobStore gRPC service.
type Server struct {
	UnimplementedBlobStoreServer
	Store storage.Store
}

func (s *Server) Put(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	b := in.GetValue()
	if len(b) == 0 {
		return nil, mapErr(storage.ErrEmptyContent)
	}
	expected, err := storage.ComputeCID(b)
	if err != nil {
		return nil, status.Error(codes.Internal, "cid computation failed")
	}
	id, err := s.Store.Put(ctx, b)
	if err != nil {
		return nil, mapErr(err)
	}
	if id != expected {
		return nil, status.Error(codes.DataLoss, storage.ErrCIDMismatch.Error())
	}
	return wrapperspb.String(id), nil
}

func (s *Server) Get(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	id, err := storage.ParseCID(in.GetValue())
	if err != nil {
		return nil, mapErr(err)
	}
	b, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	if err := storage.VerifyCID(id, b); err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Pin(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	id, err := storage.ParseCID(in.GetValue())
	if err != nil {
		return nil, mapErr(err)
	}
	if err := s.Store.Pin(ctx, id); err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Bool(true), nil
}

func (s *Server) Has(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	id, err := storage.ParseCID(in.GetValue())
	if err != nil {
		return nil, mapErr(err)
	}
	ok, err := s.Store.Has(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Bool(ok), nil
}

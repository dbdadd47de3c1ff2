package grpcstore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bitfsorg/filevault-go/storage"
)

// mapErr converts a storage error into a gRPC status.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, storage.ErrInvalidCID), errors.Is(err, storage.ErrEmptyContent):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, storage.ErrCIDMismatch):
		return status.Error(codes.DataLoss, err.Error())
	case errors.Is(err, storage.ErrTooLarge):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, storage.ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// mapRPC converts a gRPC status back into a storage error.
func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}

	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", storage.ErrNotFound, st.Message())
	case codes.InvalidArgument:
		if st.Message() == storage.ErrEmptyContent.Error() {
			return storage.ErrEmptyContent
		}
		return fmt.Errorf("%w: %s", storage.ErrInvalidCID, st.Message())
	case codes.DataLoss:
		return fmt.Errorf("%w: %s", storage.ErrCIDMismatch, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, context.DeadlineExceeded)
	case codes.Canceled:
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, context.Canceled)
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", storage.ErrUnavailable, st.Message())
	case codes.ResourceExhausted:
		// Message size limits; resending the same blob cannot succeed.
		return fmt.Errorf("%w: %s", storage.ErrTooLarge, st.Message())
	default:
		return fmt.Errorf("%w: %s: %s", storage.ErrIOFailure, st.Code(), st.Message())
	}
}

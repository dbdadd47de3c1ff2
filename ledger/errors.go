package ledger

import "errors"

var (
	// ErrWriteFailed indicates an append, remove or clear was rejected or
	// could not be made durable.
	ErrWriteFailed = errors.New("ledger: write failed")

	// ErrReadFailed indicates the ledger could not be read. It is distinct
	// from an empty listing.
	ErrReadFailed = errors.New("ledger: read failed")

	// ErrIndexOutOfRange indicates the index is not a current position in
	// the owner's record list.
	ErrIndexOutOfRange = errors.New("ledger: index out of range")

	// ErrEmptyOwner indicates an empty owner address.
	ErrEmptyOwner = errors.New("ledger: owner is empty")

	// ErrInvalidPayload indicates a malformed operation payload.
	ErrInvalidPayload = errors.New("ledger: invalid payload")

	// ErrStaleIndex indicates a removal named a record that is no longer at
	// the given position.
	ErrStaleIndex = errors.New("ledger: record moved before removal")
)

package storage

import "errors"

var (
	// ErrNotFound indicates no blob exists for the given CID.
	ErrNotFound = errors.New("storage: content not found")

	// ErrInvalidCID indicates the CID string is malformed or undefined.
	ErrInvalidCID = errors.New("storage: invalid CID")

	// ErrCIDMismatch indicates the bytes do not hash to the expected CID.
	ErrCIDMismatch = errors.New("storage: CID mismatch")

	// ErrIOFailure indicates a file read/write error.
	ErrIOFailure = errors.New("storage: I/O failure")

	// ErrEmptyContent indicates an attempt to store empty content.
	ErrEmptyContent = errors.New("storage: content is empty")

	// ErrInvalidBaseDir indicates the base directory path is invalid.
	ErrInvalidBaseDir = errors.New("storage: invalid base directory")

	// ErrTooLarge indicates the store refused a blob or reply for its size.
	ErrTooLarge = errors.New("storage: blob exceeds size limit")

	// ErrUnavailable indicates the remote store could not be reached.
	ErrUnavailable = errors.New("storage: store unavailable")
)

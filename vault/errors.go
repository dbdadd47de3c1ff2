package vault

import (
	"errors"
	"fmt"

	"github.com/bitfsorg/filevault-go/ledger"
)

var (
	// ErrInvalidInput indicates a caller error. No external call was made.
	ErrInvalidInput = errors.New("vault: invalid input")

	// ErrAbortEncryption indicates encryption failed before any upload.
	ErrAbortEncryption = errors.New("vault: encryption aborted")

	// ErrUploadFailed indicates the blob store rejected or could not take the
	// ciphertext. No ledger write was attempted.
	ErrUploadFailed = errors.New("vault: upload failed")

	// ErrRecordingFailed indicates the ledger append failed after a
	// successful upload. See RecordingError.
	ErrRecordingFailed = errors.New("vault: recording failed")

	// ErrNotFound indicates an absent record or an absent blob.
	ErrNotFound = errors.New("vault: not found")

	// ErrDownloadFailed indicates the blob store could not serve a blob for a
	// reason other than absence.
	ErrDownloadFailed = errors.New("vault: download failed")

	// ErrTimeout indicates an external call exceeded the per-call timeout.
	// It is joined with the stage error.
	ErrTimeout = errors.New("vault: external call timed out")

	// ErrIntegrity indicates decryption produced invalid output.
	ErrIntegrity = errors.New("vault: integrity failure")

	// ErrDecryptFailed indicates decryption could not be attempted.
	ErrDecryptFailed = errors.New("vault: decryption failed")

	// ErrLocked indicates another process holds the data directory.
	ErrLocked = errors.New("vault: data directory is in use")

	// ErrUnknownIntent indicates an intent id that is not pending.
	ErrUnknownIntent = errors.New("vault: unknown intent")
)

// Ledger failures are surfaced verbatim.
var (
	ErrWriteFailed     = ledger.ErrWriteFailed
	ErrReadFailed      = ledger.ErrReadFailed
	ErrIndexOutOfRange = ledger.ErrIndexOutOfRange
)

// RecordingError reports a ledger append that failed after the blob was
// stored. The blob is left in place and CID identifies it for reconciliation.
type RecordingError struct {
	CID string
	Err error
}

func (e *RecordingError) Error() string {
	return fmt.Sprintf("vault: recording failed, blob %s orphaned: %v", e.CID, e.Err)
}

// Unwrap exposes both ErrRecordingFailed and the ledger cause.
func (e *RecordingError) Unwrap() []error {
	return []error{ErrRecordingFailed, e.Err}
}

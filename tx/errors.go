package tx

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("tx: required parameter is nil")

	// ErrInsufficientFunds indicates the funding UTXOs cannot cover the fee.
	ErrInsufficientFunds = errors.New("tx: insufficient funds")

	// ErrInvalidPayload indicates the payload is empty or exceeds limits.
	ErrInvalidPayload = errors.New("tx: invalid payload")

	// ErrSigningFailed indicates transaction signing failed.
	ErrSigningFailed = errors.New("tx: signing failed")

	// ErrScriptBuild indicates script construction failed.
	ErrScriptBuild = errors.New("tx: script build failed")

	// ErrInvalidOPReturn indicates the OP_RETURN script is malformed.
	ErrInvalidOPReturn = errors.New("tx: invalid OP_RETURN format")

	// ErrNotRecordTx indicates the output does not carry a ledger record.
	ErrNotRecordTx = errors.New("tx: not a ledger record output")
)

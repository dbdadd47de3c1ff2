package network

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionFailed indicates the client could not connect to the node.
	ErrConnectionFailed = errors.New("network: connection failed")

	// ErrAuthFailed indicates authentication (e.g., RPC credentials) was rejected.
	ErrAuthFailed = errors.New("network: authentication failed")

	// ErrTxNotFound indicates the requested transaction does not exist.
	ErrTxNotFound = errors.New("network: transaction not found")

	// ErrBroadcastRejected indicates the node rejected the broadcast transaction.
	ErrBroadcastRejected = errors.New("network: broadcast rejected")

	// ErrInvalidResponse indicates the node returned a malformed or unexpected response.
	ErrInvalidResponse = errors.New("network: invalid response")
)

// rpcCodeTxNotFound is RPC_INVALID_ADDRESS_OR_KEY, which nodes return for
// unknown txids.
const rpcCodeTxNotFound = -5

// RPCError is an error reported by the node in the JSON-RPC response body.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("network: rpc error %d: %s", e.Code, e.Message)
}

// Is maps node error codes onto the package sentinels.
func (e *RPCError) Is(target error) bool {
	return target == ErrTxNotFound && e.Code == rpcCodeTxNotFound
}

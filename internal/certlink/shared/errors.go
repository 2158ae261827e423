package shared

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	ErrProviderUnavailable = errors.New("wallet provider unavailable")
	ErrProviderRejected    = errors.New("wallet request rejected by user")
	ErrChainSwitchDenied   = errors.New("switch to target chain denied")
	ErrNotConnected        = errors.New("wallet session not connected")
	ErrAlreadyConnecting   = errors.New("wallet connection already in progress")
	ErrTransactionRejected = errors.New("transaction rejected by user")
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrDelegatedMintFailed = errors.New("delegated mint failed")

	// ErrBackendSyncFailed is advisory: it is attached to an otherwise
	// successful result and never invalidates chain state.
	ErrBackendSyncFailed = errors.New("backend sync failed")

	ErrSessionReset       = errors.New("wallet session reset while connecting")
	ErrInvalidMintRequest = errors.New("invalid mint request")
	ErrMintEventMissing   = errors.New("CertificateMinted event not found in receipt")
)

// RPCError is a JSON-RPC error reported by the wallet provider or the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Mark tags err with sentinel. Both stay on the unwrap chain, so errors.Is
// and errors.As find them through cockroachdb/errors or the standard library.
func Mark(err, sentinel error) error {
	if err == nil || errors.Is(err, sentinel) {
		return err
	}
	return &markedError{cause: err, sentinel: sentinel}
}

type markedError struct {
	cause    error
	sentinel error
}

func (e *markedError) Error() string   { return e.sentinel.Error() + ": " + e.cause.Error() }
func (e *markedError) Unwrap() []error { return []error{e.sentinel, e.cause} }

// RPCErrorCode returns the code of the first RPCError in err's chain.
func RPCErrorCode(err error) (int, bool) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code, true
	}
	return 0, false
}

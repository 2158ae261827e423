package shared

import (
	"github.com/cockroachdb/errors"
)

// UserMessage turns a terminal error into the single notification shown to
// the user. Raw provider text only leaks through for unclassified RPC errors.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrProviderUnavailable):
		return "No wallet provider found. Please install or start your wallet."
	case errors.Is(err, ErrProviderRejected):
		return "Wallet connection was cancelled."
	case errors.Is(err, ErrChainSwitchDenied):
		return "Please switch your wallet to the Camp Network to continue."
	case errors.Is(err, ErrAlreadyConnecting):
		return "A wallet connection is already in progress."
	case errors.Is(err, ErrSessionReset):
		return "Wallet disconnected while connecting. Please try again."
	case errors.Is(err, ErrNotConnected):
		return "Please connect your wallet first."
	case errors.Is(err, ErrInvalidMintRequest):
		return "Certificate data is incomplete or invalid."
	case errors.Is(err, ErrTransactionRejected):
		return "Transaction was cancelled in the wallet."
	case errors.Is(err, ErrTransactionReverted):
		return "The certificate transaction failed on chain."
	case errors.Is(err, ErrMintEventMissing):
		return "The transaction was included but no certificate was minted."
	case errors.Is(err, ErrDelegatedMintFailed):
		return "Failed to mint certificate through the minting service."
	case errors.Is(err, ErrBackendSyncFailed):
		return "Saved on chain, but your profile could not be updated yet."
	}

	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return "Wallet request failed: " + rpcErr.Message
	}
	return "Something went wrong: " + err.Error()
}

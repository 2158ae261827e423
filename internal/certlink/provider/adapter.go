package provider

import (
	"context"
	"math/big"
	"net"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/quantumauth-io/certlink/internal/certlink/chains"
	"github.com/quantumauth-io/certlink/internal/certlink/constants"
	"github.com/quantumauth-io/certlink/internal/certlink/shared"
)

// TransactionArgs is the eth_sendTransaction parameter object.
type TransactionArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to,omitempty"`
	Gas   *hexutil.Uint64 `json:"gas,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
}

// Adapter normalizes a wallet provider into typed calls and the shared error
// taxonomy. A nil provider is a valid "no wallet installed" adapter.
type Adapter struct {
	provider Provider
}

func NewAdapter(p Provider) *Adapter {
	return &Adapter{provider: p}
}

func (a *Adapter) IsAvailable() bool {
	return a != nil && a.provider != nil
}

// Call issues one provider request. Provider errors come back as
// *shared.RPCError so callers can branch on the code.
func (a *Adapter) Call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	if !a.IsAvailable() {
		return shared.ErrProviderUnavailable
	}
	if err := a.provider.Request(ctx, result, method, params...); err != nil {
		return toRPCError(method, err)
	}
	return nil
}

// RequestAccounts prompts the user for account access (eth_requestAccounts).
func (a *Adapter) RequestAccounts(ctx context.Context) ([]shared.WalletAccount, error) {
	var raw []string
	if err := a.Call(ctx, &raw, "eth_requestAccounts"); err != nil {
		if code, ok := shared.RPCErrorCode(err); ok && code == constants.ProviderCodeUserRejected {
			return nil, shared.Mark(err, shared.ErrProviderRejected)
		}
		return nil, err
	}
	return parseAccounts(raw)
}

// SelectedAccounts returns accounts the wallet already exposes without
// prompting (eth_accounts).
func (a *Adapter) SelectedAccounts(ctx context.Context) ([]shared.WalletAccount, error) {
	var raw []string
	if err := a.Call(ctx, &raw, "eth_accounts"); err != nil {
		return nil, err
	}
	return parseAccounts(raw)
}

func (a *Adapter) CurrentChainID(ctx context.Context) (uint64, error) {
	var raw string
	if err := a.Call(ctx, &raw, "eth_chainId"); err != nil {
		return 0, err
	}
	return chains.ParseChainIDHex(raw)
}

func (a *Adapter) SwitchChain(ctx context.Context, chainIDHex string) error {
	return a.Call(ctx, nil, "wallet_switchEthereumChain", chains.SwitchChainParams{ChainID: chainIDHex})
}

func (a *Adapter) AddChain(ctx context.Context, params chains.AddChainParams) error {
	return a.Call(ctx, nil, "wallet_addEthereumChain", params)
}

// SendTransaction asks the wallet to sign and broadcast tx. The wallet
// owns nonce, fee and signing.
func (a *Adapter) SendTransaction(ctx context.Context, tx TransactionArgs) (common.Hash, error) {
	var hash common.Hash
	if err := a.Call(ctx, &hash, "eth_sendTransaction", tx); err != nil {
		if code, ok := shared.RPCErrorCode(err); ok && code == constants.ProviderCodeUserRejected {
			return common.Hash{}, shared.Mark(err, shared.ErrTransactionRejected)
		}
		return common.Hash{}, err
	}
	return hash, nil
}

// CallContract runs eth_call through the wallet, so the adapter can back a
// contract caller while a session is connected.
func (a *Adapter) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	arg := map[string]interface{}{
		"data": hexutil.Bytes(msg.Data),
	}
	if msg.To != nil {
		arg["to"] = msg.To
	}
	if msg.From != (common.Address{}) {
		arg["from"] = msg.From
	}

	block := "latest"
	if blockNumber != nil {
		block = hexutil.EncodeBig(blockNumber)
	}

	var out hexutil.Bytes
	if err := a.Call(ctx, &out, "eth_call", arg, block); err != nil {
		return nil, err
	}
	return out, nil
}

// Subscribe forwards provider events of one kind into sink.
func (a *Adapter) Subscribe(ctx context.Context, event Event, sink chan<- Notification) (Subscription, error) {
	if !a.IsAvailable() {
		return nil, shared.ErrProviderUnavailable
	}
	return a.provider.Subscribe(ctx, event, sink)
}

func (a *Adapter) Close() {
	if a.IsAvailable() {
		a.provider.Close()
	}
}

func parseAccounts(raw []string) ([]shared.WalletAccount, error) {
	out := make([]shared.WalletAccount, 0, len(raw))
	for _, r := range raw {
		acct, err := shared.NewWalletAccount(r)
		if err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, nil
}

func toRPCError(method string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var already *shared.RPCError
	if errors.As(err, &already) {
		return err
	}

	var coded rpc.Error
	if errors.As(err, &coded) {
		return errors.WithStack(&shared.RPCError{Code: coded.ErrorCode(), Message: coded.Error()})
	}

	var httpErr rpc.HTTPError
	var netErr net.Error
	if errors.As(err, &httpErr) || errors.As(err, &netErr) {
		return shared.Mark(errors.Wrapf(err, "%s", method), shared.ErrProviderUnavailable)
	}
	return errors.Wrapf(err, "%s", method)
}

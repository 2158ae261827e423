package chains

import (
	"context"
	"math/big"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

// Client is the read-only surface the connector needs from a chain node.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type DialFunc func(ctx context.Context, rpcURL string) (Client, error)

// ReadOnlyService owns the account-less connection to the target chain. The
// connection is dialed on first use and reused; no chain data is cached.
type ReadOnlyService struct {
	chain ChainDescriptor
	dial  DialFunc

	mu     sync.Mutex
	client Client
}

func NewReadOnlyService(chain ChainDescriptor, dial DialFunc) (*ReadOnlyService, error) {
	if err := chain.Validate(); err != nil {
		return nil, err
	}
	if dial == nil {
		dial = DialEthClient
	}
	return &ReadOnlyService{chain: chain, dial: dial}, nil
}

func (s *ReadOnlyService) Chain() ChainDescriptor { return s.chain }

// Client returns the cached read-only client, dialing it if needed.
func (s *ReadOnlyService) Client(ctx context.Context) (Client, error) {
	s.mu.Lock()
	if existing := s.client; existing != nil {
		s.mu.Unlock()
		return existing, nil
	}
	s.mu.Unlock()

	// Dial outside the lock (avoid blocking concurrent readers)
	dialed, err := s.dial(ctx, s.chain.RPCURL)
	if err != nil {
		return nil, errors.Wrapf(err, "dial read-only rpc for chain %d", s.chain.ChainID)
	}

	remote, err := dialed.ChainID(ctx)
	if err != nil {
		safeClose(dialed)
		return nil, errors.Wrap(err, "read-only rpc chain id")
	}
	if remote == nil || !remote.IsUint64() || remote.Uint64() != s.chain.ChainID {
		safeClose(dialed)
		return nil, errors.Newf("read-only rpc serves chain %v, want %d", remote, s.chain.ChainID)
	}

	s.mu.Lock()
	if existing := s.client; existing != nil {
		s.mu.Unlock()
		// We raced; close what we just dialed and return existing
		safeClose(dialed)
		return existing, nil
	}
	s.client = dialed
	s.mu.Unlock()

	log.Info("read-only chain client ready", "chain_id", s.chain.ChainID, "rpc", s.chain.RPCURL)
	return dialed, nil
}

// Close closes the cached client (call on shutdown).
func (s *ReadOnlyService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	safeClose(s.client)
	s.client = nil
}

// DialEthClient is the default DialFunc.
func DialEthClient(ctx context.Context, rpcURL string) (Client, error) {
	eclient, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to blockchain at %s", rpcURL)
	}
	return eclient, nil
}

func safeClose(c Client) {
	if c == nil {
		return
	}
	if closer, ok := c.(interface{ Close() }); ok {
		closer.Close()
	}
}

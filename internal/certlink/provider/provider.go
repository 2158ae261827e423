package provider

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/certlink/internal/certlink/constants"
	"github.com/quantumauth-io/certlink/internal/certlink/shared"
)

type Event string

const (
	EventAccountsChanged Event = "accountsChanged"
	EventChainChanged    Event = "chainChanged"
)

// Notification is one provider event. Accounts is set for accountsChanged
// (empty means the wallet revoked access), ChainIDHex for chainChanged.
type Notification struct {
	Event      Event
	Accounts   []string
	ChainIDHex string
}

type Subscription interface {
	Unsubscribe()
	Err() <-chan error
}

// Provider is an EIP-1193 style wallet endpoint.
type Provider interface {
	Request(ctx context.Context, result interface{}, method string, params ...interface{}) error
	Subscribe(ctx context.Context, event Event, sink chan<- Notification) (Subscription, error)
	Close()
}

// RPCProvider talks to a wallet bridge over JSON-RPC (HTTP, WebSocket or IPC).
type RPCProvider struct {
	client       *rpc.Client
	pollInterval time.Duration
}

func Dial(ctx context.Context, rawURL string, pollInterval time.Duration) (*RPCProvider, error) {
	u := strings.TrimSpace(rawURL)
	if u == "" {
		return nil, errors.Wrap(shared.ErrProviderUnavailable, "no wallet provider url configured")
	}
	client, err := rpc.DialContext(ctx, u)
	if err != nil {
		return nil, shared.Mark(errors.Wrapf(err, "dial wallet provider at %s", u), shared.ErrProviderUnavailable)
	}
	return NewRPCProvider(client, pollInterval), nil
}

func NewRPCProvider(client *rpc.Client, pollInterval time.Duration) *RPCProvider {
	if pollInterval <= 0 {
		pollInterval = constants.DefaultProviderPollInterval
	}
	return &RPCProvider{client: client, pollInterval: pollInterval}
}

func (p *RPCProvider) Request(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	return p.client.CallContext(ctx, result, method, params...)
}

// Subscribe uses eth_subscribe when the transport carries notifications and
// falls back to polling eth_accounts / eth_chainId otherwise.
func (p *RPCProvider) Subscribe(ctx context.Context, event Event, sink chan<- Notification) (Subscription, error) {
	switch event {
	case EventAccountsChanged, EventChainChanged:
	default:
		return nil, errors.Newf("unsupported provider event %q", event)
	}

	sub, err := p.subscribePush(ctx, event, sink)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, rpc.ErrNotificationsUnsupported) {
		log.Warn("provider push subscription failed, polling instead", "event", string(event), "error", err)
	}
	return Poll(ctx, p, event, p.pollInterval, sink)
}

func (p *RPCProvider) subscribePush(ctx context.Context, event Event, sink chan<- Notification) (Subscription, error) {
	switch event {
	case EventAccountsChanged:
		ch := make(chan []string)
		sub, err := p.client.Subscribe(ctx, "eth", ch, string(event))
		if err != nil {
			return nil, err
		}
		return forward(ctx, sub, ch, func(accounts []string) Notification {
			return Notification{Event: event, Accounts: accounts}
		}, sink), nil

	default:
		ch := make(chan string)
		sub, err := p.client.Subscribe(ctx, "eth", ch, string(event))
		if err != nil {
			return nil, err
		}
		return forward(ctx, sub, ch, func(chainID string) Notification {
			return Notification{Event: event, ChainIDHex: chainID}
		}, sink), nil
	}
}

func (p *RPCProvider) Close() { p.client.Close() }

// pushSubscription adapts a typed rpc subscription to Notifications.
type pushSubscription struct {
	inner  *rpc.ClientSubscription
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func forward[T any](ctx context.Context, inner *rpc.ClientSubscription, ch <-chan T,
	toNotification func(T) Notification, sink chan<- Notification) *pushSubscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &pushSubscription{inner: inner, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		defer inner.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case <-inner.Err():
				return
			case v := <-ch:
				select {
				case sink <- toNotification(v):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return s
}

func (s *pushSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

func (s *pushSubscription) Err() <-chan error { return s.inner.Err() }

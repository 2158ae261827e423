package provider

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/quantumauth-io/quantum-go-utils/retry"
)

// Requester is the part of a Provider the polling watcher needs.
type Requester interface {
	Request(ctx context.Context, result interface{}, method string, params ...interface{}) error
}

type pollSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	errc   chan error
	once   sync.Once
}

func (s *pollSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

func (s *pollSubscription) Err() <-chan error { return s.errc }

// Poll watches event by re-reading the provider state every interval and
// emits a Notification only when the value changes. The first read sets the
// baseline and fails the subscription if the provider cannot answer.
func Poll(ctx context.Context, r Requester, event Event, interval time.Duration, sink chan<- Notification) (Subscription, error) {
	read, err := pollReader(r, event)
	if err != nil {
		return nil, err
	}
	last, err := read(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "initial %s poll", event)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &pollSubscription{cancel: cancel, done: make(chan struct{}), errc: make(chan error, 1)}
	go s.loop(ctx, read, last, interval, sink, event)
	return s, nil
}

func (s *pollSubscription) loop(ctx context.Context, read func(context.Context) (Notification, error),
	last Notification, interval time.Duration, sink chan<- Notification, event Event) {
	defer close(s.done)

	cfg := retry.DefaultConfig()
	cfg.MaxDelayBeforeRetrying = interval
	cfg.InitialDelayBeforeRetrying = interval / 10

	timer := time.NewTimer(interval)
	defer timer.Stop()
	numPolls := 0
	for {
		timer.Reset(interval)
		select {
		case <-ctx.Done():
			log.Info("provider watcher exiting", "event", string(event), "numPolls", numPolls)
			return
		case <-timer.C:
			var current Notification
			_, err := retry.Retry(ctx, cfg,
				func(ctx context.Context) ([]interface{}, error) {
					numPolls++
					n, err := read(ctx)
					if err != nil {
						return nil, err
					}
					current = n
					return nil, nil
				},
				nil, // always retry
				"poll wallet provider "+string(event))
			if err != nil {
				if ctx.Err() == nil {
					log.Warn("provider poll failed", "event", string(event), "error", err)
				}
				continue
			}
			if sameNotification(last, current) {
				continue
			}
			last = current
			select {
			case sink <- current:
			case <-ctx.Done():
			}
		}
	}
}

func pollReader(r Requester, event Event) (func(context.Context) (Notification, error), error) {
	switch event {
	case EventAccountsChanged:
		return func(ctx context.Context) (Notification, error) {
			var accounts []string
			if err := r.Request(ctx, &accounts, "eth_accounts"); err != nil {
				return Notification{}, err
			}
			if accounts == nil {
				accounts = []string{}
			}
			return Notification{Event: event, Accounts: accounts}, nil
		}, nil
	case EventChainChanged:
		return func(ctx context.Context) (Notification, error) {
			var chainID string
			if err := r.Request(ctx, &chainID, "eth_chainId"); err != nil {
				return Notification{}, err
			}
			return Notification{Event: event, ChainIDHex: chainID}, nil
		}, nil
	}
	return nil, errors.Newf("unsupported provider event %q", event)
}

func sameNotification(a, b Notification) bool {
	if a.Event != b.Event || !strings.EqualFold(a.ChainIDHex, b.ChainIDHex) {
		return false
	}
	return slices.EqualFunc(a.Accounts, b.Accounts, strings.EqualFold)
}

package session

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/certlink/internal/certlink/chains"
	"github.com/quantumauth-io/certlink/internal/certlink/provider"
	"github.com/quantumauth-io/certlink/internal/certlink/shared"
)

// Run subscribes to the wallet's events and handles them one at a time, in
// arrival order, until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	if !s.wallet.IsAvailable() {
		log.Warn("no wallet provider, session events disabled")
		<-ctx.Done()
		return nil
	}

	var subs []provider.Subscription
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()
	for _, ev := range []provider.Event{provider.EventAccountsChanged, provider.EventChainChanged} {
		sub, err := s.wallet.Subscribe(ctx, ev, s.events)
		if err != nil {
			return errors.Wrapf(err, "subscribe %s", ev)
		}
		subs = append(subs, sub)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-s.events:
			s.Handle(ctx, n)
		}
	}
}

// Enqueue hands an event to the Run loop.
func (s *Session) Enqueue(ctx context.Context, n provider.Notification) error {
	select {
	case s.events <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handle applies one provider event. Handlers are idempotent: replaying an
// event leaves the session where the first delivery left it.
func (s *Session) Handle(ctx context.Context, n provider.Notification) {
	switch n.Event {
	case provider.EventAccountsChanged:
		s.onAccountsChanged(ctx, n.Accounts)
	case provider.EventChainChanged:
		s.onChainChanged(ctx, n.ChainIDHex)
	default:
		log.Warn("ignoring unknown provider event", "event", string(n.Event))
	}
}

func (s *Session) onAccountsChanged(ctx context.Context, raw []string) {
	if len(raw) == 0 {
		s.mu.Lock()
		s.resetLocked(nil)
		s.mu.Unlock()
		return
	}

	acct, err := shared.NewWalletAccount(raw[0])
	if err != nil {
		log.Warn("ignoring malformed account from provider", "account", raw[0], "error", err)
		return
	}

	s.mu.Lock()
	if s.state.connecting() {
		// the running cycle picks it up before it reports Connected
		s.pending = acct
		s.mu.Unlock()
		return
	}
	if s.state != Connected || s.account == acct {
		s.mu.Unlock()
		return
	}
	gen := s.generation
	prev := s.account
	s.account = acct
	s.backendSynced = false
	s.mu.Unlock()

	log.Info("wallet account switched", "from", prev.Short(), "to", acct.Short())
	_ = s.syncAccount(ctx, gen, acct)
}

func (s *Session) onChainChanged(ctx context.Context, chainHex string) {
	chainID, err := chains.ParseChainIDHex(chainHex)
	if err != nil {
		log.Warn("ignoring malformed chain id from provider", "chain_id", chainHex, "error", err)
		return
	}
	target := s.guard.Target().ChainID

	s.mu.Lock()
	if s.state != Connected {
		s.mu.Unlock()
		return
	}
	if chainID == target {
		s.chainID = chainID
		s.mu.Unlock()
		return
	}

	if s.policy == PolicyReset {
		log.Info("wallet left target chain, dropping session", "chain_id", chainID)
		s.resetLocked(nil)
		s.mu.Unlock()
		return
	}

	gen := s.generation
	s.state = ChainMismatch
	s.chainID = chainID
	s.mu.Unlock()

	log.Info("wallet left target chain, renegotiating", "chain_id", chainID)
	if err := s.advance(gen, Switching, nil); err != nil {
		return
	}
	if _, err := s.guard.EnsureTargetChain(ctx, s.wallet); err != nil {
		_ = s.fail(gen, Error, err)
		return
	}
	var (
		acct    shared.WalletAccount
		changed bool
	)
	if err := s.advance(gen, Connected, func() {
		s.chainID = target
		changed = s.adoptPendingLocked()
		acct = s.account
	}); err != nil {
		return
	}
	if changed {
		_ = s.syncAccount(ctx, gen, acct)
	}
}

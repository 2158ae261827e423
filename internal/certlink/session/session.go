package session

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/certlink/internal/certlink/chains"
	"github.com/quantumauth-io/certlink/internal/certlink/network"
	"github.com/quantumauth-io/certlink/internal/certlink/provider"
	"github.com/quantumauth-io/certlink/internal/certlink/shared"
)

// Wallet is the provider surface the session drives. *provider.Adapter
// implements it.
type Wallet interface {
	IsAvailable() bool
	RequestAccounts(ctx context.Context) ([]shared.WalletAccount, error)
	SelectedAccounts(ctx context.Context) ([]shared.WalletAccount, error)
	Subscribe(ctx context.Context, event provider.Event, sink chan<- provider.Notification) (provider.Subscription, error)
	network.ChainSwitcher
}

// AccountSyncer mirrors the active account to the application backend.
type AccountSyncer interface {
	PersistAccount(ctx context.Context, account shared.WalletAccount) error
}

type Options struct {
	ChainChangePolicy ChainChangePolicy
	// EventBuffer is the capacity of the provider event queue.
	EventBuffer int
}

// ConnectResult is returned by a successful connect. Warning carries a
// backend sync failure; the session is connected regardless.
type ConnectResult struct {
	Account shared.WalletAccount
	Warning error
}

type Snapshot struct {
	State         State  `json:"state"`
	Reason        string `json:"reason,omitempty"`
	Account       string `json:"account,omitempty"`
	ChainID       uint64 `json:"chainId,omitempty"`
	BackendSynced bool   `json:"backendSynced"`
	Generation    uint64 `json:"generation"`
}

// Session is the single wallet session of the process. State changes happen
// under mu; each connect cycle bumps generation so work that finishes after a
// disconnect is discarded.
type Session struct {
	wallet Wallet
	guard  *network.Guard
	syncer AccountSyncer
	policy ChainChangePolicy
	events chan provider.Notification

	mu            sync.Mutex
	state         State
	reason        error
	account       shared.WalletAccount
	pending       shared.WalletAccount // accountsChanged seen while a cycle runs
	chainID       uint64
	backendSynced bool
	generation    uint64
}

func New(wallet Wallet, guard *network.Guard, syncer AccountSyncer, opts Options) *Session {
	policy := opts.ChainChangePolicy
	if policy == "" {
		policy = PolicyRenegotiate
	}
	buf := opts.EventBuffer
	if buf <= 0 {
		buf = 16
	}
	return &Session{
		wallet: wallet,
		guard:  guard,
		syncer: syncer,
		policy: policy,
		events: make(chan provider.Notification, buf),
		state:  Disconnected,
	}
}

func (s *Session) Target() chains.ChainDescriptor { return s.guard.Target() }

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:         s.state,
		ChainID:       s.chainID,
		BackendSynced: s.backendSynced,
		Generation:    s.generation,
	}
	if s.reason != nil {
		snap.Reason = shared.UserMessage(s.reason)
	}
	if !s.account.IsZero() {
		snap.Account = s.account.String()
	}
	return snap
}

// ActiveAccount returns the account of a connected session on the target
// chain, or ErrNotConnected.
func (s *Session) ActiveAccount() (shared.WalletAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Connected || s.chainID != s.guard.Target().ChainID || s.account.IsZero() {
		return shared.WalletAccount{}, shared.ErrNotConnected
	}
	return s.account, nil
}

func (s *Session) Connected() bool {
	_, err := s.ActiveAccount()
	return err == nil
}

// Connect runs one connect cycle: account request, chain negotiation, then
// the backend mirror. Only one cycle may run at a time.
func (s *Session) Connect(ctx context.Context) (ConnectResult, error) {
	s.mu.Lock()
	switch {
	case s.state == Connected:
		acct := s.account
		s.mu.Unlock()
		return ConnectResult{Account: acct}, nil
	case s.state.connecting():
		s.mu.Unlock()
		return ConnectResult{}, shared.ErrAlreadyConnecting
	}
	if !s.wallet.IsAvailable() {
		s.mu.Unlock()
		return ConnectResult{}, shared.ErrProviderUnavailable
	}
	s.generation++
	gen := s.generation
	s.state = Connecting
	s.reason = nil
	s.account = shared.WalletAccount{}
	s.pending = shared.WalletAccount{}
	s.chainID = 0
	s.backendSynced = false
	s.mu.Unlock()

	log.Info("connecting wallet", "generation", gen)

	accounts, err := s.wallet.RequestAccounts(ctx)
	if err == nil && len(accounts) == 0 {
		err = errors.Wrap(shared.ErrProviderRejected, "wallet returned no accounts")
	}
	if err != nil {
		if errors.Is(err, shared.ErrProviderRejected) {
			return ConnectResult{}, s.fail(gen, Disconnected, err)
		}
		return ConnectResult{}, s.fail(gen, Error, err)
	}
	if len(accounts) > 1 {
		log.Info("wallet exposed several accounts, using the first", "count", len(accounts))
	}
	acct := accounts[0]

	if err := s.advance(gen, Connecting, func() { s.account = acct }); err != nil {
		return ConnectResult{}, err
	}

	acct, err = s.negotiateChain(ctx, gen)
	if err != nil {
		return ConnectResult{}, err
	}

	log.Info("wallet connected", "account", acct.Short(), "chain_id", s.guard.Target().ChainID)
	return ConnectResult{Account: acct, Warning: s.syncAccount(ctx, gen, acct)}, nil
}

// Restore reconnects when the wallet still exposes a previously approved
// account. It reports false when there is nothing to restore.
func (s *Session) Restore(ctx context.Context) (ConnectResult, bool, error) {
	if !s.wallet.IsAvailable() {
		return ConnectResult{}, false, nil
	}
	accounts, err := s.wallet.SelectedAccounts(ctx)
	if err != nil {
		return ConnectResult{}, false, err
	}
	if len(accounts) == 0 {
		return ConnectResult{}, false, nil
	}
	res, err := s.Connect(ctx)
	if err != nil {
		return ConnectResult{}, false, err
	}
	return res, true, nil
}

// Disconnect clears the account from any state. An in-flight connect cycle
// is invalidated and will return ErrSessionReset.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked(nil)
}

func (s *Session) resetLocked(reason error) {
	if s.state == Disconnected {
		return
	}
	prev := s.account
	s.generation++
	s.state = Disconnected
	s.reason = reason
	s.account = shared.WalletAccount{}
	s.pending = shared.WalletAccount{}
	s.chainID = 0
	s.backendSynced = false
	if !prev.IsZero() {
		log.Info("wallet disconnected", "account", prev.Short())
	}
}

// negotiateChain moves a cycle through ChainMismatch and Switching when the
// wallet is on another chain and ends in Connected or Error. It returns the
// account the session connected with.
func (s *Session) negotiateChain(ctx context.Context, gen uint64) (shared.WalletAccount, error) {
	target := s.guard.Target().ChainID

	current, err := s.wallet.CurrentChainID(ctx)
	if err != nil {
		return shared.WalletAccount{}, s.fail(gen, Error, errors.Wrap(err, "read wallet chain"))
	}
	if current != target {
		if err := s.advance(gen, ChainMismatch, nil); err != nil {
			return shared.WalletAccount{}, err
		}
		if err := s.advance(gen, Switching, nil); err != nil {
			return shared.WalletAccount{}, err
		}
		outcome, err := s.guard.EnsureTargetChain(ctx, s.wallet)
		if err != nil {
			return shared.WalletAccount{}, s.fail(gen, Error, err)
		}
		log.Info("wallet chain negotiated", "outcome", outcome.String())
	}

	var acct shared.WalletAccount
	err = s.advance(gen, Connected, func() {
		s.chainID = target
		s.adoptPendingLocked()
		acct = s.account
	})
	return acct, err
}

// adoptPendingLocked applies an account switch reported while a cycle was in
// flight. It reports whether the account changed.
func (s *Session) adoptPendingLocked() bool {
	if s.pending.IsZero() {
		return false
	}
	changed := s.pending != s.account
	if changed {
		log.Info("wallet account switched while connecting", "from", s.account.Short(), "to", s.pending.Short())
		s.backendSynced = false
	}
	s.account = s.pending
	s.pending = shared.WalletAccount{}
	return changed
}

func (s *Session) syncAccount(ctx context.Context, gen uint64, acct shared.WalletAccount) error {
	if s.syncer == nil {
		return nil
	}
	err := s.syncer.PersistAccount(ctx, acct)
	if err != nil {
		log.Warn("wallet connected but backend not updated", "account", acct.Short(), "error", err)
		err = shared.Mark(err, shared.ErrBackendSyncFailed)
	}

	s.mu.Lock()
	if s.generation == gen && s.account == acct {
		s.backendSynced = err == nil
	}
	s.mu.Unlock()
	return err
}

// advance moves the cycle gen to next, applying mutate under the lock. It
// fails with ErrSessionReset when the cycle was superseded.
func (s *Session) advance(gen uint64, next State, mutate func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return shared.ErrSessionReset
	}
	s.state = next
	if mutate != nil {
		mutate()
	}
	return nil
}

// fail ends cycle gen in state with err as the reason and returns err.
func (s *Session) fail(gen uint64, state State, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return shared.ErrSessionReset
	}
	s.state = state
	s.reason = err
	s.pending = shared.WalletAccount{}
	if state == Disconnected {
		s.account = shared.WalletAccount{}
		s.reason = nil
	}
	s.chainID = 0
	s.backendSynced = false
	log.Error("wallet connect failed", "state", state.String(), "error", err)
	return err
}

package network

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/certlink/internal/certlink/chains"
	"github.com/quantumauth-io/certlink/internal/certlink/constants"
	"github.com/quantumauth-io/certlink/internal/certlink/shared"
)

// ChainSwitcher is the provider surface the guard drives.
type ChainSwitcher interface {
	CurrentChainID(ctx context.Context) (uint64, error)
	SwitchChain(ctx context.Context, chainIDHex string) error
	AddChain(ctx context.Context, params chains.AddChainParams) error
}

// Outcome reports what the guard had to do.
type Outcome int

const (
	AlreadyOnTarget Outcome = iota
	Switched
	AddedAndSwitched
)

func (o Outcome) String() string {
	switch o {
	case AlreadyOnTarget:
		return "already_on_target"
	case Switched:
		return "switched"
	case AddedAndSwitched:
		return "added_and_switched"
	}
	return "unknown"
}

type Guard struct {
	target chains.ChainDescriptor
}

func NewGuard(target chains.ChainDescriptor) *Guard {
	return &Guard{target: target}
}

func (g *Guard) Target() chains.ChainDescriptor { return g.target }

// EnsureTargetChain moves the wallet onto the target chain. A wallet that
// does not know the chain (4902) gets it registered with the full descriptor
// and the switch is retried once. Other switch failures are returned as-is,
// except a user rejection which becomes ErrChainSwitchDenied.
func (g *Guard) EnsureTargetChain(ctx context.Context, w ChainSwitcher) (Outcome, error) {
	current, err := w.CurrentChainID(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "read wallet chain")
	}
	if current == g.target.ChainID {
		return AlreadyOnTarget, nil
	}

	want := g.target.ChainIDHex()
	log.Info("wallet on wrong chain, switching", "current", current, "target", g.target.ChainID)

	err = w.SwitchChain(ctx, want)
	if err == nil {
		return Switched, nil
	}

	code, _ := shared.RPCErrorCode(err)
	switch code {
	case constants.ProviderCodeUserRejected:
		return 0, shared.Mark(errors.Wrap(err, "switch chain"), shared.ErrChainSwitchDenied)
	case constants.ProviderCodeUnrecognizedChain:
	default:
		return 0, err
	}

	log.Info("wallet does not know target chain, registering", "chain", g.target.DisplayName)
	if addErr := w.AddChain(ctx, g.target.AddChainParams()); addErr != nil {
		return 0, shared.Mark(errors.Wrap(addErr, "add chain"), shared.ErrChainSwitchDenied)
	}

	if err := w.SwitchChain(ctx, want); err != nil {
		if code, ok := shared.RPCErrorCode(err); ok && code == constants.ProviderCodeUserRejected {
			return 0, shared.Mark(errors.Wrap(err, "switch chain after add"), shared.ErrChainSwitchDenied)
		}
		return 0, err
	}
	return AddedAndSwitched, nil
}

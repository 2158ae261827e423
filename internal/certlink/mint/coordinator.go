package mint

import (
	"context"

	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/certlink/internal/certlink/shared"
)

// ActiveSession is the part of the wallet session minting depends on.
type ActiveSession interface {
	ActiveAccount() (shared.WalletAccount, error)
}

// ResultRecorder mirrors a mint into the application backend.
type ResultRecorder interface {
	RecordMintResult(ctx context.Context, certificateID, txRef, tokenID string) error
}

// Strategy performs the chain side of a mint. Implementations never retry:
// a second submission could issue a second certificate.
type Strategy interface {
	Name() string
	Mint(ctx context.Context, from shared.WalletAccount, req shared.MintRequest) (shared.MintResult, error)
}

type Coordinator struct {
	session  ActiveSession
	strategy Strategy
	recorder ResultRecorder
}

func NewCoordinator(session ActiveSession, strategy Strategy, recorder ResultRecorder) *Coordinator {
	return &Coordinator{session: session, strategy: strategy, recorder: recorder}
}

func (c *Coordinator) StrategyName() string { return c.strategy.Name() }

// Mint issues one certificate. The backend is only told after the chain side
// succeeded, and a backend failure comes back as MintResult.Warning.
func (c *Coordinator) Mint(ctx context.Context, req shared.MintRequest) (shared.MintResult, error) {
	from, err := c.session.ActiveAccount()
	if err != nil {
		return shared.MintResult{}, err
	}
	if err := req.Validate(); err != nil {
		return shared.MintResult{}, err
	}
	if req.Recipient.IsZero() {
		req.Recipient = from
	}

	log.Info("minting certificate",
		"strategy", c.strategy.Name(),
		"certificate_id", req.CertificateID,
		"recipient", req.Recipient.Short())

	res, err := c.strategy.Mint(ctx, from, req)
	if err != nil {
		log.Error("certificate mint failed", "certificate_id", req.CertificateID, "error", err)
		return shared.MintResult{}, err
	}
	log.Info("certificate minted",
		"certificate_id", req.CertificateID,
		"reference", res.TransactionReference,
		"token_id", res.TokenID)

	if c.recorder != nil {
		// the certificate exists on chain; record it even if the caller left
		if err := c.recorder.RecordMintResult(context.WithoutCancel(ctx), req.CertificateID, res.TransactionReference, res.TokenID); err != nil {
			log.Warn("certificate minted but backend not updated", "certificate_id", req.CertificateID, "error", err)
			res.Warning = shared.Mark(err, shared.ErrBackendSyncFailed)
		}
	}
	return res, nil
}

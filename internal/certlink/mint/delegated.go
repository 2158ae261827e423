package mint

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/quantumauth-io/certlink/internal/certlink/delegated"
	"github.com/quantumauth-io/certlink/internal/certlink/shared"
)

// DelegatedStrategy hands the mint to a third-party minting session. There is
// no receipt; the id the session returns is trusted as-is.
type DelegatedStrategy struct {
	minter  delegated.Minter
	license delegated.License
}

func NewDelegatedStrategy(minter delegated.Minter, license delegated.License) *DelegatedStrategy {
	return &DelegatedStrategy{minter: minter, license: license}
}

func (d *DelegatedStrategy) Name() string { return "delegated" }

func (d *DelegatedStrategy) Mint(ctx context.Context, _ shared.WalletAccount, req shared.MintRequest) (shared.MintResult, error) {
	id, err := d.minter.Mint(ctx, d.license, certificateMetadata(req))
	if err != nil {
		return shared.MintResult{}, shared.Mark(errors.Wrap(err, "delegated mint"), shared.ErrDelegatedMintFailed)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return shared.MintResult{}, errors.Wrap(shared.ErrDelegatedMintFailed, "empty id from minting session")
	}
	return shared.MintResult{
		TransactionReference: id,
		ReferenceKind:        shared.ReferenceDelegatedID,
		TokenID:              id,
	}, nil
}

func certificateMetadata(req shared.MintRequest) delegated.Metadata {
	return delegated.Metadata{
		Name:        fmt.Sprintf("%s Certificate", req.CourseName),
		Description: fmt.Sprintf("Certificate %s awarded to %s for %s", req.CertificateID, req.StudentName, req.CourseName),
		Attributes: []delegated.Attribute{
			{TraitType: "Certificate ID", Value: req.CertificateID},
			{TraitType: "Course", Value: req.CourseName},
			{TraitType: "Student", Value: req.StudentName},
			{TraitType: "Score", Value: req.Score},
			{TraitType: "Recipient", Value: req.Recipient.String()},
		},
	}
}

package verifier

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/certlink/internal/certlink/chains"
	"github.com/quantumauth-io/certlink/internal/certlink/contracts/certificate"
	"github.com/quantumauth-io/certlink/internal/certlink/shared"
)

// Connectivity reports whether a wallet session can serve reads.
type Connectivity interface {
	Connected() bool
}

// ClientSource hands out the read-only node client.
type ClientSource interface {
	Client(ctx context.Context) (chains.Client, error)
}

// Verifier answers certificate queries straight from contract state. Nothing
// is cached; every call is a fresh read.
type Verifier struct {
	contract *certificate.Contract
	session  Connectivity
	wallet   ethereum.ContractCaller
	readOnly ClientSource
}

// New builds a verifier. session and wallet may be nil, in which case every
// read goes through readOnly.
func New(contract *certificate.Contract, session Connectivity, wallet ethereum.ContractCaller, readOnly ClientSource) *Verifier {
	return &Verifier{contract: contract, session: session, wallet: wallet, readOnly: readOnly}
}

func (v *Verifier) caller(ctx context.Context) (*certificate.Caller, error) {
	if v.wallet != nil && v.session != nil && v.session.Connected() {
		return certificate.NewCaller(v.contract, v.wallet), nil
	}
	if v.readOnly == nil {
		return nil, errors.Wrap(shared.ErrProviderUnavailable, "no read-only client configured")
	}
	client, err := v.readOnly.Client(ctx)
	if err != nil {
		return nil, err
	}
	return certificate.NewCaller(v.contract, client), nil
}

// Verify never fails: any read error is logged and reported as an invalid
// certificate.
func (v *Verifier) Verify(ctx context.Context, certificateID string) shared.CertificateRecord {
	rec, err := v.VerifyWithDiagnostics(ctx, certificateID)
	if err != nil {
		log.Warn("certificate verification failed", "certificate_id", certificateID, "error", err)
		return shared.CertificateRecord{IsValid: false, CertificateID: certificateID}
	}
	return rec
}

func (v *Verifier) VerifyWithDiagnostics(ctx context.Context, certificateID string) (shared.CertificateRecord, error) {
	certificateID = strings.TrimSpace(certificateID)
	if certificateID == "" {
		return shared.CertificateRecord{}, errors.New("certificate id is empty")
	}
	c, err := v.caller(ctx)
	if err != nil {
		return shared.CertificateRecord{}, err
	}
	res, err := c.VerifyCertificate(ctx, certificateID)
	if err != nil {
		return shared.CertificateRecord{}, err
	}
	if !res.IsValid {
		return shared.CertificateRecord{IsValid: false, CertificateID: certificateID}, nil
	}
	return shared.CertificateRecord{
		IsValid:       true,
		CertificateID: certificateID,
		CourseName:    res.CourseName,
		StudentName:   res.StudentName,
		Score:         uint64Of(res.Score),
		IssueDate:     unixTime(res.IssueDate),
	}, nil
}

// ListOwned returns every certificate held by account, in token order. An
// account with no tokens yields an empty, non-nil slice.
func (v *Verifier) ListOwned(ctx context.Context, account shared.WalletAccount) ([]shared.CertificateRecord, error) {
	c, err := v.caller(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := c.TokensOfOwner(ctx, account.Address)
	if err != nil {
		return nil, err
	}

	out := make([]shared.CertificateRecord, 0, len(ids))
	for _, id := range ids {
		cert, err := c.GetCertificate(ctx, id)
		if err != nil {
			return nil, errors.Wrapf(err, "token %s", id)
		}
		out = append(out, shared.CertificateRecord{
			IsValid:       true,
			TokenID:       id.String(),
			CertificateID: cert.CertificateID,
			CourseName:    cert.CourseName,
			StudentName:   cert.StudentName,
			StudentWallet: cert.StudentWallet.Hex(),
			Score:         uint64Of(cert.Score),
			IssueDate:     unixTime(cert.IssueDate),
		})
	}
	return out, nil
}

func (v *Verifier) TotalCertificates(ctx context.Context) (uint64, error) {
	c, err := v.caller(ctx)
	if err != nil {
		return 0, err
	}
	total, err := c.GetTotalCertificates(ctx)
	if err != nil {
		return 0, err
	}
	return uint64Of(total), nil
}

// HasCertificate reports whether student holds a certificate for course.
func (v *Verifier) HasCertificate(ctx context.Context, student shared.WalletAccount, course string) (bool, error) {
	c, err := v.caller(ctx)
	if err != nil {
		return false, err
	}
	return c.CheckCertificate(ctx, student.Address, course)
}

func uint64Of(n *big.Int) uint64 {
	if n == nil || n.Sign() < 0 || !n.IsUint64() {
		return 0
	}
	return n.Uint64()
}

func unixTime(n *big.Int) time.Time {
	if n == nil || n.Sign() <= 0 || !n.IsInt64() {
		return time.Time{}
	}
	return time.Unix(n.Int64(), 0).UTC()
}

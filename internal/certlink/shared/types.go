package shared

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
)

// WalletAccount is the active wallet address. Its canonical text form is the
// EIP-55 checksummed hex string.
type WalletAccount struct {
	Address common.Address
}

func NewWalletAccount(raw string) (WalletAccount, error) {
	a := strings.TrimSpace(raw)
	if !common.IsHexAddress(a) {
		return WalletAccount{}, errors.Newf("invalid wallet address %q", raw)
	}
	return WalletAccount{Address: common.HexToAddress(a)}, nil
}

func (a WalletAccount) String() string { return a.Address.Hex() }

func (a WalletAccount) IsZero() bool { return a.Address == (common.Address{}) }

// Short renders 0x1234...abcd for logs and notifications.
func (a WalletAccount) Short() string {
	h := a.Address.Hex()
	return h[:6] + "..." + h[len(h)-4:]
}

const MaxScore = 100

// MintRequest is built by the caller and not modified once submitted.
type MintRequest struct {
	CertificateID string
	CourseName    string
	StudentName   string
	Score         uint8
	Recipient     WalletAccount
}

func (r MintRequest) Validate() error {
	if strings.TrimSpace(r.CertificateID) == "" {
		return errors.Wrap(ErrInvalidMintRequest, "certificate id is empty")
	}
	if r.Score > MaxScore {
		return errors.Wrapf(ErrInvalidMintRequest, "score %d out of range 0-%d", r.Score, MaxScore)
	}
	return nil
}

type ReferenceKind string

const (
	// ReferenceTxHash is a chain transaction hash (direct contract path).
	ReferenceTxHash ReferenceKind = "tx_hash"
	// ReferenceDelegatedID is an opaque id issued by the delegated minting session.
	ReferenceDelegatedID ReferenceKind = "delegated_id"
)

// MintResult is produced once per successful MintRequest. Warning is set when
// the chain side succeeded but the backend mirror could not be updated.
type MintResult struct {
	TransactionReference string
	ReferenceKind        ReferenceKind
	TokenID              string
	Warning              error
}

func (r MintResult) Degraded() bool { return r.Warning != nil }

// CertificateRecord is read from contract state on every call.
type CertificateRecord struct {
	IsValid       bool      `json:"isValid"`
	TokenID       string    `json:"tokenId,omitempty"`
	CertificateID string    `json:"certificateId,omitempty"`
	CourseName    string    `json:"courseName,omitempty"`
	StudentName   string    `json:"studentName,omitempty"`
	StudentWallet string    `json:"studentWallet,omitempty"`
	Score         uint64    `json:"score"`
	IssueDate     time.Time `json:"issueDate"`
}

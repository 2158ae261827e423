package http

import (
	"context"

	"github.com/quantumauth-io/certlink/internal/certlink/chains"
	"github.com/quantumauth-io/certlink/internal/certlink/session"
	"github.com/quantumauth-io/certlink/internal/certlink/shared"
)

// SessionService is the wallet session as seen by the API.
type SessionService interface {
	Target() chains.ChainDescriptor
	Snapshot() session.Snapshot
	Connect(ctx context.Context) (session.ConnectResult, error)
	Disconnect()
}

type MintService interface {
	StrategyName() string
	Mint(ctx context.Context, req shared.MintRequest) (shared.MintResult, error)
}

type CertificateReader interface {
	Verify(ctx context.Context, certificateID string) shared.CertificateRecord
	ListOwned(ctx context.Context, account shared.WalletAccount) ([]shared.CertificateRecord, error)
	TotalCertificates(ctx context.Context) (uint64, error)
	HasCertificate(ctx context.Context, student shared.WalletAccount, course string) (bool, error)
}

type chainRes struct {
	chains.ChainDescriptor
	ChainIDHex string `json:"chainIdHex"`
	Contract   string `json:"contract"`
}

type connectRes struct {
	OK      bool             `json:"ok"`
	Account string           `json:"account"`
	Warning string           `json:"warning,omitempty"`
	Session session.Snapshot `json:"session"`
}

type mintReq struct {
	CertificateID string `json:"certificateId" binding:"required"`
	CourseName    string `json:"courseName"`
	StudentName   string `json:"studentName"`
	Score         *int   `json:"score" binding:"required"`
	Recipient     string `json:"recipient"`
}

type mintRes struct {
	OK                   bool   `json:"ok"`
	Strategy             string `json:"strategy"`
	TransactionReference string `json:"transactionReference"`
	ReferenceKind        string `json:"referenceKind"`
	TokenID              string `json:"tokenId"`
	Warning              string `json:"warning,omitempty"`
}

type ownedRes struct {
	OK           bool                       `json:"ok"`
	Account      string                     `json:"account"`
	Certificates []shared.CertificateRecord `json:"certificates"`
}

type totalRes struct {
	OK    bool   `json:"ok"`
	Total uint64 `json:"total"`
}

type hasCertificateRes struct {
	OK             bool   `json:"ok"`
	Account        string `json:"account"`
	Course         string `json:"course"`
	HasCertificate bool   `json:"hasCertificate"`
}

type errorRes struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

package certificate

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	parsedOnce sync.Once
	parsedABI  abi.ABI
	parseErr   error
)

// ParsedABI parses CertificateNFTABI once per process.
func ParsedABI() (abi.ABI, error) {
	parsedOnce.Do(func() {
		parsedABI, parseErr = abi.JSON(strings.NewReader(CertificateNFTABI))
	})
	return parsedABI, parseErr
}

// Contract binds the certificate ABI to a deployed address.
type Contract struct {
	address common.Address
	abi     abi.ABI
}

func New(address common.Address) (*Contract, error) {
	if address == (common.Address{}) {
		return nil, errors.New("certificate contract address is zero")
	}
	parsed, err := ParsedABI()
	if err != nil {
		return nil, errors.Wrap(err, "parse certificate abi")
	}
	return &Contract{address: address, abi: parsed}, nil
}

func (c *Contract) Address() common.Address { return c.address }

func (c *Contract) ABI() abi.ABI { return c.abi }

type MintArgs struct {
	CertificateID string
	CourseName    string
	StudentName   string
	StudentWallet common.Address
	Score         *big.Int
	TokenURI      string
}

func (c *Contract) PackMintCertificate(a MintArgs) ([]byte, error) {
	score := a.Score
	if score == nil {
		score = new(big.Int)
	}
	data, err := c.abi.Pack(MethodMintCertificate,
		a.CertificateID, a.CourseName, a.StudentName, a.StudentWallet, score, a.TokenURI)
	if err != nil {
		return nil, errors.Wrap(err, "pack mintCertificate")
	}
	return data, nil
}

// Verification is the verifyCertificate return tuple.
type Verification struct {
	IsValid     bool
	CourseName  string
	StudentName string
	Score       *big.Int
	IssueDate   *big.Int
}

// Certificate is the getCertificate return tuple.
type Certificate struct {
	CertificateID string
	CourseName    string
	StudentName   string
	StudentWallet common.Address
	Score         *big.Int
	IssueDate     *big.Int
}

// Minted is a decoded CertificateMinted log.
type Minted struct {
	TokenID       *big.Int
	CertificateID string
	Student       common.Address
	CourseName    string
	Score         *big.Int
	IssueDate     *big.Int
	Raw           types.Log
}

// Caller performs read-only contract calls through any eth_call backend,
// a wallet provider or a plain node client.
type Caller struct {
	contract *Contract
	backend  ethereum.ContractCaller
}

func NewCaller(contract *Contract, backend ethereum.ContractCaller) *Caller {
	return &Caller{contract: contract, backend: backend}
}

func (c *Caller) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	input, err := c.contract.abi.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "pack %s", method)
	}
	to := c.contract.address
	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "call %s", method)
	}
	out, err := c.contract.abi.Unpack(method, raw)
	if err != nil {
		return nil, errors.Wrapf(err, "unpack %s", method)
	}
	return out, nil
}

func (c *Caller) VerifyCertificate(ctx context.Context, certificateID string) (Verification, error) {
	out, err := c.call(ctx, MethodVerifyCertificate, certificateID)
	if err != nil {
		return Verification{}, err
	}

	var v Verification
	v.IsValid = *abi.ConvertType(out[0], new(bool)).(*bool)
	v.CourseName = *abi.ConvertType(out[1], new(string)).(*string)
	v.StudentName = *abi.ConvertType(out[2], new(string)).(*string)
	v.Score = *abi.ConvertType(out[3], new(*big.Int)).(**big.Int)
	v.IssueDate = *abi.ConvertType(out[4], new(*big.Int)).(**big.Int)
	return v, nil
}

func (c *Caller) GetCertificate(ctx context.Context, tokenID *big.Int) (Certificate, error) {
	out, err := c.call(ctx, MethodGetCertificate, tokenID)
	if err != nil {
		return Certificate{}, err
	}

	var cert Certificate
	cert.CertificateID = *abi.ConvertType(out[0], new(string)).(*string)
	cert.CourseName = *abi.ConvertType(out[1], new(string)).(*string)
	cert.StudentName = *abi.ConvertType(out[2], new(string)).(*string)
	cert.StudentWallet = *abi.ConvertType(out[3], new(common.Address)).(*common.Address)
	cert.Score = *abi.ConvertType(out[4], new(*big.Int)).(**big.Int)
	cert.IssueDate = *abi.ConvertType(out[5], new(*big.Int)).(**big.Int)
	return cert, nil
}

func (c *Caller) GetTotalCertificates(ctx context.Context) (*big.Int, error) {
	out, err := c.call(ctx, MethodGetTotalCertificates)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (c *Caller) CheckCertificate(ctx context.Context, student common.Address, courseName string) (bool, error) {
	out, err := c.call(ctx, MethodCheckCertificate, student, courseName)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (c *Caller) TokensOfOwner(ctx context.Context, owner common.Address) ([]*big.Int, error) {
	out, err := c.call(ctx, MethodTokensOfOwner, owner)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int), nil
}

// ParseCertificateMinted decodes lg if it is a CertificateMinted event
// emitted by this contract.
func (c *Contract) ParseCertificateMinted(lg types.Log) (*Minted, error) {
	ev, ok := c.abi.Events[EventCertificateMinted]
	if !ok {
		return nil, errors.New("CertificateMinted missing from abi")
	}
	if lg.Address != c.address {
		return nil, errors.Newf("log emitted by %s, not the certificate contract", lg.Address.Hex())
	}
	if len(lg.Topics) != 3 || lg.Topics[0] != ev.ID {
		return nil, errors.New("log is not CertificateMinted")
	}

	out, err := c.abi.Unpack(EventCertificateMinted, lg.Data)
	if err != nil {
		return nil, errors.Wrap(err, "unpack CertificateMinted data")
	}
	if len(out) != 4 {
		return nil, errors.Newf("CertificateMinted data has %d fields, want 4", len(out))
	}

	m := &Minted{
		TokenID: new(big.Int).SetBytes(lg.Topics[1].Bytes()),
		Student: common.BytesToAddress(lg.Topics[2].Bytes()),
		Raw:     lg,
	}
	m.CertificateID = *abi.ConvertType(out[0], new(string)).(*string)
	m.CourseName = *abi.ConvertType(out[1], new(string)).(*string)
	m.Score = *abi.ConvertType(out[2], new(*big.Int)).(**big.Int)
	m.IssueDate = *abi.ConvertType(out[3], new(*big.Int)).(**big.Int)
	return m, nil
}

// FindCertificateMinted returns the first CertificateMinted event in the
// receipt, or ok=false when the receipt carries none.
func (c *Contract) FindCertificateMinted(receipt *types.Receipt) (*Minted, bool) {
	if receipt == nil {
		return nil, false
	}
	for _, lg := range receipt.Logs {
		if lg == nil {
			continue
		}
		if m, err := c.ParseCertificateMinted(*lg); err == nil {
			return m, true
		}
	}
	return nil, false
}

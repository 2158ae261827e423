// Package certificatetest provides an in-memory certificate contract for tests.
package certificatetest

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/quantumauth-io/certlink/internal/certlink/contracts/certificate"
)

type record struct {
	tokenID *big.Int
	args    certificate.MintArgs
	issued  time.Time
}

// Backend answers eth_call for the certificate contract from memory and
// builds receipts for minted tokens.
type Backend struct {
	Contract *certificate.Contract

	// CallErr, when set, is returned from every CallContract.
	CallErr error

	mu       sync.Mutex
	nextID   int64
	byToken  map[string]*record
	byCertID map[string]*record
	owned    map[common.Address][]*big.Int
	calls    int
}

func New(contract *certificate.Contract) *Backend {
	return &Backend{
		Contract: contract,
		nextID:   1,
		byToken:  make(map[string]*record),
		byCertID: make(map[string]*record),
		owned:    make(map[common.Address][]*big.Int),
	}
}

// StartTokenID sets the id handed to the next minted certificate.
func (b *Backend) StartTokenID(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID = id
}

func (b *Backend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// Mint records a certificate and returns the successful receipt the chain
// would have produced for it.
func (b *Backend) Mint(args certificate.MintArgs, issued time.Time) (*big.Int, *types.Receipt) {
	if args.Score == nil {
		args.Score = new(big.Int)
	}

	b.mu.Lock()
	tokenID := big.NewInt(b.nextID)
	b.nextID++
	rec := &record{tokenID: tokenID, args: args, issued: issued}
	b.byToken[tokenID.String()] = rec
	b.byCertID[args.CertificateID] = rec
	b.owned[args.StudentWallet] = append(b.owned[args.StudentWallet], tokenID)
	b.mu.Unlock()

	txHash := crypto.Keccak256Hash([]byte(args.CertificateID), tokenID.Bytes())
	lg := MintedLog(b.Contract, tokenID, args, issued)
	lg.TxHash = txHash
	return tokenID, &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: txHash,
		Logs:   []*types.Log{&lg},
	}
}

// MintedLog builds the CertificateMinted log for a token.
func MintedLog(c *certificate.Contract, tokenID *big.Int, args certificate.MintArgs, issued time.Time) types.Log {
	ev := c.ABI().Events[certificate.EventCertificateMinted]
	score := args.Score
	if score == nil {
		score = new(big.Int)
	}
	data, err := ev.Inputs.NonIndexed().Pack(args.CertificateID, args.CourseName, score, big.NewInt(issued.Unix()))
	if err != nil {
		panic(err)
	}
	return types.Log{
		Address: c.Address(),
		Topics: []common.Hash{
			ev.ID,
			common.BigToHash(tokenID),
			common.BytesToHash(args.StudentWallet.Bytes()),
		},
		Data: data,
	}
}

// DecodeMint unpacks mintCertificate calldata.
func DecodeMint(c *certificate.Contract, data []byte) (certificate.MintArgs, error) {
	if len(data) < 4 {
		return certificate.MintArgs{}, errors.New("calldata too short")
	}
	m, ok := c.ABI().Methods[certificate.MethodMintCertificate]
	if !ok {
		return certificate.MintArgs{}, errors.New("mintCertificate missing from abi")
	}
	vals, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return certificate.MintArgs{}, err
	}
	return certificate.MintArgs{
		CertificateID: vals[0].(string),
		CourseName:    vals[1].(string),
		StudentName:   vals[2].(string),
		StudentWallet: vals[3].(common.Address),
		Score:         vals[4].(*big.Int),
		TokenURI:      vals[5].(string),
	}, nil
}

func (b *Backend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++

	if b.CallErr != nil {
		return nil, b.CallErr
	}
	if msg.To == nil || *msg.To != b.Contract.Address() {
		return nil, nil
	}
	if len(msg.Data) < 4 {
		return nil, errors.New("execution reverted")
	}

	parsed := b.Contract.ABI()
	method, err := parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case certificate.MethodVerifyCertificate:
		rec, ok := b.byCertID[args[0].(string)]
		if !ok {
			return method.Outputs.Pack(false, "", "", new(big.Int), new(big.Int))
		}
		return method.Outputs.Pack(true, rec.args.CourseName, rec.args.StudentName, rec.args.Score, big.NewInt(rec.issued.Unix()))

	case certificate.MethodGetCertificate:
		rec, ok := b.byToken[args[0].(*big.Int).String()]
		if !ok {
			return nil, errors.New("execution reverted: certificate does not exist")
		}
		return method.Outputs.Pack(rec.args.CertificateID, rec.args.CourseName, rec.args.StudentName,
			rec.args.StudentWallet, rec.args.Score, big.NewInt(rec.issued.Unix()))

	case certificate.MethodGetTotalCertificates:
		return method.Outputs.Pack(big.NewInt(int64(len(b.byToken))))

	case certificate.MethodCheckCertificate:
		student, course := args[0].(common.Address), args[1].(string)
		for _, id := range b.owned[student] {
			if b.byToken[id.String()].args.CourseName == course {
				return method.Outputs.Pack(true)
			}
		}
		return method.Outputs.Pack(false)

	case certificate.MethodTokensOfOwner:
		ids := b.owned[args[0].(common.Address)]
		if ids == nil {
			ids = []*big.Int{}
		}
		return method.Outputs.Pack(ids)
	}
	return nil, errors.Newf("unsupported method %s", method.Name)
}

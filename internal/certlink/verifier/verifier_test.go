package verifier

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumauth-io/certlink/internal/certlink/chains"
	"github.com/quantumauth-io/certlink/internal/certlink/constants"
	"github.com/quantumauth-io/certlink/internal/certlink/contracts/certificate"
	"github.com/quantumauth-io/certlink/internal/certlink/contracts/certificate/certificatetest"
	"github.com/quantumauth-io/certlink/internal/certlink/shared"
)

var (
	asha   = shared.WalletAccount{Address: common.HexToAddress("0x2222222222222222222222222222222222222222")}
	nobody = shared.WalletAccount{Address: common.HexToAddress("0x3333333333333333333333333333333333333333")}
	issued = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
)

type nodeClient struct {
	*certificatetest.Backend
}

func (nodeClient) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).SetUint64(constants.TargetChainID), nil
}

func (nodeClient) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, ethereum.NotFound
}

type staticSource struct {
	client chains.Client
	err    error
	calls  int
}

func (s *staticSource) Client(context.Context) (chains.Client, error) {
	s.calls++
	return s.client, s.err
}

type connectivity bool

func (c connectivity) Connected() bool { return bool(c) }

func newBackend(t *testing.T) *certificatetest.Backend {
	t.Helper()
	c, err := certificate.New(common.HexToAddress(constants.CertificateContractAddress))
	require.NoError(t, err)
	return certificatetest.New(c)
}

func mintFor(b *certificatetest.Backend, certID, course string, owner shared.WalletAccount, score int64) {
	b.Mint(certificate.MintArgs{
		CertificateID: certID,
		CourseName:    course,
		StudentName:   "Asha",
		StudentWallet: owner.Address,
		Score:         big.NewInt(score),
	}, issued)
}

func TestVerify_Minted(t *testing.T) {
	b := newBackend(t)
	mintFor(b, "C-100", "Rust Basics", asha, 92)
	v := New(b.Contract, nil, nil, &staticSource{client: nodeClient{b}})

	rec := v.Verify(context.Background(), "C-100")
	assert.True(t, rec.IsValid)
	assert.Equal(t, "C-100", rec.CertificateID)
	assert.Equal(t, "Rust Basics", rec.CourseName)
	assert.Equal(t, "Asha", rec.StudentName)
	assert.Equal(t, uint64(92), rec.Score)
	assert.True(t, issued.Equal(rec.IssueDate))
}

func TestVerify_NeverMinted(t *testing.T) {
	b := newBackend(t)
	v := New(b.Contract, nil, nil, &staticSource{client: nodeClient{b}})

	rec, err := v.VerifyWithDiagnostics(context.Background(), "C-404")
	require.NoError(t, err)
	assert.False(t, rec.IsValid)
	assert.Empty(t, rec.CourseName)
	assert.True(t, rec.IssueDate.IsZero())
}

func TestVerify_ReadFailureIsInvalid(t *testing.T) {
	b := newBackend(t)
	b.CallErr = errors.New("connection refused")
	v := New(b.Contract, nil, nil, &staticSource{client: nodeClient{b}})

	rec := v.Verify(context.Background(), "C-100")
	assert.False(t, rec.IsValid)

	_, err := v.VerifyWithDiagnostics(context.Background(), "C-100")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestVerify_NoClient(t *testing.T) {
	b := newBackend(t)
	v := New(b.Contract, nil, nil, &staticSource{err: errors.New("dial failed")})

	assert.False(t, v.Verify(context.Background(), "C-100").IsValid)
}

func TestVerify_UsesWalletWhenConnected(t *testing.T) {
	walletSide := newBackend(t)
	mintFor(walletSide, "C-100", "Rust Basics", asha, 92)
	nodeSide := &staticSource{client: nodeClient{newBackend(t)}}

	v := New(walletSide.Contract, connectivity(true), walletSide, nodeSide)
	assert.True(t, v.Verify(context.Background(), "C-100").IsValid)
	assert.Equal(t, 1, walletSide.Calls())
	assert.Equal(t, 0, nodeSide.calls)

	v = New(walletSide.Contract, connectivity(false), walletSide, nodeSide)
	assert.False(t, v.Verify(context.Background(), "C-100").IsValid)
	assert.Equal(t, 1, nodeSide.calls)
}

func TestListOwned(t *testing.T) {
	b := newBackend(t)
	b.StartTokenID(17)
	mintFor(b, "C-100", "Rust Basics", asha, 92)
	mintFor(b, "C-200", "Go Concurrency", nobody, 70)
	mintFor(b, "C-300", "Solidity 101", asha, 88)
	v := New(b.Contract, nil, nil, &staticSource{client: nodeClient{b}})

	recs, err := v.ListOwned(context.Background(), asha)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "17", recs[0].TokenID)
	assert.Equal(t, "C-100", recs[0].CertificateID)
	assert.Equal(t, asha.String(), recs[0].StudentWallet)
	assert.True(t, recs[0].IsValid)
	assert.Equal(t, "19", recs[1].TokenID)
	assert.Equal(t, "Solidity 101", recs[1].CourseName)
	assert.Equal(t, uint64(88), recs[1].Score)
}

func TestListOwned_NoTokens(t *testing.T) {
	b := newBackend(t)
	v := New(b.Contract, nil, nil, &staticSource{client: nodeClient{b}})

	recs, err := v.ListOwned(context.Background(), nobody)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestListOwned_PropagatesErrors(t *testing.T) {
	b := newBackend(t)
	b.CallErr = errors.New("rate limited")
	v := New(b.Contract, nil, nil, &staticSource{client: nodeClient{b}})

	_, err := v.ListOwned(context.Background(), asha)
	require.Error(t, err)
}

func TestTotalAndHasCertificate(t *testing.T) {
	b := newBackend(t)
	mintFor(b, "C-100", "Rust Basics", asha, 92)
	mintFor(b, "C-200", "Go Concurrency", nobody, 70)
	v := New(b.Contract, nil, nil, &staticSource{client: nodeClient{b}})

	total, err := v.TotalCertificates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)

	ok, err := v.HasCertificate(context.Background(), asha, "Rust Basics")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.HasCertificate(context.Background(), asha, "Go Concurrency")
	require.NoError(t, err)
	assert.False(t, ok)
}

package certificate_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumauth-io/certlink/internal/certlink/constants"
	"github.com/quantumauth-io/certlink/internal/certlink/contracts/certificate"
	"github.com/quantumauth-io/certlink/internal/certlink/contracts/certificate/certificatetest"
)

var student = common.HexToAddress("0x00000000000000000000000000000000000000a1")

func newContract(t *testing.T) *certificate.Contract {
	t.Helper()
	c, err := certificate.New(common.HexToAddress(constants.CertificateContractAddress))
	require.NoError(t, err)
	return c
}

func TestABIHasFullSurface(t *testing.T) {
	parsed, err := certificate.ParsedABI()
	require.NoError(t, err)

	for _, name := range []string{
		certificate.MethodMintCertificate,
		certificate.MethodGetCertificate,
		certificate.MethodVerifyCertificate,
		certificate.MethodGetTotalCertificates,
		certificate.MethodCheckCertificate,
		certificate.MethodTokensOfOwner,
	} {
		_, ok := parsed.Methods[name]
		assert.True(t, ok, name)
	}
	_, ok := parsed.Events[certificate.EventCertificateMinted]
	assert.True(t, ok)
}

func TestNewRejectsZeroAddress(t *testing.T) {
	_, err := certificate.New(common.Address{})
	require.Error(t, err)
}

func TestPackMintCertificateRoundTrip(t *testing.T) {
	c := newContract(t)
	args := certificate.MintArgs{
		CertificateID: "C-100",
		CourseName:    "Rust Basics",
		StudentName:   "Asha",
		StudentWallet: student,
		Score:         big.NewInt(92),
	}

	data, err := c.PackMintCertificate(args)
	require.NoError(t, err)
	assert.Equal(t, c.ABI().Methods[certificate.MethodMintCertificate].ID, data[:4])

	got, err := certificatetest.DecodeMint(c, data)
	require.NoError(t, err)
	assert.Equal(t, "C-100", got.CertificateID)
	assert.Equal(t, "Rust Basics", got.CourseName)
	assert.Equal(t, "Asha", got.StudentName)
	assert.Equal(t, student, got.StudentWallet)
	assert.Equal(t, int64(92), got.Score.Int64())
	assert.Equal(t, "", got.TokenURI)
}

func TestParseCertificateMinted(t *testing.T) {
	c := newContract(t)
	issued := time.Unix(1_700_000_000, 0)
	lg := certificatetest.MintedLog(c, big.NewInt(17), certificate.MintArgs{
		CertificateID: "C-100",
		CourseName:    "Rust Basics",
		StudentWallet: student,
		Score:         big.NewInt(92),
	}, issued)

	m, err := c.ParseCertificateMinted(lg)
	require.NoError(t, err)
	assert.Equal(t, "17", m.TokenID.String())
	assert.Equal(t, student, m.Student)
	assert.Equal(t, "C-100", m.CertificateID)
	assert.Equal(t, "Rust Basics", m.CourseName)
	assert.Equal(t, int64(92), m.Score.Int64())
	assert.Equal(t, issued.Unix(), m.IssueDate.Int64())
}

func TestParseCertificateMintedRejectsForeignLogs(t *testing.T) {
	c := newContract(t)
	lg := certificatetest.MintedLog(c, big.NewInt(1), certificate.MintArgs{CertificateID: "x", StudentWallet: student}, time.Now())

	other := lg
	other.Address = common.HexToAddress("0x01")
	_, err := c.ParseCertificateMinted(other)
	require.Error(t, err)

	transfer := lg
	transfer.Topics = append([]common.Hash{common.HexToHash("0xdead")}, lg.Topics[1:]...)
	_, err = c.ParseCertificateMinted(transfer)
	require.Error(t, err)
}

func TestFindCertificateMintedSkipsOtherLogs(t *testing.T) {
	c := newContract(t)
	minted := certificatetest.MintedLog(c, big.NewInt(5), certificate.MintArgs{CertificateID: "C-1", StudentWallet: student}, time.Now())
	noise := types.Log{Address: c.Address(), Topics: []common.Hash{common.HexToHash("0x01")}}

	m, ok := c.FindCertificateMinted(&types.Receipt{Logs: []*types.Log{&noise, nil, &minted}})
	require.True(t, ok)
	assert.Equal(t, "5", m.TokenID.String())

	_, ok = c.FindCertificateMinted(&types.Receipt{Logs: []*types.Log{&noise}})
	assert.False(t, ok)
	_, ok = c.FindCertificateMinted(nil)
	assert.False(t, ok)
}

func TestCallerReads(t *testing.T) {
	c := newContract(t)
	backend := certificatetest.New(c)
	backend.StartTokenID(17)
	issued := time.Unix(1_700_000_000, 0)
	backend.Mint(certificate.MintArgs{
		CertificateID: "C-100",
		CourseName:    "Rust Basics",
		StudentName:   "Asha",
		StudentWallet: student,
		Score:         big.NewInt(92),
	}, issued)

	caller := certificate.NewCaller(c, backend)
	ctx := context.Background()

	v, err := caller.VerifyCertificate(ctx, "C-100")
	require.NoError(t, err)
	assert.True(t, v.IsValid)
	assert.Equal(t, "Rust Basics", v.CourseName)
	assert.Equal(t, "Asha", v.StudentName)
	assert.Equal(t, int64(92), v.Score.Int64())
	assert.Equal(t, issued.Unix(), v.IssueDate.Int64())

	v, err = caller.VerifyCertificate(ctx, "never-minted")
	require.NoError(t, err)
	assert.False(t, v.IsValid)

	ids, err := caller.TokensOfOwner(ctx, student)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, "17", ids[0].String())

	cert, err := caller.GetCertificate(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "C-100", cert.CertificateID)
	assert.Equal(t, student, cert.StudentWallet)

	total, err := caller.GetTotalCertificates(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total.Int64())

	has, err := caller.CheckCertificate(ctx, student, "Rust Basics")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = caller.CheckCertificate(ctx, student, "Go Basics")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestCallerSurfacesBackendErrors(t *testing.T) {
	c := newContract(t)
	backend := certificatetest.New(c)
	backend.CallErr = errors.New("node down")

	_, err := certificate.NewCaller(c, backend).VerifyCertificate(context.Background(), "C-100")
	require.ErrorContains(t, err, "node down")
}

func TestCallerEmptyOutputIsError(t *testing.T) {
	c := newContract(t)
	// a backend that returns no data, as a node does for an address with no code
	empty := certificatetest.New(c)
	other, err := certificate.New(common.HexToAddress("0x02"))
	require.NoError(t, err)

	_, err = certificate.NewCaller(other, empty).GetTotalCertificates(context.Background())
	require.Error(t, err)
}

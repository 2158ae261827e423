package certlink

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumauth-io/certlink/cmd/certlink/config"
	"github.com/quantumauth-io/certlink/internal/certlink/chains"
	"github.com/quantumauth-io/certlink/internal/certlink/constants"
	"github.com/quantumauth-io/certlink/internal/certlink/contracts/certificate"
	"github.com/quantumauth-io/certlink/internal/certlink/contracts/certificate/certificatetest"
	"github.com/quantumauth-io/certlink/internal/certlink/provider"
)

const walletAddr = "0x1111111111111111111111111111111111111111"

// chainAPI serves both the wallet bridge and the node side of eth_*.
type chainAPI struct {
	mu       sync.Mutex
	backend  *certificatetest.Backend
	receipts map[common.Hash]*types.Receipt
}

func (api *chainAPI) ChainId() string { return chains.ChainIDToHex(constants.TargetChainID) }

func (api *chainAPI) RequestAccounts() []string { return []string{walletAddr} }

func (api *chainAPI) Accounts() []string { return []string{} }

func (api *chainAPI) SendTransaction(args provider.TransactionArgs) (common.Hash, error) {
	mintArgs, err := certificatetest.DecodeMint(api.backend.Contract, args.Data)
	if err != nil {
		return common.Hash{}, err
	}
	_, receipt := api.backend.Mint(mintArgs, time.Unix(1_700_000_000, 0))

	api.mu.Lock()
	defer api.mu.Unlock()
	api.receipts[receipt.TxHash] = receipt
	return receipt.TxHash, nil
}

func (api *chainAPI) GetTransactionReceipt(hash common.Hash) *types.Receipt {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.receipts[hash]
}

func (api *chainAPI) Call(args map[string]interface{}, _ string) (hexutil.Bytes, error) {
	raw, _ := args["input"].(string)
	if raw == "" {
		raw, _ = args["data"].(string)
	}
	data, err := hexutil.Decode(raw)
	if err != nil {
		return nil, err
	}
	toRaw, _ := args["to"].(string)
	to := common.HexToAddress(toRaw)
	return api.backend.CallContract(context.Background(), ethereum.CallMsg{To: &to, Data: data}, nil)
}

type djangoFake struct {
	mu    sync.Mutex
	posts map[string][]map[string]interface{}
}

func (d *djangoFake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	d.mu.Lock()
	d.posts[r.URL.Path] = append(d.posts[r.URL.Path], body)
	d.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"success":true}`))
}

type harness struct {
	app    *App
	chain  *chainAPI
	django *djangoFake
}

func newHarness(t *testing.T, withWallet bool) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv(config.EnvDeployment, "")

	contract, err := certificate.New(common.HexToAddress(constants.CertificateContractAddress))
	require.NoError(t, err)
	api := &chainAPI{backend: certificatetest.New(contract), receipts: map[common.Hash]*types.Receipt{}}
	api.backend.StartTokenID(17)

	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", api))
	node := httptest.NewServer(srv)
	t.Cleanup(func() {
		node.Close()
		srv.Stop()
	})

	django := &djangoFake{posts: map[string][]map[string]interface{}{}}
	ds := httptest.NewServer(django)
	t.Cleanup(ds.Close)

	cfg, err := config.LoadFrom(nil)
	require.NoError(t, err)
	cfg.Chain.RPCURL = node.URL
	cfg.Backend.BaseURL = ds.URL
	cfg.Mint.ReceiptPollInterval = 10 * time.Millisecond
	cfg.Provider.URL = ""
	if withWallet {
		cfg.Provider.URL = node.URL
	}

	app, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return &harness{app: app, chain: api, django: django}
}

func (h *harness) do(t *testing.T, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.app.Router.ServeHTTP(w, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func TestApp_ReadOnlyWithoutWallet(t *testing.T) {
	h := newHarness(t, false)
	h.chain.backend.Mint(certificate.MintArgs{
		CertificateID: "C-100",
		CourseName:    "Rust Basics",
		StudentName:   "Asha",
		StudentWallet: common.HexToAddress(walletAddr),
		Score:         big.NewInt(92),
	}, time.Unix(1_700_000_000, 0))

	code, body := h.do(t, http.MethodGet, "/certificates/C-100/verify", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["isValid"])
	assert.Equal(t, "Rust Basics", body["courseName"])

	code, body = h.do(t, http.MethodGet, "/certificates/total", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["total"])

	code, body = h.do(t, http.MethodPost, "/session/connect", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, false, body["ok"])

	code, _ = h.do(t, http.MethodPost, "/certificates/mint", `{"certificateId":"C-200","score":70}`)
	assert.Equal(t, http.StatusConflict, code)
}

func TestApp_ConnectMintVerify(t *testing.T) {
	h := newHarness(t, true)

	code, body := h.do(t, http.MethodPost, "/session/connect", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, common.HexToAddress(walletAddr).Hex(), body["account"])
	assert.NotContains(t, body, "warning")

	code, body = h.do(t, http.MethodPost, "/certificates/mint",
		`{"certificateId":"C-100","courseName":"Rust Basics","studentName":"Asha","score":92}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "17", body["tokenId"])
	assert.Equal(t, "tx_hash", body["referenceKind"])
	txRef, _ := body["transactionReference"].(string)
	assert.True(t, strings.HasPrefix(txRef, "0x"))

	code, body = h.do(t, http.MethodGet, "/certificates/C-100/verify", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["isValid"])

	code, body = h.do(t, http.MethodGet, "/accounts/"+walletAddr+"/certificates", "")
	require.Equal(t, http.StatusOK, code)
	certs := body["certificates"].([]interface{})
	require.Len(t, certs, 1)
	assert.Equal(t, "17", certs[0].(map[string]interface{})["tokenId"])

	h.django.mu.Lock()
	defer h.django.mu.Unlock()
	require.Len(t, h.django.posts["/api/users/update-wallet/"], 1)
	require.Len(t, h.django.posts["/api/certificates/update-blockchain/"], 1)
	rec := h.django.posts["/api/certificates/update-blockchain/"][0]
	assert.Equal(t, "C-100", rec["certificate_id"])
	assert.Equal(t, txRef, rec["transaction_hash"])
	assert.Equal(t, "17", rec["nft_token_id"])
}

func TestApp_RestoreWithoutApprovedAccount(t *testing.T) {
	h := newHarness(t, true)

	_, restored, err := h.app.Session.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, restored)
	assert.False(t, h.app.Session.Connected())
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	h := newHarness(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.app.Session.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session loop did not stop")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumauth-io/certlink/internal/certlink/constants"
)

func TestLoadFrom_EmbeddedDefaults(t *testing.T) {
	t.Setenv(EnvDeployment, "")

	cfg, err := LoadFrom(nil)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "6140", cfg.Server.Port)
	assert.Equal(t, constants.TargetRPCURL, cfg.Chain.RPCURL)
	assert.Equal(t, StrategyDirect, cfg.Mint.Strategy)
	assert.Equal(t, constants.DefaultMintGasLimit, cfg.Mint.GasLimit)
	assert.Equal(t, time.Second, cfg.Mint.ReceiptPollInterval)
	assert.Equal(t, 2*time.Second, cfg.Provider.PollInterval)
	assert.Equal(t, "sessionid", cfg.Backend.CookieName)
	assert.Equal(t, uint(3), cfg.Backend.Attempts)
	assert.Equal(t, "/api/v1/mint", cfg.Delegated.MintPath)
	assert.Equal(t, "renegotiate", cfg.Session.ChainChangePolicy)
	assert.Equal(t, constants.CertificateContractAddress, cfg.Contract.Address)
	assert.Equal(t, common.HexToAddress(constants.CertificateContractAddress), cfg.ContractAddress())
}

func TestLoadFrom_FileAndEnvOverrides(t *testing.T) {
	t.Setenv(EnvDeployment, "")
	t.Setenv("CERTLINK_BACKEND_SESSIONID", "abc123")
	t.Setenv("CERTLINK_PROVIDER_URL", "ws://127.0.0.1:8546")

	dir := t.TempDir()
	yaml := []byte("Mint:\n  strategy: delegated\nDelegated:\n  baseUrl: https://mint.example\n  priceWei: \"1000\"\nSession:\n  chainChangePolicy: reset\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, constants.ConfigFile), yaml, 0o600))

	cfg, err := LoadFrom([]string{filepath.Join(dir, "missing"), dir})
	require.NoError(t, err)

	assert.Equal(t, StrategyDelegated, cfg.Mint.Strategy)
	assert.Equal(t, "https://mint.example", cfg.Delegated.BaseURL)
	assert.Equal(t, "reset", cfg.Session.ChainChangePolicy)
	assert.Equal(t, "abc123", cfg.Backend.SessionID)
	assert.Equal(t, "ws://127.0.0.1:8546", cfg.Provider.URL)
	// untouched keys keep the embedded value
	assert.Equal(t, uint64(500000), cfg.Mint.GasLimit)

	lic, err := cfg.License()
	require.NoError(t, err)
	assert.Equal(t, int64(1000), lic.Price.Int64())
	assert.Equal(t, uint64(2592000), lic.Duration)
}

func TestApplyBackendURLFromEnv(t *testing.T) {
	cfg := &Config{}
	cfg.Backend.BaseURL = "https://certs.example"

	t.Setenv(EnvDeployment, "prod")
	require.NoError(t, cfg.ApplyBackendURLFromEnv())
	assert.Equal(t, "https://certs.example", cfg.Backend.BaseURL)

	t.Setenv(EnvDeployment, "local")
	require.NoError(t, cfg.ApplyBackendURLFromEnv())
	assert.Equal(t, localBackendURL, cfg.Backend.BaseURL)

	t.Setenv(EnvDeployment, "staging")
	assert.Error(t, cfg.ApplyBackendURLFromEnv())
}

func TestValidate(t *testing.T) {
	t.Setenv(EnvDeployment, "")
	base, err := LoadFrom(nil)
	require.NoError(t, err)

	bad := *base
	bad.Contract.Address = "0x123"
	assert.Error(t, bad.Validate())

	bad = *base
	bad.Mint.Strategy = "lazy"
	assert.Error(t, bad.Validate())

	bad = *base
	bad.Mint.Strategy = StrategyDelegated
	bad.Delegated.BaseURL = ""
	assert.Error(t, bad.Validate())

	bad = *base
	bad.Session.ChainChangePolicy = "reload"
	assert.Error(t, bad.Validate())

	bad = *base
	bad.Delegated.PriceWei = "-5"
	assert.Error(t, bad.Validate())
}

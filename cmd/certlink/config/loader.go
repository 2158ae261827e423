package config

import (
	"bytes"
	_ "embed"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/quantumauth-io/certlink/internal/certlink/backend"
	"github.com/quantumauth-io/certlink/internal/certlink/constants"
	"github.com/quantumauth-io/certlink/internal/certlink/delegated"
	"github.com/quantumauth-io/certlink/internal/certlink/session"
)

//go:embed config.yaml
var EmbeddedConfigYAML []byte

const (
	EnvPrefix     = "CERTLINK"
	EnvDeployment = "CERTLINK_ENV"

	StrategyDirect    = "direct"
	StrategyDelegated = "delegated"

	localBackendURL = "http://127.0.0.1:8000"
)

type ServerSettings struct {
	Host           string   `mapstructure:"host"`
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

type ChainSettings struct {
	RPCURL string `mapstructure:"rpcUrl"`
}

type ProviderSettings struct {
	// URL of the wallet bridge (http, ws or ipc). Empty disables the wallet.
	URL          string        `mapstructure:"url"`
	PollInterval time.Duration `mapstructure:"pollInterval"`
}

type ContractSettings struct {
	Address string `mapstructure:"address"`
}

type MintSettings struct {
	Strategy            string        `mapstructure:"strategy"`
	GasLimit            uint64        `mapstructure:"gasLimit"`
	ReceiptPollInterval time.Duration `mapstructure:"receiptPollInterval"`
}

type DelegatedSettings struct {
	delegated.Config `mapstructure:",squash"`
	PriceWei         string `mapstructure:"priceWei"`
	DurationSeconds  uint64 `mapstructure:"durationSeconds"`
	RoyaltyBps       uint16 `mapstructure:"royaltyBps"`
}

type SessionSettings struct {
	ChainChangePolicy string `mapstructure:"chainChangePolicy"`
	EventBuffer       int    `mapstructure:"eventBuffer"`
}

type Config struct {
	Server    ServerSettings    `mapstructure:"Server"`
	Chain     ChainSettings     `mapstructure:"Chain"`
	Provider  ProviderSettings  `mapstructure:"Provider"`
	Contract  ContractSettings  `mapstructure:"Contract"`
	Mint      MintSettings      `mapstructure:"Mint"`
	Delegated DelegatedSettings `mapstructure:"Delegated"`
	Backend   backend.Config    `mapstructure:"Backend"`
	Session   SessionSettings   `mapstructure:"Session"`
}

func Load() (*Config, error) {
	home, _ := os.UserHomeDir()
	paths := []string{
		filepath.Join(home, ".config", constants.AppName),
		".",
	}
	return LoadFrom(paths)
}

// LoadFrom reads the embedded defaults, merges config.yaml from each of paths
// that has one, then applies CERTLINK_* environment overrides
// (CERTLINK_BACKEND_SESSIONID, CERTLINK_PROVIDER_URL, ...).
func LoadFrom(paths []string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(EmbeddedConfigYAML)); err != nil {
		return nil, errors.Wrap(err, "read embedded config")
	}

	for _, dir := range paths {
		path := filepath.Join(dir, constants.ConfigFile)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "merge config %s", path)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.ApplyBackendURLFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyBackendURLFromEnv points the backend at the local dev server when
// CERTLINK_ENV asks for it. Production keeps the configured URL.
func (c *Config) ApplyBackendURLFromEnv() error {
	raw := strings.TrimSpace(os.Getenv(EnvDeployment))

	switch strings.ToLower(raw) {
	case "", "prod", "production":
	case "local", "dev", "develop", "development":
		c.Backend.BaseURL = localBackendURL
	default:
		return errors.Newf("invalid %s %q (allowed: local, dev, prod, empty)", EnvDeployment, raw)
	}
	return nil
}

func (c *Config) Validate() error {
	if !common.IsHexAddress(c.Contract.Address) {
		return errors.Newf("Contract.address %q is not an address", c.Contract.Address)
	}
	switch c.Mint.Strategy {
	case StrategyDirect:
	case StrategyDelegated:
		if strings.TrimSpace(c.Delegated.BaseURL) == "" {
			return errors.New("Delegated.baseUrl is required for the delegated mint strategy")
		}
	default:
		return errors.Newf("Mint.strategy %q (allowed: %s, %s)", c.Mint.Strategy, StrategyDirect, StrategyDelegated)
	}
	if _, err := session.ParseChainChangePolicy(c.Session.ChainChangePolicy); err != nil {
		return err
	}
	if _, err := c.License(); err != nil {
		return err
	}
	return nil
}

func (c *Config) ContractAddress() common.Address {
	return common.HexToAddress(c.Contract.Address)
}

// License builds the usage license attached to delegated mints.
func (c *Config) License() (delegated.License, error) {
	price := new(big.Int)
	if s := strings.TrimSpace(c.Delegated.PriceWei); s != "" {
		if _, ok := price.SetString(s, 10); !ok || price.Sign() < 0 {
			return delegated.License{}, errors.Newf("Delegated.priceWei %q is not a wei amount", s)
		}
	}
	return delegated.License{
		Price:        price,
		Duration:     c.Delegated.DurationSeconds,
		RoyaltyBps:   c.Delegated.RoyaltyBps,
		PaymentToken: common.HexToAddress(constants.NativeAddr),
	}, nil
}

package chains

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/certlink/internal/certlink/constants"
)

type NativeCurrency struct {
	Name     string `json:"name" mapstructure:"name"`
	Symbol   string `json:"symbol" mapstructure:"symbol"`
	Decimals uint8  `json:"decimals" mapstructure:"decimals"`
}

// ChainDescriptor describes the single chain the connector operates on.
type ChainDescriptor struct {
	ChainID        uint64         `json:"chainId" mapstructure:"chainId"`
	RPCURL         string         `json:"rpcUrl" mapstructure:"rpcUrl"`
	DisplayName    string         `json:"displayName" mapstructure:"displayName"`
	NativeCurrency NativeCurrency `json:"nativeCurrency" mapstructure:"nativeCurrency"`
	ExplorerURL    string         `json:"explorerUrl" mapstructure:"explorerUrl"`
}

// Target returns the target chain descriptor.
func Target() ChainDescriptor {
	return ChainDescriptor{
		ChainID:     constants.TargetChainID,
		RPCURL:      constants.TargetRPCURL,
		DisplayName: constants.TargetChainName,
		NativeCurrency: NativeCurrency{
			Name:     constants.TargetCurrencyName,
			Symbol:   constants.TargetCurrencySymbol,
			Decimals: constants.TargetCurrencyDecimals,
		},
		ExplorerURL: constants.TargetExplorerURL,
	}
}

// WithRPCURL returns a copy pointing at a different RPC endpoint for the same chain.
func (d ChainDescriptor) WithRPCURL(rpcURL string) ChainDescriptor {
	if u := strings.TrimSpace(rpcURL); u != "" {
		d.RPCURL = u
	}
	return d
}

func (d ChainDescriptor) ChainIDHex() string {
	return ChainIDToHex(d.ChainID)
}

func (d ChainDescriptor) Validate() error {
	if d.ChainID == 0 {
		return errors.New("chain id is 0")
	}
	if strings.TrimSpace(d.RPCURL) == "" {
		return errors.New("chain rpc url is empty")
	}
	if strings.TrimSpace(d.DisplayName) == "" {
		return errors.New("chain display name is empty")
	}
	return nil
}

// AddChainParams is the EIP-3085 wallet_addEthereumChain parameter object.
type AddChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	RPCURLs           []string       `json:"rpcUrls"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

func (d ChainDescriptor) AddChainParams() AddChainParams {
	p := AddChainParams{
		ChainID:        d.ChainIDHex(),
		ChainName:      d.DisplayName,
		RPCURLs:        []string{d.RPCURL},
		NativeCurrency: d.NativeCurrency,
	}
	if d.ExplorerURL != "" {
		p.BlockExplorerURLs = []string{d.ExplorerURL}
	}
	return p
}

// SwitchChainParams is the EIP-3326 wallet_switchEthereumChain parameter object.
type SwitchChainParams struct {
	ChainID string `json:"chainId"`
}

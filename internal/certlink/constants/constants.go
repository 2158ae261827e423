package constants

import "time"

const (
	AppName    = "certlink"
	ConfigFile = "config.yaml"
)

// Target chain (Camp Network Basecamp).
const (
	TargetChainID          uint64 = 123420001114
	TargetChainName               = "Camp Network Basecamp"
	TargetRPCURL                  = "https://origin.campnetwork.xyz/"
	TargetExplorerURL             = "https://basecamp.cloud.blockscout.com/"
	TargetCurrencyName            = "CAMP"
	TargetCurrencySymbol          = "CAMP"
	TargetCurrencyDecimals uint8  = 18
)

const (
	CertificateContractAddress = "0x5cA16DD43883423E8ACEF5d2C38b2B7fbcEEAfF1"

	DefaultMintGasLimit uint64 = 500_000

	NativeAddr = "0x0000000000000000000000000000000000000000"
)

// EIP-1193 / EIP-3085 provider error codes.
const (
	ProviderCodeUserRejected      = 4001
	ProviderCodeUnauthorized      = 4100
	ProviderCodeUnrecognizedChain = 4902
)

const (
	DefaultProviderPollInterval = 2 * time.Second
	DefaultReceiptPollInterval  = time.Second

	RequestIDHeader = "X-Request-ID"
)

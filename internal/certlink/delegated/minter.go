package delegated

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/certlink/internal/certlink/constants"
)

// License is the usage license attached to a delegated mint.
type License struct {
	Price        *big.Int
	Duration     uint64 // seconds
	RoyaltyBps   uint16
	PaymentToken common.Address
}

type Attribute struct {
	TraitType string      `json:"trait_type"`
	Value     interface{} `json:"value"`
}

type Metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Attributes  []Attribute `json:"attributes"`
}

// Minter hands a mint to a third-party session and returns the id it
// assigns. The id is both the reference and the token id.
type Minter interface {
	Mint(ctx context.Context, license License, metadata Metadata) (string, error)
}

type Config struct {
	BaseURL  string        `mapstructure:"baseUrl"`
	MintPath string        `mapstructure:"mintPath"`
	APIKey   string        `mapstructure:"apiKey"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

const DefaultMintPath = "/api/v1/mint"

// HTTPMinter talks to the delegated minting service over HTTP.
type HTTPMinter struct {
	httpClient *http.Client
	baseURL    string
	mintPath   string
	apiKey     string
}

func NewHTTPMinter(cfg Config) (*HTTPMinter, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("delegated minting base url is empty")
	}
	path := strings.TrimSpace(cfg.MintPath)
	if path == "" {
		path = DefaultMintPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &HTTPMinter{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    base,
		mintPath:   path,
		apiKey:     strings.TrimSpace(cfg.APIKey),
	}, nil
}

type mintRequest struct {
	License  licenseJSON `json:"license"`
	Metadata Metadata    `json:"metadata"`
}

type licenseJSON struct {
	Price        string `json:"price"`
	Duration     uint64 `json:"duration"`
	RoyaltyBps   uint16 `json:"royaltyBps"`
	PaymentToken string `json:"paymentToken"`
}

type mintResponse struct {
	ID      json.RawMessage `json:"id"`
	TokenID json.RawMessage `json:"tokenId"`
}

func (m *HTTPMinter) Mint(ctx context.Context, license License, metadata Metadata) (string, error) {
	price := license.Price
	if price == nil {
		price = new(big.Int)
	}
	req := mintRequest{
		License: licenseJSON{
			Price:        price.String(),
			Duration:     license.Duration,
			RoyaltyBps:   license.RoyaltyBps,
			PaymentToken: license.PaymentToken.Hex(),
		},
		Metadata: metadata,
	}

	var out mintResponse
	if err := m.postJSON(ctx, m.mintPath, req, &out); err != nil {
		return "", err
	}

	id := rawID(out.ID)
	if id == "" {
		id = rawID(out.TokenID)
	}
	if id == "" {
		return "", errors.New("delegated minting service returned no id")
	}
	log.Info("delegated mint accepted", "id", id, "name", metadata.Name)
	return id, nil
}

func (m *HTTPMinter) postJSON(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(constants.RequestIDHeader, uuid.NewString())
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("minting service returned status %d: %s", resp.StatusCode, extractErrorMessage(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func extractErrorMessage(body []byte) string {
	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if msg, ok := parsed["message"].(string); ok && msg != "" {
			return msg
		}
		if errMsg, ok := parsed["error"].(string); ok && errMsg != "" {
			return errMsg
		}
	}
	return string(body)
}

// rawID accepts ids sent as JSON strings or numbers.
func rawID(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return strings.TrimSpace(str)
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num.String()
	}
	return ""
}

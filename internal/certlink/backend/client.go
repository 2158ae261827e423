package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/avast/retry-go/v4"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/certlink/internal/certlink/constants"
	"github.com/quantumauth-io/certlink/internal/certlink/shared"
)

const (
	PathUpdateWallet      = "/api/users/update-wallet/"
	PathUpdateBlockchain  = "/api/certificates/update-blockchain/"
	DefaultSessionCookie  = "sessionid"
	defaultRequestTimeout = 10 * time.Second
	defaultAttempts       = 3
	defaultRetryDelay     = 250 * time.Millisecond
	maxReasonLen          = 200
)

type Config struct {
	BaseURL    string        `mapstructure:"baseUrl"`
	CookieName string        `mapstructure:"cookieName"`
	SessionID  string        `mapstructure:"sessionId"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Attempts   uint          `mapstructure:"attempts"`
	RetryDelay time.Duration `mapstructure:"retryDelay"`
}

// Client mirrors wallet and mint data into the application backend. Every
// write is an idempotent overwrite, so transport failures and 5xx answers
// are retried a bounded number of times.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cookie     *http.Cookie
	attempts   uint
	retryDelay time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("backend base url is empty")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = defaultAttempts
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			// a redirect means the session is not logged in
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		baseURL:    base,
		attempts:   attempts,
		retryDelay: delay,
	}
	if sid := strings.TrimSpace(cfg.SessionID); sid != "" {
		name := cfg.CookieName
		if name == "" {
			name = DefaultSessionCookie
		}
		c.cookie = &http.Cookie{Name: name, Value: sid}
	}
	return c, nil
}

type updateWalletRequest struct {
	WalletAddress string `json:"wallet_address"`
}

type updateBlockchainRequest struct {
	CertificateID   string `json:"certificate_id"`
	TransactionHash string `json:"transaction_hash"`
	NFTTokenID      string `json:"nft_token_id"`
}

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// PersistAccount records the active wallet for the logged-in user.
func (c *Client) PersistAccount(ctx context.Context, account shared.WalletAccount) error {
	if err := c.post(ctx, PathUpdateWallet, updateWalletRequest{WalletAddress: account.String()}); err != nil {
		return err
	}
	log.Info("wallet address saved to backend", "account", account.Short())
	return nil
}

// RecordMintResult stores the chain reference of a minted certificate.
func (c *Client) RecordMintResult(ctx context.Context, certificateID, txRef, tokenID string) error {
	body := updateBlockchainRequest{
		CertificateID:   certificateID,
		TransactionHash: txRef,
		NFTTokenID:      tokenID,
	}
	if err := c.post(ctx, PathUpdateBlockchain, body); err != nil {
		return err
	}
	log.Info("certificate chain data saved to backend", "certificate_id", certificateID, "token_id", tokenID)
	return nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal backend request")
	}
	requestID := uuid.NewString()

	err = retry.Do(
		func() error {
			status, out, err := c.do(ctx, path, requestID, payload)
			if err != nil {
				// transport failure, retry
				return err
			}
			if status >= http.StatusInternalServerError {
				return errors.Newf("status %d: %s", status, out.reason())
			}
			if status >= 300 && status < 400 {
				return retry.Unrecoverable(errors.Newf("redirected (%d), backend session not authenticated", status))
			}
			if status < 200 || status >= 300 {
				return retry.Unrecoverable(errors.Newf("status %d: %s", status, out.reason()))
			}
			if !out.Success {
				return retry.Unrecoverable(errors.New(out.reason()))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		log.Warn("backend sync failed", "path", path, "request_id", requestID, "error", err)
		return shared.Mark(errors.Wrapf(err, "backend %s", path), shared.ErrBackendSyncFailed)
	}
	return nil
}

func (c *Client) do(ctx context.Context, path, requestID string, payload []byte) (int, response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, response{}, retry.Unrecoverable(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(constants.RequestIDHeader, requestID)
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, response{}, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var out response
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			out.Error = truncate(strings.TrimSpace(string(raw)), maxReasonLen)
		}
	}
	return resp.StatusCode, out, nil
}

func (r response) reason() string {
	switch {
	case r.Error != "":
		return r.Error
	case r.Message != "":
		return r.Message
	}
	return "no success flag in response"
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

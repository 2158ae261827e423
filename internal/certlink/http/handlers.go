package http

import (
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/certlink/internal/certlink/shared"
)

type Handler struct {
	session  SessionService
	minter   MintService
	reader   CertificateReader
	contract common.Address
}

func NewHandler(sess SessionService, minter MintService, reader CertificateReader, contract common.Address) *Handler {
	return &Handler{session: sess, minter: minter, reader: reader, contract: contract}
}

// GET /healthz
func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// GET /chain
func (h *Handler) Chain(c *gin.Context) {
	target := h.session.Target()
	c.JSON(http.StatusOK, chainRes{
		ChainDescriptor: target,
		ChainIDHex:      target.ChainIDHex(),
		Contract:        h.contract.Hex(),
	})
}

// GET /session
func (h *Handler) Session(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Snapshot())
}

// POST /session/connect
func (h *Handler) Connect(c *gin.Context) {
	res, err := h.session.Connect(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, connectRes{
		OK:      true,
		Account: res.Account.String(),
		Warning: warningText(res.Warning),
		Session: h.session.Snapshot(),
	})
}

// POST /session/disconnect
func (h *Handler) Disconnect(c *gin.Context) {
	h.session.Disconnect()
	c.JSON(http.StatusOK, gin.H{JSONKeyOK: true})
}

// POST /certificates/mint
func (h *Handler) Mint(c *gin.Context) {
	var req mintReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, shared.Mark(err, shared.ErrInvalidMintRequest))
		return
	}
	mreq, err := req.toMintRequest()
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := h.minter.Mint(c.Request.Context(), mreq)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mintRes{
		OK:                   true,
		Strategy:             h.minter.StrategyName(),
		TransactionReference: res.TransactionReference,
		ReferenceKind:        string(res.ReferenceKind),
		TokenID:              res.TokenID,
		Warning:              warningText(res.Warning),
	})
}

// GET /certificates/:id/verify
//
// Always 200: a failed read is reported as isValid=false.
func (h *Handler) Verify(c *gin.Context) {
	c.JSON(http.StatusOK, h.reader.Verify(c.Request.Context(), c.Param("id")))
}

// GET /certificates/total
func (h *Handler) Total(c *gin.Context) {
	total, err := h.reader.TotalCertificates(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, totalRes{OK: true, Total: total})
}

// GET /accounts/:address/certificates
func (h *Handler) Owned(c *gin.Context) {
	acct, err := shared.NewWalletAccount(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorRes{Error: HTTPErrorInvalidAddressText})
		return
	}
	recs, err := h.reader.ListOwned(c.Request.Context(), acct)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ownedRes{OK: true, Account: acct.String(), Certificates: recs})
}

// GET /accounts/:address/has-certificate?course=...
func (h *Handler) HasCertificate(c *gin.Context) {
	acct, err := shared.NewWalletAccount(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorRes{Error: HTTPErrorInvalidAddressText})
		return
	}
	course := strings.TrimSpace(c.Query("course"))
	if course == "" {
		c.JSON(http.StatusBadRequest, errorRes{Error: HTTPErrorMissingCourseText})
		return
	}
	ok, err := h.reader.HasCertificate(c.Request.Context(), acct, course)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, hasCertificateRes{OK: true, Account: acct.String(), Course: course, HasCertificate: ok})
}

func (r mintReq) toMintRequest() (shared.MintRequest, error) {
	if r.Score == nil || *r.Score < 0 || *r.Score > shared.MaxScore {
		return shared.MintRequest{}, errors.Wrap(shared.ErrInvalidMintRequest, "score must be 0-100")
	}
	out := shared.MintRequest{
		CertificateID: strings.TrimSpace(r.CertificateID),
		CourseName:    r.CourseName,
		StudentName:   r.StudentName,
		Score:         uint8(*r.Score),
	}
	if rcpt := strings.TrimSpace(r.Recipient); rcpt != "" {
		acct, err := shared.NewWalletAccount(rcpt)
		if err != nil {
			return shared.MintRequest{}, shared.Mark(err, shared.ErrInvalidMintRequest)
		}
		out.Recipient = acct
	}
	return out, nil
}

func warningText(err error) string {
	if err == nil {
		return ""
	}
	return shared.UserMessage(err)
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, errorRes{Error: shared.UserMessage(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidMintRequest):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotConnected),
		errors.Is(err, shared.ErrAlreadyConnecting),
		errors.Is(err, shared.ErrSessionReset):
		return http.StatusConflict
	case errors.Is(err, shared.ErrProviderRejected),
		errors.Is(err, shared.ErrChainSwitchDenied),
		errors.Is(err, shared.ErrTransactionRejected):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

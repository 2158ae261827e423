package mint

import (
	"context"
	"math/big"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/certlink/internal/certlink/chains"
	"github.com/quantumauth-io/certlink/internal/certlink/constants"
	"github.com/quantumauth-io/certlink/internal/certlink/contracts/certificate"
	"github.com/quantumauth-io/certlink/internal/certlink/provider"
	"github.com/quantumauth-io/certlink/internal/certlink/shared"
)

type TxSender interface {
	SendTransaction(ctx context.Context, tx provider.TransactionArgs) (common.Hash, error)
}

type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type serviceReceipts struct {
	svc *chains.ReadOnlyService
}

// ReadOnlyReceipts reads receipts through the shared read-only chain client.
func ReadOnlyReceipts(svc *chains.ReadOnlyService) ReceiptSource {
	return serviceReceipts{svc: svc}
}

func (r serviceReceipts) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	client, err := r.svc.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.TransactionReceipt(ctx, txHash)
}

// DirectStrategy calls mintCertificate through the user's wallet and reads
// the token id from the CertificateMinted event.
type DirectStrategy struct {
	contract     *certificate.Contract
	sender       TxSender
	receipts     ReceiptSource
	gasLimit     uint64
	pollInterval time.Duration
}

func NewDirectStrategy(contract *certificate.Contract, sender TxSender, receipts ReceiptSource,
	gasLimit uint64, pollInterval time.Duration) *DirectStrategy {
	if gasLimit == 0 {
		gasLimit = constants.DefaultMintGasLimit
	}
	if pollInterval <= 0 {
		pollInterval = constants.DefaultReceiptPollInterval
	}
	return &DirectStrategy{
		contract:     contract,
		sender:       sender,
		receipts:     receipts,
		gasLimit:     gasLimit,
		pollInterval: pollInterval,
	}
}

func (d *DirectStrategy) Name() string { return "direct" }

func (d *DirectStrategy) Mint(ctx context.Context, from shared.WalletAccount, req shared.MintRequest) (shared.MintResult, error) {
	data, err := d.contract.PackMintCertificate(certificate.MintArgs{
		CertificateID: req.CertificateID,
		CourseName:    req.CourseName,
		StudentName:   req.StudentName,
		StudentWallet: req.Recipient.Address,
		Score:         new(big.Int).SetUint64(uint64(req.Score)),
	})
	if err != nil {
		return shared.MintResult{}, err
	}

	if err := ctx.Err(); err != nil {
		return shared.MintResult{}, errors.Wrap(err, "mint not submitted")
	}
	to := d.contract.Address()
	gas := hexutil.Uint64(d.gasLimit)
	txHash, err := d.sender.SendTransaction(ctx, provider.TransactionArgs{
		From: from.Address,
		To:   &to,
		Gas:  &gas,
		Data: data,
	})
	if err != nil {
		return shared.MintResult{}, err
	}
	log.Info("mint transaction submitted", "tx", txHash.Hex(), "certificate_id", req.CertificateID)

	// once submitted, the mint is waited out even if the caller goes away
	receipt, err := d.waitMined(context.WithoutCancel(ctx), txHash)
	if err != nil {
		return shared.MintResult{}, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return shared.MintResult{}, errors.Wrapf(shared.ErrTransactionReverted, "tx %s", txHash.Hex())
	}

	minted, ok := d.contract.FindCertificateMinted(receipt)
	if !ok {
		return shared.MintResult{}, errors.Wrapf(shared.ErrMintEventMissing, "tx %s", txHash.Hex())
	}

	return shared.MintResult{
		TransactionReference: txHash.Hex(),
		ReferenceKind:        shared.ReferenceTxHash,
		TokenID:              minted.TokenID.String(),
	}, nil
}

// waitMined polls for the receipt until it exists or ctx ends. A node that
// answers with a JSON-RPC error fails the wait; transport hiccups are retried.
func (d *DirectStrategy) waitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := d.receipts.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil && receipt != nil:
			return receipt, nil
		case err == nil, errors.Is(err, ethereum.NotFound):
			// not included yet
		default:
			var coded rpc.Error
			if errors.As(err, &coded) {
				return nil, errors.WithStack(&shared.RPCError{Code: coded.ErrorCode(), Message: coded.Error()})
			}
			log.Warn("receipt lookup failed, retrying", "tx", txHash.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "waiting for tx %s", txHash.Hex())
		case <-ticker.C:
		}
	}
}

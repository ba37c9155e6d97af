package statusclient

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/trustware-io/trustware-sdk-sub002/pkg/bridgerr"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/logger"
)

// ReceiptReader is the part of an RPC client the receipt poller needs.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// EVMReceiptClient observes source-chain confirmations through transaction
// receipts.
type EVMReceiptClient struct {
	clients map[int64]ReceiptReader
	logger  logger.Logger
}

// NewEVMReceiptClient creates a receipt poller over per-chain RPC clients.
func NewEVMReceiptClient(clients map[int64]ReceiptReader, log logger.Logger) *EVMReceiptClient {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &EVMReceiptClient{clients: clients, logger: log}
}

// GetSourceStatus reports pending until a receipt exists, then confirmed or
// failed from the receipt status.
func (c *EVMReceiptClient) GetSourceStatus(ctx context.Context, chainID int64, txHash string) (*LegStatus, error) {
	client, ok := c.clients[chainID]
	if !ok {
		return nil, bridgerr.New(bridgerr.KindValidation, "no RPC client for chain %d", chainID)
	}

	receipt, err := client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return &LegStatus{State: LegPending, TxHash: txHash}, nil
		}
		return nil, bridgerr.Wrap(bridgerr.KindTransientNetwork, err, "failed to get transaction receipt")
	}

	status := &LegStatus{
		State:       LegConfirmed,
		BlockNumber: receipt.BlockNumber.Uint64(),
		TxHash:      txHash,
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		status.State = LegFailed
		c.logger.NoticeWithChain(chainID, "Transaction %s reverted in block %d", txHash, status.BlockNumber)
	}
	return status, nil
}

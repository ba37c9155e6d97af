// Package statusclient provides the chain and relay status boundaries the
// tracker polls. Implementations are unreliable network services; callers
// own retry and backoff policy.
package statusclient

import (
	"context"
	"encoding/json"
	"math/big"
)

// LegState is the observed state of one leg of a transfer.
type LegState string

const (
	LegPending   LegState = "pending"
	LegConfirmed LegState = "confirmed"
	LegFailed    LegState = "failed"
)

// LegStatus is one observation of a transfer leg. BlockNumber is set when
// confirmed. ToAmountWei is reported for destination legs when the service
// knows the received amount. Raw is the service's payload kept verbatim.
type LegStatus struct {
	State       LegState
	BlockNumber uint64
	TxHash      string
	ToAmountWei *big.Int
	Raw         json.RawMessage
}

// Client reports per-leg chain status for a transfer.
type Client interface {
	// GetSourceStatus reports the source-chain status of a transaction.
	GetSourceStatus(ctx context.Context, chainID int64, txHash string) (*LegStatus, error)

	// GetDestStatus reports the destination-chain status. The reference is
	// the source transaction hash; bridges key their destination records
	// off it.
	GetDestStatus(ctx context.Context, chainID int64, ref string) (*LegStatus, error)
}

// RelayStatus is the general message-passing relay's view of a transfer.
type RelayStatus struct {
	State      LegState
	GasStatus  string
	TxURL      string
	DestTxHash string
	Raw        json.RawMessage
}

// RelayClient reports relay status for general message-passing transfers.
// Such transfers only settle when both the relay and the destination chain
// confirm receipt.
type RelayClient interface {
	GetRelayStatus(ctx context.Context, srcChainID int64, sourceTxHash string) (*RelayStatus, error)
}

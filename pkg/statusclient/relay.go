package statusclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/trustware-io/trustware-sdk-sub002/pkg/bridgerr"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/logger"
)

// relayExplorerTxURL renders the relay explorer link for a source tx hash.
const relayExplorerTxURL = "https://axelarscan.io/gmp/%s"

// relayStatusWire is the relay API's wire shape.
type relayStatusWire struct {
	Status     string          `json:"status"`    // "executing" | "executed" | "error"
	GasStatus  string          `json:"gasStatus"` // "gas_paid" | "gas_paid_enough_gas" | ...
	DestTxHash string          `json:"destTxHash,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// HTTPRelayClient queries the general message-passing relay's status API.
type HTTPRelayClient struct {
	inner *HTTPStatusClient
}

var _ RelayClient = (*HTTPRelayClient)(nil)

// NewHTTPRelayClient creates a relay status client sharing the HTTP setup
// of the status client.
func NewHTTPRelayClient(endpoint string, log logger.Logger) *HTTPRelayClient {
	return &HTTPRelayClient{inner: NewHTTPStatusClient(endpoint, log)}
}

// GetRelayStatus reports the relay's own view of a transfer. The relay is
// only consulted for GMP transfers; success additionally requires the
// destination chain to confirm receipt.
func (c *HTTPRelayClient) GetRelayStatus(ctx context.Context, srcChainID int64, sourceTxHash string) (*RelayStatus, error) {
	url := fmt.Sprintf("%s/v1/gmp?chainId=%d&txHash=%s", c.inner.endpoint, srcChainID, sourceTxHash)
	body, err := c.inner.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var wire relayStatusWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, bridgerr.Wrap(bridgerr.KindTransientNetwork, err, "failed to decode relay response")
	}

	state := LegPending
	switch wire.Status {
	case "executed":
		state = LegConfirmed
	case "error", "insufficient_fee":
		state = LegFailed
	}

	return &RelayStatus{
		State:      state,
		GasStatus:  wire.GasStatus,
		TxURL:      fmt.Sprintf(relayExplorerTxURL, sourceTxHash),
		DestTxHash: wire.DestTxHash,
		Raw:        wire.Raw,
	}, nil
}

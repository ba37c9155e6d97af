package statusclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/trustware-io/trustware-sdk-sub002/pkg/bridgerr"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/logger"
)

// legStatusWire is the status API's wire shape. Amounts come as base-unit
// integer strings.
type legStatusWire struct {
	Status      string          `json:"status"` // "pending" | "confirmed" | "failed"
	BlockNumber uint64          `json:"blockNumber"`
	TxHash      string          `json:"txHash"`
	ToAmount    string          `json:"toAmount,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// HTTPStatusClient queries a bridge status API for per-leg transfer state.
type HTTPStatusClient struct {
	endpoint   string
	httpClient *http.Client
	logger     logger.Logger
}

var _ Client = (*HTTPStatusClient)(nil)

// NewHTTPStatusClient creates a new status API client
func NewHTTPStatusClient(endpoint string, log logger.Logger) *HTTPStatusClient {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &HTTPStatusClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: log,
	}
}

func (c *HTTPStatusClient) GetSourceStatus(ctx context.Context, chainID int64, txHash string) (*LegStatus, error) {
	url := fmt.Sprintf("%s/v1/status/source?chainId=%d&txHash=%s", c.endpoint, chainID, txHash)
	return c.fetchLeg(ctx, url)
}

func (c *HTTPStatusClient) GetDestStatus(ctx context.Context, chainID int64, ref string) (*LegStatus, error) {
	url := fmt.Sprintf("%s/v1/status/destination?chainId=%d&ref=%s", c.endpoint, chainID, ref)
	return c.fetchLeg(ctx, url)
}

func (c *HTTPStatusClient) fetchLeg(ctx context.Context, url string) (*LegStatus, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var wire legStatusWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, bridgerr.Wrap(bridgerr.KindTransientNetwork, err, "failed to decode status response")
	}

	status := &LegStatus{
		State:       parseLegState(wire.Status),
		BlockNumber: wire.BlockNumber,
		TxHash:      wire.TxHash,
		Raw:         wire.Raw,
	}
	if wire.ToAmount != "" {
		amount, ok := new(big.Int).SetString(wire.ToAmount, 10)
		if !ok {
			return nil, bridgerr.New(bridgerr.KindTransientNetwork, "status API returned invalid amount %q", wire.ToAmount)
		}
		status.ToAmountWei = amount
	}
	return status, nil
}

func (c *HTTPStatusClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, bridgerr.Wrap(bridgerr.KindValidation, err, "failed to build status request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, bridgerr.Wrap(bridgerr.KindTransientNetwork, err, "status request failed")
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Error("Failed to close response body: %v", closeErr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, bridgerr.Wrap(bridgerr.KindTransientNetwork, err, "failed to read status response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, bridgerr.New(bridgerr.KindTransientNetwork,
			"unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func parseLegState(s string) LegState {
	switch s {
	case "confirmed", "success", "done":
		return LegConfirmed
	case "failed", "error", "reverted":
		return LegFailed
	default:
		return LegPending
	}
}

// Composite routes source observations through chain receipts and
// destination observations through the status API.
type Composite struct {
	Source interface {
		GetSourceStatus(ctx context.Context, chainID int64, txHash string) (*LegStatus, error)
	}
	Dest Client
}

var _ Client = (*Composite)(nil)

func (c *Composite) GetSourceStatus(ctx context.Context, chainID int64, txHash string) (*LegStatus, error) {
	return c.Source.GetSourceStatus(ctx, chainID, txHash)
}

func (c *Composite) GetDestStatus(ctx context.Context, chainID int64, ref string) (*LegStatus, error) {
	return c.Dest.GetDestStatus(ctx, chainID, ref)
}

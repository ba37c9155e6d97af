package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/trustware-io/trustware-sdk-sub002/pkg/bridgerr"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/logger"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/metrics"
)

// quoteResponse is the wire shape of the quote API. Amounts come as
// base-unit integer strings.
type quoteResponse struct {
	RequestID string          `json:"requestId"`
	ToAmount  string          `json:"toAmount"`
	To        string          `json:"to"`
	Data      string          `json:"data"`
	Value     string          `json:"value"`
	GasLimit  uint64          `json:"gasLimit"`
	IsGMP     bool            `json:"isGmp"`
	FeeCosts  []feeCostWire   `json:"feeCosts,omitempty"`
	Route     json.RawMessage `json:"route,omitempty"`
}

type feeCostWire struct {
	Name   string `json:"name"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPClient talks to a route aggregator over its JSON API.
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
	logger     logger.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a new quote API client
func NewHTTPClient(endpoint string, log logger.Logger) *HTTPClient {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &HTTPClient{
		endpoint:   endpoint,
		httpClient: createHTTPClient(),
		logger:     log,
	}
}

// Quote requests a route quote for the given transfer parameters.
func (c *HTTPClient) Quote(ctx context.Context, req Request) (*RouteQuote, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, bridgerr.Wrap(bridgerr.KindValidation, err, "failed to encode quote request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/quote", bytes.NewReader(body))
	if err != nil {
		return nil, bridgerr.Wrap(bridgerr.KindValidation, err, "failed to build quote request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.QuoteRequests.WithLabelValues("network_error").Inc()
		return nil, bridgerr.Wrap(bridgerr.KindTransientNetwork, err, "quote request failed")
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Error("Failed to close response body: %v", closeErr)
		}
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.QuoteRequests.WithLabelValues("network_error").Inc()
		return nil, bridgerr.Wrap(bridgerr.KindTransientNetwork, err, "failed to read quote response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decoding
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnprocessableEntity:
		// The aggregator found no route or no liquidity for these
		// parameters. Retrying the same request cannot help.
		metrics.QuoteRequests.WithLabelValues("no_route").Inc()
		var apiErr errorResponse
		_ = json.Unmarshal(bodyBytes, &apiErr)
		if apiErr.Error == "" {
			apiErr.Error = "no route found"
		}
		return nil, bridgerr.New(bridgerr.KindQuote, "no route: %s", apiErr.Error)
	case resp.StatusCode == http.StatusBadRequest:
		metrics.QuoteRequests.WithLabelValues("bad_request").Inc()
		return nil, bridgerr.New(bridgerr.KindValidation, "quote request rejected: %s", string(bodyBytes))
	default:
		metrics.QuoteRequests.WithLabelValues("upstream_error").Inc()
		return nil, bridgerr.New(bridgerr.KindTransientNetwork,
			"unexpected status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var wire quoteResponse
	if err := json.Unmarshal(bodyBytes, &wire); err != nil {
		metrics.QuoteRequests.WithLabelValues("decode_error").Inc()
		return nil, bridgerr.Wrap(bridgerr.KindTransientNetwork, err, "failed to decode quote response")
	}

	routeQuote, err := wire.toRouteQuote()
	if err != nil {
		metrics.QuoteRequests.WithLabelValues("decode_error").Inc()
		return nil, err
	}

	metrics.QuoteRequests.WithLabelValues("success").Inc()
	c.logger.DebugWithChain(req.FromChainID, "Quote %s: toAmount=%s gmp=%v",
		routeQuote.RequestID, routeQuote.ToAmount.String(), routeQuote.IsGMP)
	return routeQuote, nil
}

func (w *quoteResponse) toRouteQuote() (*RouteQuote, error) {
	toAmount, ok := new(big.Int).SetString(w.ToAmount, 10)
	if !ok || toAmount.Sign() <= 0 {
		return nil, bridgerr.New(bridgerr.KindQuote, "quote returned invalid toAmount %q", w.ToAmount)
	}

	value := new(big.Int)
	if w.Value != "" {
		if _, ok := value.SetString(w.Value, 10); !ok {
			return nil, bridgerr.New(bridgerr.KindQuote, "quote returned invalid value %q", w.Value)
		}
	}

	data, err := decodeHex(w.Data)
	if err != nil {
		return nil, bridgerr.Wrap(bridgerr.KindQuote, err, "quote returned invalid calldata")
	}

	feeCosts := make([]FeeCost, 0, len(w.FeeCosts))
	for _, fc := range w.FeeCosts {
		amount, ok := new(big.Int).SetString(fc.Amount, 10)
		if !ok {
			return nil, bridgerr.New(bridgerr.KindQuote, "quote returned invalid fee amount %q", fc.Amount)
		}
		feeCosts = append(feeCosts, FeeCost{Name: fc.Name, Token: fc.Token, AmountWei: amount})
	}

	return &RouteQuote{
		RequestID: w.RequestID,
		ToAmount:  toAmount,
		To:        w.To,
		Data:      data,
		Value:     value,
		GasLimit:  w.GasLimit,
		IsGMP:     w.IsGMP,
		FeeCosts:  feeCosts,
		RouteRaw:  w.Route,
	}, nil
}

func decodeHex(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}

// Helper function to create an HTTP client with timeouts
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Package quote provides the client boundary to the external routing and
// quoting service. The service is treated as untrusted, possibly slow and
// possibly rate-limited; callers decide retry policy from the error kind.
package quote

import (
	"context"
	"encoding/json"
	"math/big"
)

// Request carries normalized transfer parameters to the quote service.
type Request struct {
	FromChainID int64  `json:"fromChainId"`
	ToChainID   int64  `json:"toChainId"`
	FromToken   string `json:"fromToken"`
	ToToken     string `json:"toToken"`
	FromAmount  string `json:"fromAmount"`
	FromAddress string `json:"fromAddress"`
	ToAddress   string `json:"toAddress"`
	SlippageBps int    `json:"slippageBps"`
}

// FeeCost is one fee line quoted by the service.
type FeeCost struct {
	Name      string   `json:"name"`
	Token     string   `json:"token"`
	AmountWei *big.Int `json:"-"`
}

// RouteQuote is a proposed route with its price and the call to execute it.
// RouteRaw is the service's payload kept verbatim; the engine never looks
// inside it.
type RouteQuote struct {
	RequestID string
	ToAmount  *big.Int
	To        string
	Data      []byte
	Value     *big.Int
	GasLimit  uint64
	IsGMP     bool
	FeeCosts  []FeeCost
	RouteRaw  json.RawMessage
}

// Client obtains route quotes for transfer parameters.
type Client interface {
	// Quote returns a route quote or a classified error: KindQuote when no
	// route/liquidity exists (caller must change parameters), or
	// KindTransientNetwork for upstream failures worth retrying.
	Quote(ctx context.Context, req Request) (*RouteQuote, error)
}

package models

import (
	"encoding/json"
	"math/big"
)

// RouteParams are the user-supplied parameters for a transfer.
// FromAmount is a base-unit integer string; SlippageBps is the slippage
// tolerance in basis points, zero meaning "apply the default".
type RouteParams struct {
	FromChainID int64  `json:"from_chain_id"`
	ToChainID   int64  `json:"to_chain_id"`
	FromToken   string `json:"from_token"`
	ToToken     string `json:"to_token"`
	FromAmount  string `json:"from_amount"`
	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`
	SlippageBps int    `json:"slippage_bps,omitempty"`
}

// TxRequest is the chain-submittable call produced by the route builder
// and handed to the wallet capability.
type TxRequest struct {
	ChainID  int64    `json:"chain_id"`
	To       string   `json:"to"`
	Data     []byte   `json:"data"`
	Value    *big.Int `json:"value"`
	GasLimit uint64   `json:"gas_limit,omitempty"`
}

// FeeCost is one line of the quoted fee breakdown.
type FeeCost struct {
	Name      string   `json:"name"`
	Token     string   `json:"token"`
	AmountWei *big.Int `json:"amount_wei"`
}

// BuildRouteResult is the route builder's output. It is ephemeral: the
// orchestrator consumes it to populate the intent's quoted amounts and the
// transaction request, it is never persisted.
type BuildRouteResult struct {
	RequestID        string
	QuoteToAmountWei *big.Int
	MinToAmountWei   *big.Int
	TxRequest        *TxRequest
	FeeCosts         []FeeCost
	IsGMP            bool
	RouteRaw         json.RawMessage
}

package models

import (
	"encoding/json"
	"math/big"
	"time"
)

// StatusChange is one entry in an intent's append-only status history.
type StatusChange struct {
	Status    Status     `json:"status"`
	Reason    FailReason `json:"reason,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// RouteIntent is a user's declared transfer intention. Endpoints and the
// source amount are immutable after creation; the quoted amounts may only
// change while the intent is still in the created state.
type RouteIntent struct {
	ID          string `json:"id"`
	FromChainID int64  `json:"from_chain_id"`
	ToChainID   int64  `json:"to_chain_id"`
	FromToken   string `json:"from_token"`
	ToToken     string `json:"to_token"`
	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`

	FromAmountWei    *big.Int `json:"from_amount_wei"`
	QuoteToAmountWei *big.Int `json:"quote_to_amount_wei"`
	MinToAmountWei   *big.Int `json:"min_to_amount_wei"`

	// RequestID correlates the intent with the external quote service.
	// RouteRaw is the quoting boundary's payload stored verbatim for audit;
	// the engine never interprets its contents.
	RequestID string          `json:"request_id"`
	RouteRaw  json.RawMessage `json:"route_raw,omitempty"`

	Status     Status         `json:"status"`
	FailReason FailReason     `json:"fail_reason,omitempty"`
	History    []StatusChange `json:"history,omitempty"`

	CreatedDate time.Time `json:"created_date"`
	UpdatedDate time.Time `json:"updated_date"`
}

// SetStatus applies a guarded status change, appending to the history and
// bumping UpdatedDate. It is the only way intent status should ever move.
func (i *RouteIntent) SetStatus(to Status, reason FailReason, now time.Time) error {
	if err := Transition(i.Status, to); err != nil {
		return err
	}
	i.Status = to
	i.FailReason = reason
	i.History = append(i.History, StatusChange{Status: to, Reason: reason, Timestamp: now})
	i.UpdatedDate = now
	return nil
}

// Clone returns a deep copy so store reads never alias live records.
func (i *RouteIntent) Clone() *RouteIntent {
	if i == nil {
		return nil
	}
	out := *i
	out.FromAmountWei = cloneBig(i.FromAmountWei)
	out.QuoteToAmountWei = cloneBig(i.QuoteToAmountWei)
	out.MinToAmountWei = cloneBig(i.MinToAmountWei)
	if i.RouteRaw != nil {
		out.RouteRaw = append(json.RawMessage(nil), i.RouteRaw...)
	}
	if i.History != nil {
		out.History = append([]StatusChange(nil), i.History...)
	}
	return &out
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

package models

import (
	"math/big"
	"time"
)

// Transaction is the on-chain execution record for a submitted intent.
// One intent has at most one active transaction; resubmission after a
// failure creates a new record, never mutates the old one.
type Transaction struct {
	ID       string `json:"id"`
	IntentID string `json:"intent_id"`

	SourceTxHash string `json:"source_tx_hash"`
	DestTxHash   string `json:"dest_tx_hash,omitempty"`

	Status     Status     `json:"status"`
	FailReason FailReason `json:"fail_reason,omitempty"`

	// Block numbers observed at confirmation time. Once set they may only
	// grow; a lower re-observation is a data error, not a valid update.
	FromChainBlock uint64 `json:"from_chain_block,omitempty"`
	ToChainBlock   uint64 `json:"to_chain_block,omitempty"`

	ToAmountWei *big.Int `json:"to_amount_wei,omitempty"`

	// Relay fields, present only for general message-passing transfers.
	IsGMPTransaction bool   `json:"is_gmp_transaction,omitempty"`
	GasStatus        string `json:"gas_status,omitempty"`
	AxelarTxURL      string `json:"axelar_transaction_url,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedDate time.Time `json:"updated_date"`

	// TimeSpentMs is the wall-clock duration from submission to terminal
	// status, computed once and immutable afterwards.
	TimeSpentMs int64 `json:"time_spent_ms,omitempty"`
}

// SetStatus applies a guarded status change and, on reaching a terminal
// state, records the time spent exactly once.
func (t *Transaction) SetStatus(to Status, reason FailReason, now time.Time) error {
	if err := Transition(t.Status, to); err != nil {
		return err
	}
	t.Status = to
	t.FailReason = reason
	t.UpdatedDate = now
	if to.Terminal() && t.TimeSpentMs == 0 && !t.SubmittedAt.IsZero() {
		t.TimeSpentMs = now.Sub(t.SubmittedAt).Milliseconds()
	}
	return nil
}

// ObserveSourceBlock records the source confirmation block, rejecting
// regressions.
func (t *Transaction) ObserveSourceBlock(block uint64) bool {
	if t.FromChainBlock != 0 && block < t.FromChainBlock {
		return false
	}
	t.FromChainBlock = block
	return true
}

// ObserveDestBlock records the destination confirmation block, rejecting
// regressions.
func (t *Transaction) ObserveDestBlock(block uint64) bool {
	if t.ToChainBlock != 0 && block < t.ToChainBlock {
		return false
	}
	t.ToChainBlock = block
	return true
}

// Clone returns a deep copy so store reads never alias live records.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	out := *t
	out.ToAmountWei = cloneBig(t.ToAmountWei)
	return &out
}

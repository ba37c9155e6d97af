package models

import "fmt"

// Status is the lifecycle state shared by RouteIntent and Transaction.
type Status string

const (
	StatusCreated   Status = "created"
	StatusSubmitted Status = "submitted"
	StatusBridging  Status = "bridging"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
)

// FailReason records why a record reached the failed state.
type FailReason string

const (
	ReasonNone             FailReason = ""
	ReasonUserCancelled    FailReason = "user_cancelled"
	ReasonWalletRejected   FailReason = "wallet_rejected"
	ReasonSourceReverted   FailReason = "source_reverted"
	ReasonRelayFailed      FailReason = "relay_failed"
	ReasonAmountMismatch   FailReason = "amount_mismatch"
	ReasonTrackingTimeout  FailReason = "tracking_timeout"
	ReasonBroadcastTimeout FailReason = "broadcast_timeout"
	ReasonQuoteError       FailReason = "quote_error"
)

var statusRank = map[Status]int{
	StatusCreated:   0,
	StatusSubmitted: 1,
	StatusBridging:  2,
	StatusSuccess:   3,
	StatusFailed:    3,
}

// Terminal reports whether no further transitions are accepted.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Rank returns the position of the status in the lifecycle ordering.
// Both terminal states share the highest rank.
func (s Status) Rank() int {
	return statusRank[s]
}

// CanTransition is the single transition guard checked on every status
// write. Allowed moves: one step forward in the lifecycle, the tie-break
// jump submitted -> success when both legs confirm in the same poll cycle,
// and failed from any non-terminal state. Everything else, including any
// backward move and any write on a terminal record, is rejected.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	switch from {
	case StatusCreated:
		return to == StatusSubmitted
	case StatusSubmitted:
		return to == StatusBridging || to == StatusSuccess
	case StatusBridging:
		return to == StatusSuccess
	}
	return false
}

// Transition validates a status move, returning a descriptive error when
// the guard rejects it.
func Transition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal status transition %s -> %s", from, to)
	}
	return nil
}

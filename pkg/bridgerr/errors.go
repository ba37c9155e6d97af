package bridgerr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies engine errors so callers can decide between surfacing,
// retrying and giving up.
type Kind string

const (
	// KindValidation indicates malformed input, never retried.
	KindValidation Kind = "validation"
	// KindQuote indicates no viable route exists, not retried automatically.
	KindQuote Kind = "quote"
	// KindTransientNetwork indicates a collaborator call failed in a way
	// that a bounded retry may resolve.
	KindTransientNetwork Kind = "transient_network"
	// KindWalletRejected indicates the wallet declined to sign, terminal.
	KindWalletRejected Kind = "wallet_rejected"
	// KindSubmissionTimeout indicates the broadcast did not complete; the
	// same intent may be resubmitted.
	KindSubmissionTimeout Kind = "submission_timeout"
	// KindTrackingTimeout indicates the tracking deadline elapsed without a
	// terminal chain state. This is a policy decision, not evidence the
	// transfer failed on-chain.
	KindTrackingTimeout Kind = "tracking_timeout"
	// KindAmountMismatch indicates the received amount fell below the
	// guaranteed minimum, terminal and flagged for manual reconciliation.
	KindAmountMismatch Kind = "amount_mismatch"
	// KindInternal covers everything the taxonomy does not name.
	KindInternal Kind = "internal"
)

// Error carries a kind alongside the wrapped cause.
type Error struct {
	kind Kind
	err  error
}

func (e *Error) Error() string { return e.err.Error() }

func (e *Error) Unwrap() error { return e.err }

// Kind returns the classification of the error.
func (e *Error) Kind() Kind { return e.kind }

// New creates a classified error from a format string.
func New(kind Kind, format string, args ...interface{}) error {
	return &Error{kind: kind, err: errors.Errorf(format, args...)}
}

// Wrap classifies an existing error, annotating it with a message.
// Returns nil if err is nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, err: errors.Wrap(err, msg)}
}

// KindOf extracts the kind from anywhere in the error chain, or
// KindInternal if the error carries no classification.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.kind
	}
	return KindInternal
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether the caller may retry the failed operation.
// Only transient network failures and submission timeouts qualify.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransientNetwork, KindSubmissionTimeout:
		return true
	default:
		return false
	}
}

// ClassifyCollaborator maps a raw error from an external collaborator (RPC
// node, quote API, relay API) onto the taxonomy by inspecting the message.
// Anything unrecognized is treated as transient so a bounded retry gets
// a chance before the error is surfaced.
func ClassifyCollaborator(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var be *Error
	if errors.As(err, &be) {
		return be.kind
	}

	errStr := err.Error()

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "context deadline exceeded") ||
		strings.Contains(errStr, "timed out") ||
		strings.Contains(errStr, "no response") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "connection reset") {
		return KindTransientNetwork
	}

	if strings.Contains(errStr, "missing trie node") ||
		strings.Contains(errStr, "receipt not found") ||
		strings.Contains(errStr, "block not found") ||
		strings.Contains(errStr, "layer stale") {
		return KindTransientNetwork
	}

	if strings.Contains(errStr, "user rejected") ||
		strings.Contains(errStr, "user denied") ||
		strings.Contains(errStr, "request rejected") {
		return KindWalletRejected
	}

	if strings.Contains(errStr, "no route found") ||
		strings.Contains(errStr, "no liquidity") ||
		strings.Contains(errStr, "no quotes available") {
		return KindQuote
	}

	return KindTransientNetwork
}

// Reclassify wraps err under the kind ClassifyCollaborator assigns it.
func Reclassify(err error, msg string) error {
	if err == nil {
		return nil
	}
	return Wrap(ClassifyCollaborator(err), err, msg)
}

var _ fmt.Stringer = Kind("")

func (k Kind) String() string { return string(k) }

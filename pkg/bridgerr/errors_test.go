package bridgerr

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	t.Run("direct classification", func(t *testing.T) {
		err := New(KindQuote, "no route for pair")
		assert.Equal(t, KindQuote, KindOf(err))
		assert.True(t, IsKind(err, KindQuote))
		assert.False(t, IsKind(err, KindValidation))
	})

	t.Run("classification survives wrapping", func(t *testing.T) {
		err := New(KindWalletRejected, "user rejected")
		wrapped := errors.Wrap(err, "submit failed")
		assert.Equal(t, KindWalletRejected, KindOf(wrapped))
	})

	t.Run("unclassified errors are internal", func(t *testing.T) {
		assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	})

	t.Run("wrap nil is nil", func(t *testing.T) {
		assert.NoError(t, Wrap(KindValidation, nil, "ignored"))
	})
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		kind      Kind
		retryable bool
	}{
		{kind: KindTransientNetwork, retryable: true},
		{kind: KindSubmissionTimeout, retryable: true},
		{kind: KindValidation, retryable: false},
		{kind: KindQuote, retryable: false},
		{kind: KindWalletRejected, retryable: false},
		{kind: KindTrackingTimeout, retryable: false},
		{kind: KindAmountMismatch, retryable: false},
		{kind: KindInternal, retryable: false},
	}

	for _, tc := range tests {
		t.Run(string(tc.kind), func(t *testing.T) {
			assert.Equal(t, tc.retryable, Retryable(New(tc.kind, "x")))
		})
	}
	assert.False(t, Retryable(nil))
}

func TestClassifyCollaborator(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), expected: KindTransientNetwork},
		{name: "deadline exceeded", err: errors.New("context deadline exceeded"), expected: KindTransientNetwork},
		{name: "missing trie node", err: errors.New("missing trie node abc123"), expected: KindTransientNetwork},
		{name: "user rejection", err: errors.New("user rejected the request"), expected: KindWalletRejected},
		{name: "no route", err: errors.New("no route found for token pair"), expected: KindQuote},
		{name: "no liquidity", err: errors.New("no liquidity on destination"), expected: KindQuote},
		{name: "unknown defaults to transient", err: errors.New("weird upstream failure"), expected: KindTransientNetwork},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ClassifyCollaborator(tc.err))
		})
	}

	t.Run("already classified errors keep their kind", func(t *testing.T) {
		err := New(KindValidation, "timeout in the message must not reclassify this")
		assert.Equal(t, KindValidation, ClassifyCollaborator(err))
	})
}

func TestReclassify(t *testing.T) {
	assert.NoError(t, Reclassify(nil, "ignored"))

	err := Reclassify(errors.New("connection reset by peer"), "status poll")
	require.Error(t, err)
	assert.Equal(t, KindTransientNetwork, KindOf(err))
	assert.Contains(t, err.Error(), "status poll")
}

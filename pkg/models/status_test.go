package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{name: "created to submitted", from: StatusCreated, to: StatusSubmitted, allowed: true},
		{name: "created to failed", from: StatusCreated, to: StatusFailed, allowed: true},
		{name: "created to bridging skips submission", from: StatusCreated, to: StatusBridging, allowed: false},
		{name: "created to success skips everything", from: StatusCreated, to: StatusSuccess, allowed: false},
		{name: "submitted to bridging", from: StatusSubmitted, to: StatusBridging, allowed: true},
		{name: "submitted to success tie-break", from: StatusSubmitted, to: StatusSuccess, allowed: true},
		{name: "submitted to failed", from: StatusSubmitted, to: StatusFailed, allowed: true},
		{name: "bridging to success", from: StatusBridging, to: StatusSuccess, allowed: true},
		{name: "bridging to failed", from: StatusBridging, to: StatusFailed, allowed: true},
		{name: "bridging back to submitted", from: StatusBridging, to: StatusSubmitted, allowed: false},
		{name: "submitted back to created", from: StatusSubmitted, to: StatusCreated, allowed: false},
		{name: "success is terminal", from: StatusSuccess, to: StatusFailed, allowed: false},
		{name: "failed is terminal", from: StatusFailed, to: StatusSuccess, allowed: false},
		{name: "failed stays failed", from: StatusFailed, to: StatusFailed, allowed: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to))
		})
	}
}

func TestStatusOrdering(t *testing.T) {
	assert.Less(t, StatusCreated.Rank(), StatusSubmitted.Rank())
	assert.Less(t, StatusSubmitted.Rank(), StatusBridging.Rank())
	assert.Less(t, StatusBridging.Rank(), StatusSuccess.Rank())
	assert.Equal(t, StatusSuccess.Rank(), StatusFailed.Rank())

	// Any transition the guard allows never moves the rank backward.
	statuses := []Status{StatusCreated, StatusSubmitted, StatusBridging, StatusSuccess, StatusFailed}
	for _, from := range statuses {
		for _, to := range statuses {
			if CanTransition(from, to) {
				assert.GreaterOrEqual(t, to.Rank(), from.Rank(),
					"transition %s -> %s moves backward", from, to)
			}
		}
	}
}

func TestIntentSetStatus(t *testing.T) {
	now := time.Now()

	t.Run("appends history and bumps updated date", func(t *testing.T) {
		intent := &RouteIntent{Status: StatusCreated}
		require.NoError(t, intent.SetStatus(StatusSubmitted, ReasonNone, now))
		require.Len(t, intent.History, 1)
		assert.Equal(t, StatusSubmitted, intent.History[0].Status)
		assert.Equal(t, now, intent.UpdatedDate)
	})

	t.Run("terminal intent rejects further writes", func(t *testing.T) {
		intent := &RouteIntent{Status: StatusFailed, FailReason: ReasonUserCancelled}
		err := intent.SetStatus(StatusSuccess, ReasonNone, now)
		require.Error(t, err)
		assert.Equal(t, StatusFailed, intent.Status)
		assert.Equal(t, ReasonUserCancelled, intent.FailReason)
		assert.Empty(t, intent.History)
	})
}

func TestTransactionTimeSpent(t *testing.T) {
	submitted := time.Now()

	tx := &Transaction{Status: StatusSubmitted, SubmittedAt: submitted}
	require.NoError(t, tx.SetStatus(StatusBridging, ReasonNone, submitted.Add(2*time.Second)))
	assert.Zero(t, tx.TimeSpentMs, "non-terminal status must not record time spent")

	require.NoError(t, tx.SetStatus(StatusSuccess, ReasonNone, submitted.Add(5*time.Second)))
	assert.Equal(t, int64(5000), tx.TimeSpentMs)

	// Terminal records never change again, including the recorded duration.
	err := tx.SetStatus(StatusFailed, ReasonTrackingTimeout, submitted.Add(10*time.Second))
	require.Error(t, err)
	assert.Equal(t, int64(5000), tx.TimeSpentMs)
}

func TestBlockObservationsAreMonotonic(t *testing.T) {
	tx := &Transaction{}

	assert.True(t, tx.ObserveSourceBlock(100))
	assert.True(t, tx.ObserveSourceBlock(100))
	assert.True(t, tx.ObserveSourceBlock(105))
	assert.False(t, tx.ObserveSourceBlock(99), "a lower block is a data error")
	assert.Equal(t, uint64(105), tx.FromChainBlock)

	assert.True(t, tx.ObserveDestBlock(42))
	assert.False(t, tx.ObserveDestBlock(41))
	assert.Equal(t, uint64(42), tx.ToChainBlock)
}

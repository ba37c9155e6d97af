package tracker

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustware-io/trustware-sdk-sub002/pkg/models"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/statusclient"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/store"
)

// fakeStatusClient replays scripted leg observations. The last entry in a
// script is sticky so a lagging poller keeps seeing the final state.
type fakeStatusClient struct {
	mu     sync.Mutex
	source []*statusclient.LegStatus
	dest   []*statusclient.LegStatus
}

func pop(script *[]*statusclient.LegStatus) *statusclient.LegStatus {
	s := *script
	if len(s) == 0 {
		return &statusclient.LegStatus{State: statusclient.LegPending}
	}
	head := s[0]
	if len(s) > 1 {
		*script = s[1:]
	}
	return head
}

func (f *fakeStatusClient) GetSourceStatus(_ context.Context, _ int64, _ string) (*statusclient.LegStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return pop(&f.source), nil
}

func (f *fakeStatusClient) GetDestStatus(_ context.Context, _ int64, _ string) (*statusclient.LegStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return pop(&f.dest), nil
}

type fakeRelayClient struct {
	mu     sync.Mutex
	script []*statusclient.RelayStatus
}

func (f *fakeRelayClient) GetRelayStatus(_ context.Context, _ int64, _ string) (*statusclient.RelayStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.script) == 0 {
		return &statusclient.RelayStatus{State: statusclient.LegPending}, nil
	}
	head := f.script[0]
	if len(f.script) > 1 {
		f.script = f.script[1:]
	}
	return head, nil
}

// serialCommitter is a minimal Committer over a store, serializing all
// commits behind one lock.
type serialCommitter struct {
	mu    sync.Mutex
	store store.Store
}

func (c *serialCommitter) Commit(ctx context.Context, transactionID string, fn func(*models.RouteIntent, *models.Transaction) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx, err := c.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	intent, err := c.store.GetIntent(ctx, tx.IntentID)
	if err != nil {
		return err
	}
	if err := fn(intent, tx); err != nil {
		return err
	}
	return c.store.UpdateIntentAndTransaction(ctx, intent, tx)
}

func seedSubmitted(t *testing.T, st store.Store, isGMP bool) (*models.RouteIntent, *models.Transaction) {
	t.Helper()
	ctx := context.Background()
	intent := &models.RouteIntent{
		ID:             "intent-1",
		FromChainID:    1,
		ToChainID:      137,
		Status:         models.StatusSubmitted,
		MinToAmountWei: big.NewInt(990),
	}
	tx := &models.Transaction{
		ID:               "tx-1",
		IntentID:         "intent-1",
		SourceTxHash:     "0xsrc",
		Status:           models.StatusSubmitted,
		IsGMPTransaction: isGMP,
		SubmittedAt:      time.Now(),
	}
	require.NoError(t, st.PutIntent(ctx, intent))
	require.NoError(t, st.PutTransaction(ctx, tx))
	return intent, tx
}

func newTestTracker(st store.Store, status statusclient.Client, relay statusclient.RelayClient, deadline time.Duration) *Tracker {
	cfg := Config{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		PollRetries:     0,
		Deadline:        deadline,
	}
	return New(st, status, relay, &serialCommitter{store: st}, cfg, nil)
}

func collect(t *testing.T, snapshots <-chan Snapshot) []Snapshot {
	t.Helper()
	var out []Snapshot
	timeout := time.After(5 * time.Second)
	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				return out
			}
			out = append(out, snap)
		case <-timeout:
			t.Fatal("tracking session did not finish in time")
		}
	}
}

func TestTrackHappyPath(t *testing.T) {
	st := store.NewMemoryStore()
	seedSubmitted(t, st, false)

	status := &fakeStatusClient{
		source: []*statusclient.LegStatus{
			{State: statusclient.LegPending},
			{State: statusclient.LegConfirmed, BlockNumber: 100},
		},
		dest: []*statusclient.LegStatus{
			{State: statusclient.LegPending},
			{State: statusclient.LegConfirmed, BlockNumber: 55, TxHash: "0xdst", ToAmountWei: big.NewInt(995)},
		},
	}
	tr := newTestTracker(st, status, &fakeRelayClient{}, time.Minute)

	snapshots, err := tr.Track(context.Background(), "tx-1")
	require.NoError(t, err)
	got := collect(t, snapshots)

	require.Len(t, got, 2)
	assert.Equal(t, models.StatusBridging, got[0].Status)
	assert.Equal(t, uint64(100), got[0].FromChainBlock)
	assert.Equal(t, models.StatusSuccess, got[1].Status)
	assert.Equal(t, uint64(55), got[1].ToChainBlock)

	intent, err := st.GetIntent(context.Background(), "intent-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, intent.Status)
	assert.Equal(t, models.ReasonNone, intent.FailReason)

	tx, err := st.GetTransaction(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, tx.Status)
	assert.Equal(t, "0xdst", tx.DestTxHash)
	assert.Equal(t, "995", tx.ToAmountWei.String())
	assert.Positive(t, tx.TimeSpentMs)
}

func TestTrackTieBreakSkipsBridging(t *testing.T) {
	st := store.NewMemoryStore()
	seedSubmitted(t, st, false)

	// Both legs confirm on the very first poll cycle.
	status := &fakeStatusClient{
		source: []*statusclient.LegStatus{{State: statusclient.LegConfirmed, BlockNumber: 100}},
		dest:   []*statusclient.LegStatus{{State: statusclient.LegConfirmed, BlockNumber: 55, ToAmountWei: big.NewInt(1000)}},
	}
	tr := newTestTracker(st, status, &fakeRelayClient{}, time.Minute)

	snapshots, err := tr.Track(context.Background(), "tx-1")
	require.NoError(t, err)
	got := collect(t, snapshots)

	require.Len(t, got, 1)
	assert.Equal(t, models.StatusSuccess, got[0].Status)

	intent, err := st.GetIntent(context.Background(), "intent-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, intent.Status)
	// The jump is recorded as a single transition, never through bridging.
	for _, change := range intent.History {
		assert.NotEqual(t, models.StatusBridging, change.Status)
	}
}

func TestTrackSourceReverted(t *testing.T) {
	st := store.NewMemoryStore()
	seedSubmitted(t, st, false)

	status := &fakeStatusClient{
		source: []*statusclient.LegStatus{{State: statusclient.LegFailed, BlockNumber: 100}},
	}
	tr := newTestTracker(st, status, &fakeRelayClient{}, time.Minute)

	snapshots, err := tr.Track(context.Background(), "tx-1")
	require.NoError(t, err)
	got := collect(t, snapshots)

	require.Len(t, got, 1)
	assert.Equal(t, models.StatusFailed, got[0].Status)
	assert.Equal(t, models.ReasonSourceReverted, got[0].FailReason)
}

func TestTrackAmountMismatch(t *testing.T) {
	tests := []struct {
		name     string
		toAmount *big.Int
	}{
		{name: "below minimum", toAmount: big.NewInt(989)},
		{name: "zero amount", toAmount: big.NewInt(0)},
		{name: "unreported amount", toAmount: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := store.NewMemoryStore()
			seedSubmitted(t, st, false)

			status := &fakeStatusClient{
				source: []*statusclient.LegStatus{{State: statusclient.LegConfirmed, BlockNumber: 100}},
				dest:   []*statusclient.LegStatus{{State: statusclient.LegConfirmed, BlockNumber: 55, ToAmountWei: tc.toAmount}},
			}
			tr := newTestTracker(st, status, &fakeRelayClient{}, time.Minute)

			snapshots, err := tr.Track(context.Background(), "tx-1")
			require.NoError(t, err)
			got := collect(t, snapshots)

			require.NotEmpty(t, got)
			final := got[len(got)-1]
			assert.Equal(t, models.StatusFailed, final.Status)
			assert.Equal(t, models.ReasonAmountMismatch, final.FailReason)
		})
	}
}

func TestTrackMinimumAmountExactlyMet(t *testing.T) {
	st := store.NewMemoryStore()
	seedSubmitted(t, st, false)

	status := &fakeStatusClient{
		source: []*statusclient.LegStatus{{State: statusclient.LegConfirmed, BlockNumber: 100}},
		dest:   []*statusclient.LegStatus{{State: statusclient.LegConfirmed, BlockNumber: 55, ToAmountWei: big.NewInt(990)}},
	}
	tr := newTestTracker(st, status, &fakeRelayClient{}, time.Minute)

	snapshots, err := tr.Track(context.Background(), "tx-1")
	require.NoError(t, err)
	got := collect(t, snapshots)

	require.NotEmpty(t, got)
	assert.Equal(t, models.StatusSuccess, got[len(got)-1].Status)
}

func TestTrackDeadline(t *testing.T) {
	t.Run("source never confirmed is a broadcast timeout", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedSubmitted(t, st, false)

		status := &fakeStatusClient{
			source: []*statusclient.LegStatus{{State: statusclient.LegPending}},
		}
		tr := newTestTracker(st, status, &fakeRelayClient{}, 0)

		snapshots, err := tr.Track(context.Background(), "tx-1")
		require.NoError(t, err)
		got := collect(t, snapshots)

		require.Len(t, got, 1)
		assert.Equal(t, models.StatusFailed, got[0].Status)
		assert.Equal(t, models.ReasonBroadcastTimeout, got[0].FailReason)
	})

	t.Run("source confirmed is a tracking timeout", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedSubmitted(t, st, false)

		status := &fakeStatusClient{
			source: []*statusclient.LegStatus{{State: statusclient.LegConfirmed, BlockNumber: 100}},
			dest:   []*statusclient.LegStatus{{State: statusclient.LegPending}},
		}
		tr := newTestTracker(st, status, &fakeRelayClient{}, 0)

		snapshots, err := tr.Track(context.Background(), "tx-1")
		require.NoError(t, err)
		got := collect(t, snapshots)

		require.Len(t, got, 2)
		assert.Equal(t, models.StatusBridging, got[0].Status)
		assert.Equal(t, models.StatusFailed, got[1].Status)
		assert.Equal(t, models.ReasonTrackingTimeout, got[1].FailReason)
	})
}

func TestTrackGMPWaitsForRelay(t *testing.T) {
	st := store.NewMemoryStore()
	seedSubmitted(t, st, true)

	status := &fakeStatusClient{
		source: []*statusclient.LegStatus{{State: statusclient.LegConfirmed, BlockNumber: 100}},
		dest:   []*statusclient.LegStatus{{State: statusclient.LegConfirmed, BlockNumber: 55, ToAmountWei: big.NewInt(1000)}},
	}
	relay := &fakeRelayClient{
		script: []*statusclient.RelayStatus{
			{State: statusclient.LegPending, GasStatus: "gas_paid"},
			{State: statusclient.LegConfirmed, GasStatus: "gas_paid_enough_gas", DestTxHash: "0xrelay", TxURL: "https://axelarscan.io/gmp/0xsrc"},
		},
	}
	tr := newTestTracker(st, status, relay, time.Minute)

	snapshots, err := tr.Track(context.Background(), "tx-1")
	require.NoError(t, err)
	got := collect(t, snapshots)

	// The destination confirming before the relay never settles the record.
	final := got[len(got)-1]
	assert.Equal(t, models.StatusSuccess, final.Status)
	for _, snap := range got[:len(got)-1] {
		assert.NotEqual(t, models.StatusSuccess, snap.Status)
	}

	tx, err := st.GetTransaction(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "0xrelay", tx.DestTxHash)
	assert.Equal(t, "gas_paid_enough_gas", tx.GasStatus)
	assert.Equal(t, "https://axelarscan.io/gmp/0xsrc", tx.AxelarTxURL)
}

func TestTrackGMPRelayFailure(t *testing.T) {
	st := store.NewMemoryStore()
	seedSubmitted(t, st, true)

	status := &fakeStatusClient{
		source: []*statusclient.LegStatus{{State: statusclient.LegConfirmed, BlockNumber: 100}},
	}
	relay := &fakeRelayClient{
		script: []*statusclient.RelayStatus{{State: statusclient.LegFailed, GasStatus: "not_enough_gas"}},
	}
	tr := newTestTracker(st, status, relay, time.Minute)

	snapshots, err := tr.Track(context.Background(), "tx-1")
	require.NoError(t, err)
	got := collect(t, snapshots)

	require.NotEmpty(t, got)
	final := got[len(got)-1]
	assert.Equal(t, models.StatusFailed, final.Status)
	assert.Equal(t, models.ReasonRelayFailed, final.FailReason)
}

func TestTrackRejectsTerminalAndMissing(t *testing.T) {
	st := store.NewMemoryStore()
	tr := newTestTracker(st, &fakeStatusClient{}, &fakeRelayClient{}, time.Minute)

	_, err := tr.Track(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, st.PutTransaction(context.Background(), &models.Transaction{
		ID:       "tx-done",
		IntentID: "intent-1",
		Status:   models.StatusSuccess,
	}))
	_, err = tr.Track(context.Background(), "tx-done")
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
}

func TestTrackCancellation(t *testing.T) {
	st := store.NewMemoryStore()
	seedSubmitted(t, st, false)

	status := &fakeStatusClient{
		source: []*statusclient.LegStatus{{State: statusclient.LegPending}},
	}
	tr := newTestTracker(st, status, &fakeRelayClient{}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	snapshots, err := tr.Track(ctx, "tx-1")
	require.NoError(t, err)
	cancel()
	got := collect(t, snapshots)

	assert.Empty(t, got)
	tx, err := st.GetTransaction(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, tx.Status, "cancellation never fails the record")
}

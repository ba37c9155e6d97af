// Package tracker polls chain and relay status for submitted transactions
// until they reach a terminal state. A tracking session is a bounded,
// cancellable generator of status snapshots: it backs off while nothing
// changes, retries individual polls a bounded number of times, and fails
// the record by policy when the overall deadline elapses.
package tracker

import (
	"context"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trustware-io/trustware-sdk-sub002/pkg/circuitbreaker"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/logger"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/metrics"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/models"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/statusclient"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/store"
)

// ErrAlreadyTerminal is returned when a tracking session is requested for a
// transaction that already settled. Terminal records are inspected through
// a fresh store lookup, never by resuming a session.
var ErrAlreadyTerminal = errors.New("transaction already terminal")

// Committer serializes writes to an intent/transaction pair. The lifecycle
// orchestrator implements it with a per-intent lock so the tracker never
// races another writer for the same id.
type Committer interface {
	Commit(ctx context.Context, transactionID string, fn func(*models.RouteIntent, *models.Transaction) error) error
}

// Config bounds a tracking session.
type Config struct {
	// InitialInterval is the poll interval while status is changing.
	InitialInterval time.Duration
	// MaxInterval caps the backoff under repeated no-change polls.
	MaxInterval time.Duration
	// PollRetries bounds transient-failure retries per poll, not per session.
	PollRetries int
	// Deadline bounds the whole session. Exceeding it fails the record by
	// policy; that is not evidence the transfer failed on-chain.
	Deadline time.Duration
	// Breaker configures the per-chain circuit breakers.
	Breaker BreakerConfig
}

// BreakerConfig holds circuit breaker settings for status polling.
type BreakerConfig struct {
	Enabled      bool
	Threshold    int
	Window       time.Duration
	ResetTimeout time.Duration
}

// Snapshot is one observed state of a tracked transaction.
type Snapshot struct {
	TransactionID  string
	IntentID       string
	Status         models.Status
	FailReason     models.FailReason
	FromChainBlock uint64
	ToChainBlock   uint64
	At             time.Time
}

// Tracker runs tracking sessions. Sessions for different intents are
// independent: an error in one never aborts another.
type Tracker struct {
	store     store.Store
	status    statusclient.Client
	relay     statusclient.RelayClient
	committer Committer
	cfg       Config
	logger    logger.Logger

	breakersMu sync.Mutex
	breakers   map[int64]*circuitbreaker.CircuitBreaker
}

// New creates a tracker.
func New(st store.Store, status statusclient.Client, relay statusclient.RelayClient, committer Committer, cfg Config, log logger.Logger) *Tracker {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Tracker{
		store:     st,
		status:    status,
		relay:     relay,
		committer: committer,
		cfg:       cfg,
		logger:    log,
		breakers:  make(map[int64]*circuitbreaker.CircuitBreaker),
	}
}

// Track starts a tracking session for a transaction and returns the channel
// of status snapshots. The channel closes when the session ends: terminal
// status, deadline, or context cancellation. Cancelling stops polling but
// never rolls back an already-committed status.
func (t *Tracker) Track(ctx context.Context, transactionID string) (<-chan Snapshot, error) {
	tx, err := t.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status.Terminal() {
		return nil, ErrAlreadyTerminal
	}

	intent, err := t.store.GetIntent(ctx, tx.IntentID)
	if err != nil {
		return nil, err
	}

	snapshots := make(chan Snapshot, 16)
	metrics.ActiveTrackers.Inc()
	go t.run(ctx, intent.FromChainID, transactionID, snapshots)
	return snapshots, nil
}

func (t *Tracker) run(ctx context.Context, fromChainID int64, transactionID string, snapshots chan<- Snapshot) {
	defer close(snapshots)
	defer metrics.ActiveTrackers.Dec()

	deadline := time.Now().Add(t.cfg.Deadline)
	interval := t.cfg.InitialInterval

	for {
		changed, terminal := t.pollCycle(ctx, transactionID, snapshots)
		if terminal {
			return
		}

		if time.Now().After(deadline) {
			t.failByDeadline(ctx, transactionID, snapshots)
			return
		}

		if changed {
			interval = t.cfg.InitialInterval
		} else {
			interval *= 2
			if interval > t.cfg.MaxInterval {
				interval = t.cfg.MaxInterval
			}
		}

		select {
		case <-ctx.Done():
			t.logger.InfoWithChain(fromChainID, "Tracking cancelled for transaction %s", transactionID)
			return
		case <-time.After(interval):
		}
	}
}

// observation is what one poll cycle learned from the collaborators.
type observation struct {
	sourceConfirmed bool
	sourceFailed    bool
	sourceBlock     uint64
	destConfirmed   bool
	destFailed      bool
	destBlock       uint64
	destTxHash      string
	toAmountWei     *big.Int
	gasStatus       string
	relayTxURL      string
	relayFailed     bool
	relayConfirmed  bool
}

// pollCycle performs one observation pass and commits whatever it learned.
// Returns whether anything changed and whether the record is now terminal.
func (t *Tracker) pollCycle(ctx context.Context, transactionID string, snapshots chan<- Snapshot) (changed, terminal bool) {
	tx, err := t.store.GetTransaction(ctx, transactionID)
	if err != nil {
		t.logger.Error("Tracking %s: failed to load transaction: %v", transactionID, err)
		return false, false
	}
	if tx.Status.Terminal() {
		return false, true
	}
	intent, err := t.store.GetIntent(ctx, tx.IntentID)
	if err != nil {
		t.logger.Error("Tracking %s: failed to load intent: %v", transactionID, err)
		return false, false
	}

	obs := t.observe(ctx, intent, tx)
	if obs == nil {
		return false, false
	}

	return t.apply(ctx, transactionID, intent.FromChainID, obs, snapshots)
}

// observe queries the collaborators without mutating anything.
func (t *Tracker) observe(ctx context.Context, intent *models.RouteIntent, tx *models.Transaction) *observation {
	obs := &observation{
		sourceConfirmed: tx.FromChainBlock != 0,
		sourceBlock:     tx.FromChainBlock,
	}

	if !obs.sourceConfirmed {
		leg, err := t.pollLeg(ctx, intent.FromChainID, "source", func(ctx context.Context) (*statusclient.LegStatus, error) {
			return t.status.GetSourceStatus(ctx, intent.FromChainID, tx.SourceTxHash)
		})
		if err != nil {
			return nil
		}
		switch leg.State {
		case statusclient.LegConfirmed:
			obs.sourceConfirmed = true
			obs.sourceBlock = leg.BlockNumber
		case statusclient.LegFailed:
			obs.sourceFailed = true
			obs.sourceBlock = leg.BlockNumber
			return obs
		default:
			// Still pending; nothing else to look at this cycle.
			return obs
		}
	}

	// Without a relay client a GMP transfer settles like a plain one,
	// on destination confirmation alone.
	gmp := tx.IsGMPTransaction && t.relay != nil
	if gmp {
		relay, err := t.pollRelay(ctx, intent.FromChainID, tx.SourceTxHash)
		if err != nil {
			return nil
		}
		obs.gasStatus = relay.GasStatus
		obs.relayTxURL = relay.TxURL
		switch relay.State {
		case statusclient.LegFailed:
			obs.relayFailed = true
			return obs
		case statusclient.LegConfirmed:
			obs.relayConfirmed = true
			if relay.DestTxHash != "" {
				obs.destTxHash = relay.DestTxHash
			}
		}
	}

	leg, err := t.pollLeg(ctx, intent.ToChainID, "destination", func(ctx context.Context) (*statusclient.LegStatus, error) {
		return t.status.GetDestStatus(ctx, intent.ToChainID, tx.SourceTxHash)
	})
	if err != nil {
		return obs
	}
	switch leg.State {
	case statusclient.LegConfirmed:
		// GMP transfers only settle once the relay also confirms receipt.
		if gmp && !obs.relayConfirmed {
			return obs
		}
		obs.destConfirmed = true
		obs.destBlock = leg.BlockNumber
		if leg.TxHash != "" {
			obs.destTxHash = leg.TxHash
		}
		if leg.ToAmountWei != nil {
			obs.toAmountWei = leg.ToAmountWei
		}
	case statusclient.LegFailed:
		obs.destFailed = true
		obs.destBlock = leg.BlockNumber
	}
	return obs
}

// apply commits the observation to both records and emits a snapshot when
// something changed.
func (t *Tracker) apply(ctx context.Context, transactionID string, fromChainID int64, obs *observation, snapshots chan<- Snapshot) (changed, terminal bool) {
	var snap *Snapshot

	err := t.committer.Commit(ctx, transactionID, func(intent *models.RouteIntent, tx *models.Transaction) error {
		if tx.Status.Terminal() {
			return ErrAlreadyTerminal
		}
		now := time.Now()
		before := *tx

		if obs.sourceBlock != 0 && !tx.ObserveSourceBlock(obs.sourceBlock) {
			t.logger.ErrorWithChain(fromChainID,
				"Transaction %s: observed source block %d below recorded %d, ignoring",
				transactionID, obs.sourceBlock, tx.FromChainBlock)
		}
		if obs.destBlock != 0 && !tx.ObserveDestBlock(obs.destBlock) {
			t.logger.ErrorWithChain(fromChainID,
				"Transaction %s: observed dest block %d below recorded %d, ignoring",
				transactionID, obs.destBlock, tx.ToChainBlock)
		}
		if obs.destTxHash != "" && tx.DestTxHash == "" {
			tx.DestTxHash = obs.destTxHash
		}
		if obs.gasStatus != "" {
			tx.GasStatus = obs.gasStatus
		}
		if obs.relayTxURL != "" && tx.AxelarTxURL == "" {
			tx.AxelarTxURL = obs.relayTxURL
		}
		if obs.toAmountWei != nil {
			tx.ToAmountWei = obs.toAmountWei
		}

		target, reason := decide(obs, intent, tx)
		if target != "" && target != tx.Status {
			if err := tx.SetStatus(target, reason, now); err != nil {
				return err
			}
			if err := intent.SetStatus(target, reason, now); err != nil {
				return err
			}
		} else {
			tx.UpdatedDate = now
		}

		if before.Status != tx.Status || before.FromChainBlock != tx.FromChainBlock ||
			before.ToChainBlock != tx.ToChainBlock || before.DestTxHash != tx.DestTxHash ||
			before.GasStatus != tx.GasStatus {
			snap = &Snapshot{
				TransactionID:  tx.ID,
				IntentID:       intent.ID,
				Status:         tx.Status,
				FailReason:     tx.FailReason,
				FromChainBlock: tx.FromChainBlock,
				ToChainBlock:   tx.ToChainBlock,
				At:             now,
			}
			if tx.Status.Terminal() {
				metrics.IntentsSettled.WithLabelValues(
					strconv.FormatInt(intent.FromChainID, 10),
					string(tx.Status), string(tx.FailReason)).Inc()
				metrics.TrackingDuration.WithLabelValues(
					strconv.FormatInt(intent.FromChainID, 10),
					string(tx.Status)).Observe(float64(tx.TimeSpentMs) / 1000)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyTerminal) {
			metrics.DiscardedUpdates.WithLabelValues(strconv.FormatInt(fromChainID, 10)).Inc()
			t.logger.DebugWithChain(fromChainID,
				"Transaction %s already terminal, discarding tracker update", transactionID)
			return false, true
		}
		t.logger.Error("Tracking %s: commit failed: %v", transactionID, err)
		return false, false
	}

	if snap == nil {
		return false, false
	}
	snapshots <- *snap
	return true, snap.Status.Terminal()
}

// decide maps an observation onto the target status, honoring the tie-break:
// when source and destination confirm in the same cycle the record skips
// bridging and goes straight to its terminal state.
func decide(obs *observation, intent *models.RouteIntent, tx *models.Transaction) (models.Status, models.FailReason) {
	switch {
	case obs.sourceFailed:
		return models.StatusFailed, models.ReasonSourceReverted
	case obs.relayFailed:
		return models.StatusFailed, models.ReasonRelayFailed
	case obs.destFailed:
		return models.StatusFailed, models.ReasonRelayFailed
	case obs.destConfirmed:
		if obs.toAmountWei == nil || obs.toAmountWei.Sign() == 0 {
			// A zero or unreported amount on a non-zero transfer is
			// implausible; flag for manual reconciliation.
			return models.StatusFailed, models.ReasonAmountMismatch
		}
		if intent.MinToAmountWei != nil && obs.toAmountWei.Cmp(intent.MinToAmountWei) < 0 {
			return models.StatusFailed, models.ReasonAmountMismatch
		}
		return models.StatusSuccess, models.ReasonNone
	case obs.sourceConfirmed && tx.Status == models.StatusSubmitted:
		return models.StatusBridging, models.ReasonNone
	}
	return "", models.ReasonNone
}

// failByDeadline applies the policy failure when the session deadline
// elapses. A record whose source leg never confirmed gets the distinct
// broadcast-timeout reason so callers can tell the cases apart.
func (t *Tracker) failByDeadline(ctx context.Context, transactionID string, snapshots chan<- Snapshot) {
	var snap *Snapshot
	err := t.committer.Commit(ctx, transactionID, func(intent *models.RouteIntent, tx *models.Transaction) error {
		if tx.Status.Terminal() {
			return ErrAlreadyTerminal
		}
		now := time.Now()
		reason := models.ReasonTrackingTimeout
		if tx.FromChainBlock == 0 {
			reason = models.ReasonBroadcastTimeout
		}
		if err := tx.SetStatus(models.StatusFailed, reason, now); err != nil {
			return err
		}
		if err := intent.SetStatus(models.StatusFailed, reason, now); err != nil {
			return err
		}
		metrics.IntentsSettled.WithLabelValues(
			strconv.FormatInt(intent.FromChainID, 10),
			string(models.StatusFailed), string(reason)).Inc()
		snap = &Snapshot{
			TransactionID:  tx.ID,
			IntentID:       intent.ID,
			Status:         tx.Status,
			FailReason:     tx.FailReason,
			FromChainBlock: tx.FromChainBlock,
			ToChainBlock:   tx.ToChainBlock,
			At:             now,
		}
		t.logger.NoticeWithChain(intent.FromChainID,
			"Transaction %s failed by tracking deadline (%s); on-chain state may still settle",
			transactionID, reason)
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrAlreadyTerminal) {
			t.logger.Error("Tracking %s: deadline commit failed: %v", transactionID, err)
		}
		return
	}
	if snap != nil {
		snapshots <- *snap
	}
}

// pollLeg queries one leg with bounded retries on transient failures. The
// per-chain breaker keeps a degraded endpoint from eating every retry.
func (t *Tracker) pollLeg(ctx context.Context, chainID int64, leg string, fetch func(context.Context) (*statusclient.LegStatus, error)) (*statusclient.LegStatus, error) {
	breaker := t.breaker(chainID)
	if breaker.IsOpen() {
		return nil, errors.Errorf("circuit breaker open for chain %d", chainID)
	}

	var lastErr error
	for attempt := 0; attempt <= t.cfg.PollRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		metrics.TrackingPolls.WithLabelValues(strconv.FormatInt(chainID, 10), leg).Inc()
		status, err := fetch(ctx)
		if err == nil {
			return status, nil
		}
		lastErr = err
		metrics.TrackingPollErrors.WithLabelValues(strconv.FormatInt(chainID, 10)).Inc()
		if breaker.RecordFailure() {
			metrics.CircuitBreakerTrips.WithLabelValues(strconv.FormatInt(chainID, 10)).Inc()
			break
		}
	}
	t.logger.ErrorWithChain(chainID, "Status poll (%s) failed after retries: %v", leg, lastErr)
	return nil, lastErr
}

func (t *Tracker) pollRelay(ctx context.Context, chainID int64, sourceTxHash string) (*statusclient.RelayStatus, error) {
	breaker := t.breaker(chainID)
	if breaker.IsOpen() {
		return nil, errors.Errorf("circuit breaker open for chain %d", chainID)
	}

	var lastErr error
	for attempt := 0; attempt <= t.cfg.PollRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		metrics.TrackingPolls.WithLabelValues(strconv.FormatInt(chainID, 10), "relay").Inc()
		status, err := t.relay.GetRelayStatus(ctx, chainID, sourceTxHash)
		if err == nil {
			return status, nil
		}
		lastErr = err
		metrics.TrackingPollErrors.WithLabelValues(strconv.FormatInt(chainID, 10)).Inc()
		if breaker.RecordFailure() {
			metrics.CircuitBreakerTrips.WithLabelValues(strconv.FormatInt(chainID, 10)).Inc()
			break
		}
	}
	t.logger.ErrorWithChain(chainID, "Relay poll failed after retries: %v", lastErr)
	return nil, lastErr
}

func (t *Tracker) breaker(chainID int64) *circuitbreaker.CircuitBreaker {
	t.breakersMu.Lock()
	defer t.breakersMu.Unlock()
	breaker, ok := t.breakers[chainID]
	if !ok {
		breaker = circuitbreaker.NewCircuitBreaker(
			t.cfg.Breaker.Enabled,
			t.cfg.Breaker.Threshold,
			t.cfg.Breaker.Window,
			t.cfg.Breaker.ResetTimeout,
			t.logger,
		)
		t.breakers[chainID] = breaker
	}
	return breaker
}

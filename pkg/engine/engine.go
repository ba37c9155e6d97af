// Package engine is the lifecycle orchestrator: it owns the only code path
// allowed to transition a route intent's status, from creation through
// submission to the terminal state the tracker reconciles.
package engine

import (
	"context"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trustware-io/trustware-sdk-sub002/pkg/bridgerr"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/chains"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/logger"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/metrics"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/models"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/routebuilder"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/statusclient"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/store"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/tracker"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/wallet"
)

// Engine drives route intents from user request to terminal status.
// Multiple intents progress concurrently; updates to any one intent and its
// transaction are serialized through a per-intent lock.
type Engine struct {
	baseCtx context.Context
	store   store.Store
	builder *routebuilder.Builder
	wallet  wallet.Wallet
	tracker *tracker.Tracker
	logger  logger.Logger

	// locks holds one mutex per intent id: the single-writer discipline.
	locks sync.Map

	// routes caches ephemeral build results between CreateIntent and
	// SubmitIntent. A miss (after a restart) triggers a fresh build.
	routesMu sync.Mutex
	routes   map[string]*models.BuildRouteResult

	// cancels stops individual tracking sessions.
	cancelsMu sync.Mutex
	cancels   map[string]context.CancelFunc

	wg sync.WaitGroup
}

// New creates the engine and wires its tracker. The context bounds all
// background tracking sessions.
func New(
	ctx context.Context,
	st store.Store,
	builder *routebuilder.Builder,
	w wallet.Wallet,
	status statusclient.Client,
	relay statusclient.RelayClient,
	trackerCfg tracker.Config,
	log logger.Logger,
) *Engine {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	e := &Engine{
		baseCtx: ctx,
		store:   st,
		builder: builder,
		wallet:  w,
		logger:  log,
		routes:  make(map[string]*models.BuildRouteResult),
		cancels: make(map[string]context.CancelFunc),
	}
	e.tracker = tracker.New(st, status, relay, e, trackerCfg, log)
	return e
}

// CreateIntent validates the parameters, obtains a route and persists a new
// intent in the created state.
func (e *Engine) CreateIntent(ctx context.Context, params models.RouteParams) (*models.RouteIntent, error) {
	// A transfer that changes neither chain nor token is a no-op.
	if params.FromChainID == params.ToChainID && params.FromToken == params.ToToken {
		return nil, bridgerr.New(bridgerr.KindValidation,
			"no-op transfer: same chain %d and token %s", params.FromChainID, params.FromToken)
	}

	fromAmountWei, ok := new(big.Int).SetString(params.FromAmount, 10)
	if !ok || fromAmountWei.Sign() <= 0 {
		return nil, bridgerr.New(bridgerr.KindValidation,
			"amount must be a positive base-unit integer, got %q", params.FromAmount)
	}

	result, err := e.builder.BuildRoute(ctx, params)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	intent := &models.RouteIntent{
		ID:               uuid.NewString(),
		FromChainID:      params.FromChainID,
		ToChainID:        params.ToChainID,
		FromToken:        params.FromToken,
		ToToken:          params.ToToken,
		FromAddress:      params.FromAddress,
		ToAddress:        params.ToAddress,
		FromAmountWei:    fromAmountWei,
		QuoteToAmountWei: result.QuoteToAmountWei,
		MinToAmountWei:   result.MinToAmountWei,
		RequestID:        result.RequestID,
		RouteRaw:         result.RouteRaw,
		Status:           models.StatusCreated,
		History: []models.StatusChange{
			{Status: models.StatusCreated, Timestamp: now},
		},
		CreatedDate: now,
		UpdatedDate: now,
	}

	if err := e.store.PutIntent(ctx, intent); err != nil {
		return nil, errors.Wrap(err, "failed to persist intent")
	}
	e.cacheRoute(intent.ID, result)

	metrics.IntentsCreated.WithLabelValues(
		strconv.FormatInt(params.FromChainID, 10),
		strconv.FormatInt(params.ToChainID, 10)).Inc()
	e.logger.InfoWithChain(params.FromChainID, "Created intent %s (%s -> %s, min %s)",
		intent.ID, params.FromToken, params.ToToken, intent.MinToAmountWei.String())
	return intent.Clone(), nil
}

// RefreshQuote re-runs the route builder for an intent that has not been
// submitted yet, replacing its quoted amounts with a fresh quote.
func (e *Engine) RefreshQuote(ctx context.Context, intentID string) (*models.RouteIntent, error) {
	unlock := e.lockIntent(intentID)
	defer unlock()

	intent, err := e.store.GetIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != models.StatusCreated {
		return nil, bridgerr.New(bridgerr.KindValidation,
			"intent %s is %s; quotes can only be refreshed before submission", intentID, intent.Status)
	}

	result, err := e.builder.BuildRoute(ctx, models.RouteParams{
		FromChainID: intent.FromChainID,
		ToChainID:   intent.ToChainID,
		FromToken:   intent.FromToken,
		ToToken:     intent.ToToken,
		FromAmount:  intent.FromAmountWei.String(),
		FromAddress: intent.FromAddress,
		ToAddress:   intent.ToAddress,
	})
	if err != nil {
		return nil, err
	}

	intent.QuoteToAmountWei = result.QuoteToAmountWei
	intent.MinToAmountWei = result.MinToAmountWei
	intent.RequestID = result.RequestID
	intent.RouteRaw = result.RouteRaw
	intent.UpdatedDate = time.Now()

	if err := e.store.PutIntent(ctx, intent); err != nil {
		return nil, errors.Wrap(err, "failed to persist refreshed intent")
	}
	e.cacheRoute(intentID, result)
	return intent.Clone(), nil
}

// SubmitIntent hands the built transaction request to the wallet and, on
// acceptance, records the transaction and advances the intent. A
// submission timeout leaves the intent in the created state so the same
// intent can be resubmitted; a wallet rejection is terminal.
func (e *Engine) SubmitIntent(ctx context.Context, intentID string) (*models.Transaction, error) {
	unlock := e.lockIntent(intentID)
	defer unlock()

	intent, err := e.store.GetIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != models.StatusCreated {
		return nil, bridgerr.New(bridgerr.KindValidation,
			"intent %s is %s; only created intents can be submitted", intentID, intent.Status)
	}

	result := e.cachedRoute(intentID)
	if result == nil {
		// Build results are ephemeral; after a restart the route is rebuilt
		// from the persisted parameters before submitting.
		result, err = e.builder.BuildRoute(ctx, models.RouteParams{
			FromChainID: intent.FromChainID,
			ToChainID:   intent.ToChainID,
			FromToken:   intent.FromToken,
			ToToken:     intent.ToToken,
			FromAmount:  intent.FromAmountWei.String(),
			FromAddress: intent.FromAddress,
			ToAddress:   intent.ToAddress,
		})
		if err != nil {
			return nil, err
		}
		e.cacheRoute(intentID, result)
	}

	sourceTxHash, err := e.wallet.SignAndSend(ctx, result.TxRequest)
	if err != nil {
		kind := bridgerr.KindOf(err)
		metrics.SubmissionErrors.WithLabelValues(
			strconv.FormatInt(intent.FromChainID, 10), kind.String()).Inc()

		if kind == bridgerr.KindWalletRejected {
			now := time.Now()
			if serr := intent.SetStatus(models.StatusFailed, models.ReasonWalletRejected, now); serr != nil {
				return nil, serr
			}
			if perr := e.store.PutIntent(ctx, intent); perr != nil {
				return nil, errors.Wrap(perr, "failed to persist rejected intent")
			}
			e.dropRoute(intentID)
			return nil, err
		}
		// Submission timeouts and transient failures leave the intent in
		// created; the caller retries by resubmitting the same intent.
		return nil, err
	}

	now := time.Now()
	tx := &models.Transaction{
		ID:               uuid.NewString(),
		IntentID:         intent.ID,
		SourceTxHash:     sourceTxHash,
		Status:           models.StatusSubmitted,
		IsGMPTransaction: result.IsGMP,
		SubmittedAt:      now,
		UpdatedDate:      now,
	}
	if err := intent.SetStatus(models.StatusSubmitted, models.ReasonNone, now); err != nil {
		return nil, err
	}
	if err := e.store.UpdateIntentAndTransaction(ctx, intent, tx); err != nil {
		return nil, errors.Wrap(err, "failed to persist submission")
	}
	e.dropRoute(intentID)

	metrics.IntentsSubmitted.WithLabelValues(strconv.FormatInt(intent.FromChainID, 10)).Inc()
	e.logger.NoticeWithChain(intent.FromChainID, "Submitted intent %s as %s (%s)",
		intentID, tx.ID, chains.ExplorerTxURL(intent.FromChainID, sourceTxHash))

	e.startTracking(tx.ID, intent.FromChainID)
	return tx.Clone(), nil
}

// CancelIntent fails an intent that has not been submitted. Once submitted
// the transfer is on-chain and cancellation is no longer honored.
func (e *Engine) CancelIntent(ctx context.Context, intentID string) error {
	unlock := e.lockIntent(intentID)
	defer unlock()

	intent, err := e.store.GetIntent(ctx, intentID)
	if err != nil {
		return err
	}
	if intent.Status != models.StatusCreated {
		return bridgerr.New(bridgerr.KindValidation,
			"intent %s is %s; only created intents can be cancelled", intentID, intent.Status)
	}

	if err := intent.SetStatus(models.StatusFailed, models.ReasonUserCancelled, time.Now()); err != nil {
		return err
	}
	if err := e.store.PutIntent(ctx, intent); err != nil {
		return errors.Wrap(err, "failed to persist cancellation")
	}
	e.dropRoute(intentID)
	e.logger.InfoWithChain(intent.FromChainID, "Cancelled intent %s", intentID)
	return nil
}

// GetIntent returns the current state of an intent.
func (e *Engine) GetIntent(ctx context.Context, intentID string) (*models.RouteIntent, error) {
	return e.store.GetIntent(ctx, intentID)
}

// GetTransaction returns the current state of a transaction.
func (e *Engine) GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	return e.store.GetTransaction(ctx, transactionID)
}

// ResumeTracking restarts tracking sessions for every non-terminal
// transaction found in the store, typically after a process restart.
func (e *Engine) ResumeTracking(ctx context.Context) error {
	for _, status := range []models.Status{models.StatusSubmitted, models.StatusBridging} {
		txs, err := e.store.ListTransactionsByStatus(ctx, status)
		if err != nil {
			return errors.Wrap(err, "failed to list transactions")
		}
		for _, tx := range txs {
			intent, err := e.store.GetIntent(ctx, tx.IntentID)
			if err != nil {
				e.logger.Error("Resume: intent %s for transaction %s missing: %v", tx.IntentID, tx.ID, err)
				continue
			}
			e.logger.InfoWithChain(intent.FromChainID, "Resuming tracking for transaction %s", tx.ID)
			e.startTracking(tx.ID, intent.FromChainID)
		}
	}
	return nil
}

// StopTracking cancels the tracking session for a transaction. An already
// committed terminal status is not rolled back.
func (e *Engine) StopTracking(transactionID string) {
	e.cancelsMu.Lock()
	cancel, ok := e.cancels[transactionID]
	e.cancelsMu.Unlock()
	if ok {
		cancel()
	}
}

// Wait blocks until all tracking sessions have drained.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Commit implements tracker.Committer: it serializes the read-modify-write
// of an intent/transaction pair under the per-intent lock and persists both
// records together.
func (e *Engine) Commit(ctx context.Context, transactionID string, fn func(*models.RouteIntent, *models.Transaction) error) error {
	tx, err := e.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}

	unlock := e.lockIntent(tx.IntentID)
	defer unlock()

	// Reload both records under the lock.
	tx, err = e.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	intent, err := e.store.GetIntent(ctx, tx.IntentID)
	if err != nil {
		return err
	}

	if err := fn(intent, tx); err != nil {
		return err
	}
	return e.store.UpdateIntentAndTransaction(ctx, intent, tx)
}

func (e *Engine) startTracking(transactionID string, fromChainID int64) {
	trackCtx, cancel := context.WithCancel(e.baseCtx)

	e.cancelsMu.Lock()
	e.cancels[transactionID] = cancel
	e.cancelsMu.Unlock()

	snapshots, err := e.tracker.Track(trackCtx, transactionID)
	if err != nil {
		cancel()
		e.cancelsMu.Lock()
		delete(e.cancels, transactionID)
		e.cancelsMu.Unlock()
		if !errors.Is(err, tracker.ErrAlreadyTerminal) {
			e.logger.ErrorWithChain(fromChainID, "Failed to start tracking %s: %v", transactionID, err)
		}
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			cancel()
			e.cancelsMu.Lock()
			delete(e.cancels, transactionID)
			e.cancelsMu.Unlock()
		}()
		for snap := range snapshots {
			e.logger.InfoWithChain(fromChainID, "Transaction %s -> %s %s",
				snap.TransactionID, snap.Status, snap.FailReason)
		}
	}()
}

func (e *Engine) lockIntent(intentID string) func() {
	v, _ := e.locks.LoadOrStore(intentID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (e *Engine) cacheRoute(intentID string, result *models.BuildRouteResult) {
	e.routesMu.Lock()
	e.routes[intentID] = result
	e.routesMu.Unlock()
}

func (e *Engine) cachedRoute(intentID string) *models.BuildRouteResult {
	e.routesMu.Lock()
	defer e.routesMu.Unlock()
	return e.routes[intentID]
}

func (e *Engine) dropRoute(intentID string) {
	e.routesMu.Lock()
	delete(e.routes, intentID)
	e.routesMu.Unlock()
}

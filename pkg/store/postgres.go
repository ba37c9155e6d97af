package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/big"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trustware-io/trustware-sdk-sub002/pkg/models"
)

// PostgresStore persists records in Postgres. Amounts are stored as
// base-unit integer strings, raw route payloads and status history as JSONB.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore opens a connection pool and verifies connectivity.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	return &PostgresStore{db: db}, nil
}

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS route_intent (
			id               TEXT PRIMARY KEY,
			from_chain_id    BIGINT NOT NULL,
			to_chain_id      BIGINT NOT NULL,
			from_token       TEXT NOT NULL,
			to_token         TEXT NOT NULL,
			from_address     TEXT NOT NULL,
			to_address       TEXT NOT NULL,
			from_amount      TEXT NOT NULL,
			quote_to_amount  TEXT,
			min_to_amount    TEXT,
			request_id       TEXT,
			route_raw        JSONB,
			status           TEXT NOT NULL,
			fail_reason      TEXT NOT NULL DEFAULT '',
			history          JSONB,
			created_date     TIMESTAMPTZ NOT NULL,
			updated_date     TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS route_intent_status_idx ON route_intent (status);

		CREATE TABLE IF NOT EXISTS bridge_transaction (
			id               TEXT PRIMARY KEY,
			intent_id        TEXT NOT NULL REFERENCES route_intent (id),
			source_tx_hash   TEXT NOT NULL,
			dest_tx_hash     TEXT NOT NULL DEFAULT '',
			status           TEXT NOT NULL,
			fail_reason      TEXT NOT NULL DEFAULT '',
			from_chain_block BIGINT NOT NULL DEFAULT 0,
			to_chain_block   BIGINT NOT NULL DEFAULT 0,
			to_amount        TEXT,
			is_gmp           BOOLEAN NOT NULL DEFAULT FALSE,
			gas_status       TEXT NOT NULL DEFAULT '',
			axelar_tx_url    TEXT NOT NULL DEFAULT '',
			submitted_at     TIMESTAMPTZ NOT NULL,
			updated_date     TIMESTAMPTZ NOT NULL,
			time_spent_ms    BIGINT NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS bridge_transaction_status_idx ON bridge_transaction (status);
		CREATE INDEX IF NOT EXISTS bridge_transaction_intent_idx ON bridge_transaction (intent_id);
	`)
	return errors.Wrap(err, "failed to ensure schema")
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func putIntent(ctx context.Context, ex execer, intent *models.RouteIntent) error {
	history, err := json.Marshal(intent.History)
	if err != nil {
		return errors.Wrap(err, "failed to encode status history")
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO route_intent (
			id, from_chain_id, to_chain_id, from_token, to_token,
			from_address, to_address, from_amount, quote_to_amount,
			min_to_amount, request_id, route_raw, status, fail_reason,
			history, created_date, updated_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			quote_to_amount = EXCLUDED.quote_to_amount,
			min_to_amount   = EXCLUDED.min_to_amount,
			request_id      = EXCLUDED.request_id,
			route_raw       = EXCLUDED.route_raw,
			status          = EXCLUDED.status,
			fail_reason     = EXCLUDED.fail_reason,
			history         = EXCLUDED.history,
			updated_date    = EXCLUDED.updated_date`,
		intent.ID,
		intent.FromChainID,
		intent.ToChainID,
		intent.FromToken,
		intent.ToToken,
		intent.FromAddress,
		intent.ToAddress,
		bigString(intent.FromAmountWei),
		bigString(intent.QuoteToAmountWei),
		bigString(intent.MinToAmountWei),
		intent.RequestID,
		nullableJSON(intent.RouteRaw),
		intent.Status,
		intent.FailReason,
		history,
		intent.CreatedDate,
		intent.UpdatedDate,
	)
	return errors.Wrap(err, "failed to upsert intent")
}

func putTransaction(ctx context.Context, ex execer, tx *models.Transaction) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO bridge_transaction (
			id, intent_id, source_tx_hash, dest_tx_hash, status, fail_reason,
			from_chain_block, to_chain_block, to_amount, is_gmp, gas_status,
			axelar_tx_url, submitted_at, updated_date, time_spent_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			dest_tx_hash     = EXCLUDED.dest_tx_hash,
			status           = EXCLUDED.status,
			fail_reason      = EXCLUDED.fail_reason,
			from_chain_block = EXCLUDED.from_chain_block,
			to_chain_block   = EXCLUDED.to_chain_block,
			to_amount        = EXCLUDED.to_amount,
			gas_status       = EXCLUDED.gas_status,
			axelar_tx_url    = EXCLUDED.axelar_tx_url,
			updated_date     = EXCLUDED.updated_date,
			time_spent_ms    = EXCLUDED.time_spent_ms`,
		tx.ID,
		tx.IntentID,
		tx.SourceTxHash,
		tx.DestTxHash,
		tx.Status,
		tx.FailReason,
		int64(tx.FromChainBlock),
		int64(tx.ToChainBlock),
		bigString(tx.ToAmountWei),
		tx.IsGMPTransaction,
		tx.GasStatus,
		tx.AxelarTxURL,
		tx.SubmittedAt,
		tx.UpdatedDate,
		tx.TimeSpentMs,
	)
	return errors.Wrap(err, "failed to upsert transaction")
}

func (s *PostgresStore) PutIntent(ctx context.Context, intent *models.RouteIntent) error {
	return putIntent(ctx, s.db, intent)
}

const intentColumns = `
	id, from_chain_id, to_chain_id, from_token, to_token, from_address,
	to_address, from_amount, quote_to_amount, min_to_amount, request_id,
	route_raw, status, fail_reason, history, created_date, updated_date`

func (s *PostgresStore) GetIntent(ctx context.Context, id string) (*models.RouteIntent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+intentColumns+` FROM route_intent WHERE id = $1`, id)
	return scanIntent(row)
}

func (s *PostgresStore) ListIntentsByStatus(ctx context.Context, status models.Status) ([]*models.RouteIntent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+intentColumns+` FROM route_intent WHERE status = $1`, status)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list intents")
	}
	defer rows.Close()

	var out []*models.RouteIntent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, intent)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PutTransaction(ctx context.Context, tx *models.Transaction) error {
	return putTransaction(ctx, s.db, tx)
}

const transactionColumns = `
	id, intent_id, source_tx_hash, dest_tx_hash, status, fail_reason,
	from_chain_block, to_chain_block, to_amount, is_gmp, gas_status,
	axelar_tx_url, submitted_at, updated_date, time_spent_ms`

func (s *PostgresStore) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM bridge_transaction WHERE id = $1`, id)
	return scanTransaction(row)
}

func (s *PostgresStore) ListTransactionsByStatus(ctx context.Context, status models.Status) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM bridge_transaction WHERE status = $1`, status)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list transactions")
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// UpdateIntentAndTransaction commits both records in one database
// transaction.
func (s *PostgresStore) UpdateIntentAndTransaction(ctx context.Context, intent *models.RouteIntent, tx *models.Transaction) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	if err := putIntent(ctx, dbTx, intent); err != nil {
		_ = dbTx.Rollback()
		return err
	}
	if err := putTransaction(ctx, dbTx, tx); err != nil {
		_ = dbTx.Rollback()
		return err
	}
	return errors.Wrap(dbTx.Commit(), "failed to commit")
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIntent(row rowScanner) (*models.RouteIntent, error) {
	var (
		intent       models.RouteIntent
		fromAmount   string
		quoteAmount  sql.NullString
		minAmount    sql.NullString
		routeRaw     []byte
		history      []byte
		createdDate  time.Time
		updatedDate  time.Time
	)
	err := row.Scan(
		&intent.ID, &intent.FromChainID, &intent.ToChainID, &intent.FromToken,
		&intent.ToToken, &intent.FromAddress, &intent.ToAddress, &fromAmount,
		&quoteAmount, &minAmount, &intent.RequestID, &routeRaw,
		&intent.Status, &intent.FailReason, &history, &createdDate, &updatedDate,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan intent")
	}

	intent.FromAmountWei, err = parseBig(fromAmount)
	if err != nil {
		return nil, err
	}
	if quoteAmount.Valid && quoteAmount.String != "" {
		if intent.QuoteToAmountWei, err = parseBig(quoteAmount.String); err != nil {
			return nil, err
		}
	}
	if minAmount.Valid && minAmount.String != "" {
		if intent.MinToAmountWei, err = parseBig(minAmount.String); err != nil {
			return nil, err
		}
	}
	intent.RouteRaw = routeRaw
	if len(history) > 0 {
		if err := json.Unmarshal(history, &intent.History); err != nil {
			return nil, errors.Wrap(err, "failed to decode status history")
		}
	}
	intent.CreatedDate = createdDate
	intent.UpdatedDate = updatedDate
	return &intent, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		tx        models.Transaction
		fromBlock int64
		toBlock   int64
		toAmount  sql.NullString
	)
	err := row.Scan(
		&tx.ID, &tx.IntentID, &tx.SourceTxHash, &tx.DestTxHash, &tx.Status,
		&tx.FailReason, &fromBlock, &toBlock, &toAmount, &tx.IsGMPTransaction,
		&tx.GasStatus, &tx.AxelarTxURL, &tx.SubmittedAt, &tx.UpdatedDate,
		&tx.TimeSpentMs,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan transaction")
	}

	tx.FromChainBlock = uint64(fromBlock)
	tx.ToChainBlock = uint64(toBlock)
	if toAmount.Valid && toAmount.String != "" {
		if tx.ToAmountWei, err = parseBig(toAmount.String); err != nil {
			return nil, err
		}
	}
	return &tx, nil
}

func bigString(v *big.Int) interface{} {
	if v == nil {
		return nil
	}
	return v.String()
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func parseBig(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Errorf("invalid stored amount %q", s)
	}
	return v, nil
}

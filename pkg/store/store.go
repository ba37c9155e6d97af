// Package store provides durable keyed persistence for route intents and
// their transactions. The backend is an injected choice; the engine only
// depends on this interface.
package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trustware-io/trustware-sdk-sub002/pkg/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Store persists route intents and transactions across process restarts.
// All mutations come through the lifecycle orchestrator or the tracker,
// each of which serializes writers per intent id.
type Store interface {
	// PutIntent inserts or replaces an intent record.
	PutIntent(ctx context.Context, intent *models.RouteIntent) error

	// GetIntent returns the intent by id, or ErrNotFound.
	GetIntent(ctx context.Context, id string) (*models.RouteIntent, error)

	// ListIntentsByStatus returns all intents currently in the given status.
	ListIntentsByStatus(ctx context.Context, status models.Status) ([]*models.RouteIntent, error)

	// PutTransaction inserts or replaces a transaction record.
	PutTransaction(ctx context.Context, tx *models.Transaction) error

	// GetTransaction returns the transaction by id, or ErrNotFound.
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)

	// ListTransactionsByStatus returns all transactions in the given status.
	ListTransactionsByStatus(ctx context.Context, status models.Status) ([]*models.Transaction, error)

	// UpdateIntentAndTransaction writes both records together: either both
	// commit or neither does.
	UpdateIntentAndTransaction(ctx context.Context, intent *models.RouteIntent, tx *models.Transaction) error

	// Close releases backend resources.
	Close() error
}

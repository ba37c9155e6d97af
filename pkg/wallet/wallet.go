// Package wallet defines the signing capability the engine delegates to.
// The engine never handles key material; it hands a transaction request to
// a Wallet and receives a source-chain transaction hash back.
package wallet

import (
	"context"

	"github.com/trustware-io/trustware-sdk-sub002/pkg/models"
)

// Wallet signs and broadcasts a transaction request.
//
// Errors are classified through the bridgerr taxonomy: KindWalletRejected
// when the user or wallet declined (terminal, no retry), and
// KindSubmissionTimeout when the broadcast did not complete (the same
// intent may be resubmitted).
type Wallet interface {
	SignAndSend(ctx context.Context, req *models.TxRequest) (string, error)
}

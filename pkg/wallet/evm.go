package wallet

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/trustware-io/trustware-sdk-sub002/pkg/bridgerr"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/logger"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/models"
)

// broadcastTimeout bounds how long a single broadcast attempt may take
// before it is reported as retryable.
const broadcastTimeout = 30 * time.Second

// defaultGasLimit is used when the quote did not carry a gas estimate.
const defaultGasLimit = 400000

// TxSender is the part of an RPC client the wallet needs to broadcast.
type TxSender interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// EVMWallet signs with a local key and broadcasts through per-chain RPC
// clients.
type EVMWallet struct {
	clients map[int64]TxSender
	closers []func()
	key     *ecdsa.PrivateKey
	address common.Address
	logger  logger.Logger
}

var _ Wallet = (*EVMWallet)(nil)

// NewEVMWallet connects to each configured RPC endpoint and derives the
// sender address from the private key.
func NewEVMWallet(rpcURLs map[int64]string, privateKeyHex string, log logger.Logger) (*EVMWallet, error) {
	clients := make(map[int64]TxSender, len(rpcURLs))
	closers := make([]func(), 0, len(rpcURLs))
	for chainID, url := range rpcURLs {
		client, err := ethclient.Dial(url)
		if err != nil {
			return nil, bridgerr.Wrap(bridgerr.KindTransientNetwork, err, "failed to connect to RPC")
		}
		clients[chainID] = client
		closers = append(closers, client.Close)
	}

	w, err := NewEVMWalletWithClients(clients, privateKeyHex, log)
	if err != nil {
		return nil, err
	}
	w.closers = closers
	return w, nil
}

// NewEVMWalletWithClients builds a wallet over already-connected clients.
func NewEVMWalletWithClients(clients map[int64]TxSender, privateKeyHex string, log logger.Logger) (*EVMWallet, error) {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, bridgerr.Wrap(bridgerr.KindValidation, err, "invalid private key")
	}
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &EVMWallet{
		clients: clients,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		logger:  log,
	}, nil
}

// Address returns the sender address derived from the key.
func (w *EVMWallet) Address() common.Address {
	return w.address
}

// SignAndSend signs the request with the local key and broadcasts it,
// returning the transaction hash.
func (w *EVMWallet) SignAndSend(ctx context.Context, req *models.TxRequest) (string, error) {
	client, ok := w.clients[req.ChainID]
	if !ok {
		return "", bridgerr.New(bridgerr.KindValidation, "no RPC client for chain %d", req.ChainID)
	}

	ctx, cancel := context.WithTimeout(ctx, broadcastTimeout)
	defer cancel()

	nonce, err := client.PendingNonceAt(ctx, w.address)
	if err != nil {
		return "", bridgerr.Wrap(bridgerr.KindSubmissionTimeout, err, "failed to get nonce")
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return "", bridgerr.Wrap(bridgerr.KindSubmissionTimeout, err, "failed to get gas price")
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		gasLimit = defaultGasLimit
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	to := common.HexToAddress(req.To)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     req.Data,
	})

	chainID := big.NewInt(req.ChainID)
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), w.key)
	if err != nil {
		return "", bridgerr.Wrap(bridgerr.KindWalletRejected, err, "failed to sign transaction")
	}

	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return "", bridgerr.Wrap(bridgerr.KindSubmissionTimeout, err, "failed to broadcast transaction")
	}

	hash := signedTx.Hash().Hex()
	w.logger.InfoWithChain(req.ChainID, "Broadcast transaction %s (nonce %d)", hash, nonce)
	return hash, nil
}

// Close disconnects all RPC clients the wallet dialed itself.
func (w *EVMWallet) Close() {
	for _, closeClient := range w.closers {
		closeClient()
	}
}

package chains

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Chain describes a supported chain: identifier, native unit and the
// explorer template used to render transaction links.
type Chain struct {
	ID             int64
	Name           string
	NativeSymbol   string
	NativeDecimals int
	ExplorerTxURL  string // format string, %s replaced with the tx hash
}

// ChainList contains the list of supported chain IDs
var ChainList = []int64{
	1,     // Ethereum
	137,   // Polygon
	42161, // Arbitrum
	43114, // Avalanche
	56,    // Binance Smart Chain
	8453,  // Base
}

var chainTable = map[int64]Chain{
	1: {
		ID:             1,
		Name:           "ETHEREUM",
		NativeSymbol:   "ETH",
		NativeDecimals: 18,
		ExplorerTxURL:  "https://etherscan.io/tx/%s",
	},
	137: {
		ID:             137,
		Name:           "POLYGON",
		NativeSymbol:   "POL",
		NativeDecimals: 18,
		ExplorerTxURL:  "https://polygonscan.com/tx/%s",
	},
	42161: {
		ID:             42161,
		Name:           "ARBITRUM",
		NativeSymbol:   "ETH",
		NativeDecimals: 18,
		ExplorerTxURL:  "https://arbiscan.io/tx/%s",
	},
	43114: {
		ID:             43114,
		Name:           "AVALANCHE",
		NativeSymbol:   "AVAX",
		NativeDecimals: 18,
		ExplorerTxURL:  "https://snowtrace.io/tx/%s",
	},
	56: {
		ID:             56,
		Name:           "BSC",
		NativeSymbol:   "BNB",
		NativeDecimals: 18,
		ExplorerTxURL:  "https://bscscan.com/tx/%s",
	},
	8453: {
		ID:             8453,
		Name:           "BASE",
		NativeSymbol:   "ETH",
		NativeDecimals: 18,
		ExplorerTxURL:  "https://basescan.org/tx/%s",
	},
}

// Get returns the chain entry for a given chain ID
func Get(chainID int64) (Chain, bool) {
	chain, exists := chainTable[chainID]
	return chain, exists
}

// IsSupported returns true if the chain ID is in the registry
func IsSupported(chainID int64) bool {
	_, exists := chainTable[chainID]
	return exists
}

// GetChainName returns the name of the chain for a given chain ID
func GetChainName(chainID int64) string {
	chain, exists := chainTable[chainID]
	if !exists {
		return ""
	}
	return chain.Name
}

// ValidateAddress checks that an address is well-formed for the given chain.
// All registered chains are EVM chains, so the check is a hex address check.
func ValidateAddress(chainID int64, address string) error {
	if !IsSupported(chainID) {
		return fmt.Errorf("unsupported chain %d", chainID)
	}
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid address %q for chain %d", address, chainID)
	}
	return nil
}

// ExplorerTxURL renders the block explorer link for a transaction hash.
// Returns an empty string for unknown chains.
func ExplorerTxURL(chainID int64, txHash string) string {
	chain, exists := chainTable[chainID]
	if !exists {
		return ""
	}
	return fmt.Sprintf(chain.ExplorerTxURL, txHash)
}

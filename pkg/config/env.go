package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/trustware-io/trustware-sdk-sub002/pkg/chains"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/logger"
)

const (
	// DefaultPollIntervalSeconds defines the initial tracking poll interval
	DefaultPollIntervalSeconds = 5

	// DefaultMaxPollIntervalSeconds caps the backoff between polls
	DefaultMaxPollIntervalSeconds = 60

	// DefaultPollRetries defines transient-failure retries per poll
	DefaultPollRetries = 3

	// DefaultTrackingDeadlineMinutes bounds a whole tracking session
	DefaultTrackingDeadlineMinutes = 60

	// DefaultSlippageBps is the slippage tolerance applied when the caller
	// does not pick one (0.5%)
	DefaultSlippageBps = 50

	// DefaultMaxSlippageBps is the largest accepted tolerance (5%)
	DefaultMaxSlippageBps = 500

	// DefaultMetricsPort defines the default port for the metrics server
	DefaultMetricsPort = "8080"

	// DefaultCircuitBreakerEnabled defines whether the circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindowMinutes defines the time window for the circuit breaker
	DefaultCircuitBreakerWindowMinutes = 5

	// DefaultCircuitBreakerResetMinutes defines the reset timeout for the circuit breaker
	DefaultCircuitBreakerResetMinutes = 15

	// Default public RPC endpoints per supported chain

	DefaultEthereumRPCURL  = "https://eth.llamarpc.com"
	DefaultPolygonRPCURL   = "https://polygon-rpc.com"
	DefaultArbitrumRPCURL  = "https://arb1.arbitrum.io/rpc"
	DefaultAvalancheRPCURL = "https://avalanche-c-chain-rpc.publicnode.com"
	DefaultBSCRPCURL       = "https://bsc-dataseed.bnbchain.org"
	DefaultBaseRPCURL      = "https://mainnet.base.org"
)

var defaultRPCURLs = map[int64]string{
	1:     DefaultEthereumRPCURL,
	137:   DefaultPolygonRPCURL,
	42161: DefaultArbitrumRPCURL,
	43114: DefaultAvalancheRPCURL,
	56:    DefaultBSCRPCURL,
	8453:  DefaultBaseRPCURL,
}

// GetEnvQuoteEndpoint returns the quote API endpoint
func GetEnvQuoteEndpoint() string {
	return os.Getenv("QUOTE_API_ENDPOINT")
}

// GetEnvStatusEndpoint returns the status API endpoint
func GetEnvStatusEndpoint() string {
	return os.Getenv("STATUS_API_ENDPOINT")
}

// GetEnvRelayEndpoint returns the GMP relay API endpoint. Empty is allowed
// when no GMP routes are used.
func GetEnvRelayEndpoint() string {
	return os.Getenv("RELAY_API_ENDPOINT")
}

// GetEnvDatabaseURL returns the Postgres connection string
func GetEnvDatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// GetEnvPrivateKey returns the signing key
func GetEnvPrivateKey() string {
	return os.Getenv("PRIVATE_KEY")
}

// GetEnvRPCURLs returns one RPC URL per supported chain. Each chain can be
// overridden with <NAME>_RPC_URL, e.g. ETHEREUM_RPC_URL.
func GetEnvRPCURLs() map[int64]string {
	urls := make(map[int64]string, len(chains.ChainList))
	for _, chainID := range chains.ChainList {
		key := chains.GetChainName(chainID) + "_RPC_URL"
		if url := os.Getenv(key); url != "" {
			urls[chainID] = url
			continue
		}
		urls[chainID] = defaultRPCURLs[chainID]
	}
	return urls
}

// GetEnvPollInterval returns the initial tracking poll interval
func GetEnvPollInterval() (time.Duration, error) {
	return getEnvSeconds("POLL_INTERVAL", DefaultPollIntervalSeconds)
}

// GetEnvMaxPollInterval returns the backoff cap between polls
func GetEnvMaxPollInterval() (time.Duration, error) {
	return getEnvSeconds("MAX_POLL_INTERVAL", DefaultMaxPollIntervalSeconds)
}

// GetEnvPollRetries returns the per-poll transient retry bound
func GetEnvPollRetries() (int, error) {
	return getEnvInt("POLL_RETRIES", DefaultPollRetries)
}

// GetEnvTrackingDeadline returns the overall tracking session deadline
func GetEnvTrackingDeadline() (time.Duration, error) {
	minutes, err := getEnvInt("TRACKING_DEADLINE_MINUTES", DefaultTrackingDeadlineMinutes)
	if err != nil {
		return 0, err
	}
	return time.Duration(minutes) * time.Minute, nil
}

// GetEnvDefaultSlippageBps returns the default slippage tolerance
func GetEnvDefaultSlippageBps() (int, error) {
	return getEnvInt("DEFAULT_SLIPPAGE_BPS", DefaultSlippageBps)
}

// GetEnvMaxSlippageBps returns the maximum accepted slippage tolerance
func GetEnvMaxSlippageBps() (int, error) {
	return getEnvInt("MAX_SLIPPAGE_BPS", DefaultMaxSlippageBps)
}

// GetEnvMetricsPort returns the port for the metrics server
func GetEnvMetricsPort() (string, error) {
	port := os.Getenv("METRICS_PORT")
	if port == "" {
		return DefaultMetricsPort, nil
	}
	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s", port)
	}
	return port, nil
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled
func GetEnvCircuitBreakerEnabled() (bool, error) {
	value := os.Getenv("CIRCUIT_BREAKER_ENABLED")
	if value == "" {
		return DefaultCircuitBreakerEnabled, nil
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid CIRCUIT_BREAKER_ENABLED value: %s", value)
	}
	return enabled, nil
}

// GetEnvCircuitBreakerThreshold returns the failure threshold
func GetEnvCircuitBreakerThreshold() (int, error) {
	return getEnvInt("CIRCUIT_BREAKER_THRESHOLD", DefaultCircuitBreakerThreshold)
}

// GetEnvCircuitBreakerWindow returns the failure counting window
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	minutes, err := getEnvInt("CIRCUIT_BREAKER_WINDOW_MINUTES", DefaultCircuitBreakerWindowMinutes)
	if err != nil {
		return 0, err
	}
	return time.Duration(minutes) * time.Minute, nil
}

// GetEnvCircuitBreakerReset returns the breaker reset timeout
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	minutes, err := getEnvInt("CIRCUIT_BREAKER_RESET_MINUTES", DefaultCircuitBreakerResetMinutes)
	if err != nil {
		return 0, err
	}
	return time.Duration(minutes) * time.Minute, nil
}

// GetEnvLogLevel returns the configured log level
func GetEnvLogLevel() (logger.Level, error) {
	value := os.Getenv("LOG_LEVEL")
	switch value {
	case "", "info":
		return logger.InfoLevel, nil
	case "debug":
		return logger.DebugLevel, nil
	case "notice":
		return logger.NoticeLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("invalid LOG_LEVEL value: %s", value)
	}
}

// GetEnvLogColoring returns whether log coloring is enabled
func GetEnvLogColoring() (bool, error) {
	value := os.Getenv("LOG_COLORING")
	if value == "" {
		return true, nil
	}
	coloring, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid LOG_COLORING value: %s", value)
	}
	return coloring, nil
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0, fmt.Errorf("invalid %s value: %s", key, value)
	}
	return parsed, nil
}

func getEnvSeconds(key string, fallback int) (time.Duration, error) {
	seconds, err := getEnvInt(key, fallback)
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}

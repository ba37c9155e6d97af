package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/trustware-io/trustware-sdk-sub002/pkg/logger"
)

// Config holds the configuration for the bridge engine daemon
type Config struct {
	QuoteEndpoint  string
	StatusEndpoint string
	RelayEndpoint  string
	DatabaseURL    string
	PrivateKey     string
	RPCURLs        map[int64]string

	DefaultSlippageBps int
	MaxSlippageBps     int

	PollInterval     time.Duration
	MaxPollInterval  time.Duration
	PollRetries      int
	TrackingDeadline time.Duration

	MetricsPort    string
	CircuitBreaker CircuitBreakerConfig
	LoggerConfig   LoggerConfig
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	pollInterval, err := GetEnvPollInterval()
	if err != nil {
		return nil, err
	}

	maxPollInterval, err := GetEnvMaxPollInterval()
	if err != nil {
		return nil, err
	}

	pollRetries, err := GetEnvPollRetries()
	if err != nil {
		return nil, err
	}

	trackingDeadline, err := GetEnvTrackingDeadline()
	if err != nil {
		return nil, err
	}

	defaultSlippage, err := GetEnvDefaultSlippageBps()
	if err != nil {
		return nil, err
	}

	maxSlippage, err := GetEnvMaxSlippageBps()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		QuoteEndpoint:      GetEnvQuoteEndpoint(),
		StatusEndpoint:     GetEnvStatusEndpoint(),
		RelayEndpoint:      GetEnvRelayEndpoint(),
		DatabaseURL:        GetEnvDatabaseURL(),
		PrivateKey:         GetEnvPrivateKey(),
		RPCURLs:            GetEnvRPCURLs(),
		DefaultSlippageBps: defaultSlippage,
		MaxSlippageBps:     maxSlippage,
		PollInterval:       pollInterval,
		MaxPollInterval:    maxPollInterval,
		PollRetries:        pollRetries,
		TrackingDeadline:   trackingDeadline,
		MetricsPort:        metricsPort,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}

	// Validate required environment variables
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.QuoteEndpoint == "" {
		return fmt.Errorf("QUOTE_API_ENDPOINT environment variable is required")
	}
	if cfg.StatusEndpoint == "" {
		return fmt.Errorf("STATUS_API_ENDPOINT environment variable is required")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.PrivateKey == "" {
		return fmt.Errorf("PRIVATE_KEY environment variable is required")
	}
	if len(cfg.RPCURLs) == 0 {
		return fmt.Errorf("at least one chain RPC URL is required")
	}
	if cfg.MaxSlippageBps < cfg.DefaultSlippageBps {
		return fmt.Errorf("MAX_SLIPPAGE_BPS must not be below DEFAULT_SLIPPAGE_BPS")
	}
	return nil
}

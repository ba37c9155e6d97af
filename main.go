package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/trustware-io/trustware-sdk-sub002/pkg/config"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/engine"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/health"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/logger"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/quote"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/routebuilder"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/statusclient"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/store"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/tracker"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/wallet"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lg := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()
	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	quoteClient := quote.NewHTTPClient(cfg.QuoteEndpoint, lg)
	builder := routebuilder.NewBuilder(quoteClient, cfg.DefaultSlippageBps, cfg.MaxSlippageBps, lg)

	w, err := wallet.NewEVMWallet(cfg.RPCURLs, cfg.PrivateKey, lg)
	if err != nil {
		log.Fatalf("Failed to create wallet: %v", err)
	}
	defer w.Close()

	receiptClients := make(map[int64]statusclient.ReceiptReader, len(cfg.RPCURLs))
	for chainID, url := range cfg.RPCURLs {
		client, err := ethclient.Dial(url)
		if err != nil {
			log.Fatalf("Failed to connect to chain %d RPC: %v", chainID, err)
		}
		defer client.Close()
		receiptClients[chainID] = client
	}

	status := &statusclient.Composite{
		Source: statusclient.NewEVMReceiptClient(receiptClients, lg),
		Dest:   statusclient.NewHTTPStatusClient(cfg.StatusEndpoint, lg),
	}

	var relay statusclient.RelayClient
	if cfg.RelayEndpoint != "" {
		relay = statusclient.NewHTTPRelayClient(cfg.RelayEndpoint, lg)
	}

	eng := engine.New(ctx, st, builder, w, status, relay, tracker.Config{
		InitialInterval: cfg.PollInterval,
		MaxInterval:     cfg.MaxPollInterval,
		PollRetries:     cfg.PollRetries,
		Deadline:        cfg.TrackingDeadline,
		Breaker: tracker.BreakerConfig{
			Enabled:      cfg.CircuitBreaker.Enabled,
			Threshold:    cfg.CircuitBreaker.Threshold,
			Window:       cfg.CircuitBreaker.WindowDuration,
			ResetTimeout: cfg.CircuitBreaker.ResetTimeout,
		},
	}, lg)

	// Start health monitoring server
	healthServer := health.NewServer(cfg.MetricsPort, st, lg)
	go healthServer.Start()

	// Resume tracking sessions for transactions left in flight
	if err := eng.ResumeTracking(ctx); err != nil {
		log.Fatalf("Failed to resume tracking: %v", err)
	}

	lg.Info("Bridge engine started")

	// Block until termination, then drain tracking sessions
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	<-signalCh
	lg.Info("Received termination signal, shutting down gracefully...")
	cancel()
	eng.Wait()
}

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "go.uber.org/automaxprocs"

	"github.com/blinklabs-io/tidepool/internal/anchor"
	"github.com/blinklabs-io/tidepool/internal/api"
	"github.com/blinklabs-io/tidepool/internal/config"
	"github.com/blinklabs-io/tidepool/internal/ledger"
	"github.com/blinklabs-io/tidepool/internal/logging"
	"github.com/blinklabs-io/tidepool/internal/metrics"
	"github.com/blinklabs-io/tidepool/internal/pool"
	"github.com/blinklabs-io/tidepool/internal/stats"
	"github.com/blinklabs-io/tidepool/internal/storage"
	"github.com/blinklabs-io/tidepool/internal/version"
	"github.com/blinklabs-io/tidepool/internal/wallet"
)

const (
	programName = "tidepool"
)

var cmdlineFlags struct {
	configFile string
	version    bool
}

func main() {
	flag.StringVar(&cmdlineFlags.configFile, "config", "", "path to config file to load")
	flag.BoolVar(&cmdlineFlags.version, "version", false, "show version")
	flag.Parse()

	if cmdlineFlags.version {
		fmt.Printf("%s %s\n", programName, version.GetVersionString())
		os.Exit(0)
	}

	// Load config
	cfg, err := config.Load(cmdlineFlags.configFile)
	if err != nil {
		fmt.Printf("Failed to load config: %s\n", err)
		os.Exit(1)
	}

	// Configure logging
	logging.Configure()
	logger := logging.GetLogger()
	// Sync logger on exit
	defer func() {
		if err := logger.Sync(); err != nil {
			// We don't actually care about the error here, but we have to do something
			// to appease the linter
			return
		}
	}()

	// Start debug listener with pprof and prometheus metrics
	if cfg.Debug.ListenPort > 0 {
		logger.Infof("starting debug listener on %s:%d", cfg.Debug.ListenAddress, cfg.Debug.ListenPort)
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			err := http.ListenAndServe(fmt.Sprintf("%s:%d", cfg.Debug.ListenAddress, cfg.Debug.ListenPort), nil)
			if err != nil {
				logger.Fatalf("failed to start debug listener: %s", err)
			}
		}()
	}

	// The operator wallet signs pool management and payout transactions
	var operator *wallet.Wallet
	if cfg.Operator.Mnemonic != "" {
		operator, err = wallet.FromSecret(cfg.Operator.Mnemonic)
		if err != nil {
			logger.Fatalf("failed to load operator wallet: %s", err)
		}
	} else {
		operator, err = wallet.New()
		if err != nil {
			logger.Fatalf("failed to generate operator wallet: %s", err)
		}
		logger.Warnf(
			"no operator mnemonic configured, generated ephemeral wallet %s",
			operator.Address(),
		)
	}

	// Protocol fees land on the operator unless a treasury is configured
	treasury := operator.Address()
	if cfg.Treasury.Address != "" {
		treasury, err = ledger.ParseAddress(cfg.Treasury.Address)
		if err != nil {
			logger.Fatalf("invalid treasury address: %s", err)
		}
	}

	// Only the in-process ledger is supported; config validation rejects
	// anything else
	client := ledger.NewMemoryLedger(operator)

	store, err := storage.NewStore(cfg.Storage.Directory)
	if err != nil {
		logger.Fatalf("failed to open repository: %s", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Errorf("failed to close repository: %s", err)
		}
	}()

	poolCfg := pool.Config{
		FeeTotalBps:     int64(cfg.Fees.TotalBps),
		FeeProtocolBps:  int64(cfg.Fees.ProtocolBps),
		SettlementDelay: cfg.SettlementDelay(),
		LedgerTimeout:   cfg.LedgerTimeout(),
		Tx2Retries:      cfg.Swap.Tx2Retries,
	}
	manager := pool.NewManager(pool.ManagerOpts{
		Client:             client,
		Operator:           operator,
		Treasury:           treasury,
		Store:              store,
		Config:             poolCfg,
		PoolsFile:          cfg.Storage.PoolsFile,
		DiscoveryAddresses: cfg.Discovery.Addresses,
		DiscoveryDelay:     time.Duration(cfg.Discovery.Delay) * time.Second,
	})
	ctx := context.Background()
	if err := manager.Initialize(ctx); err != nil {
		logger.Fatalf("failed to initialize pool manager: %s", err)
	}
	defer manager.Stop()

	anchors := anchor.NewRegistry(anchor.RegistryOpts{
		Client:   client,
		Operator: operator,
		Store:    store,
		Config:   poolCfg,
		Sink:     manager,
	})
	if err := anchors.Initialize(ctx); err != nil {
		logger.Fatalf("failed to initialize anchor registry: %s", err)
	}
	metrics.SetPoolCount(manager.PoolCount() + anchors.Count())

	apiServer := api.NewServer(api.Opts{
		Manager:       manager,
		Anchors:       anchors,
		Stats:         stats.NewCalculator(store, cfg.Prices.Tokens),
		Store:         store,
		ListenAddress: fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort),
		RateLimitRPS:  int(cfg.RateLimit.Rps),
		CORSOrigins:   cfg.Cors.Origins,
	})
	apiErr := make(chan error, 1)
	go func() {
		apiErr <- apiServer.Start()
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-apiErr:
		if err != nil {
			logger.Fatalf("api server failed: %s", err)
		}
	case sig := <-signals:
		logger.Infof("received signal %s, shutting down", sig)
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := apiServer.Stop(shutdownCtx); err != nil {
			logger.Errorf("api shutdown failed: %s", err)
		}
	}
}

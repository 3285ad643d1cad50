package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ReserveVault/internal/asset"
	"ReserveVault/internal/config"
	"ReserveVault/internal/custody"
	"ReserveVault/internal/event"
	"ReserveVault/internal/exchange"
	"ReserveVault/internal/ledger"
	"ReserveVault/internal/observability"
	"ReserveVault/internal/persistence"
	"ReserveVault/internal/projection"
	"ReserveVault/internal/publish"
	"ReserveVault/internal/query"
	"ReserveVault/internal/server"
	"ReserveVault/internal/vault"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the vault service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	cfg, err := config.New()
	if err != nil {
		return err
	}

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	logger := observability.NewLoggerWithLevel("serve", level)
	logger.Info().Msg("reservevault starting")

	operatorID, err := uuid.Parse(cfg.Operator.ID)
	if err != nil {
		return fmt.Errorf("operator id: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("postgres open: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	logger.Info().Msg("postgres connected")

	migrator := persistence.NewMigrator(db, cfg.MigrationsDir, observability.NewLoggerWithLevel("migrate", level))
	if err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	// --- Observability ---
	metrics := observability.NewMetrics()
	health := observability.NewHealthChecker()

	// --- Domain wiring ---
	reserve := asset.Asset{Symbol: cfg.Reserve.Symbol, Decimals: cfg.Reserve.Decimals}

	registryAssets := []asset.Asset{reserve}
	for _, a := range cfg.Assets {
		if a.Symbol == reserve.Symbol {
			continue
		}
		registryAssets = append(registryAssets, asset.Asset{Symbol: a.Symbol, Decimals: a.Decimals})
	}
	registry, err := asset.NewRegistry(registryAssets)
	if err != nil {
		return fmt.Errorf("asset registry: %w", err)
	}
	logger.Info().
		Str("reserve", reserve.Symbol).
		Strs("assets", registry.Symbols()).
		Msg("asset registry loaded")

	led, err := ledger.New(reserve.Symbol, cfg.GlobalCap)
	if err != nil {
		return fmt.Errorf("ledger: %w", err)
	}

	bank := custody.NewMemory()

	var venue exchange.Exchange
	var allowance exchange.Allowance
	switch cfg.Exchange.Mode {
	case "http":
		client := exchange.NewClient(cfg.Exchange.URL, cfg.Exchange.APIKey, observability.NewLoggerWithLevel("exchange", level))
		venue, allowance = client, client
	default:
		rates := make(map[string]exchange.Rate, len(cfg.Exchange.Rates))
		for sym, r := range cfg.Exchange.Rates {
			rates[sym] = exchange.Rate{Num: r.Num, Den: r.Den}
		}
		static := exchange.NewStatic(bank, reserve.Symbol, rates)
		venue, allowance = static, static
	}

	gateway := exchange.NewGateway(
		venue, allowance,
		cfg.Exchange.Spender, cfg.Exchange.Recipient, reserve.Symbol,
		observability.NewLoggerWithLevel("gateway", level),
	)

	eventChan := make(chan event.Envelope, cfg.PersistChanSize)

	v := vault.New(vault.Config{
		Ledger:   led,
		Gateway:  gateway,
		Holdings: bank,
		Assets:   registry,
		Reserve:  reserve,
		Out:      eventChan,
		Logger:   observability.NewLoggerWithLevel("vault", level),
		Metrics:  metrics,
	})

	persistChan := make(chan persistence.OperationRow, cfg.PersistChanSize)
	persistWorker := persistence.NewWorker(
		db, persistChan, cfg.PersistBatchSize,
		time.Duration(cfg.PersistFlushMS)*time.Millisecond,
		observability.NewLoggerWithLevel("persistence", level), metrics,
	)

	// --- Recovery: snapshot restore + operation log replay ---
	snapMgr := persistence.NewSnapshotManager(db)

	startSeq, err := recoverState(ctx, snapMgr, persistWorker.Writer(), v, logger)
	if err != nil {
		return fmt.Errorf("recovery: %w", err)
	}
	logger.Info().Int64("sequence", startSeq).Msg("state recovered")

	// --- NATS ---
	nc, js, err := publish.Connect(cfg.NATSURL)
	if err != nil {
		return err
	}
	defer nc.Close()

	if err := publish.EnsureStream(ctx, js); err != nil {
		return err
	}
	logger.Info().Msg("nats connected")

	// --- Workers ---
	projChan := make(chan projection.Update, cfg.ProjectionChanSize)
	pubChan := make(chan event.Envelope, cfg.PublishChanSize)

	projWorker := projection.NewWorker(db, projChan,
		observability.NewLoggerWithLevel("projection", level), metrics)
	publisher := publish.NewPublisher(js, pubChan,
		observability.NewLoggerWithLevel("publish", level))

	httpServer := server.New(cfg.ListenAddr, server.Deps{
		Vault:         v,
		Queries:       query.NewService(db),
		OperatorToken: cfg.Operator.Token,
		OperatorID:    operatorID,
		Health:        health,
		Metrics:       metrics,
		Logger:        observability.NewLoggerWithLevel("http", level),
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return persistWorker.Run(gctx) })
	g.Go(func() error { return projWorker.Run(gctx) })
	g.Go(func() error { return publisher.Run(gctx) })
	g.Go(func() error {
		return bridgeEvents(gctx, eventChan, persistChan, projChan, pubChan, metrics)
	})
	g.Go(func() error { return httpServer.Run(gctx) })
	g.Go(func() error { return runMetricsServer(gctx, cfg.MetricsAddr, logger) })
	g.Go(func() error {
		return runPeriodicSnapshots(gctx, v, snapMgr, cfg.SnapshotIntervalOps, metrics, logger)
	})

	health.SetReady(true)
	logger.Info().
		Int64("sequence", startSeq).
		Str("listen", cfg.ListenAddr).
		Str("metrics", cfg.MetricsAddr).
		Msg("reservevault ready")

	err = g.Wait()
	health.SetReady(false)

	// Final snapshot so the next start replays as little as possible.
	shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if snapErr := takeSnapshot(shutCtx, v, snapMgr, metrics); snapErr != nil {
		logger.Error().Err(snapErr).Msg("final snapshot failed")
	} else {
		logger.Info().Msg("final snapshot saved")
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("reservevault shutdown complete")
	return nil
}

func runMetricsServer(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	logger.Info().Str("addr", addr).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

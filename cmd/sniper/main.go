// Package main runs the pool sniper: it watches pool programs for new pools,
// gates them through risk checks and buys the ones that pass.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"solana-pool-sniper/internal/aggregator"
	"solana-pool-sniper/internal/config"
	"solana-pool-sniper/internal/dedup"
	"solana-pool-sniper/internal/discovery"
	"solana-pool-sniper/internal/execution"
	"solana-pool-sniper/internal/ingestion"
	"solana-pool-sniper/internal/logger"
	"solana-pool-sniper/internal/marketdata"
	"solana-pool-sniper/internal/notify"
	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/orchestrator"
	"solana-pool-sniper/internal/pipeline"
	"solana-pool-sniper/internal/retry"
	"solana-pool-sniper/internal/risk"
	"solana-pool-sniper/internal/solana"
	"solana-pool-sniper/internal/storage"
	chstore "solana-pool-sniper/internal/storage/clickhouse"
	"solana-pool-sniper/internal/storage/memory"
	"solana-pool-sniper/internal/storage/migrations"
	pgstore "solana-pool-sniper/internal/storage/postgres"
)

func main() {
	configPath := flag.String("f", "", "Path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "sniper: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.LogOption{
		Format:   cfg.Log.Format,
		LogDir:   cfg.Log.Dir,
		Level:    cfg.Log.Level,
		Compress: cfg.Log.Compress,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	programs, err := cfg.WatchedPrograms()
	if err != nil {
		return err
	}

	wallet, err := execution.LoadWallet(cfg.WalletPrivateKey)
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}
	log.Info("wallet loaded", zap.String("public_key", wallet.PublicKey()))

	notifier, closeNotifier, err := buildNotifier(cfg, log)
	if err != nil {
		return err
	}
	defer closeNotifier()

	journal, err := openJournal(ctx, cfg.Journal, log)
	if err != nil {
		return err
	}
	defer journal.Close()

	guard, closeGuard, err := buildGuard(ctx, cfg.Dedup)
	if err != nil {
		return err
	}
	defer closeGuard()

	// Stage policies below own retries; the client makes one request per call.
	rpc := solana.NewHTTPClient(cfg.RPC.HTTPEndpoint,
		solana.WithTimeout(cfg.RPC.Timeout),
		solana.WithMaxRetries(0),
	)

	tradeRetry := retry.Policy{
		MaxAttempts: cfg.Trade.MaxAttempts,
		BaseDelay:   cfg.Trade.RetryBaseDelay,
		MaxDelay:    cfg.Trade.RetryMaxDelay,
		Jitter:      retry.DefaultJitter,
	}

	market := marketdata.NewClient(
		marketdata.WithBaseURL(cfg.Risk.DexScreenerURL),
		marketdata.WithRateLimit(cfg.Risk.DexScreenerRPS, int(cfg.Risk.DexScreenerRPS)+1),
		marketdata.WithRetryPolicy(tradeRetry),
		marketdata.WithLogger(log),
	)
	gate := risk.NewGate(
		risk.Config{MinLiquiditySOL: cfg.Risk.MinLiquidity(), CheckHoneypot: cfg.Risk.CheckHoneypot},
		market,
		risk.StaticLiquidity{Value: cfg.Risk.StaticLiquidity()},
		risk.StaticHoneypot{Verdict: cfg.Risk.StaticHoneypot},
		log,
	)

	executor := execution.NewExecutor(execution.Config{
		InputMint:                discovery.WSOL,
		InputAmount:              cfg.Trade.InputLamports,
		SlippageBps:              cfg.Trade.SlippageBps,
		PriorityFeeMicroLamports: cfg.Trade.EffectivePriorityFee(),
		Simulate:                 cfg.Trade.Simulate,
		ConfirmTimeout:           cfg.Trade.ConfirmTimeout,
		ConfirmPollInterval:      cfg.Trade.ConfirmPollInterval,
		Retry:                    tradeRetry,
	}, aggregator.NewClient(aggregator.WithBaseURL(cfg.Trade.JupiterURL)), rpc, wallet, log)

	coordinator := pipeline.New(pipeline.Options{
		Programs: programs,
		Fetcher:  ingestion.NewFetcher(rpc, tradeRetry, log),
		Decoder:  discovery.NewDecoder(log),
		Risk:     gate,
		Executor: executor,
		Notifier: notifier,
		Journal:  journal,
		Guard:    guard,
		Logger:   log,
	})

	wsConfig := solana.DefaultWSConfig()
	wsConfig.Logger = log
	dial := func(ctx context.Context) (solana.WSClient, error) {
		client, err := solana.NewWSClient(ctx, cfg.RPC.WSEndpoint, &wsConfig)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	sniper := orchestrator.New(orchestrator.Options{
		Programs:      programs,
		Dial:          dial,
		Coordinator:   coordinator,
		QueueSize:     cfg.Stream.QueueSize,
		MaxReconnects: cfg.Stream.MaxReconnects,
		Reconnect: retry.Policy{
			BaseDelay: cfg.Stream.ReconnectBaseDelay,
			MaxDelay:  cfg.Stream.ReconnectMaxDelay,
			Jitter:    retry.DefaultJitter,
		},
		Notifier: notifier,
		Logger:   log,
	})

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr: cfg.Metrics.Addr,
			Handler: observability.NewRouter(func(ctx context.Context) error {
				_, err := rpc.GetSlot(ctx)
				return err
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("ops server listening", zap.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("ops server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	log.Info("sniper starting",
		zap.Int("programs", len(programs)),
		zap.Uint64("input_lamports", cfg.Trade.InputLamports),
		zap.Int("slippage_bps", cfg.Trade.SlippageBps),
		zap.Bool("simulate", cfg.Trade.Simulate),
		zap.String("journal", cfg.Journal.Driver),
		zap.Bool("dedup", guard != nil))

	if err := sniper.Run(ctx); err != nil {
		log.Error("sniper stopped", zap.Error(err))
		return err
	}
	log.Info("shutdown complete")
	return nil
}

// buildNotifier fans alerts out to the log, Telegram and Kafka as configured.
func buildNotifier(cfg *config.Config, log *zap.Logger) (notify.Notifier, func(), error) {
	channels := notify.Multi{notify.NewLogNotifier(log)}
	closers := []io.Closer{}

	if cfg.TelegramBotToken != "" {
		channels = append(channels, notify.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID,
			notify.WithTelegramBaseURL(cfg.Notify.TelegramBaseURL)))
		log.Info("telegram alerts enabled")
	}
	if len(cfg.Notify.KafkaBrokers) > 0 {
		kafka, err := notify.NewKafkaNotifier(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic)
		if err != nil {
			return nil, nil, fmt.Errorf("kafka notifier: %w", err)
		}
		channels = append(channels, kafka)
		closers = append(closers, kafka)
		log.Info("kafka alerts enabled", zap.String("topic", cfg.Notify.KafkaTopic))
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				log.Warn("close notifier", zap.Error(err))
			}
		}
	}
	return channels, closeAll, nil
}

// openJournal connects the configured backend and applies its migrations.
func openJournal(ctx context.Context, cfg config.JournalConfig, log *zap.Logger) (storage.TradeJournal, error) {
	switch cfg.Driver {
	case config.JournalPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.DSN,
			pgstore.WithMaxConns(int32(cfg.MaxConns)),
			pgstore.WithConnectTimeout(cfg.ConnectTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		log.Info("trade journal: postgres")
		return pgstore.NewTradeJournal(pool), nil

	case config.JournalClickhouse:
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		log.Info("trade journal: clickhouse")
		return chstore.NewTradeJournal(conn), nil

	default:
		log.Info("trade journal: memory")
		return memory.NewTradeJournal(), nil
	}
}

// buildGuard returns a nil guard when dedup is disabled.
func buildGuard(ctx context.Context, cfg config.DedupConfig) (dedup.Guard, func(), error) {
	noop := func() {}
	if !cfg.Enabled {
		return nil, noop, nil
	}
	if cfg.Driver != config.DedupRedis {
		return dedup.NewMemoryGuard(cfg.TTL), noop, nil
	}

	rdb, err := dedup.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	guard := dedup.NewRedisGuard(rdb, cfg.TTL)
	return guard, func() { _ = guard.Close() }, nil
}

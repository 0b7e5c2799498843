package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/trustledger/internal/adapter/http"
	"github.com/iho/trustledger/internal/adapter/http/handler"
	"github.com/iho/trustledger/internal/adapter/http/middleware"
	"github.com/iho/trustledger/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/trustledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/trustledger/internal/adapter/repository/redis"
	"github.com/iho/trustledger/internal/infrastructure/auditrelay"
	"github.com/iho/trustledger/internal/infrastructure/auditsink"
	"github.com/iho/trustledger/internal/infrastructure/auth"
	"github.com/iho/trustledger/internal/infrastructure/config"
	"github.com/iho/trustledger/internal/infrastructure/locker"
	"github.com/iho/trustledger/internal/infrastructure/logger"
	"github.com/iho/trustledger/internal/infrastructure/metrics"
	"github.com/iho/trustledger/internal/infrastructure/postgres"
	"github.com/iho/trustledger/internal/infrastructure/redis"
	"github.com/iho/trustledger/internal/usecase"
)

const limiterCleanupInterval = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
	logger.Info().Msg("server stopped")
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	a, err := build(ctx, cfg, logger, prometheus.DefaultRegisterer, promhttp.Handler())
	if err != nil {
		return err
	}
	defer a.Close()

	workers, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		if err := a.relay.Start(workers); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("audit relay stopped")
		}
	}()
	go a.cleanupLimiters(workers, limiterCleanupInterval)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      a.handler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.HTTPPort).Str("store", cfg.LedgerStore).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	}

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Let the relay finish its current pass before the store closes.
	cancelWorkers()
	select {
	case <-relayDone:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("audit relay did not stop before shutdown deadline")
	}
	return nil
}

// app is the wired server.
type app struct {
	handler http.Handler
	ledger  *usecase.TrustLedger
	recon   *usecase.ReconciliationUseCase
	relay   *auditrelay.Relay
	limiter *middleware.RateLimiter
	logger  zerolog.Logger
	closers []func()
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) cleanupLimiters(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dropped := a.limiter.CleanupLimiters(); dropped > 0 {
				a.logger.Debug().Int("dropped", dropped).Msg("rate limiter cleanup")
			}
		}
	}
}

// storage bundles one backend's implementations of the persistence contracts.
type storage struct {
	txManager    usecase.TransactionManager
	accounts     usecase.TrustAccountRepository
	transactions usecase.TrustTransactionRepository
	outbox       usecase.OutboxRepository
	// auditLog is nil for the in-memory backend.
	auditLog usecase.AuditSink
}

// build wires every component from cfg. On error, anything already opened is closed.
func build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, reg prometheus.Registerer, metricsHandler http.Handler) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	maxAmount, err := cfg.MaxAmountMoney()
	if err != nil {
		return nil, fmt.Errorf("max amount: %w", err)
	}
	epsilon, err := cfg.EpsilonMoney()
	if err != nil {
		return nil, fmt.Errorf("reconciliation epsilon: %w", err)
	}

	m := metrics.New(reg)
	checks := map[string]handler.Pinger{}

	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redis.Ping(ctx, redisClient)
		})
		logger.Info().Msg("connected to redis")
	} else if cfg.LedgerLock == config.LockRedis || cfg.AuditSink == config.AuditSinkRedis {
		return nil, errors.New("REDIS_URL is required for the redis lock or audit sink")
	}

	store, err := openStorage(ctx, cfg, logger, a, checks)
	if err != nil {
		return nil, err
	}

	var accountLocker usecase.AccountLocker = locker.NewLocal()
	if cfg.LedgerLock == config.LockRedis {
		opts := locker.DefaultRedisOptions()
		if cfg.LockTimeout > 0 {
			opts.Expiry = 3 * cfg.LockTimeout
		}
		accountLocker = locker.NewRedis(redisClient, opts, logger)
	}

	sink, err := newAuditSink(cfg, store, redisClient, logger)
	if err != nil {
		return nil, err
	}

	idGen := postgresRepo.NewULIDGenerator()
	clock := usecase.SystemClock{}

	a.relay = auditrelay.New(auditrelay.Config{
		OutboxRepo:  store.outbox,
		Sink:        sink,
		Clock:       clock,
		Metrics:     m,
		Logger:      logger,
		BatchSize:   cfg.AuditBatchSize,
		Interval:    cfg.AuditPollInterval,
		MaxAttempts: cfg.AuditMaxAttempts,
		Retention:   cfg.AuditRetention,
	})

	a.ledger = usecase.NewTrustLedger(usecase.TrustLedgerConfig{
		TxManager:            store.txManager,
		AccountRepo:          store.accounts,
		TransactionRepo:      store.transactions,
		OutboxRepo:           store.outbox,
		Locker:               accountLocker,
		Retrier:              postgresRepo.NewRetrier(cfg.MaxConflictRetries, logger),
		IDGen:                idGen,
		Clock:                clock,
		Notifier:             a.relay,
		Metrics:              m,
		Logger:               logger,
		DefaultCurrency:      cfg.DefaultCurrency,
		DefaultFirmAccountID: cfg.DefaultFirmAccountID,
		MaxAmount:            maxAmount,
		LockTimeout:          cfg.LockTimeout,
		StorageTimeout:       cfg.StorageTimeout,
	})

	a.recon = usecase.NewReconciliationUseCase(usecase.ReconciliationConfig{
		TxManager:       store.txManager,
		TransactionRepo: store.transactions,
		OutboxRepo:      store.outbox,
		IDGen:           idGen,
		Clock:           clock,
		Notifier:        a.relay,
		Metrics:         m,
		Logger:          logger,
		Epsilon:         epsilon,
		StorageTimeout:  cfg.StorageTimeout,
	})

	a.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)

	routerCfg := httpAdapter.RouterConfig{
		TrustHandler:   handler.NewTrustHandler(a.ledger, a.recon, cfg.DefaultCurrency, logger),
		HealthHandler:  handler.NewHealthHandler(checks),
		IdempotencyTTL: cfg.IdempotencyTTL,
		RateLimiter:    a.limiter,
		Metrics:        m,
		MetricsHandler: metricsHandler,
		Logger:         logger,
	}
	if redisClient != nil {
		routerCfg.IdempotencyStore = redisRepo.NewIdempotencyStore(redisClient)
	} else {
		logger.Warn().Msg("REDIS_URL not set; Idempotency-Key is ignored")
	}
	if cfg.AuthEnabled {
		routerCfg.JWTManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	}
	a.handler = httpAdapter.NewRouter(routerCfg)

	return a, nil
}

func openStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger, a *app, checks map[string]handler.Pinger) (*storage, error) {
	if cfg.LedgerStore == config.StoreMemory {
		store := memory.NewStore()
		checks["store"] = store
		logger.Warn().Msg("using in-memory ledger store; balances are lost on restart")

		return &storage{
			txManager:    memory.NewTxManager(store),
			accounts:     memory.NewAccountRepository(store),
			transactions: memory.NewTransactionRepository(store),
			outbox:       memory.NewOutboxRepository(store),
		}, nil
	}

	if cfg.RunMigrations {
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.DatabaseTimeout)
	defer cancel()

	pool, err := postgres.NewPool(connectCtx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	checks["postgres"] = handler.PingFunc(pool.Ping)
	logger.Info().Msg("connected to postgres")

	return &storage{
		txManager:    postgresRepo.NewTxManager(pool),
		accounts:     postgresRepo.NewTrustAccountRepository(pool),
		transactions: postgresRepo.NewTrustTransactionRepository(pool),
		outbox:       postgresRepo.NewOutboxRepository(pool),
		auditLog:     postgresRepo.NewAuditRepository(pool),
	}, nil
}

// newAuditSink picks the configured sink. With the Postgres store the
// append-only audit table always receives events; a Redis stream is added
// alongside it rather than replacing it.
func newAuditSink(cfg *config.Config, store *storage, redisClient goredis.UniversalClient, logger zerolog.Logger) (usecase.AuditSink, error) {
	var sink usecase.AuditSink
	switch cfg.AuditSink {
	case config.AuditSinkPostgres:
		if store.auditLog == nil {
			return nil, errors.New("AUDIT_SINK=postgres requires LEDGER_STORE=postgres")
		}
		sink = store.auditLog
	case config.AuditSinkRedis:
		stream := auditsink.NewRedisStream(redisClient, cfg.AuditStream, 0)
		if store.auditLog != nil {
			sink = auditsink.NewMulti(store.auditLog, stream)
		} else {
			sink = stream
		}
	default:
		sink = auditsink.NewLog(logger)
	}

	return auditsink.NewBreaker(sink, auditsink.BreakerConfig{Name: "audit-" + cfg.AuditSink}, logger), nil
}

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

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/application"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/application/audit"
	appcheckout "github.com/Zhima-Mochi/openpayments-pos/app/internal/application/checkout"
	appmerchant "github.com/Zhima-Mochi/openpayments-pos/app/internal/application/merchant"
	apporder "github.com/Zhima-Mochi/openpayments-pos/app/internal/application/order"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/application/reconciliation"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/config"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/outbox"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/infrastructure/id"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/infrastructure/kafka"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/openpayments-pos/app/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/infrastructure/openpayments"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/infrastructure/redisstore"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/infrastructure/sqlstore"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/observability"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/pkg/keylock"
	httppresentation "github.com/Zhima-Mochi/openpayments-pos/app/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/openpayments-pos/app/internal/presentation/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := zaplogger.New(
		zaplogger.Options{Level: cfg.LogLevel, File: cfg.LogFile},
		observability.F("service", cfg.ServiceName),
		observability.F("env", cfg.Environment),
	)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger.Zap())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := oteltrace.Setup(ctx, oteltrace.Options{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.OtelEndpoint,
		Insecure:    cfg.OtelInsecure,
		AuthHeader:  cfg.OtelAuthHeader,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("otel_shutdown_error", observability.F("error", err))
		}
	}()

	reg := prometrics.New("")
	counters, histograms := infraobs.Instruments(reg)
	tel := infraobs.New(oteltrace.New(cfg.ServiceName), logger, counters, histograms)

	gateway, closeGateway, err := openInventory(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeGateway()

	if cfg.KeyID == "" || cfg.PrivateKey == "" {
		logger.Warn("request_signing_disabled", observability.F("reason", "KEY_ID or PRIVATE_KEY not set"))
	} else {
		logger.Info("request_signing_disabled", observability.F("key_id", cfg.KeyID),
			observability.F("reason", "no HTTP message signer configured"))
	}

	merchant := application.Merchant{
		WalletAddressURL: cfg.MerchantWalletAddressURL,
		AssetCode:        cfg.AssetCode,
		AssetScale:       cfg.AssetScale,
		FinishURL:        cfg.FinishURL,
	}
	timeouts := application.Timeouts{
		Protocol:  cfg.ProtocolTimeout,
		Inventory: cfg.InventoryTimeout,
		Publish:   cfg.PublishTimeout,
	}
	retry := application.RetryPolicy{MaxAttempts: cfg.WalletRetries, Backoff: cfg.WalletRetryBackoff}

	client := openpayments.New(openpayments.Options{
		ClientWallet: cfg.MerchantWalletAddressURL,
		HTTPClient:   &http.Client{Timeout: cfg.ProtocolTimeout},
	})

	bus := outbox.NewBus(logger, outbox.Options{HandlerTimeout: cfg.PublishTimeout})
	var sink domoutbox.Publisher
	var kafkaPublisher *kafka.Publisher
	if cfg.KafkaBroker != "" {
		kafkaPublisher = kafka.NewPublisher(kafka.NewWriter(cfg.KafkaBroker, cfg.KafkaTopic))
		sink = kafkaPublisher
		logger.Info("kafka_relay_enabled",
			observability.F("broker", cfg.KafkaBroker),
			observability.F("topic", cfg.KafkaTopic),
		)
	}
	audit.New(bus, sink, timeouts, tel).Start()
	bus.Start(ctx)

	orderRepo := memory.NewOrderRepository()
	checkoutRepo := memory.NewCheckoutRepository()
	idGen := id.NewUUIDGenerator()
	locks := keylock.New()

	refresh := reconciliation.NewRefreshStatusUseCase(
		orderRepo, client,
		reconciliation.NewReconciler(gateway, cfg.InventoryTimeout, tel),
		locks, bus, timeouts, tel,
	)
	useCases := httppresentation.UseCases{
		CreateOrder:      apporder.NewCreateOrderUseCase(orderRepo, client, idGen, bus, merchant, timeouts, tel),
		RefreshStatus:    refresh,
		StartCheckout:    appcheckout.NewStartCheckoutUseCase(checkoutRepo, client, idGen, bus, retry, merchant, timeouts, tel),
		FinishCheckout:   appcheckout.NewFinishCheckoutUseCase(checkoutRepo, client, locks, bus, timeouts, tel),
		DescribeMerchant: appmerchant.NewDescribeMerchantUseCase(merchant, cfg.InventoryBackend, tel),
	}

	poller := workerpresentation.NewPoller(
		reconciliation.NewReconcilePendingUseCase(orderRepo, refresh, tel),
		cfg.ReconcilePollInterval, 0, logger,
	)
	poller.Start(ctx)

	handler := httppresentation.NewHandler(useCases, httppresentation.Options{
		Metrics:     reg.Handler(),
		CORSOrigins: cfg.CORSOrigins,
	}, tel)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http_server_start",
			observability.F("addr", server.Addr),
			observability.F("inventory_backend", cfg.InventoryBackend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("http_server_error", observability.F("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", observability.F("error", err))
	} else {
		logger.Info("http_server_stopped")
	}
	poller.Stop()
	bus.Stop(shutdownCtx)
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Warn("kafka_close_error", observability.F("error", err))
		}
	}
	return nil
}

// openInventory builds the configured stock backend and its cleanup.
func openInventory(ctx context.Context, cfg *config.Config) (inventory.Gateway, func(), error) {
	switch cfg.InventoryBackend {
	case config.BackendMySQL, config.BackendSQLite:
		driver, dsn := sqlstore.DriverMySQL, cfg.MySQLDSN
		if cfg.InventoryBackend == config.BackendSQLite {
			driver, dsn = sqlstore.DriverSQLite, cfg.SQLitePath
		}
		db, err := sqlstore.Open(ctx, driver, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s inventory: %w", driver, err)
		}
		g := sqlstore.New(db, driver)
		if err := g.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate %s inventory: %w", driver, err)
		}
		return g, func() { _ = db.Close() }, nil
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("connect redis inventory: %w", err)
		}
		return redisstore.New(rdb), func() { _ = rdb.Close() }, nil
	default:
		return memory.NewInventoryGateway(), func() {}, nil
	}
}

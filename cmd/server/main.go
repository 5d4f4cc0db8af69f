package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ledgerflow/subscriptions/internal/adapters/invoice"
	"github.com/ledgerflow/subscriptions/internal/adapters/notify"
	"github.com/ledgerflow/subscriptions/internal/adapters/postgres"
	"github.com/ledgerflow/subscriptions/internal/config"
	"github.com/ledgerflow/subscriptions/internal/domain/ports"
	"github.com/ledgerflow/subscriptions/internal/gateway"
	"github.com/ledgerflow/subscriptions/internal/handlers/cron"
	"github.com/ledgerflow/subscriptions/internal/scheduler"
	"github.com/ledgerflow/subscriptions/internal/services/billing"
	"github.com/ledgerflow/subscriptions/internal/services/lifecycle"
	"github.com/ledgerflow/subscriptions/internal/services/payment"
	"github.com/ledgerflow/subscriptions/internal/services/plan"
	"github.com/ledgerflow/subscriptions/pkg/clock"
	"github.com/ledgerflow/subscriptions/pkg/middleware"
	"github.com/ledgerflow/subscriptions/pkg/observability"
	"github.com/ledgerflow/subscriptions/pkg/resilience"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadFromEnv()
	logger := initLogger(cfg)
	defer logger.Sync()

	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Info("starting subscription billing service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbCfg := postgres.DefaultConfig(cfg.Database.URL)
	dbCfg.MaxConns = cfg.Database.MaxConns()
	dbCfg.MinConns = cfg.Database.PoolSize
	db, err := postgres.Connect(ctx, dbCfg, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	db.StartPoolMonitoring(ctx, time.Minute)

	deps := buildDependencies(ctx, cfg, db, logger)

	sched := scheduler.New(clock.NewRealClock(), cfg.Scheduler.MaxWorkers, logger)
	scheduler.RegisterSubscriptionJobs(sched, deps.billingEngine, deps.subscriptions, db, deps.plans, deps.notifier, scheduler.JobConfig{
		BillingHour:   cfg.Scheduler.BillingHour,
		BillingMinute: cfg.Scheduler.BillingMinute,
		RetryInterval: time.Hour,
		MaxRetries:    cfg.Billing.MaxPaymentRetries,
	}, logger)
	sched.Start(ctx)
	defer sched.Stop()

	go refreshActiveSubscriptionGauge(ctx, db, deps.subscriptions, logger)

	cronHandler := cron.NewBillingHandler(deps.billingEngine, cfg.Billing.MaxPaymentRetries, logger, cfg.Auth.SecretKey)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /cron/process-billing", cronHandler.ProcessBilling)
	mux.HandleFunc("GET /cron/health", cronHandler.HealthCheck)

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitPerSecond, cfg.Server.RateLimitBurst)
	defer limiter.Shutdown()

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           observability.MetricsMiddleware(limiter.Middleware(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	healthChecker := observability.NewHealthChecker(db.Pool())
	metricsServer := observability.StartMetricsServer(fmt.Sprintf("%d", cfg.Server.MetricsPort), healthChecker)

	go func() {
		logger.Info("cron/admin server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("cron/admin server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("cron/admin server shutdown error", zap.Error(err))
	}
	if err := observability.ShutdownMetricsServer(metricsServer); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
}

// dependencies bundles every wired service the scheduler, cron handler,
// and (in a fuller deployment) an API layer would draw on.
type dependencies struct {
	subscriptions ports.SubscriptionRepository
	plans         ports.PlanRepository
	notifier      ports.Notifier
	billingEngine ports.BillingEngine
}

func buildDependencies(ctx context.Context, cfg *config.Config, db *postgres.DB, logger *zap.Logger) *dependencies {
	subscriptions := postgres.NewSubscriptionRepository()
	plans := postgres.NewPlanRepository()
	users := postgres.NewUserRepository()
	transactions := postgres.NewTransactionRepository()
	promos := postgres.NewPromoCodeRepository()
	audit := postgres.NewAuditRepository()

	secretManager := initSecretManager(ctx, logger)

	timeouts := resilience.DefaultTimeoutConfig()
	paymentGateway, err := gateway.NewGateway(ctx, gateway.Config{
		Tag:         cfg.Gateway.Provider,
		SuccessRate: cfg.Gateway.MockSuccessRate,
		BaseURL:     os.Getenv("GATEWAY_BASE_URL"),
		SecretPath:  cfg.Gateway.YooMoneySecretRef,
		Retry: resilience.ExponentialBackoff{
			BaseDelay:  cfg.Gateway.RetryBaseDelay,
			MaxDelay:   cfg.Gateway.RetryMaxDelay,
			Multiplier: cfg.Gateway.RetryMultiplier,
			Jitter:     cfg.Gateway.RetryJitter,
		},
	}, secretManager, timeouts, logger)
	if err != nil {
		logger.Fatal("failed to construct payment gateway", zap.Error(err))
	}

	clk := clock.NewRealClock()
	notifier := notify.NewLoggerNotifier(logger)
	invoiceRenderer, err := invoice.NewHTMLTemplateRenderer(logger)
	if err != nil {
		logger.Fatal("failed to construct invoice renderer", zap.Error(err))
	}

	calculator := plan.NewCalculator(plans, promos, db)
	processor := payment.NewProcessor(transactions, paymentGateway, db, clk, logger)
	manager := lifecycle.NewManager(subscriptions, plans, users, transactions, audit, calculator, processor, notifier, db, clk, cfg.Billing.RetryDelayDays, logger)
	engine := billing.NewEngine(subscriptions, plans, users, transactions, audit, calculator, processor, manager, notifier, invoiceRenderer, db, clk, cfg.Scheduler.MaxWorkers, cfg.Billing.RetryDelayDays, logger)

	return &dependencies{
		subscriptions: subscriptions,
		plans:         plans,
		notifier:      notifier,
		billingEngine: engine,
	}
}

// refreshActiveSubscriptionGauge keeps the active_subscriptions gauge
// current for scraping between billing runs.
func refreshActiveSubscriptionGauge(ctx context.Context, txMgr ports.TransactionManager, subscriptions ports.SubscriptionRepository, logger *zap.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var count int
			err := txMgr.WithTx(ctx, func(tx ports.DBTX) error {
				c, err := subscriptions.CountActive(ctx, tx)
				count = c
				return err
			})
			if err != nil {
				logger.Error("failed to refresh active subscription gauge", zap.Error(err))
				continue
			}
			observability.UpdateActiveSubscriptions(float64(count))
		}
	}
}

func initLogger(cfg *config.Config) *zap.Logger {
	var zcfg zap.Config
	development := cfg != nil && cfg.Logger.Development
	if development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	if cfg != nil && cfg.Logger.Level != "" {
		if lvl, err := zap.ParseAtomicLevel(cfg.Logger.Level); err == nil {
			zcfg.Level = lvl
		}
	}
	logger, err := zcfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return logger
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

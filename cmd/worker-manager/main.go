// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"settlement-engine/internal/common/auth"
	"settlement-engine/internal/common/aws"
	"settlement-engine/internal/common/camunda"
	"settlement-engine/internal/common/config"
	"settlement-engine/internal/common/database"
	"settlement-engine/internal/common/logger"
	"settlement-engine/internal/common/observability"
	"settlement-engine/internal/entitlement"
	"settlement-engine/internal/entitlement/events"
	"settlement-engine/internal/entitlement/pricing"
	"settlement-engine/internal/entitlement/role"
	"settlement-engine/internal/entitlement/subscription"
	"settlement-engine/internal/payout"
	"settlement-engine/internal/payout/ledger"

	cfa "settlement-engine/internal/workers/entitlement/check-feature-access"
	re "settlement-engine/internal/workers/entitlement/resolve-entitlement"
	sr "settlement-engine/internal/workers/entitlement/session-refresh"
	rec "settlement-engine/internal/workers/payout/record-earning"
	rp "settlement-engine/internal/workers/payout/request-payout"
	spa "settlement-engine/internal/workers/payout/sync-payout-account"
	tp "settlement-engine/internal/workers/payout/transition-payout"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	bootLog := logger.New("info", "console")
	defer bootLog.Sync()

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	log := logger.NewFromOptions(logger.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.Output,
	}).WithFields(map[string]interface{}{"service": cfg.App.Name, "version": cfg.App.Version})

	log.Info("starting worker manager", map[string]interface{}{"environment": cfg.App.Environment})

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		bootLog.Fatal("observability init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, bootLog, "Zeebe client initialization")
	if err != nil {
		bootLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, bootLog, "PostgreSQL connection")
	if err != nil {
		bootLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	// --- Redis (role cache and cross-instance refresh events) ---
	var rdb *database.RedisClient
	if cfg.Database.Redis.Address != "" {
		rdb = database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error { return rdb.Ping(ctx) }, 10, 2*time.Second, bootLog, "Redis connection")
		if err != nil {
			bootLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
	}

	// --- Entitlement ---
	prices := pricing.FromConfig(cfg.Entitlement.Prices)
	log.Info("price table loaded", map[string]interface{}{"prices": prices.Len()})
	resolver := role.NewResolver(
		buildRoleCache(cfg, rdb),
		buildRoleLookup(cfg, pg),
		log,
		role.WithLookupTimeout(config.GetDuration(cfg.Entitlement.LookupTimeout)),
	)
	reader := subscription.NewReader(pg.DB, prices,
		config.GetDuration(cfg.Entitlement.SubscriptionTimeout), log)
	engine := entitlement.NewEngine(resolver, reader, entitlement.NewCalculator(prices, time.Now), log)

	bus := events.NewBus()
	defer bus.Subscribe(func(ev events.Event) {
		if ev.Type != events.SessionRefresh {
			return
		}
		if err := resolver.Invalidate(context.Background(), ev.AccountID); err != nil {
			log.Warn("role cache invalidation failed", map[string]interface{}{
				"accountId": ev.AccountID,
				"error":     err.Error(),
			})
		}
	})()

	var publisher events.Publisher = bus
	if rdb != nil {
		relay := events.NewRedisRelay(rdb.Client, events.DefaultChannel, bus, log)
		publisher = relay
		go func() {
			if err := relay.Run(ctx, nil); err != nil {
				log.Error("event relay stopped", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	// --- Payouts ---
	l := ledger.New(pg.DB)
	payoutOpts := []payout.Option{payout.WithTracer(obs.Tracer())}

	if cfg.Database.Elasticsearch.Enabled() {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			bootLog.Fatal("elasticsearch client failed", zap.Error(err))
		}
		if err := es.Ping(ctx); err != nil {
			// audit indexing is best effort; keep starting
			log.Warn("elasticsearch unreachable, audit documents will fail until it recovers", map[string]interface{}{"error": err.Error()})
		}
		payoutOpts = append(payoutOpts, payout.WithAuditSink(payout.NewElasticAuditSink(es.Client, cfg.Payout.AuditIndex)))
	}

	if notifier := buildNotifier(ctx, cfg, log); notifier != nil {
		payoutOpts = append(payoutOpts, payout.WithNotifier(notifier))
	}

	payouts := payout.NewManager(pg.DB, l, payout.SettingsFromConfig(cfg.Payout), log, payoutOpts...)

	// --- Workers ---
	workers := camunda.NewWorkers(zeebe, log)
	start := func(key, taskType string, handle worker.JobHandler) {
		workers.Start(taskType, config.GetWorkerConfig(cfg, key), instrument(obs, taskType, handle))
	}

	start(re.ConfigKey, re.TaskType, re.NewHandler(re.ConfigFromApp(cfg), engine, log).Handle)
	start(cfa.ConfigKey, cfa.TaskType, cfa.NewHandler(cfa.ConfigFromApp(cfg), engine, log).Handle)
	start(sr.ConfigKey, sr.TaskType, sr.NewHandler(sr.ConfigFromApp(cfg), engine, publisher, log).Handle)
	start(rp.ConfigKey, rp.TaskType, rp.NewHandler(rp.ConfigFromApp(cfg), payouts, log).Handle)
	start(tp.ConfigKey, tp.TaskType, tp.NewHandler(tp.ConfigFromApp(cfg), payouts, log).Handle)
	start(spa.ConfigKey, spa.TaskType, spa.NewHandler(spa.ConfigFromApp(cfg), payouts, l, log).Handle)
	start(rec.ConfigKey, rec.TaskType, rec.NewHandler(rec.ConfigFromApp(cfg), l, log).Handle)

	log.Info("workers started", map[string]interface{}{"count": workers.Count()})

	// --- Health & Metrics Server ---
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.HTTPPort),
		Handler:           healthMux(pg, zeebe),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("health/metrics server listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("health/metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	log.Info("shutdown signal received, stopping workers", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	workers.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("health server shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	if err := zeebe.Close(); err != nil {
		log.Error("error closing zeebe client", map[string]interface{}{"error": err.Error()})
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Error("observability shutdown failed", map[string]interface{}{"error": err.Error()})
	}

	log.Info("worker manager stopped", nil)
}

func buildRoleCache(cfg *config.Config, rdb *database.RedisClient) role.Cache {
	ttl := time.Duration(cfg.Entitlement.RoleCacheTTL) * time.Second
	if cfg.Entitlement.RoleCache == config.RoleCacheRedis && rdb != nil {
		return role.NewRedisCache(rdb.Client, ttl)
	}
	return role.NewMemoryCache(ttl)
}

func buildRoleLookup(cfg *config.Config, pg *database.PostgresClient) role.Lookup {
	if cfg.Entitlement.RoleLookup == config.RoleLookupKeycloak {
		kc := cfg.Auth.Keycloak
		client := auth.NewKeycloakClient(kc.URL, kc.Realm, kc.ClientID, kc.ClientSecret, config.GetDuration(kc.Timeout))
		return role.NewKeycloakLookup(client, "")
	}
	return role.NewPostgresLookup(pg.DB)
}

// buildNotifier returns nil when neither SNS nor SES is enabled.
func buildNotifier(ctx context.Context, cfg *config.Config, log logger.Logger) payout.Notifier {
	awsCfg := cfg.Notifications.AWS
	var (
		topic payout.TopicPublisher
		email payout.EmailSender
	)

	if awsCfg.SNSEnabled {
		c, err := aws.NewSNSClient(ctx, awsCfg.Region)
		if err != nil {
			log.Warn("sns client unavailable, payout notifications disabled on sns", map[string]interface{}{"error": err.Error()})
		} else {
			topic = c
		}
	}
	if awsCfg.SESEnabled {
		c, err := aws.NewSESClient(ctx, awsCfg.Region)
		if err != nil {
			log.Warn("ses client unavailable, payout notifications disabled on ses", map[string]interface{}{"error": err.Error()})
		} else {
			email = c
		}
	}

	if topic == nil && email == nil {
		return nil
	}
	return payout.NewStatusNotifier(topic, email, payout.NotifierConfig{
		TopicARN:  awsCfg.TopicARN,
		FromEmail: awsCfg.FromEmail,
		OpsEmail:  awsCfg.OpsEmail,
		Currency:  cfg.Payout.Currency,
	})
}

// instrument records every handled job on the otel meter.
func instrument(obs *observability.Observability, taskType string, handle worker.JobHandler) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		handle(client, job)
		obs.RecordJob(context.Background(), taskType, "handled", time.Since(start))
	}
}

func healthMux(pg *database.PostgresClient, zeebe *camunda.Client) *http.ServeMux {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, body map[string]string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := pg.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "postgres": err.Error()})
			return
		}
		if err := zeebe.HealthCheck(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "zeebe": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// cmd/server/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"association-backend/internal/access"
	"association-backend/internal/common/aws"
	"association-backend/internal/common/config"
	"association-backend/internal/common/database"
	"association-backend/internal/common/logger"
	"association-backend/internal/common/observability"
	"association-backend/internal/hierarchy"
	"association-backend/internal/lifecycle"
	"association-backend/internal/models"
	"association-backend/internal/notification"
	"association-backend/internal/promotion"
	"association-backend/internal/store"
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
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting membership core...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Apply schema ---
	entityStore := store.New(pg.DB, log)
	if err := entityStore.Migrate(ctx); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}
	zapLog.Info("Schema applied")

	// --- Init delivery gateways ---
	var emailGateway notification.EmailGateway
	if cfg.Integrations.AWS.SES.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("SES client failed", zap.Error(err))
		}
		emailGateway = notification.NewSESEmailGateway(sesClient, cfg.Integrations.AWS.SES.FromEmail)
		zapLog.Info("SES email gateway enabled")
	}

	var pushGateway notification.PushGateway
	if cfg.Integrations.AWS.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("SNS client failed", zap.Error(err))
		}
		pushGateway = notification.NewSNSPushGateway(snsClient)
		zapLog.Info("SNS push gateway enabled")
	}

	// --- Wire the core ---
	reachable := make([]models.MemberStatus, 0, len(cfg.Notifications.ReachableStatuses))
	for _, s := range cfg.Notifications.ReachableStatuses {
		reachable = append(reachable, models.MemberStatus(s))
	}

	tree := hierarchy.New(entityStore, reachable, log)
	resolver := access.NewResolver(entityStore, entityStore, rdb.Client, log)
	fanout := notification.New(entityStore, tree, entityStore,
		emailGateway, pushGateway, reachable, cfg.Notifications.SendConcurrency, log)
	engine := lifecycle.New(entityStore, entityStore, fanout, rdb.Client, cfg.Lifecycle, log)
	ranked := promotion.New(pg.DB, log)

	zapLog.Info("Core components wired")

	// --- Daily tick scheduler ---
	tickCtx, stopTick := context.WithCancel(ctx)
	defer stopTick()
	go runTickLoop(tickCtx, engine, cfg.Lifecycle.TickHour, log)

	// --- Health/Metrics/Ops server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		registerOpsHandlers(obs, resolver, fanout, engine, ranked, log)
		zapLog.Info("Health/Metrics server listening", zap.String("addr", cfg.App.MetricsAddr))
		if err := http.ListenAndServe(cfg.App.MetricsAddr, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	stopTick()
	zapLog.Info("Membership core stopped")
}

// runTickLoop fires RunDailyTick once per day at the configured hour. The
// engine's watermark makes extra firings harmless.
func runTickLoop(ctx context.Context, engine *lifecycle.Engine, hour int, log logger.Logger) {
	for {
		next := nextRunAt(time.Now(), hour)
		log.Info("next lifecycle tick scheduled", map[string]interface{}{
			"at": next.Format(time.RFC3339),
		})

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		result, err := engine.RunDailyTick(ctx)
		if err != nil {
			log.Error("daily tick failed", map[string]interface{}{"error": err.Error()})
			continue
		}
		if result.Skipped {
			continue
		}
		log.Info("daily tick finished", map[string]interface{}{
			"day":                      result.Day,
			"trial_warnings":           result.TrialWarnings.Processed,
			"trial_expirations":        result.TrialExpirations.Processed,
			"subscription_warnings":    result.SubscriptionWarnings.Processed,
			"subscription_expirations": result.SubscriptionExpirations.Processed,
		})
	}
}

// nextRunAt returns the next occurrence of the given hour after now.
func nextRunAt(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

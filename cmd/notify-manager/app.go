package main

import (
	"context"
	"fmt"
	"time"

	"shift-notify/internal/common/aws"
	"shift-notify/internal/common/config"
	"shift-notify/internal/common/database"
	"shift-notify/internal/common/logger"
	"shift-notify/internal/common/observability"
	"shift-notify/internal/models"
	"shift-notify/internal/notify/dispatch"
	"shift-notify/internal/notify/queue"
	"shift-notify/internal/notify/recipients"
	"shift-notify/internal/notify/trigger"
	"shift-notify/internal/store/postgres"

	"go.uber.org/zap"
)

// app holds everything the subcommands share.
type app struct {
	cfg      *config.Config
	zapLog   *zap.Logger
	log      logger.Logger
	pg       *database.PostgresClient
	redis    *database.RedisClient
	store    *postgres.Store
	obs      *observability.Observability
	smsQueue *queue.Queue
	engine   *dispatch.Engine
	triggers *trigger.Service
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadFromFile(configFile)
	}
	return config.Load()
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

type columnProber interface {
	ProbePreferenceColumns(ctx context.Context) (models.PreferenceColumns, error)
}

// probePreferenceColumns retries the users-table probe and refuses to start
// without it: an absent column means opted in, a failed probe does not.
func probePreferenceColumns(ctx context.Context, p columnProber, retries int, delay time.Duration, log logger.Logger) (models.PreferenceColumns, error) {
	var cols models.PreferenceColumns
	err := retryWithBackoff(func() error {
		var err error
		cols, err = p.ProbePreferenceColumns(ctx)
		return err
	}, retries, delay, log, "Preference column probe")
	if err != nil {
		return models.PreferenceColumns{}, err
	}
	return cols, nil
}

func newApp(ctx context.Context, cfg *config.Config, connectRetries int) (*app, error) {
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.NewZapAdapter(zapLog)
	a := &app{cfg: cfg, zapLog: zapLog, log: log}

	err := retryWithBackoff(func() error {
		var err error
		a.pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return a.pg.Ping(ctx)
	}, connectRetries, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}
	log.Info("PostgreSQL connected successfully", nil)

	a.store = postgres.New(a.pg.DB,
		postgres.WithUsersTable(cfg.Database.Postgres.UsersTable),
		postgres.WithLogger(log),
	)

	cols, err := probePreferenceColumns(ctx, a.store, connectRetries, 2*time.Second, log)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	tracing, err := observability.NewTracing(cfg.App.Name, cfg.Observability.JaegerEndpoint, cfg.Observability.SampleRatio)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("tracing setup: %w", err)
	}
	a.obs, err = observability.New(cfg.App.Name, tracing)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("metrics setup: %w", err)
	}

	deps := dispatch.Dependencies{
		Templates:     a.store,
		Resolver:      recipients.NewResolver(a.store, log),
		Contacts:      recipients.NewContactResolver(a.store, cols, log),
		Observability: a.obs,
	}

	n := cfg.Notifications
	if n.SMS.Enabled {
		gateway, err := aws.NewSMSGateway(ctx, n.AWS.Region, n.SMS.SenderID)
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("sms gateway: %w", err)
		}
		a.smsQueue = queue.New(gateway, queue.Config{
			Delay:   config.GetDuration(n.SMS.SendDelay),
			Timeout: config.GetDuration(n.SMS.Timeout),
			Size:    n.SMS.QueueSize,
		}, log)
		deps.SMS = a.smsQueue
	} else {
		log.Warn("SMS channel disabled", nil)
	}

	if n.Email.Enabled {
		relay, err := aws.NewEmailRelay(ctx, n.AWS.Region, n.Email.FromEmail)
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("email relay: %w", err)
		}
		deps.Email = relay
	} else {
		log.Warn("Email channel disabled", nil)
	}

	a.engine = dispatch.NewEngine(dispatch.ConfigFrom(n), deps, log)

	var dedup trigger.Deduper
	if n.Dedup.Enabled {
		a.redis = database.NewRedis(cfg.Database.Redis)
		if err := a.redis.Ping(ctx); err != nil {
			log.Warn("Redis unavailable at startup, dedup fails open until it recovers", map[string]interface{}{
				"error": err.Error(),
			})
		}
		dedup = trigger.NewRedisDeduper(a.redis.Client, config.GetDuration(n.Dedup.TTL))
	}

	a.triggers = trigger.NewService(a.store, a.engine, dedup, log)
	return a, nil
}

// close drains the SMS queue before releasing connections.
func (a *app) close(ctx context.Context) {
	if a.smsQueue != nil {
		a.smsQueue.Close()
	}
	a.obs.Shutdown(ctx)
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pg != nil {
		_ = a.pg.Close()
	}
	_ = a.zapLog.Sync()
}

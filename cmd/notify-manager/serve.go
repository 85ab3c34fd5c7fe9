package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shift-notify/internal/api"
	"shift-notify/internal/common/camunda"
	"shift-notify/internal/common/config"
	"shift-notify/internal/notify/reminder"
	notifyweek "shift-notify/internal/workers/notification/notify-week"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, reminder scheduler and workflow worker",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, 15)
	if err != nil {
		return err
	}
	log := a.log
	log.Info("Starting notify manager", map[string]interface{}{
		"version":     version,
		"environment": cfg.App.Environment,
	})

	checks := map[string]api.Pinger{"postgres": a.pg}
	if a.redis != nil {
		checks["redis"] = a.redis
	}

	var (
		zeebe  *camunda.Client
		worker *camunda.Worker
	)
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClient(ctx, cfg.Camunda)
			return err
		}, 10, 2*time.Second, log, "Zeebe client initialization")
		if err != nil {
			a.close(context.Background())
			return err
		}
		checks["zeebe"] = zeebe

		handler := notifyweek.NewHandler(&notifyweek.Config{
			Timeout: config.GetDuration(cfg.Camunda.Timeout),
		}, a.triggers, log)
		worker = camunda.NewWorker(zeebe.Zeebe(), cfg.Camunda, handler, log)
	}

	var scheduler *reminder.Scheduler
	if cfg.Reminders.Enabled {
		scheduler = reminder.New(a.store, a.engine, config.GetDuration(cfg.Reminders.Interval), log)
		scheduler.Start(ctx)
	}

	server := api.NewServer(cfg.HTTP, a.triggers, checks, cfg.Observability.MetricsEnabled, log)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received", nil)
	case err = <-serverErr:
		if err != nil {
			log.Error("HTTP server failed", map[string]interface{}{"error": err.Error()})
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.HTTP.ShutdownTimeout))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	if worker != nil {
		worker.Stop()
	}
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := a.triggers.Wait(shutdownCtx); err != nil {
		log.Warn("Background dispatches still running at shutdown", map[string]interface{}{"error": err.Error()})
	}
	if zeebe != nil {
		_ = zeebe.Close()
	}
	a.close(shutdownCtx)

	log.Info("Notify manager stopped", nil)
	return err
}

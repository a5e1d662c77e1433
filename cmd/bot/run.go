package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Hetham1/pillbot/internal/backup"
	"github.com/Hetham1/pillbot/internal/bot"
	"github.com/Hetham1/pillbot/internal/metrics"
	"github.com/Hetham1/pillbot/internal/scheduler"
	"github.com/Hetham1/pillbot/internal/service"
	"github.com/Hetham1/pillbot/internal/storage"
)

type RunCmd struct{}

func (r *RunCmd) Run(cli *CLI) error {
	cfg, log, err := cli.load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.UsesDefaultAdminCode() {
		log.Warn().Msg("ADMIN_CODE is not set, using the built-in default code")
	}

	var rec metrics.Recorder = metrics.Noop()
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		p := metrics.New()
		rec = p
		metricsHandler = p.Handler()
	}

	store, err := storage.Open(cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()
	log.Info().Str("backend", cfg.StorageBackend).Msg("Storage opened")

	roster, err := service.NewRosterService(store, rec, log)
	if err != nil {
		return err
	}
	stats := service.NewStatsService(store, cfg.Timezone, rec, log)
	session := service.NewSession(roster, service.NewPendingActions(), service.StaticCode(cfg.AdminCode), log)

	reminders, err := scheduler.NewReminderQueue(cfg.Timezone, log)
	if err != nil {
		return err
	}
	workflow := service.NewWorkflow(stats, roster, service.NewNotifier(roster, rec, log), reminders, cfg.ReaskDelay, rec, log)
	reminders.SetHandler(workflow.Reask)

	tgBot, err := bot.New(cfg, bot.Services{
		Session:  session,
		Roster:   roster,
		Stats:    stats,
		Workflow: workflow,
		Metrics:  metricsHandler,
	}, log)
	if err != nil {
		return fmt.Errorf("init bot: %w", err)
	}
	workflow.SetMessenger(tgBot)

	sched := scheduler.New(cfg, workflow, log)
	if cfg.BackupDir != "" {
		w, err := backup.NewWriter(cfg.BackupDir, store)
		if err != nil {
			return fmt.Errorf("init backup: %w", err)
		}
		defer w.Close()
		sched.SetBackup(w.Run)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reminders.Start()

	go func() {
		if err := sched.Start(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduler error")
			cancel()
		}
	}()

	botErr := make(chan error, 1)
	go func() {
		botErr <- tgBot.Start(ctx)
	}()

	log.Info().Msg("PillBot started")

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down...")
	case runErr = <-botErr:
		cancel()
	}

	sched.Stop()
	if err := reminders.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Error stopping reminders")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := tgBot.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping bot")
	}

	log.Info().Msg("PillBot stopped")
	return runErr
}

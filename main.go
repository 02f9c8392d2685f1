package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/errbook/internal/ai"
	"github.com/example/errbook/internal/bot"
	"github.com/example/errbook/internal/config"
	"github.com/example/errbook/internal/database"
	"github.com/example/errbook/internal/knowledge"
	"github.com/example/errbook/internal/logger"
	"github.com/example/errbook/internal/practice"
	"github.com/example/errbook/internal/scheduler"
	"github.com/example/errbook/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer lg.Sync()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driver, err := database.DriverFor(cfg.Database.Type)
	if err != nil {
		lg.Fatal("invalid database config", "error", err)
	}
	store, err := database.Connect(driver, cfg.Database.DSN)
	if err != nil {
		lg.Fatal("failed to connect to database", "error", err)
	}
	defer store.Close()

	grader, err := ai.New(cfg.Grader)
	if err != nil {
		lg.Warn("grader disabled, /check will not work", "error", err)
		grader = nil
	}

	svc := knowledge.NewService(store, grader, knowledge.OptionsFromConfig(cfg), lg)
	if err := svc.SeedDailyLimit(ctx); err != nil {
		lg.Fatal("failed to seed daily limit", "error", err)
	}

	b, err := bot.New(cfg.Bot, svc, practice.NewModule(svc), cfg.Timezone, lg)
	if err != nil {
		lg.Fatal("failed to create bot", "error", err)
	}

	var backup scheduler.Backuper
	if cfg.Backup.Enabled {
		client, err := storage.NewClient(cfg.Backup, lg)
		if err != nil {
			lg.Fatal("failed to create storage client", "error", err)
		}
		initCtx, initCancel := context.WithTimeout(ctx, 10*time.Second)
		err = client.Init(initCtx)
		initCancel()
		if err != nil {
			lg.Warn("backups disabled, storage unavailable", "error", err)
		} else {
			backup = client
		}
	}

	sched := scheduler.New(svc, b, backup, scheduler.Config{
		SweepInterval: cfg.Knowledge.PendingSweepInterval,
		ReminderCron:  cfg.Bot.ReminderCron,
		BackupCron:    cfg.Backup.Cron,
		BackupKeep:    cfg.Backup.Keep,
		Location:      cfg.Timezone,
	}, lg)
	if err := sched.Start(); err != nil {
		lg.Fatal("failed to start scheduler", "error", err)
	}
	defer sched.Stop()

	go func() {
		sig := <-sigChan
		lg.Info("received signal", "signal", sig.String())
		cancel()
	}()

	lg.Info("errbook started", "db", driver, "grader", cfg.Grader.Provider)
	if err := b.Run(ctx); err != nil {
		lg.Error("bot error", "error", err)
	}
	lg.Info("errbook stopped")
}

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/example/errbook/internal/excel"
	"github.com/example/errbook/internal/knowledge"
	"github.com/example/errbook/internal/logger"
	"github.com/example/errbook/pkg/models"
	"github.com/go-co-op/gocron"
)

// jobTimeout bounds a single reminder or backup run
const jobTimeout = 2 * time.Minute

// Tracker is the part of the knowledge service the jobs read
type Tracker interface {
	Now() time.Time
	Gate() *knowledge.PendingGate
	DueCount(ctx context.Context) (int, error)
	ListActive(ctx context.Context, filter knowledge.Filter) ([]models.KnowledgePoint, error)
}

// Notifier interface for sending notifications
type Notifier interface {
	SendReminder(ctx context.Context, dueCount int) error
}

// Backuper stores export workbooks
type Backuper interface {
	UploadBackup(ctx context.Context, data []byte, now time.Time) (string, error)
	Prune(ctx context.Context, keep int) (int, error)
}

// Config holds the job timings
type Config struct {
	SweepInterval time.Duration
	ReminderCron  string
	BackupCron    string
	BackupKeep    int
	Location      *time.Location
}

// Scheduler manages scheduled tasks for the application. Purging deleted
// points is never scheduled here.
type Scheduler struct {
	scheduler *gocron.Scheduler
	tracker   Tracker
	notifier  Notifier
	backup    Backuper // nil when backups are off
	cfg       Config
	log       *logger.Logger
}

// New creates a new scheduler instance
func New(tracker Tracker, notifier Notifier, backup Backuper, cfg Config, log *logger.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	s := gocron.NewScheduler(cfg.Location)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		tracker:   tracker,
		notifier:  notifier,
		backup:    backup,
		cfg:       cfg,
		log:       log.With("component", "scheduler"),
	}
}

// Start registers the jobs and runs them in the background
func (s *Scheduler) Start() error {
	if s.cfg.SweepInterval > 0 {
		if _, err := s.scheduler.Every(s.cfg.SweepInterval).Do(s.SweepPending); err != nil {
			return fmt.Errorf("schedule pending sweep: %w", err)
		}
	}
	if s.notifier != nil && s.cfg.ReminderCron != "" {
		if _, err := s.scheduler.Cron(s.cfg.ReminderCron).Do(s.runWithTimeout, "reminder", s.SendReminder); err != nil {
			return fmt.Errorf("schedule reminders: %w", err)
		}
	}
	if s.backup != nil && s.cfg.BackupCron != "" {
		if _, err := s.scheduler.Cron(s.cfg.BackupCron).Do(s.runWithTimeout, "backup", s.RunBackup); err != nil {
			return fmt.Errorf("schedule backups: %w", err)
		}
	}

	s.scheduler.StartAsync()
	s.log.Info("scheduler started", "jobs", len(s.scheduler.Jobs()))
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) runWithTimeout(name string, job func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if err := job(ctx); err != nil {
		s.log.Error("scheduled job failed", "job", name, "error", err)
	}
}

// SweepPending drops expired pending candidates
func (s *Scheduler) SweepPending() int {
	n := s.tracker.Gate().Sweep(s.tracker.Now())
	if n > 0 {
		s.log.Debug("expired pending candidates dropped", "tokens", n)
	}
	return n
}

// SendReminder tells the learner how many points are due, if any
func (s *Scheduler) SendReminder(ctx context.Context) error {
	count, err := s.tracker.DueCount(ctx)
	if err != nil {
		return fmt.Errorf("count due points: %w", err)
	}
	if count == 0 {
		return nil
	}
	return s.notifier.SendReminder(ctx, count)
}

// RunBackup exports the active points and uploads the workbook
func (s *Scheduler) RunBackup(ctx context.Context) error {
	points, err := s.tracker.ListActive(ctx, knowledge.Filter{})
	if err != nil {
		return fmt.Errorf("list points: %w", err)
	}
	data, err := excel.ExportPoints(points)
	if err != nil {
		return fmt.Errorf("export points: %w", err)
	}
	name, err := s.backup.UploadBackup(ctx, data, s.tracker.Now())
	if err != nil {
		return err
	}
	if s.cfg.BackupKeep > 0 {
		if _, err := s.backup.Prune(ctx, s.cfg.BackupKeep); err != nil {
			s.log.Warn("failed to prune old backups", "error", err)
		}
	}
	s.log.Info("backup finished", "name", name, "points", len(points))
	return nil
}

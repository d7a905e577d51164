package services

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"libtrack/internal/adapters/persistence/repositories"
	"libtrack/internal/config"
	"libtrack/internal/core/domain"
)

// SchedulerService owns the recurring jobs: the nightly sync plus renewal
// pass and the morning due-soon reminder. It is the only component that
// decides when reconciliation runs.
type SchedulerService struct {
	cron     *cron.Cron
	sync     *SyncService
	renewal  *RenewalService
	books    repositories.BookRepository
	notifier Notifier
	cfg      config.SyncConfig
}

// NewSchedulerService creates a new scheduler service
func NewSchedulerService(
	sync *SyncService,
	renewal *RenewalService,
	books repositories.BookRepository,
	notifier Notifier,
	cfg config.SyncConfig,
) *SchedulerService {
	return &SchedulerService{
		cron:     cron.New(),
		sync:     sync,
		renewal:  renewal,
		books:    books,
		notifier: notifier,
		cfg:      cfg,
	}
}

// Start registers the cron entries and starts the scheduler
func (s *SchedulerService) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.SyncCron, s.runSync); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.ReminderCron, s.runReminder); err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("⏰ Scheduler started (sync %q, reminder %q)", s.cfg.SyncCron, s.cfg.ReminderCron)
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("🛑 Scheduler stopped")
}

// runSync runs one reconciliation pass followed by the renewal pass
func (s *SchedulerService) runSync() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	summary, err := s.sync.Reconcile(ctx)
	if err != nil {
		kind := domain.Classify(err)
		log.Printf("❌ Scheduled sync failed (%s): %v", kind, err)
		s.notifier.NotifySyncFailure(kind, err.Error())
		return
	}
	s.notifier.NotifySyncSummary(summary)

	results, err := s.renewal.RenewDueSoon(ctx)
	if err != nil {
		log.Printf("❌ Scheduled renewal pass failed: %v", err)
		return
	}
	s.notifier.NotifyRenewals(results)
}

// runReminder pushes a reminder for loans due within the reminder window
func (s *SchedulerService) runReminder() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, s.cfg.RemindDaysAhead)
	records, err := s.books.FindDueBefore(ctx, cutoff)
	if err != nil {
		log.Printf("❌ Due-soon reminder failed: %v", err)
		return
	}

	items := make([]DueReminder, 0, len(records))
	for _, r := range records {
		items = append(items, DueReminder{Title: r.Title, DueAt: r.DueAt})
	}
	s.notifier.NotifyDueSoon(items)
}

// Package scheduler reloads the patient table on a cron-like schedule and
// warns when the loaded snapshot gets stale.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/giygas/drugcheck-api/interfaces"
	"github.com/giygas/drugcheck-api/logging"
	"github.com/go-co-op/gocron"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Scheduler handles patient table reloads and staleness monitoring
type Scheduler struct {
	store      interfaces.PatientStore
	reloadAt   string
	staleAfter time.Duration
	interval   time.Duration

	scheduler *gocron.Scheduler
	job       *gocron.Job
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewScheduler creates a scheduler. reloadAt is a gocron At() expression such
// as "06:00;18:00"; an empty value loads the table once and never again.
func NewScheduler(store interfaces.PatientStore, reloadAt string, staleAfter time.Duration) *Scheduler {
	return &Scheduler{
		store:      store,
		reloadAt:   reloadAt,
		staleAfter: staleAfter,
		interval:   time.Hour,
		scheduler:  gocron.NewScheduler(time.Local),
		stop:       make(chan struct{}),
	}
}

// Start performs the initial load and schedules the reloads. A failed initial
// load is logged, not returned: only the patient route depends on the table.
func (s *Scheduler) Start() error {
	if err := s.Reload(); err != nil {
		logging.Error("Failed to perform initial patient load", "error", err)
	}

	if s.reloadAt == "" {
		logging.Info("Patient reloads disabled, table loaded once")
		return nil
	}

	job, err := s.scheduler.Every(1).Days().At(s.reloadAt).Do(func() {
		if err := s.Reload(); err != nil {
			logging.Error("Failed to reload patients", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule patient reloads", "error", err, "at", s.reloadAt)
		return fmt.Errorf("failed to schedule patient reloads: %w", err)
	}
	s.job = job

	s.scheduler.StartAsync()
	s.startHealthMonitoring()

	logging.Info("Patient reloads scheduled", "at", s.reloadAt, "next_run", s.NextRun().Format(time.RFC3339))
	return nil
}

// Stop stops the scheduler and the monitoring goroutine
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.scheduler.Stop()
	})
}

// NextRun is the next scheduled reload, zero when reloads are disabled
func (s *Scheduler) NextRun() time.Time {
	if s.job == nil {
		return time.Time{}
	}
	return s.job.NextRun()
}

// Reload loads a fresh snapshot unless another reload is running
func (s *Scheduler) Reload() error {
	if !s.store.BeginUpdate() {
		logging.Info("Patient reload already in progress, skipping...")
		return nil
	}
	defer s.store.EndUpdate()

	logging.Info(fmt.Sprintf("Starting patient reload at: %s", time.Now().Format(time.RFC3339)))
	return s.store.Reload()
}

// IsStale reports whether the snapshot is older than the configured limit
func (s *Scheduler) IsStale(now time.Time) bool {
	last := s.store.GetLastUpdated()
	if last.IsZero() || s.staleAfter <= 0 {
		return false
	}
	return now.Sub(last) > s.staleAfter
}

func (s *Scheduler) startHealthMonitoring() {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case now := <-ticker.C:
				if s.IsStale(now) {
					logging.Warn("Patient table is stale",
						"last_loaded", s.store.GetLastUpdated().Format(time.RFC3339),
						"stale_after", s.staleAfter.String())
				}
				if s.store.Snapshot() == nil {
					logging.Warn("Patient table still not loaded", "last_error", s.store.LastError())
				}
			}
		}
	}()
}
